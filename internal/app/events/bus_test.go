package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBus_TopicSubscriberReceivesOnlyItsTopic(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("order_submitted")
	defer unsubscribe()

	bus.Publish("access_request", "ignored")
	bus.Publish("order_submitted", "hello")

	assert.Equal(t, "hello", receive(t, ch))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

func TestBus_WildcardReceivesEveryTopicWrapped(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicAll)
	defer unsubscribe()

	bus.Publish("order_submitted", 1)
	bus.Publish("access_request", 2)

	first, ok := receive(t, ch).(Envelope)
	require.True(t, ok)
	assert.Equal(t, Envelope{Topic: "order_submitted", Payload: 1}, first)

	second, ok := receive(t, ch).(Envelope)
	require.True(t, ok)
	assert.Equal(t, "access_request", second.Topic)
}

func TestBus_PublishingToWildcardIsIgnored(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicAll)
	defer unsubscribe()

	bus.Publish(TopicAll, "x")
	bus.Publish("", "x")

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

func TestBus_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe("flood")
	defer unsubscribe()

	for i := 0; i < defaultBufferSize+5; i++ {
		bus.Publish("flood", i)
	}
	assert.Equal(t, uint64(5), bus.Drops("flood"))
}

func TestBus_UnsubscribeClosesChannelOnce(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("x")
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish("x", "after")
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicAll)
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	unsubscribe()
	bus.Publish("x", 1)
}

func TestBus_FilteredWildcardSkipsRejectedTopics(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.SubscribeFiltered(TopicAll, 4, func(topic string) bool { return !InternalTopic(topic) })
	defer unsubscribe()

	// más estados que buffer: ninguno debe ocupar lugar
	for i := 0; i < 10; i++ {
		bus.Publish(TopicTTSStatus, i)
	}
	bus.Publish(TopicAppError, "x")
	bus.Publish("recreo", "anuncio")

	env := receive(t, ch).(Envelope)
	assert.Equal(t, "recreo", env.Topic)
	assert.Zero(t, bus.Drops(TopicTTSStatus))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

func TestBus_PublishError(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicAppError)
	defer unsubscribe()

	bus.PublishError("nats", nil)
	bus.PublishError("nats", errors.New("connection refused"))

	assert.Equal(t, AppErrorDTO{Source: "nats", Error: "connection refused"}, receive(t, ch))
}

func TestInternalTopic(t *testing.T) {
	assert.True(t, InternalTopic(TopicTTSStatus))
	assert.True(t, InternalTopic(TopicAppError))
	assert.False(t, InternalTopic("import_completed"))
	assert.False(t, InternalTopic("recreo"))
}
