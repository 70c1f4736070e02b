package announcements

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unatienda/internal/app/events"
	ttsruntime "unatienda/internal/app/tts/runner"
	"unatienda/internal/domain"
)

type staticSettings struct {
	settings domain.TTSSettings
	muted    bool
}

func (s *staticSettings) Settings(context.Context) domain.TTSSettings { return s.settings }
func (s *staticSettings) Muted(context.Context) bool                 { return s.muted }

type captureQueue struct {
	mu    sync.Mutex
	items []ttsruntime.Announcement
}

func (q *captureQueue) Enqueue(_ context.Context, item ttsruntime.Announcement) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return "id", nil
}

func (q *captureQueue) texts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.Text)
	}
	return out
}

func enabledSettings() *staticSettings {
	s := domain.DefaultTTSSettings()
	s.Enabled = true
	return &staticSettings{settings: s}
}

func TestAdmit_LanguageFallback(t *testing.T) {
	l := NewListener(nil, enabledSettings(), &captureQueue{}, domain.RoleByName("admin"))
	ctx := context.Background()

	text, ok := l.Admit(ctx, domain.AnnouncementEvent{Type: "x", Message: domain.Texts(map[string]string{"en": "Hi"})})
	require.True(t, ok)
	assert.Equal(t, "Hi", text)

	text, ok = l.Admit(ctx, domain.AnnouncementEvent{Type: "x", Message: domain.Texts(map[string]string{"en": "Hi", "es": "Hola"})})
	require.True(t, ok)
	assert.Equal(t, "Hola", text)

	_, ok = l.Admit(ctx, domain.AnnouncementEvent{Type: "x", Message: domain.Texts(map[string]string{})})
	assert.False(t, ok)

	_, ok = l.Admit(ctx, domain.AnnouncementEvent{Type: "x", Message: domain.Text("   ")})
	assert.False(t, ok)
}

func TestAdmit_PreferredLanguageWins(t *testing.T) {
	settings := enabledSettings()
	settings.settings.Language = "en"
	l := NewListener(nil, settings, &captureQueue{}, domain.RoleByName("admin"))

	text, ok := l.Admit(context.Background(), domain.AnnouncementEvent{
		Type:    "x",
		Message: domain.Texts(map[string]string{"en": "Hi", "es": "Hola"}),
	})
	require.True(t, ok)
	assert.Equal(t, "Hi", text)
}

func TestAdmit_EventFiltering(t *testing.T) {
	settings := enabledSettings()
	settings.settings.EnabledEvents = []string{"order_submitted"}
	l := NewListener(nil, settings, &captureQueue{}, domain.RoleByName("admin"))
	ctx := context.Background()
	msg := domain.Text("nuevo evento")

	_, ok := l.Admit(ctx, domain.AnnouncementEvent{Type: "access_request", Message: msg})
	assert.False(t, ok)
	_, ok = l.Admit(ctx, domain.AnnouncementEvent{Type: "order_submitted", Message: msg})
	assert.True(t, ok)

	settings.settings.EnabledEvents = nil
	_, ok = l.Admit(ctx, domain.AnnouncementEvent{Type: "access_request", Message: msg})
	assert.True(t, ok)
	_, ok = l.Admit(ctx, domain.AnnouncementEvent{Type: "order_submitted", Message: msg})
	assert.True(t, ok)
}

func TestAdmit_GlobalGates(t *testing.T) {
	ev := domain.AnnouncementEvent{Type: "x", Message: domain.Text("hola")}
	ctx := context.Background()

	disabled := enabledSettings()
	disabled.settings.Enabled = false
	_, ok := NewListener(nil, disabled, &captureQueue{}, domain.RoleByName("admin")).Admit(ctx, ev)
	assert.False(t, ok, "disabled")

	muted := enabledSettings()
	muted.muted = true
	_, ok = NewListener(nil, muted, &captureQueue{}, domain.RoleByName("admin")).Admit(ctx, ev)
	assert.False(t, ok, "muted")

	_, ok = NewListener(nil, enabledSettings(), &captureQueue{}, domain.RoleByName("moderator")).Admit(ctx, ev)
	assert.False(t, ok, "non-admin role")
}

func TestRun_EnqueuesAdmittedEventsFromAnyTopic(t *testing.T) {
	bus := events.NewBus()
	queue := &captureQueue{}
	settings := enabledSettings()
	settings.settings.EnabledEvents = []string{"order_submitted", "import_completed"}
	l := NewListener(bus, settings, queue, domain.RoleByName("admin"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// la suscripción ocurre dentro de Run
	require.Eventually(t, func() bool {
		bus.Publish("warmup", domain.AnnouncementEvent{Type: "order_submitted", Message: domain.Text("warmup")})
		return len(queue.texts()) > 0
	}, time.Second, 10*time.Millisecond)

	bus.Publish("access_request", domain.AnnouncementEvent{Type: "access_request", Message: domain.Text("no")})
	bus.Publish(events.TopicTTSStatus, events.TTSStatusDTO{State: "idle"})
	bus.Publish("import_completed", []byte(`{"message":{"es":"Importación lista"}}`))
	bus.Publish("order_submitted", domain.AnnouncementEvent{Type: "order_submitted", Message: domain.Text("Pedido nuevo")})

	require.Eventually(t, func() bool {
		texts := queue.texts()
		return len(texts) > 0 && texts[len(texts)-1] == "Pedido nuevo"
	}, time.Second, 5*time.Millisecond)

	texts := queue.texts()
	assert.NotContains(t, texts, "no")
	assert.Contains(t, texts, "Importación lista")

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_StatusFloodDoesNotCrowdOutEvents(t *testing.T) {
	bus := events.NewBus()
	queue := &captureQueue{}
	l := NewListener(bus, enabledSettings(), queue, domain.RoleByName("admin"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	require.Eventually(t, func() bool {
		bus.Publish("warmup", domain.AnnouncementEvent{Type: "warmup", Message: domain.Text("warmup")})
		return len(queue.texts()) > 0
	}, time.Second, 10*time.Millisecond)

	// sin filtro estos estados ocuparían el buffer del listener
	for i := 0; i < 2*listenerBuffer; i++ {
		bus.Publish(events.TopicTTSStatus, events.TTSStatusDTO{State: "playing", QueueLength: i})
		bus.Publish(events.TopicAppError, events.AppErrorDTO{Source: "nats", Error: "x"})
	}
	bus.Publish("recreo", domain.AnnouncementEvent{Type: "recreo", Message: domain.Text("Inicia el recreo")})

	require.Eventually(t, func() bool {
		return slices.Contains(queue.texts(), "Inicia el recreo")
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, bus.Drops(events.TopicTTSStatus))
}
