package events

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	// TopicAll recibe todas las publicaciones, sin importar el tópico.
	TopicAll = "*"

	TopicAppError  = "app:error"
	TopicTTSStatus = "tts:status"
	TopicTTSSpoken = "tts:spoken"

	defaultBufferSize = 128
)

type subscriber struct {
	ch     chan any
	accept func(topic string) bool
}

type Bus struct {
	mu        sync.RWMutex
	subs      map[string]map[int]*subscriber
	nextSubID int
	closed    bool

	dropMu     sync.Mutex
	dropCounts map[string]uint64
}

func NewBus() *Bus {
	return &Bus{
		subs:       make(map[string]map[int]*subscriber),
		dropCounts: make(map[string]uint64),
	}
}

// Publish entrega el payload a los suscriptores del tópico y a los de TopicAll.
// Nunca bloquea: si el buffer de un suscriptor está lleno el mensaje se descarta.
func (b *Bus) Publish(topic string, payload any) {
	if topic == "" || topic == TopicAll {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs[topic] {
		b.offer(sub.ch, topic, payload)
	}
	for _, sub := range b.subs[TopicAll] {
		if sub.accept != nil && !sub.accept(topic) {
			continue
		}
		b.offer(sub.ch, topic, Envelope{Topic: topic, Payload: payload})
	}
}

func (b *Bus) offer(ch chan any, topic string, msg any) {
	select {
	case ch <- msg:
	default:
		b.recordDrop(topic)
	}
}

// Subscribe devuelve un canal para el tópico. Con TopicAll cada mensaje llega
// envuelto en un Envelope para conservar el tópico de origen.
func (b *Bus) Subscribe(topic string) (<-chan any, func()) {
	return b.SubscribeFiltered(topic, defaultBufferSize, nil)
}

// SubscribeFiltered es Subscribe con buffer propio; con TopicAll, accept decide
// qué tópicos llegan (nil acepta todos).
func (b *Bus) SubscribeFiltered(topic string, size int, accept func(topic string) bool) (<-chan any, func()) {
	if size <= 0 {
		size = defaultBufferSize
	}
	ch := make(chan any, size)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs == nil {
		b.subs = make(map[string]map[int]*subscriber)
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]*subscriber)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[topic][id] = &subscriber{ch: ch, accept: accept}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, topic)
				}
			}
			if !b.closed {
				close(ch)
			}
		})
	}

	return ch, unsubscribe
}

// Close cierra todos los canales; las publicaciones posteriores se ignoran.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	b.subs = nil
}

func (b *Bus) Drops(topic string) uint64 {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropCounts[topic]
}

func (b *Bus) recordDrop(topic string) {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	if b.dropCounts == nil {
		b.dropCounts = make(map[string]uint64)
	}
	b.dropCounts[topic]++
	if b.dropCounts[topic]%100 == 1 {
		log.Warn("events: dropping messages", "topic", topic, "total", b.dropCounts[topic])
	}
}

// PublishError publica en TopicAppError un fallo que no tiene a quién devolverse.
func (b *Bus) PublishError(source string, err error) {
	if err == nil {
		return
	}
	b.Publish(TopicAppError, AppErrorDTO{Source: source, Error: err.Error()})
}

// InternalTopic indica si el tópico es de la propia aplicación ("tts:", "app:")
// y no un evento de negocio.
func InternalTopic(topic string) bool {
	return strings.HasPrefix(topic, "tts:") || strings.HasPrefix(topic, "app:")
}

// Envelope es lo que reciben los suscriptores de TopicAll.
type Envelope struct {
	Topic   string
	Payload any
}
