package announcements

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/charmbracelet/log"

	"unatienda/internal/app/events"
	ttsruntime "unatienda/internal/app/tts/runner"
	"unatienda/internal/domain"
)

// listenerBuffer deja margen para ráfagas de eventos de negocio.
const listenerBuffer = 512

type SettingsSource interface {
	Settings(ctx context.Context) domain.TTSSettings
	Muted(ctx context.Context) bool
}

type Queue interface {
	Enqueue(ctx context.Context, item ttsruntime.Announcement) (string, error)
}

type Listener struct {
	bus      *events.Bus
	settings SettingsSource
	queue    Queue
	role     domain.Role
}

func NewListener(bus *events.Bus, settings SettingsSource, queue Queue, role domain.Role) *Listener {
	return &Listener{
		bus:      bus,
		settings: settings,
		queue:    queue,
		role:     role,
	}
}

// Admit aplica la regla de admisión y devuelve el texto a anunciar.
func (l *Listener) Admit(ctx context.Context, ev domain.AnnouncementEvent) (string, bool) {
	settings := l.settings.Settings(ctx)
	if !settings.Enabled {
		return "", false
	}
	if !l.role.Has(domain.PermAdmin) {
		return "", false
	}
	if l.settings.Muted(ctx) {
		return "", false
	}
	if !settings.AllowsEvent(ev.Type) {
		return "", false
	}
	text := ev.Message.Resolve(settings.Language)
	if text == "" {
		return "", false
	}
	return text, true
}

// Handle admite y encola un evento. Devuelve true si quedó en la cola.
func (l *Listener) Handle(ctx context.Context, ev domain.AnnouncementEvent) bool {
	text, ok := l.Admit(ctx, ev)
	if !ok {
		return false
	}
	if _, err := l.queue.Enqueue(ctx, ttsruntime.Announcement{Type: ev.Type, Text: text}); err != nil {
		if !errors.Is(err, ttsruntime.ErrMuted) {
			log.Warn("announcements: no pude encolar", "type", ev.Type, "err", err)
		}
		return false
	}
	return true
}

// Run escucha todos los tópicos de negocio del bus hasta que ctx se cancela.
// Los tópicos internos (tts:, app:) no ocupan su buffer.
func (l *Listener) Run(ctx context.Context) error {
	ch, unsubscribe := l.bus.SubscribeFiltered(events.TopicAll, listenerBuffer, isBusinessTopic)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, isEnvelope := msg.(events.Envelope)
			if !isEnvelope {
				continue
			}
			if ev, ok := asEvent(env); ok {
				l.Handle(ctx, ev)
			}
		}
	}
}

func isBusinessTopic(topic string) bool {
	return !events.InternalTopic(topic)
}

// asEvent acepta eventos tipados o JSON crudo; el tópico completa el tipo si falta.
func asEvent(env events.Envelope) (domain.AnnouncementEvent, bool) {
	var ev domain.AnnouncementEvent
	switch p := env.Payload.(type) {
	case domain.AnnouncementEvent:
		ev = p
	case *domain.AnnouncementEvent:
		if p == nil {
			return ev, false
		}
		ev = *p
	case []byte:
		if err := json.Unmarshal(p, &ev); err != nil {
			return ev, false
		}
	case json.RawMessage:
		if err := json.Unmarshal(p, &ev); err != nil {
			return ev, false
		}
	default:
		return ev, false
	}
	if ev.Type == "" {
		ev.Type = env.Topic
	}
	return ev, true
}
