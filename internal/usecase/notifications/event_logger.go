package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"unatienda/internal/app/events"
)

// EventLogger deja rastro de todo lo que pasa por el bus (anuncios, estado del
// TTS, importaciones) para poder reconstruir qué se anunció y cuándo.
type EventLogger struct {
	ch          <-chan any
	unsubscribe func()
	logger      *log.Logger
	now         func() time.Time
}

// NewEventLogger se suscribe de inmediato: lo publicado mientras arranca el
// resto del runtime también queda registrado.
func NewEventLogger(bus *events.Bus, logger *log.Logger) *EventLogger {
	if logger == nil {
		logger = log.Default().WithPrefix("events")
	}
	ch, unsubscribe := bus.Subscribe(events.TopicAll)
	return &EventLogger{
		ch:          ch,
		unsubscribe: unsubscribe,
		logger:      logger,
		now:         time.Now,
	}
}

func (l *EventLogger) Run(ctx context.Context) error {
	ch := l.ch
	defer l.unsubscribe()

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
			l.logEnvelope(env)
		}
	}
}

func (l *EventLogger) logEnvelope(env events.Envelope) {
	ts := l.now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(env.Payload)
	if err != nil {
		l.logger.Debug("evento", "topic", env.Topic, "timestamp", ts, "payload", env.Payload)
		return
	}
	// los errores del bus se ven aunque el nivel no sea debug
	if env.Topic == events.TopicAppError {
		l.logger.Warn("evento", "topic", env.Topic, "timestamp", ts, "payload", string(data))
		return
	}
	l.logger.Debug("evento", "topic", env.Topic, "timestamp", ts, "payload", string(data))
}
