package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"unatienda/internal/domain"
)

type Config struct {
	URL     string
	Subject string
	// SpokenSubject recibe un aviso por cada anuncio reproducido; vacío lo desactiva.
	SpokenSubject string
	Name          string
}

// Bridge reenvía al bus interno los eventos de anuncio publicados en NATS por
// otros servicios y publica de vuelta los anuncios que se reprodujeron.
type Bridge struct {
	conn    *nats.Conn
	subject string
	spoken  string
	bus     domain.EventPublisher
}

func Connect(cfg Config, bus domain.EventPublisher) (*Bridge, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("realtime: empty subject")
	}
	name := cfg.Name
	if name == "" {
		name = "unatienda"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats: desconectado", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats: reconectado", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("realtime: connect %s: %w", cfg.URL, err)
	}

	return &Bridge{conn: conn, subject: cfg.Subject, spoken: cfg.SpokenSubject, bus: bus}, nil
}

// Run se suscribe y bloquea hasta que el contexto termina.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.subject, b.handle)
	if err != nil {
		return fmt.Errorf("realtime: subscribe %s: %w", b.subject, err)
	}
	log.Info("nats: escuchando eventos", "subject", b.subject)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		log.Warn("nats: unsubscribe", "err", err)
	}
	return nil
}

func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// PublishTTSEvent cumple con domain.TTSEventPublisher. El audio no viaja por NATS.
func (b *Bridge) PublishTTSEvent(_ context.Context, event domain.TTSEvent) error {
	if b.spoken == "" || b.conn == nil {
		return nil
	}
	data, err := encodeSpoken(event)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.spoken, data); err != nil {
		return fmt.Errorf("realtime: publish %s: %w", b.spoken, err)
	}
	return nil
}

func encodeSpoken(event domain.TTSEvent) ([]byte, error) {
	event.AudioBase64 = ""
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode: %w", err)
	}
	return data, nil
}

func (b *Bridge) handle(msg *nats.Msg) {
	ev, err := decodeEvent(msg.Subject, msg.Data)
	if err != nil {
		log.Warn("nats: evento inválido", "subject", msg.Subject, "err", err)
		return
	}
	b.bus.Publish(ev.Type, ev)
}

// decodeEvent acepta {"type":..., "message":...}; si falta el tipo se usa el
// último token del subject.
func decodeEvent(subject string, data []byte) (domain.AnnouncementEvent, error) {
	var ev domain.AnnouncementEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode: %w", err)
	}
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 {
			ev.Type = subject[i+1:]
		} else {
			ev.Type = subject
		}
	}
	if ev.Type == "" || ev.Type == "*" || ev.Type == ">" {
		return ev, fmt.Errorf("evento sin tipo")
	}
	if ev.Message.Resolve(domain.LangSpanish) == "" {
		return ev, fmt.Errorf("evento %q sin mensaje", ev.Type)
	}
	return ev, nil
}
