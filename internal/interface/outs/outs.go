package outs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"unatienda/internal/domain"
)

// MultiPublisher reparte cada evento de TTS entre las salidas registradas
// (clientes WS, NATS, ...). Un fallo en una salida no frena a las demás.
type MultiPublisher struct {
	mu   sync.RWMutex
	outs map[string]domain.TTSEventPublisher
}

func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{
		outs: make(map[string]domain.TTSEventPublisher),
	}
}

// Register asocia un nombre con una salida; registrar el mismo nombre la reemplaza.
func (m *MultiPublisher) Register(name string, out domain.TTSEventPublisher) {
	if m == nil || out == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outs[name] = out
}

func (m *MultiPublisher) Unregister(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outs, name)
}

func (m *MultiPublisher) Names() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.outs))
	for name := range m.outs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *MultiPublisher) PublishTTSEvent(ctx context.Context, event domain.TTSEvent) error {
	if m == nil {
		return fmt.Errorf("no hay publicador configurado")
	}
	m.mu.RLock()
	targets := make(map[string]domain.TTSEventPublisher, len(m.outs))
	for name, out := range m.outs {
		targets[name] = out
	}
	m.mu.RUnlock()

	var errs []error
	for name, out := range targets {
		if err := out.PublishTTSEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
