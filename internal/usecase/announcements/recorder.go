package announcements

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"unatienda/internal/app/events"
	"unatienda/internal/domain"
)

// Recorder guarda en el historial cada anuncio que terminó el runner.
type Recorder struct {
	bus  *events.Bus
	repo domain.AnnouncementRepository
}

func NewRecorder(bus *events.Bus, repo domain.AnnouncementRepository) *Recorder {
	return &Recorder{bus: bus, repo: repo}
}

func (r *Recorder) Run(ctx context.Context) error {
	ch, unsubscribe := r.bus.Subscribe(events.TopicTTSSpoken)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			spoken, isSpoken := msg.(events.TTSSpokenDTO)
			if !isSpoken {
				continue
			}
			r.record(ctx, spoken)
		}
	}
}

func (r *Recorder) record(ctx context.Context, spoken events.TTSSpokenDTO) {
	status := domain.AnnouncementSpoken
	if !spoken.OK {
		status = domain.AnnouncementSkipped
	}
	createdAt, err := time.Parse(time.RFC3339Nano, spoken.FinishedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	record := &domain.AnnouncementRecord{
		ID:        spoken.ID,
		Type:      spoken.Type,
		Text:      spoken.Text,
		Status:    status,
		CreatedAt: createdAt,
	}
	if err := r.repo.SaveAnnouncement(ctx, record); err != nil {
		log.Warn("announcements: no pude guardar el historial", "id", spoken.ID, "err", err)
	}
}
