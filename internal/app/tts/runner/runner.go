package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"unatienda/internal/app/events"
	"unatienda/internal/domain"
	ttsusecase "unatienda/internal/usecase/tts"
)

var (
	ErrQueueClosed = errors.New("tts runner detenido")
	ErrQueueFull   = errors.New("cola de anuncios llena")
	ErrMuted       = errors.New("anuncios silenciados")
)

const DefaultQueueSize = 50

// OverflowPolicy decide qué anuncio se pierde cuando la cola está llena.
type OverflowPolicy string

const (
	DropOldest OverflowPolicy = "drop-oldest"
	DropNewest OverflowPolicy = "drop-newest"
)

// ParseOverflowPolicy acepta guion o guion bajo ("drop_newest" == "drop-newest");
// vacío es DropOldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	v := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch OverflowPolicy(v) {
	case "", DropOldest:
		return DropOldest, nil
	case DropNewest:
		return DropNewest, nil
	}
	return "", fmt.Errorf("política de cola desconocida %q", s)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (ttsusecase.Speech, error)
}

// Player reproduce audio hasta el final y debe volver en cuanto ctx se cancela.
type Player interface {
	Play(ctx context.Context, audio []byte, volume float64) error
}

type Config struct {
	Synth     Synthesizer
	Player    Player
	Publisher domain.TTSEventPublisher
	Bus       *events.Bus
	QueueSize int
	Overflow  OverflowPolicy
}

type Announcement struct {
	ID        string
	Type      string
	Text      string
	CreatedAt time.Time
}

type Runner struct {
	cfg    Config
	queue  []*Announcement
	mu     sync.Mutex
	cond   *sync.Cond
	wg     sync.WaitGroup
	closed bool
	muted  bool

	current       *Announcement
	cancelCurrent context.CancelFunc
	dropped       uint64

	status events.TTSStatusDTO
}

func New(cfg Config) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Overflow == "" {
		cfg.Overflow = DropOldest
	}
	r := &Runner{
		cfg: cfg,
	}
	r.cond = sync.NewCond(&r.mu)
	r.status = events.NewTTSStatusDTO("idle", 0, "", false, 0)
	return r
}

// Start lanza el único bucle de drenado; la cola se procesa de a un anuncio.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		r.closed = true
		if r.cancelCurrent != nil {
			r.cancelCurrent()
		}
		r.mu.Unlock()
		r.cond.Broadcast()
	}()
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
	r.publish(events.TopicTTSStatus, r.Status())
}

func (r *Runner) run(ctx context.Context) {
	for {
		item, itemCtx, ok := r.next(ctx)
		if !ok {
			return
		}
		r.handle(itemCtx, item)
		r.clearCurrent()
	}
}

func (r *Runner) next(ctx context.Context) (*Announcement, context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.closed || ctx.Err() != nil {
			return nil, nil, false
		}
		if !r.muted && len(r.queue) > 0 {
			item := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]

			itemCtx, cancel := context.WithCancel(ctx)
			r.current = item
			r.cancelCurrent = cancel
			r.setStatusLocked("speaking")
			return item, itemCtx, true
		}

		if r.muted {
			r.setStatusLocked("muted")
		} else {
			r.setStatusLocked("idle")
		}
		r.cond.Wait()
	}
}

func (r *Runner) handle(ctx context.Context, item *Announcement) {
	if r.cfg.Synth == nil {
		return
	}

	speech, err := r.cfg.Synth.Synthesize(ctx, item.Text)
	if err != nil {
		// Los fallos de síntesis no interrumpen la cola ni se muestran al usuario.
		if ctx.Err() == nil {
			log.Debug("tts runner: síntesis fallida, se omite", "id", item.ID, "err", err)
		}
		r.emitSpoken(item, false, err, nil)
		return
	}

	if err := r.publishTTSEvent(ctx, item, speech.Audio); err != nil {
		log.Warn("tts runner: publish event failed", "err", err)
	}

	if r.cfg.Player != nil {
		if err := r.cfg.Player.Play(ctx, speech.Audio, speech.Volume); err != nil {
			if ctx.Err() == nil {
				log.Debug("tts runner: reproducción fallida", "id", item.ID, "err", err)
			}
			r.emitSpoken(item, false, err, nil)
			return
		}
	}

	r.emitSpoken(item, true, nil, speech.Audio)
}

func (r *Runner) clearCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelCurrent != nil {
		r.cancelCurrent()
	}
	r.current = nil
	r.cancelCurrent = nil
	r.cond.Broadcast()
}

// Enqueue agrega un anuncio al final de la cola. Con la cola llena se aplica
// la política de desborde configurada.
func (r *Runner) Enqueue(_ context.Context, item Announcement) (string, error) {
	item.Text = strings.TrimSpace(item.Text)
	if item.Text == "" {
		return "", fmt.Errorf("texto vacío")
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrQueueClosed
	}
	if r.muted {
		return "", ErrMuted
	}

	if len(r.queue) >= r.cfg.QueueSize {
		r.dropped++
		if r.cfg.Overflow == DropNewest {
			r.setStatusLocked(r.status.State)
			return "", ErrQueueFull
		}
		r.queue[0] = nil
		r.queue = r.queue[1:]
	}

	r.queue = append(r.queue, &item)
	r.setStatusLocked(r.status.State)
	r.cond.Signal()
	return item.ID, nil
}

// SetMuted(true) detiene el anuncio en curso, vacía la cola y no vuelve hasta
// que el bucle de drenado soltó el anuncio actual.
func (r *Runner) SetMuted(muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.muted = muted
	if !muted {
		r.setStatusLocked("idle")
		r.cond.Broadcast()
		return
	}

	r.queue = nil
	if r.cancelCurrent != nil {
		r.cancelCurrent()
	}
	for r.current != nil && !r.closed {
		r.cond.Wait()
	}
	r.setStatusLocked("muted")
	r.cond.Broadcast()
}

func (r *Runner) StopAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelCurrent != nil {
		r.cancelCurrent()
	}
	r.queue = nil
	r.setStatusLocked("stopped")
	r.cond.Broadcast()
	return nil
}

func (r *Runner) Overflow() OverflowPolicy {
	return r.cfg.Overflow
}

func (r *Runner) Status() events.TTSStatusDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	if r.cancelCurrent != nil {
		r.cancelCurrent()
	}
	r.queue = nil
	r.cond.Broadcast()
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Runner) publishTTSEvent(ctx context.Context, item *Announcement, audio []byte) error {
	if r.cfg.Publisher == nil {
		return nil
	}
	return r.cfg.Publisher.PublishTTSEvent(ctx, domain.TTSEvent{
		ID:          item.ID,
		Type:        item.Type,
		Text:        item.Text,
		Timestamp:   time.Now(),
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	})
}

func (r *Runner) emitSpoken(item *Announcement, ok bool, err error, audio []byte) {
	payload := events.TTSSpokenDTO{
		ID:         item.ID,
		Type:       item.Type,
		OK:         ok,
		Text:       item.Text,
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		payload.Error = err.Error()
	}
	if len(audio) > 0 {
		payload.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
	}
	r.publish(events.TopicTTSSpoken, payload)
}

func (r *Runner) setStatusLocked(state string) {
	if strings.TrimSpace(state) == "" {
		state = "idle"
	}
	currentID := ""
	if r.current != nil {
		currentID = r.current.ID
	}
	r.status = events.NewTTSStatusDTO(state, len(r.queue), currentID, r.muted, r.dropped)
	r.publish(events.TopicTTSStatus, r.status)
}

func (r *Runner) publish(topic string, payload any) {
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(topic, payload)
	}
}
