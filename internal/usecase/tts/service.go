package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"unatienda/internal/domain"
)

var (
	ErrProviderNotConfigured = errors.New("tts: proveedor no configurado")
	ErrEmptyText             = errors.New("tts: texto vacío")
)

// SaveState describe el ciclo de vida de la configuración:
// Clean -> PendingSave -> Saved | SaveFailed.
type SaveState string

const (
	StateClean       SaveState = "clean"
	StatePendingSave SaveState = "pending_save"
	StateSaved       SaveState = "saved"
	StateSaveFailed  SaveState = "save_failed"
)

type SaveStatus struct {
	State SaveState `json:"state"`
	Error string    `json:"error,omitempty"`
}

type Config struct {
	Repo       domain.TTSSettingsRepository
	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
	HTTPClient *http.Client
}

// Speech es el audio listo para reproducir junto con el volumen configurado.
type Speech struct {
	Audio  []byte
	Volume float64
}

type Service struct {
	repo       domain.TTSSettingsRepository
	openai     *openAIClient
	elevenlabs *elevenLabsClient

	mu       sync.RWMutex
	settings *domain.TTSSettings
	muted    *bool
	status   SaveStatus
	onMute   []func(bool)
}

func NewService(cfg Config) *Service {
	httpCli := cfg.HTTPClient
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 30 * time.Second}
	}
	s := &Service{
		repo:   cfg.Repo,
		status: SaveStatus{State: StateClean},
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) != "" {
		s.openai = newOpenAIClient(cfg.OpenAI, httpCli)
	}
	if strings.TrimSpace(cfg.ElevenLabs.APIKey) != "" {
		s.elevenlabs = newElevenLabsClient(cfg.ElevenLabs, httpCli)
	}
	return s
}

// Settings devuelve la configuración cacheada; la primera llamada la carga del repositorio.
func (s *Service) Settings(ctx context.Context) domain.TTSSettings {
	s.mu.RLock()
	if s.settings != nil {
		out := s.settings.Clone()
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	loaded := domain.DefaultTTSSettings()
	if s.repo != nil {
		stored, err := s.repo.GetTTSSettings(ctx)
		if err != nil {
			log.Warn("tts: no pude cargar la configuración, uso valores por defecto", "err", err)
		} else if stored != nil {
			loaded = normalizeSettings(*stored)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = &loaded
	}
	return s.settings.Clone()
}

// UpdateSettings aplica la nueva configuración de forma optimista y la persiste.
// Si el guardado falla se restaura el valor anterior y el estado queda en SaveFailed.
func (s *Service) UpdateSettings(ctx context.Context, next domain.TTSSettings) (domain.TTSSettings, error) {
	if _, ok := domain.ParseTTSProvider(string(next.Provider)); !ok {
		return s.Settings(ctx), fmt.Errorf("tts: proveedor no soportado: %q", next.Provider)
	}
	previous := s.Settings(ctx)
	next = normalizeSettings(next)

	s.mu.Lock()
	s.settings = &next
	s.status = SaveStatus{State: StatePendingSave}
	s.mu.Unlock()

	var err error
	if s.repo != nil {
		err = s.repo.SaveTTSSettings(ctx, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.settings = &previous
		s.status = SaveStatus{State: StateSaveFailed, Error: err.Error()}
		return previous.Clone(), fmt.Errorf("tts: no pude guardar la configuración: %w", err)
	}
	s.status = SaveStatus{State: StateSaved}
	return next.Clone(), nil
}

func (s *Service) SaveState() SaveStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) Muted(ctx context.Context) bool {
	s.mu.RLock()
	if s.muted != nil {
		m := *s.muted
		s.mu.RUnlock()
		return m
	}
	s.mu.RUnlock()

	muted := false
	if s.repo != nil {
		stored, err := s.repo.GetTTSMuted(ctx)
		if err != nil {
			log.Warn("tts: no pude leer tts_muted", "err", err)
		} else {
			muted = stored
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted == nil {
		s.muted = &muted
	}
	return *s.muted
}

// SetMuted persiste el flag y avisa a los hooks registrados (el runner de anuncios).
func (s *Service) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	s.muted = &muted
	hooks := append([]func(bool){}, s.onMute...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(muted)
	}

	if s.repo == nil {
		return nil
	}
	if err := s.repo.SetTTSMuted(ctx, muted); err != nil {
		return fmt.Errorf("tts: no pude guardar tts_muted: %w", err)
	}
	return nil
}

func (s *Service) OnMute(hook func(bool)) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMute = append(s.onMute, hook)
}

func (s *Service) Providers() map[domain.TTSProvider]bool {
	return map[domain.TTSProvider]bool{
		domain.ProviderOpenAI:     s.openai != nil,
		domain.ProviderElevenLabs: s.elevenlabs != nil,
	}
}

func (s *Service) ElevenLabsVoices(ctx context.Context) ([]Voice, error) {
	if s.elevenlabs == nil {
		return nil, ErrProviderNotConfigured
	}
	return s.elevenlabs.voices(ctx)
}

// SpeakRequest es el cuerpo de POST /api/admin/tts/speak; cada proveedor usa
// solo sus parámetros.
type SpeakRequest struct {
	Text            string             `json:"text"`
	Provider        domain.TTSProvider `json:"provider"`
	Voice           string             `json:"voice,omitempty"`
	Speed           float64            `json:"speed,omitempty"`
	VoiceID         string             `json:"voice_id,omitempty"`
	Stability       float64            `json:"stability,omitempty"`
	SimilarityBoost float64            `json:"similarity_boost,omitempty"`
}

func SpeakRequestFor(settings domain.TTSSettings, text string) SpeakRequest {
	req := SpeakRequest{Text: text, Provider: settings.Provider}
	switch settings.Provider {
	case domain.ProviderElevenLabs:
		req.VoiceID = settings.VoiceID
		req.Stability = settings.Stability
		req.SimilarityBoost = settings.Similarity
	default:
		req.Provider = domain.ProviderOpenAI
		req.Voice = settings.Voice
		req.Speed = settings.Speed
	}
	return req
}

func (s *Service) Speak(ctx context.Context, req SpeakRequest) ([]byte, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	provider, ok := domain.ParseTTSProvider(string(req.Provider))
	if !ok {
		provider = domain.ProviderOpenAI
	}
	switch provider {
	case domain.ProviderElevenLabs:
		if s.elevenlabs == nil {
			return nil, ErrProviderNotConfigured
		}
		return s.elevenlabs.speak(ctx, text, req.VoiceID, req.Stability, req.SimilarityBoost)
	default:
		if s.openai == nil {
			return nil, ErrProviderNotConfigured
		}
		return s.openai.speak(ctx, text, req.Voice, req.Speed)
	}
}

// Synthesize genera el audio de un anuncio con la configuración vigente.
func (s *Service) Synthesize(ctx context.Context, text string) (Speech, error) {
	settings := s.Settings(ctx)
	audio, err := s.Speak(ctx, SpeakRequestFor(settings, text))
	if err != nil {
		return Speech{}, err
	}
	return Speech{Audio: audio, Volume: settings.Volume}, nil
}

func normalizeSettings(in domain.TTSSettings) domain.TTSSettings {
	def := domain.DefaultTTSSettings()
	out := in.Clone()
	if p, ok := domain.ParseTTSProvider(string(out.Provider)); ok {
		out.Provider = p
	} else {
		out.Provider = def.Provider
	}
	out.Language = strings.ToLower(strings.TrimSpace(out.Language))
	if out.Language == "" {
		out.Language = def.Language
	}
	if out.Speed <= 0 {
		out.Speed = def.Speed
	}
	out.Volume = clamp(out.Volume, 0, 1)
	out.Stability = clamp(out.Stability, 0, 1)
	out.Similarity = clamp(out.Similarity, 0, 1)

	events := make([]string, 0, len(out.EnabledEvents))
	seen := make(map[string]struct{}, len(out.EnabledEvents))
	for _, ev := range out.EnabledEvents {
		ev = strings.TrimSpace(ev)
		if ev == "" {
			continue
		}
		if _, dup := seen[ev]; dup {
			continue
		}
		seen[ev] = struct{}{}
		events = append(events, ev)
	}
	out.EnabledEvents = events
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
