package domain

import (
	"context"
	"slices"
	"strings"
	"time"
)

type TTSProvider string

const (
	ProviderOpenAI     TTSProvider = "openai"
	ProviderElevenLabs TTSProvider = "elevenlabs"
)

func ParseTTSProvider(s string) (TTSProvider, bool) {
	switch TTSProvider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, true
	case ProviderElevenLabs:
		return ProviderElevenLabs, true
	default:
		return "", false
	}
}

type TTSSettings struct {
	Enabled       bool        `json:"enabled"`
	Provider      TTSProvider `json:"provider"`
	Language      string      `json:"language"`
	Voice         string      `json:"voice"`
	VoiceID       string      `json:"voice_id"`
	Speed         float64     `json:"speed"`
	Volume        float64     `json:"volume"`
	Stability     float64     `json:"stability"`
	Similarity    float64     `json:"similarity"`
	EnabledEvents []string    `json:"enabled_events"`
}

func DefaultTTSSettings() TTSSettings {
	return TTSSettings{
		Enabled:       false,
		Provider:      ProviderOpenAI,
		Language:      LangSpanish,
		Voice:         "alloy",
		Speed:         1.0,
		Volume:        1.0,
		Stability:     0.5,
		Similarity:    0.75,
		EnabledEvents: []string{},
	}
}

// AllowsEvent: lista vacía significa que todos los tipos están permitidos.
func (s TTSSettings) AllowsEvent(eventType string) bool {
	if len(s.EnabledEvents) == 0 {
		return true
	}
	return slices.Contains(s.EnabledEvents, eventType)
}

func (s TTSSettings) Clone() TTSSettings {
	out := s
	out.EnabledEvents = append([]string{}, s.EnabledEvents...)
	return out
}

type TTSEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"`
	Text        string    `json:"text"`
	Provider    string    `json:"provider,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	AudioBase64 string    `json:"audio_base64"`
}

type TTSEventPublisher interface {
	PublishTTSEvent(ctx context.Context, event TTSEvent) error
}

type TTSSettingsRepository interface {
	GetTTSSettings(ctx context.Context) (*TTSSettings, error)
	SaveTTSSettings(ctx context.Context, settings TTSSettings) error
	GetTTSMuted(ctx context.Context) (bool, error)
	SetTTSMuted(ctx context.Context, muted bool) error
}

type AnnouncementRepository interface {
	SaveAnnouncement(ctx context.Context, record *AnnouncementRecord) error
	ListAnnouncements(ctx context.Context, limit int) ([]*AnnouncementRecord, error)
}
