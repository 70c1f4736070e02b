package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"unatienda/internal/domain"
)

// ----- TTS Settings -----

const (
	ttsSettingsKey = "tts_settings"
	ttsMutedKey    = "tts_muted"
)

// GetTTSSettings devuelve nil si todavía no se guardó configuración.
func (s *Store) GetTTSSettings(ctx context.Context) (*domain.TTSSettings, error) {
	raw, err := s.getSetting(ctx, ttsSettingsKey)
	if err != nil || raw == "" {
		return nil, err
	}

	settings := domain.DefaultTTSSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("sqlite: decode tts settings: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveTTSSettings(ctx context.Context, settings domain.TTSSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("sqlite: encode tts settings: %w", err)
	}
	return s.setSetting(ctx, ttsSettingsKey, string(data))
}

func (s *Store) GetTTSMuted(ctx context.Context) (bool, error) {
	val, err := s.getSetting(ctx, ttsMutedKey)
	if err != nil {
		return false, err
	}
	return strings.ToLower(strings.TrimSpace(val)) == "true", nil
}

func (s *Store) SetTTSMuted(ctx context.Context, muted bool) error {
	value := "false"
	if muted {
		value = "true"
	}
	return s.setSetting(ctx, ttsMutedKey, value)
}

var _ domain.TTSSettingsRepository = (*Store)(nil)
