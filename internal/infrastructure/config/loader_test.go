package config

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "data/unatienda.db", cfg.DatabasePath)
	assert.Equal(t, "admin", cfg.AnnouncerRole)
	assert.Equal(t, 50, cfg.TTSQueueSize)
	assert.Equal(t, "drop_oldest", cfg.TTSQueueOverflow)
	assert.True(t, cfg.AudioEnabled)
	assert.Equal(t, log.InfoLevel, cfg.Level())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("TTS_QUEUE_SIZE", "5")
	t.Setenv("TTS_QUEUE_OVERFLOW", "drop_newest")
	t.Setenv("AUDIO_ENABLED", "false")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.TTSQueueSize)
	assert.Equal(t, "drop_newest", cfg.TTSQueueOverflow)
	assert.False(t, cfg.AudioEnabled)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "unatienda.tts.spoken", cfg.NATSSpokenSubject)
	assert.Equal(t, log.DebugLevel, cfg.Level())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("queue size", func(t *testing.T) {
		t.Setenv("TTS_QUEUE_SIZE", "0")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("not a number", func(t *testing.T) {
		t.Setenv("TTS_QUEUE_SIZE", "muchos")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("queue overflow", func(t *testing.T) {
		t.Setenv("TTS_QUEUE_OVERFLOW", "drop_random")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := Load()
		assert.Error(t, err)
	})
}
