package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/unatienda.db"`

	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAITTSModel    string `env:"OPENAI_TTS_MODEL" envDefault:"gpt-4o-mini-tts"`
	ElevenLabsAPIKey  string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io/v1"`
	ElevenLabsModel   string `env:"ELEVENLABS_MODEL" envDefault:"eleven_multilingual_v2"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubject       string `env:"NATS_SUBJECT" envDefault:"unatienda.events.>"`
	NATSSpokenSubject string `env:"NATS_SPOKEN_SUBJECT" envDefault:"unatienda.tts.spoken"`

	AnnouncerRole    string `env:"ANNOUNCER_ROLE" envDefault:"admin"`
	TTSQueueSize     int    `env:"TTS_QUEUE_SIZE" envDefault:"50"`
	TTSQueueOverflow string `env:"TTS_QUEUE_OVERFLOW" envDefault:"drop_oldest"`
	AudioEnabled     bool   `env:"AUDIO_ENABLED" envDefault:"true"`
	AudioSampleRate  int    `env:"AUDIO_SAMPLE_RATE" envDefault:"44100"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load lee .env si existe y luego el entorno del proceso; el entorno gana.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.TTSQueueSize <= 0 {
		return nil, fmt.Errorf("config: TTS_QUEUE_SIZE debe ser positivo, llegó %d", cfg.TTSQueueSize)
	}
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(cfg.TTSQueueOverflow)), "-", "_") {
	case "drop_oldest", "drop_newest":
	default:
		return nil, fmt.Errorf("config: TTS_QUEUE_OVERFLOW debe ser drop_oldest o drop_newest, llegó %q", cfg.TTSQueueOverflow)
	}
	if _, err := log.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	if cfg.OpenAIAPIKey == "" && cfg.ElevenLabsAPIKey == "" {
		log.Warn("config: no hay API key de OpenAI ni de ElevenLabs, los anuncios no tendrán voz")
	}

	return &cfg, nil
}

// Level devuelve el nivel de log configurado.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
