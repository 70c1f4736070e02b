package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenAIModel       = "tts-1"
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	defaultElevenLabsModel   = "eleven_multilingual_v2"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Voice struct {
	ID   string `json:"voice_id"`
	Name string `json:"name"`
}

type openAIClient struct {
	cfg     OpenAIConfig
	httpCli *http.Client
}

func newOpenAIClient(cfg OpenAIConfig, httpCli *http.Client) *openAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &openAIClient{cfg: cfg, httpCli: httpCli}
}

func (c *openAIClient) speak(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if voice == "" {
		voice = "alloy"
	}
	if speed <= 0 {
		speed = 1
	}
	body := map[string]any{
		"model":           c.cfg.Model,
		"input":           text,
		"voice":           voice,
		"speed":           speed,
		"response_format": "mp3",
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	return postAudio(ctx, c.httpCli, c.cfg.BaseURL+"/audio/speech", headers, body)
}

type elevenLabsClient struct {
	cfg     ElevenLabsConfig
	httpCli *http.Client
}

func newElevenLabsClient(cfg ElevenLabsConfig, httpCli *http.Client) *elevenLabsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultElevenLabsModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &elevenLabsClient{cfg: cfg, httpCli: httpCli}
}

func (c *elevenLabsClient) speak(ctx context.Context, text, voiceID string, stability, similarity float64) ([]byte, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("tts: elevenlabs requiere voice_id")
	}
	body := map[string]any{
		"text":     text,
		"model_id": c.cfg.Model,
		"voice_settings": map[string]float64{
			"stability":        stability,
			"similarity_boost": similarity,
		},
	}
	headers := map[string]string{"xi-api-key": c.cfg.APIKey, "Accept": "audio/mpeg"}
	endpoint := c.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	return postAudio(ctx, c.httpCli, endpoint, headers, body)
}

func (c *elevenLabsClient) voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: elevenlabs voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts: elevenlabs voices status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("tts: elevenlabs voices decode: %w", err)
	}
	return payload.Voices, nil
}

func postAudio(ctx context.Context, httpCli *http.Client, endpoint string, headers map[string]string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts: status %d: %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts: audio vacío")
	}
	return audio, nil
}
