package events

import "time"

type TTSStatusDTO struct {
	State       string `json:"state"`
	QueueLength int    `json:"queue_length"`
	CurrentID   string `json:"current_id,omitempty"`
	Muted       bool   `json:"muted"`
	Dropped     uint64 `json:"dropped"`
	UpdatedAt   string `json:"updated_at"`
}

type TTSSpokenDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	Text        string `json:"text,omitempty"`
	FinishedAt  string `json:"finished_at"`
	AudioBase64 string `json:"audio_base64,omitempty"`
}

type AppErrorDTO struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func NewTTSStatusDTO(state string, queueLength int, currentID string, muted bool, dropped uint64) TTSStatusDTO {
	return TTSStatusDTO{
		State:       state,
		QueueLength: queueLength,
		CurrentID:   currentID,
		Muted:       muted,
		Dropped:     dropped,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
}
