package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	LangSpanish = "es"
	LangEnglish = "en"
)

// LocalizedText acepta un texto plano o un objeto {idioma: texto}.
type LocalizedText struct {
	Plain string
	ByLang map[string]string
}

func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*t = LocalizedText{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = LocalizedText{Plain: s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("localized text: %w", err)
	}
	*t = LocalizedText{ByLang: m}
	return nil
}

func (t LocalizedText) MarshalJSON() ([]byte, error) {
	if t.ByLang != nil {
		return json.Marshal(t.ByLang)
	}
	return json.Marshal(t.Plain)
}

// Resolve devuelve el texto en el idioma preferido, con fallback a español y
// luego a inglés. Devuelve "" si no hay texto utilizable.
func (t LocalizedText) Resolve(preferred string) string {
	if t.ByLang == nil {
		return strings.TrimSpace(t.Plain)
	}
	for _, lang := range []string{preferred, LangSpanish, LangEnglish} {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if text := strings.TrimSpace(t.ByLang[lang]); text != "" {
			return text
		}
	}
	return ""
}

func Text(s string) LocalizedText {
	return LocalizedText{Plain: s}
}

func Texts(byLang map[string]string) LocalizedText {
	return LocalizedText{ByLang: byLang}
}

// EventImportCompleted se publica al terminar una importación masiva.
const EventImportCompleted = "import_completed"

// AnnouncementEvent llega por el bus; el tipo es también el tópico en el que se publica.
type AnnouncementEvent struct {
	Type    string        `json:"type"`
	Message LocalizedText `json:"message"`
}

type AnnouncementStatus string

const (
	AnnouncementSpoken  AnnouncementStatus = "spoken"
	AnnouncementSkipped AnnouncementStatus = "skipped"
)

// AnnouncementRecord es una entrada del historial de anuncios reproducidos.
type AnnouncementRecord struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Text      string             `json:"text"`
	Status    AnnouncementStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}
