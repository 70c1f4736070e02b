package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"unatienda/internal/app/events"
	"unatienda/internal/domain"
	"unatienda/internal/usecase/importing"
	ttsusecase "unatienda/internal/usecase/tts"
)

type Config struct {
	Addr     string
	Bus      domain.EventPublisher
	TTS      TTSManager
	Status   TTSQueue
	History  domain.AnnouncementRepository
	Importer Importer
	Books    domain.BookRepository
}

func (c *Config) addr() string {
	if c == nil || c.Addr == "" {
		return ":8080"
	}
	return c.Addr
}

type TTSManager interface {
	Settings(ctx context.Context) domain.TTSSettings
	UpdateSettings(ctx context.Context, next domain.TTSSettings) (domain.TTSSettings, error)
	SaveState() ttsusecase.SaveStatus
	Muted(ctx context.Context) bool
	SetMuted(ctx context.Context, muted bool) error
	Providers() map[domain.TTSProvider]bool
	ElevenLabsVoices(ctx context.Context) ([]ttsusecase.Voice, error)
	Speak(ctx context.Context, req ttsusecase.SpeakRequest) ([]byte, error)
}

// TTSQueue es la cola de anuncios vista desde la API.
type TTSQueue interface {
	Status() events.TTSStatusDTO
	StopAll(ctx context.Context) error
}

type Importer interface {
	Preview(ctx context.Context, entity string, req importing.Request) (*importing.Preview, error)
	Import(ctx context.Context, entity string, req importing.Request) (*importing.Summary, error)
}

type apiHandlers struct {
	bus      domain.EventPublisher
	tts      TTSManager
	status   TTSQueue
	history  domain.AnnouncementRepository
	importer Importer
	books    domain.BookRepository
}

func newAPIHandlers(cfg Config) *apiHandlers {
	return &apiHandlers{
		bus:      cfg.Bus,
		tts:      cfg.TTS,
		status:   cfg.Status,
		history:  cfg.History,
		importer: cfg.Importer,
		books:    cfg.Books,
	}
}

func (a *apiHandlers) register(r *mux.Router) {
	if a.tts != nil {
		r.HandleFunc("/api/admin/tts/settings", a.handleGetSettings).Methods(http.MethodGet)
		r.HandleFunc("/api/admin/tts/settings", a.handlePutSettings).Methods(http.MethodPut)
		r.HandleFunc("/api/admin/tts/providers", a.handleProviders).Methods(http.MethodGet)
		r.HandleFunc("/api/admin/tts/elevenlabs/voices", a.handleVoices).Methods(http.MethodGet)
		r.HandleFunc("/api/admin/tts/speak", a.handleSpeak).Methods(http.MethodPost)
		r.HandleFunc("/api/admin/tts/mute", a.handleGetMute).Methods(http.MethodGet)
		r.HandleFunc("/api/admin/tts/mute", a.handlePutMute).Methods(http.MethodPut)
		r.HandleFunc("/api/admin/tts/status", a.handleStatus).Methods(http.MethodGet)
		r.HandleFunc("/api/admin/tts/stop", a.handleStop).Methods(http.MethodPost)
	}
	if a.history != nil {
		r.HandleFunc("/api/admin/tts/history", a.handleHistory).Methods(http.MethodGet)
	}
	if a.bus != nil {
		r.HandleFunc("/api/admin/events", a.handlePublishEvent).Methods(http.MethodPost)
	}
	if a.importer != nil {
		r.HandleFunc("/api/store/bulk-import/{entity}/preview", a.handlePreview).Methods(http.MethodPost)
		r.HandleFunc("/api/store/bulk-import/{entity}/import", a.handleImport).Methods(http.MethodPost)
	}
	r.HandleFunc("/api/store/bulk-import/{entity}/template.csv", a.handleTemplate).Methods(http.MethodGet)
	if a.books != nil {
		r.HandleFunc("/api/store/books/export.csv", a.handleExportBooks).Methods(http.MethodGet)
		r.HandleFunc("/admin/libros", a.handleSaveBook).Methods(http.MethodPost)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
}

// ----- TTS -----

func (a *apiHandlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tts.Settings(r.Context()))
}

func (a *apiHandlers) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	next := a.tts.Settings(r.Context())
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if _, ok := domain.ParseTTSProvider(string(next.Provider)); !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("proveedor no soportado: %q", next.Provider))
		return
	}

	saved, err := a.tts.UpdateSettings(r.Context(), next)
	if err != nil {
		log.Error("api: guardar configuración tts", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    err.Error(),
			"settings": saved,
		})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *apiHandlers) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.tts.Providers())
}

func (a *apiHandlers) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := a.tts.ElevenLabsVoices(r.Context())
	if err != nil {
		writeTTSError(w, err)
		return
	}
	if voices == nil {
		voices = []ttsusecase.Voice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

func (a *apiHandlers) handleSpeak(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req ttsusecase.SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	audio, err := a.tts.Speak(r.Context(), req)
	if err != nil {
		writeTTSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio": base64.StdEncoding.EncodeToString(audio)})
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

func (a *apiHandlers) handleGetMute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"muted": a.tts.Muted(r.Context())})
}

func (a *apiHandlers) handlePutMute(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Muted == nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := a.tts.SetMuted(r.Context(), *req.Muted); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"muted": *req.Muted})
}

type statusResponse struct {
	Muted    bool                  `json:"muted"`
	Enabled  bool                  `json:"enabled"`
	Save     ttsusecase.SaveStatus `json:"settings_save"`
	Queue    *events.TTSStatusDTO  `json:"queue,omitempty"`
	Provider domain.TTSProvider    `json:"provider"`
}

func (a *apiHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := a.tts.Settings(r.Context())
	resp := statusResponse{
		Muted:    a.tts.Muted(r.Context()),
		Enabled:  settings.Enabled,
		Save:     a.tts.SaveState(),
		Provider: settings.Provider,
	}
	if a.status != nil {
		st := a.status.Status()
		resp.Queue = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStop corta el anuncio en curso y vacía la cola sin silenciar.
func (a *apiHandlers) handleStop(w http.ResponseWriter, r *http.Request) {
	if a.status == nil {
		writeError(w, http.StatusServiceUnavailable, "tts runner not available")
		return
	}
	if err := a.status.StopAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.status.Status())
}

func (a *apiHandlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}

	items, err := a.history.ListAnnouncements(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*domain.AnnouncementRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *apiHandlers) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var ev domain.AnnouncementEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" || ev.Type == events.TopicAll {
		writeError(w, http.StatusBadRequest, "type requerido")
		return
	}

	a.bus.Publish(ev.Type, ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"type": ev.Type})
}

func writeTTSError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ttsusecase.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ttsusecase.ErrProviderNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Warn("api: proveedor tts", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// ----- Bulk import -----

func (a *apiHandlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeImportRequest(w, r)
	if !ok {
		return
	}
	out, err := a.importer.Preview(r.Context(), mux.Vars(r)["entity"], req)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiHandlers) handleImport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeImportRequest(w, r)
	if !ok {
		return
	}
	out, err := a.importer.Import(r.Context(), mux.Vars(r)["entity"], req)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeImportRequest(w http.ResponseWriter, r *http.Request) (importing.Request, bool) {
	defer r.Body.Close()

	var req importing.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return req, false
	}
	return req, true
}

func writeImportError(w http.ResponseWriter, err error) {
	var missing *importing.MissingColumnsError
	switch {
	case errors.Is(err, importing.ErrUnknownEntity):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     err.Error(),
			"faltantes": missing.Fields,
		})
	case errors.Is(err, importing.ErrEmptyInput), errors.Is(err, importing.ErrInvalidDefaultGrade):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("api: importación", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *apiHandlers) handleTemplate(w http.ResponseWriter, r *http.Request) {
	entity, err := importing.LookupEntity(mux.Vars(r)["entity"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeCSVHeaders(w, "plantilla_"+entity.Name+".csv")
	if err := importing.WriteTemplate(w, entity); err != nil {
		log.Error("api: plantilla", "err", err)
	}
}

func (a *apiHandlers) handleExportBooks(w http.ResponseWriter, r *http.Request) {
	books, err := a.books.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeCSVHeaders(w, "libros.csv")
	if err := importing.WriteBooks(w, books); err != nil {
		log.Error("api: exportar libros", "err", err)
	}
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}

// handleSaveBook crea o actualiza un libro; lo usa el flujo de importación del lado del cliente.
func (a *apiHandlers) handleSaveBook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var book domain.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	var problems []string
	if book.Title = strings.TrimSpace(book.Title); book.Title == "" {
		problems = append(problems, "nombre vacío")
	}
	if g := importing.NormalizeGrade(book.Grade); g != "" {
		book.Grade = g
	} else {
		problems = append(problems, fmt.Sprintf("grado inválido: %q", book.Grade))
	}
	if s := importing.NormalizeSubject(book.Subject); s != "" {
		book.Subject = s
	} else {
		problems = append(problems, fmt.Sprintf("materia inválida: %q", book.Subject))
	}
	if book.Price.IsNegative() {
		problems = append(problems, "precio negativo")
	}
	if book.Quantity < 0 {
		problems = append(problems, "cantidad negativa")
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(problems, "; "))
		return
	}

	created, err := a.books.UpsertBook(r.Context(), &book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status, action := http.StatusOK, importing.ActionUpdated
	if created {
		status, action = http.StatusCreated, importing.ActionCreated
	}
	writeJSON(w, status, map[string]any{"accion": action, "libro": book})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
