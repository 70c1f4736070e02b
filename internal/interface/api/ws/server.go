package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"unatienda/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server expone la API HTTP y el WebSocket de anuncios, y retransmite cada
// domain.TTSEvent a los clientes conectados.
type Server struct {
	addr     string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	bus     domain.EventPublisher

	httpSrv *http.Server
	api     *apiHandlers
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func NewServer(cfg Config) *Server {
	return &Server{
		addr: cfg.addr(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*wsClient]struct{}),
		bus:     cfg.Bus,
		api:     newAPIHandlers(cfg),
	}
}

// Handler arma el router completo; Start lo usa y los tests lo montan en httptest.
func (s *Server) Handler(ctx context.Context) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws/announcements", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	s.api.register(router)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/admin/") {
			setCORSHeaders(w)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		router.ServeHTTP(w, r)
	})
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ws: shutdown", "err", err)
		}
		s.closeClients()
	}()

	log.Info("ws: escuchando", "addr", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws: upgrade", "err", err)
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Info("ws: nueva conexión", "remote", r.RemoteAddr, "clients", clientCount)

	go s.handleClient(ctx, client)
}

func (s *Server) handleClient(ctx context.Context, client *wsClient) {
	done := make(chan struct{})
	defer func() {
		close(done)
		s.removeClient(client)
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				client.conn.Close()
				return
			case <-ticker.C:
				if err := client.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				log.Debug("ws: read", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := s.dispatchIncoming(data); err != nil {
			log.Warn("ws: mensaje entrante descartado", "err", err)
		}
	}
}

// dispatchIncoming publica en el bus un evento de anuncio enviado por un cliente.
func (s *Server) dispatchIncoming(data []byte) error {
	if s.bus == nil {
		return nil
	}
	var ev domain.AnnouncementEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("ws: payload inválido: %w", err)
	}
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" {
		return fmt.Errorf("ws: evento sin tipo")
	}
	s.bus.Publish(ev.Type, ev)
	return nil
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	clientCount := len(s.clients)
	s.mu.Unlock()

	if ok {
		client.conn.Close()
		log.Info("ws: conexión cerrada", "clients", clientCount)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for c := range clients {
		_ = c.conn.Close()
	}
}

// SetTTSStatusProvider conecta el runner después de construir el servidor: el
// runner necesita al servidor como publicador de eventos.
func (s *Server) SetTTSStatusProvider(p TTSQueue) {
	if s == nil || s.api == nil {
		return
	}
	s.api.status = p
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// PublishTTSEvent cumple con domain.TTSEventPublisher enviando el evento a cada cliente WS.
func (s *Server) PublishTTSEvent(ctx context.Context, event domain.TTSEvent) error {
	envelope := struct {
		Type string          `json:"type"`
		Data domain.TTSEvent `json:"data"`
	}{
		Type: "tts",
		Data: event,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.writeJSON(json.RawMessage(payload)); err != nil {
			log.Warn("ws: quitando cliente por error de escritura", "err", err)
			s.removeClient(c)
		}
	}

	return nil
}

var _ domain.TTSEventPublisher = (*Server)(nil)
