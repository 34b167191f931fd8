// Package room hosts exam sessions over WebSocket. The frontend does audio
// capture, speech-to-text, and playback; this side runs the proctor state
// machine and the data channel.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/coral-ai/proctor/internal/model"
	"github.com/coral-ai/proctor/internal/session"
	"github.com/coral-ai/proctor/internal/speech"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Config holds the per-server room settings.
type Config struct {
	TokenSecret      []byte
	Delays           session.Delays
	WatchdogInterval time.Duration
	WatchdogChecks   int
}

// Server accepts room connections and runs one exam session per connection.
type Server struct {
	repo    session.Repository
	archive session.Archiver
	tts     *speech.Synthesizer
	cfg     Config
}

// NewServer creates a room server. archive and tts may be nil.
func NewServer(repo session.Repository, archive session.Archiver, tts *speech.Synthesizer, cfg Config) *Server {
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = session.DefaultWatchdogInterval
	}
	if cfg.WatchdogChecks <= 0 {
		cfg.WatchdogChecks = session.DefaultWatchdogChecks
	}
	return &Server{repo: repo, archive: archive, tts: tts, cfg: cfg}
}

// Routes registers the room endpoints.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/rooms/{roomName}/ws", s.handleRoomWS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request) {
	roomName := chi.URLParam(r, "roomName")

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := ParseToken(s.cfg.TokenSecret, tokenStr)
	if err != nil {
		slog.Warn("rejected room token", "room", roomName, "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Room != roomName {
		slog.Warn("token room mismatch", "room", roomName, "token_room", claims.Room)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "room", roomName, "error", err)
		return
	}

	room := &Room{
		name:     roomName,
		identity: claims.Identity,
		conn:     conn,
		tts:      s.tts,
	}
	room.ctrl = session.NewController(s.repo, room, s.archive, s.cfg.Delays)

	slog.Info("participant connected", "room", roomName, "identity", claims.Identity)
	room.run(r.Context(), s.cfg.WatchdogInterval, s.cfg.WatchdogChecks)
}

// Room is one live exam session bound to one connection. It implements
// session.Voice.
type Room struct {
	name     string
	identity string
	conn     *websocket.Conn
	ctrl     *session.Controller
	tts      *speech.Synthesizer

	writeMu sync.Mutex
}

// run processes inbound frames until the participant disconnects, then
// finalizes the session.
func (r *Room) run(ctx context.Context, watchdogInterval time.Duration, watchdogChecks int) {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	go r.ctrl.RunDataWatchdog(watchCtx, watchdogInterval, watchdogChecks, func() {
		_ = r.conn.Close()
	})

	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		r.dispatch(ctx, data)
	}

	cancelWatch()
	slog.Info("participant disconnected", "room", r.name, "identity", r.identity)

	// The request context is gone once the client hangs up; finalization
	// still has to reach the stores.
	r.ctrl.Finalize(context.WithoutCancel(ctx))
	_ = r.conn.Close()
}

// dispatch routes one inbound text frame.
func (r *Room) dispatch(ctx context.Context, data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		slog.Error("malformed room message", "room", r.name, "error", err)
		return
	}

	switch envelope.Type {
	case model.MessageTypeUtterance:
		var msg model.UtteranceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Error("malformed utterance message", "room", r.name, "error", err)
			return
		}
		r.ctrl.History().Append(model.RoleUser, msg.Data.Text)
		r.ctrl.HandleUtteranceCommitted(ctx)
	default:
		// QUESTIONS and anything unknown; the controller logs unknowns.
		r.ctrl.HandleDataMessage(ctx, data)
	}
}

// Say sends a SAY message, plus a binary audio frame when synthesis is
// configured.
func (r *Room) Say(ctx context.Context, text string, interruptible bool) error {
	var audio []byte
	if r.tts != nil {
		var err error
		audio, err = r.tts.Synthesize(ctx, text)
		if err != nil {
			slog.Error("speech synthesis failed, sending text only", "room", r.name, "error", err)
			audio = nil
		}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteJSON(model.NewSayMessage(text, interruptible, len(audio) > 0)); err != nil {
		return err
	}
	if len(audio) > 0 {
		return r.conn.WriteMessage(websocket.BinaryMessage, audio)
	}
	return nil
}

// SendData sends a structured message on the data channel.
func (r *Room) SendData(_ context.Context, msg any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(msg)
}
