package devserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/topluluk-game/sync-client/internal/protocol"
	"github.com/topluluk-game/sync-client/internal/state"
)

// Server exposes the loopback peer over HTTP: session CRUD, the HTTP path
// of fill-with-bots, and the realtime websocket endpoint.
type Server struct {
	hub *Hub
	log *zap.SugaredLogger
}

func NewServer(ctx context.Context, log *zap.SugaredLogger) *Server {
	return &Server{hub: NewHub(ctx, log), log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", s.createSession)
	r.Post("/sessions/{code}/join", s.joinByCode)
	r.Post("/sessions/{id}/bots", s.fillBots)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	return r
}

type sessionInfo struct {
	ID       string `json:"id"`
	JoinCode string `json:"joinCode"`
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		PlayerName string `json:"playerName"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Name == "" {
		req.Name = "topluluk"
	}

	code, err := generateCode()
	if err != nil {
		http.Error(w, "failed to generate code", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	reply := make(chan *Room, 1)
	s.hub.Inbox() <- CreateRoom{ID: id, Name: req.Name, JoinCode: code, Reply: reply}
	if <-reply == nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	playerID := uuid.NewString()
	writeJSON(w, http.StatusCreated, sessionInfo{ID: id, JoinCode: code, Token: playerID, PlayerID: playerID})
}

func (s *Server) joinByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	reply := make(chan *Room, 1)
	s.hub.Inbox() <- ResolveCode{Code: code, Reply: reply}
	room := <-reply
	if room == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	view := make(chan state.Session, 1)
	room.Inbox() <- GetView{Reply: view}
	v := <-view

	playerID := uuid.NewString()
	writeJSON(w, http.StatusOK, sessionInfo{ID: v.ID, JoinCode: code, Token: playerID, PlayerID: playerID})
}

func (s *Server) fillBots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reply := make(chan *Room, 1)
	s.hub.Inbox() <- GetRoom{ID: id, Reply: reply}
	room := <-reply
	if room == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	room.Inbox() <- FillBots{}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	token := r.URL.Query().Get("token")
	name := r.URL.Query().Get("name")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	if token == "" {
		// Dev auth: the token doubles as the player identity.
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if name == "" {
		name = "player-" + token[:min(6, len(token))]
	}

	reply := make(chan *Room, 1)
	s.hub.Inbox() <- GetRoom{ID: sessionID, Reply: reply}
	room := <-reply
	if room == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	out := make(chan []byte, 32)
	room.Inbox() <- Join{PlayerID: token, Name: name, Outbox: out}
	defer func() { room.Inbox() <- Leave{PlayerID: token} }()

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for frame := range out {
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			_ = conn.Write(ctx, websocket.MessageText, frame)
			cancel()
		}
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			frame, _ := protocol.EncodeEvent(protocol.ServerError{Message: "bad command"})
			_ = conn.Write(r.Context(), websocket.MessageText, frame)
			continue
		}

		room.Inbox() <- FromClient{PlayerID: token, Cmd: cmd}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
