// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/michaelongaro/Squeak-sub000/internal/auth"
	"github.com/michaelongaro/Squeak-sub000/internal/cache"
	"github.com/michaelongaro/Squeak-sub000/internal/config"
	"github.com/michaelongaro/Squeak-sub000/internal/database"
	"github.com/michaelongaro/Squeak-sub000/internal/game"
	"github.com/michaelongaro/Squeak-sub000/internal/models"
)

// Server exposes the hub over HTTP and WebSocket.
type Server struct {
	ctx    context.Context // Bounds bots spawned from sessions.
	cfg    *config.Config
	hub    *game.Hub
	signer *auth.Signer

	mu       sync.Mutex
	sessions map[sessionKey]*session // The live connection for each seat.
}

type sessionKey struct {
	room uuid.UUID
	user uuid.UUID
}

// New returns a server. ctx bounds the lifetime of bots started through it.
func New(ctx context.Context, cfg *config.Config, hub *game.Hub, signer *auth.Signer) *Server {
	return &Server{
		ctx:      ctx,
		cfg:      cfg,
		hub:      hub,
		signer:   signer,
		sessions: make(map[sessionKey]*session),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "rooms": s.hub.Len()})
	})
	r.Post("/auth/guest", s.handleGuest)
	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", s.handleListRooms)
		r.With(s.requireUser).Post("/", s.handleCreateRoom)
		r.Get("/{code}", s.handleGetRoom)
		r.Get("/{code}/history", s.handleRoomHistory)
		r.Get("/{code}/rounds", s.handleRoomRounds)
	})
	r.Get("/ws/{code}", s.handleWebSocket)
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(s.cfg.AllowOrigin))
	for _, o := range s.cfg.AllowOrigin {
		allow[o] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := allow[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.signer.Parse(auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

type guestRequest struct {
	Username string `json:"username"`
}

type guestResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	user := auth.NewGuest(req.Username)
	token, err := s.signer.Issue(user)
	if err != nil {
		log.Errorf("Issuing guest token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusCreated, guestResponse{Token: token, User: user})
}

type createRoomRequest struct {
	PointsToWin int    `json:"pointsToWin"`
	MaxPlayers  int    `json:"maxPlayers"`
	Password    string `json:"password"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	room, err := s.hub.CreateRoom(game.RoomOptions{
		PointsToWin: req.PointsToWin,
		MaxPlayers:  req.MaxPlayers,
		Password:    req.Password,
	})
	if errors.Is(err, game.ErrHubClosed) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		log.Errorf("Creating room: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create room")
		return
	}
	info, err := room.Info()
	if err != nil {
		writeError(w, http.StatusGone, err.Error())
		return
	}
	log.WithFields(log.Fields{"room": room.Code, "user": userFrom(r.Context()).ID}).Info("Room created.")
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.List())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	if info, ok := s.roomInfo(w, r); ok {
		writeJSON(w, http.StatusOK, info)
	}
}

// handleRoomHistory returns the room's action log from Redis.
func (s *Server) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	info, ok := s.roomInfo(w, r)
	if !ok {
		return
	}
	actions, err := cache.GameActions(r.Context(), info.ID)
	if errors.Is(err, cache.ErrNotConnected) {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	if err != nil {
		log.Errorf("Reading history for room %s: %v", info.Code, err)
		writeError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// handleRoomRounds returns the scoreboards stored for the room.
func (s *Server) handleRoomRounds(w http.ResponseWriter, r *http.Request) {
	info, ok := s.roomInfo(w, r)
	if !ok {
		return
	}
	rounds, err := database.RoundResults(r.Context(), info.ID)
	if errors.Is(err, database.ErrNotConnected) {
		writeError(w, http.StatusServiceUnavailable, "results are not enabled")
		return
	}
	if err != nil {
		log.Errorf("Reading rounds for room %s: %v", info.Code, err)
		writeError(w, http.StatusInternalServerError, "could not read results")
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) roomInfo(w http.ResponseWriter, r *http.Request) (game.RoomInfo, bool) {
	room, err := s.hub.Room(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return game.RoomInfo{}, false
	}
	info, err := room.Info()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return game.RoomInfo{}, false
	}
	return info, true
}

// bindSession makes sess the live connection for its seat and returns the one it replaced.
func (s *Server) bindSession(sess *session) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{room: sess.room.ID, user: sess.user.ID}
	prev := s.sessions[key]
	s.sessions[key] = sess
	return prev
}

// unbindSession reports whether sess was still the live connection for its seat.
func (s *Server) unbindSession(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{room: sess.room.ID, user: sess.user.ID}
	if s.sessions[key] != sess {
		return false
	}
	delete(s.sessions, key)
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// NewHTTPServer wraps the routes with the timeouts used in production.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
