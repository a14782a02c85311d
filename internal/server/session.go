// internal/server/session.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
	"github.com/michaelongaro/Squeak-sub000/internal/bot"
	"github.com/michaelongaro/Squeak-sub000/internal/game"
	"github.com/michaelongaro/Squeak-sub000/internal/models"
)

const (
	sendBuffer   = 64
	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
	maxMessage   = 16 << 10
)

// session is one WebSocket connection bound to one seat.
type session struct {
	srv  *Server
	conn *websocket.Conn
	user *models.User
	room *game.Room
	log  *log.Entry

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.signer.Parse(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	room, err := s.hub.Room(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !room.CheckPassword(r.URL.Query().Get("password")) {
		writeError(w, http.StatusForbidden, game.ErrWrongPassword.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.cfg.AllowOrigin,
		InsecureSkipVerify: len(s.cfg.AllowOrigin) == 0,
	})
	if err != nil {
		log.Warnf("WebSocket accept for %s failed: %v", user.ID, err)
		return
	}
	conn.SetReadLimit(maxMessage)

	sess := &session{
		srv:  s,
		conn: conn,
		user: user,
		room: room,
		log:  log.WithFields(log.Fields{"room": room.Code, "user": user.ID, "username": user.Username}),
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	sess.serve(r.Context())
}

// serve binds the seat, runs the writer and blocks in the reader until the connection ends.
func (sess *session) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if prev := sess.srv.bindSession(sess); prev != nil {
		prev.close(websocket.StatusPolicyViolation, "replaced by a newer connection")
	}
	unsubscribe := sess.room.Subscribe(sess.user.ID, sess.deliver)
	if err := sess.room.Join(sess.user); err != nil {
		sess.log.Infof("Join refused: %v", err)
		unsubscribe()
		sess.srv.unbindSession(sess)
		_ = sess.conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	sess.log.Info("Session started.")

	go sess.writeLoop(ctx)
	sess.readLoop(ctx)

	unsubscribe()
	sess.close(websocket.StatusNormalClosure, "")
	if sess.srv.unbindSession(sess) {
		if err := sess.room.Disconnect(sess.user.ID); err != nil && !errors.Is(err, game.ErrRoomClosed) {
			sess.log.Warnf("Disconnect: %v", err)
		}
	}
	sess.log.Info("Session ended.")
}

// deliver runs on the room worker. A slow client loses events rather than stalling the room;
// its reconciliation queue sees the gap and asks for a resync.
func (sess *session) deliver(ev game.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		sess.log.Errorf("Marshal %s event: %v", ev.Type, err)
		return
	}
	select {
	case sess.send <- data:
	case <-sess.done:
		return
	default:
		sess.log.Warnf("Send buffer full, dropping %s event %d.", ev.Type, ev.Seq)
	}
	if ev.Type == game.EventRoomClosed {
		go sess.close(websocket.StatusGoingAway, "room closed")
	}
}

func (sess *session) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.done:
			return
		case msg := <-sess.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := sess.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				sess.log.Debugf("Write failed: %v", err)
				sess.close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := sess.conn.Ping(pctx)
			cancel()
			if err != nil {
				sess.log.Debugf("Ping failed: %v", err)
				sess.close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (sess *session) readLoop(ctx context.Context) {
	for {
		typ, data, err := sess.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				sess.log.Debugf("Read ended: %v", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var action models.GameAction
		if err := json.Unmarshal(data, &action); err != nil {
			sess.sendError("badRequest", "malformed message")
			continue
		}
		if leave := sess.dispatch(action); leave {
			return
		}
	}
}

// dispatch routes one client action to the room. It reports whether the session should end.
func (sess *session) dispatch(action models.GameAction) bool {
	id := sess.user.ID
	var err error
	switch action.ActionType {
	case game.ActionProposeCardDrop:
		var prop engine.MoveProposal
		if err = json.Unmarshal(action.Payload, &prop); err != nil {
			sess.sendError("badRequest", "invalid proposal")
			return false
		}
		_, err = sess.room.ProposeCardDrop(id, prop)
	case game.ActionDrawFromDeck:
		_, err = sess.room.DrawFromDeck(id)
	case game.ActionSqueakPressed:
		err = sess.room.PressSqueak(id)
	case game.ActionStartVote:
		var req struct {
			Type engine.VoteType `json:"type"`
		}
		if err = json.Unmarshal(action.Payload, &req); err != nil {
			sess.sendError("badRequest", "invalid vote")
			return false
		}
		_, err = sess.room.StartVote(id, req.Type)
	case game.ActionCastVote:
		var req struct {
			Ballot engine.Ballot `json:"ballot"`
		}
		if err = json.Unmarshal(action.Payload, &req); err != nil {
			sess.sendError("badRequest", "invalid ballot")
			return false
		}
		_, err = sess.room.CastVote(id, req.Ballot)
	case game.ActionStartGame:
		err = sess.room.StartGame(id)
	case game.ActionAddBot:
		var req struct {
			Difficulty string `json:"difficulty"`
		}
		if len(action.Payload) > 0 {
			_ = json.Unmarshal(action.Payload, &req)
		}
		d, perr := bot.ParseDifficulty(req.Difficulty)
		if perr != nil {
			sess.sendError("badRequest", perr.Error())
			return false
		}
		_, err = bot.Spawn(sess.srv.ctx, sess.room, id, d)
	case game.ActionRequestResync:
		err = sess.room.RequestResync(id)
	case game.ActionLeaveRoom:
		if err = sess.room.Leave(id); err != nil {
			sess.log.Debugf("Leave: %v", err)
		}
		return true
	default:
		sess.log.Warnf("Unknown action type %q.", action.ActionType)
		sess.sendError("badRequest", "unknown action "+action.ActionType)
		return false
	}

	// Refusals already reached the player as private events; only the worker going away
	// ends the session.
	if errors.Is(err, game.ErrRoomClosed) {
		return true
	}
	if err != nil {
		sess.log.Debugf("%s refused: %v", action.ActionType, err)
	}
	return false
}

// sendError reports a malformed request. The room never saw it, so no timestamp applies.
func (sess *session) sendError(code, msg string) {
	sess.deliver(game.GameEvent{
		Type:    game.EventError,
		Payload: map[string]interface{}{"code": code, "message": msg},
	})
}

func (sess *session) close(status websocket.StatusCode, reason string) {
	sess.closeOnce.Do(func() {
		close(sess.done)
		_ = sess.conn.Close(status, reason)
	})
}
