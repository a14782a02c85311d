// internal/game/hub.go
package game

import (
	crand "crypto/rand"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrHubClosed    = errors.New("hub is shutting down")
)

// codeAlphabet skips characters that are easy to misread.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// Hub is the registry of live rooms, keyed by join code.
type Hub struct {
	settings Settings

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
}

// NewHub returns an empty hub whose rooms use settings.
func NewHub(settings Settings) *Hub {
	return &Hub{settings: settings.normalize(), rooms: make(map[string]*Room)}
}

// Settings returns the hub's room settings.
func (h *Hub) Settings() Settings { return h.settings }

// CreateRoom registers and starts a room under a fresh code. opts.Code is ignored.
func (h *Hub) CreateRoom(opts RoomOptions) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}

	opts.Code = h.newCodeLocked()
	room, err := NewRoom(h.settings, opts)
	if err != nil {
		return nil, err
	}
	room.OnClose = h.remove
	h.rooms[room.Code] = room
	room.Start()
	log.Infof("Created room %s (%s), %d seats, first to %d.", room.Code, room.ID, room.settings.MaxPlayers, room.settings.PointsToWin)
	return room, nil
}

func (h *Hub) newCodeLocked() string {
	buf := make([]byte, codeLength)
	for {
		if _, err := crand.Read(buf); err != nil {
			panic("crypto/rand: " + err.Error())
		}
		var b strings.Builder
		for _, x := range buf {
			b.WriteByte(codeAlphabet[int(x)%len(codeAlphabet)])
		}
		if _, taken := h.rooms[b.String()]; !taken {
			return b.String()
		}
	}
}

// Room looks a room up by code. Codes are case-insensitive.
func (h *Hub) Room(code string) (*Room, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// List summarises every open room, ordered by code.
func (h *Hub) List() []RoomInfo {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		info, err := r.Info()
		if err != nil {
			continue // Closed between the copy and the query.
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of open rooms.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// remove runs on the closing room's worker.
func (h *Hub) remove(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[r.Code] == r {
		delete(h.rooms, r.Code)
	}
}

// Shutdown closes every room and waits for their workers to exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		r.Close("shutdown")
	}
	for _, r := range rooms {
		<-r.Done()
	}
	log.Infof("Hub shut down %d rooms.", len(rooms))
}

// ---------------------------------------------------------------------------
// Subscribers
// ---------------------------------------------------------------------------

// Sink receives a room's events for one connection. It must not block.
type Sink func(ev GameEvent)

type subscription struct {
	token uint64
	sink  Sink
}

// subscriberSet maps seats to their live connection. It is read by the room worker and
// written by connection goroutines, so it carries its own lock.
type subscriberSet struct {
	mu    sync.RWMutex
	next  uint64
	sinks map[uuid.UUID]subscription
}

func (s *subscriberSet) add(playerID uuid.UUID, sink Sink) func() {
	s.mu.Lock()
	s.next++
	token := s.next
	s.sinks[playerID] = subscription{token: token, sink: sink}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		// A reconnect may already have replaced this subscription.
		if cur, ok := s.sinks[playerID]; ok && cur.token == token {
			delete(s.sinks, playerID)
		}
		s.mu.Unlock()
	}
}

func (s *subscriberSet) broadcast(ev GameEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.sinks {
		sub.sink(ev)
	}
}

func (s *subscriberSet) send(playerID uuid.UUID, ev GameEvent) {
	s.mu.RLock()
	sub, ok := s.sinks[playerID]
	s.mu.RUnlock()
	if ok {
		sub.sink(ev)
	}
}

// Subscribe attaches sink to playerID's seat and returns the function that detaches it.
// Subscribe before Join so the joiner's first syncState is delivered.
func (r *Room) Subscribe(playerID uuid.UUID, sink Sink) (unsubscribe func()) {
	return r.subs.add(playerID, sink)
}
