// internal/game/room.go
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
	"github.com/michaelongaro/Squeak-sub000/internal/auth"
	"github.com/michaelongaro/Squeak-sub000/internal/models"
)

var (
	ErrRoomClosed    = errors.New("room closed")
	ErrNotHost       = errors.New("only the host can do that")
	ErrNotSeated     = errors.New("player is not seated in this room")
	ErrWrongPassword = errors.New("wrong room password")
)

// RoomOptions configures a new room. Zero values fall back to the hub's settings.
type RoomOptions struct {
	Code        string
	MaxPlayers  int
	PointsToWin int
	Password    string
	Seed        uint64 // Zero seeds from the clock.
}

// Room owns one game. Every exported method hands a closure to the room's worker goroutine
// and waits for it, so all game state below is only ever touched by that goroutine.
type Room struct {
	ID   uuid.UUID
	Code string

	settings     Settings
	passwordHash []byte // Immutable after creation; read without the worker.

	// Worker-owned state.
	game            *engine.Game
	votes           *engine.VoteBox
	players         []*models.Player // Join order.
	hostID          uuid.UUID
	seq             uint64 // Room timestamp, advanced by every public event.
	actionIndex     int    // Historian ordering.
	lastScoreboard  *engine.Scoreboard
	voteTimer       *time.Timer
	graceTimers     map[uuid.UUID]*time.Timer
	graceGen        map[uuid.UUID]uint64
	intermission    *time.Timer
	intermissionGen uint64
	closing         bool
	closeReason     string

	inbox chan func()
	done  chan struct{}

	subs subscriberSet

	// Communication callbacks. Default to the room's own subscriber set.
	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	OnClose             func(r *Room)

	now func() time.Time
}

// NewRoom builds a room in the lobby phase. Call Start before using it.
func NewRoom(settings Settings, opts RoomOptions) (*Room, error) {
	settings = settings.normalize()
	if opts.MaxPlayers >= engine.MinPlayers && opts.MaxPlayers <= engine.MaxPlayers {
		settings.MaxPlayers = opts.MaxPlayers
	}
	if opts.PointsToWin > 0 {
		settings.PointsToWin = opts.PointsToWin
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	r := &Room{
		ID:          uuid.New(),
		Code:        opts.Code,
		settings:    settings,
		game:        engine.NewGame(seed, settings.PointsToWin),
		votes:       engine.NewVoteBox(settings.VoteTimeout, settings.VoteLockout),
		graceTimers: make(map[uuid.UUID]*time.Timer),
		graceGen:    make(map[uuid.UUID]uint64),
		inbox:       make(chan func(), settings.InboxSize),
		done:        make(chan struct{}),
		subs:        subscriberSet{sinks: make(map[uuid.UUID]subscription)},
		now:         time.Now,
	}
	if opts.Password != "" {
		hash, err := auth.HashPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		r.passwordHash = hash
	}
	r.BroadcastFn = r.subs.broadcast
	r.BroadcastToPlayerFn = r.subs.send
	return r, nil
}

// Start launches the worker goroutine. A room nobody joins within the reconnect grace is
// closed.
func (r *Room) Start() {
	go r.run()
	time.AfterFunc(r.settings.ReconnectGrace, func() { r.post(r.closeIfAbandoned) })
}

func (r *Room) run() {
	defer close(r.done)
	for fn := range r.inbox {
		fn()
		if r.closing {
			r.shutdown()
			return
		}
	}
}

// Done is closed once the room has been torn down.
func (r *Room) Done() <-chan struct{} { return r.done }

// CheckPassword reports whether password opens the room. Safe from any goroutine.
func (r *Room) CheckPassword(password string) bool {
	return auth.CheckPassword(r.passwordHash, password)
}

// HasPassword reports whether the room is private.
func (r *Room) HasPassword() bool { return len(r.passwordHash) > 0 }

// do runs fn on the worker and waits for it to finish.
func (r *Room) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case r.inbox <- func() { fn(); close(finished) }:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		// The command may have been the one that closed the room.
		select {
		case <-finished:
			return nil
		default:
			return ErrRoomClosed
		}
	}
}

// post queues fn without waiting. Used by timers.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

// ---------------------------------------------------------------------------
// Seats and connections
// ---------------------------------------------------------------------------

// Join seats user, or rebinds a returning player inside the reconnect grace.
func (r *Room) Join(user *models.User) error {
	var err error
	if doErr := r.do(func() { err = r.join(user) }); doErr != nil {
		return doErr
	}
	return err
}

func (r *Room) join(user *models.User) error {
	if p := r.getPlayerByID(user.ID); p != nil {
		r.reconnect(p)
		return nil
	}
	if len(r.players) >= r.settings.MaxPlayers {
		return engine.ErrRoomFull
	}
	if err := r.game.AddPlayer(pid(user.ID)); err != nil {
		return err
	}

	p := &models.Player{ID: user.ID, User: user, Connected: true, JoinedAt: r.now()}
	r.players = append(r.players, p)
	if r.hostID == uuid.Nil {
		r.hostID = p.ID
	}
	log.Printf("Game %s: Player %s (%s) joined room %s.", r.ID, p.ID, p.Username(), r.Code)
	r.logAction(p.ID, "player_join", map[string]interface{}{"username": p.Username(), "bot": p.IsBot()})

	r.broadcast(GameEvent{
		Type:    EventPlayerJoined,
		User:    eventUser(p),
		Payload: map[string]interface{}{"player": r.playerView(p, uuid.Nil), "hostId": r.hostID},
	})
	r.sendSyncState(p.ID)
	return nil
}

// JoinBot seats a bot on behalf of the host.
func (r *Room) JoinBot(hostID uuid.UUID, bot *models.User) error {
	var err error
	doErr := r.do(func() {
		if hostID != r.hostID {
			err = ErrNotHost
			r.refuse(hostID, err)
			return
		}
		if err = r.join(bot); err != nil {
			r.refuse(hostID, err)
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (r *Room) reconnect(p *models.Player) {
	if r.graceTimers[p.ID] != nil {
		r.graceTimers[p.ID].Stop()
		delete(r.graceTimers, p.ID)
	}
	r.graceGen[p.ID]++
	wasConnected := p.Connected
	p.Connected = true
	p.LeftAt = time.Time{}
	_ = r.game.SetConnected(pid(p.ID), true)

	log.Printf("Game %s: Player %s (%s) reconnected.", r.ID, p.ID, p.Username())
	r.logAction(p.ID, "player_reconnect", nil)
	if !wasConnected {
		r.broadcast(GameEvent{
			Type:    EventPlayerConnection,
			User:    eventUser(p),
			Payload: map[string]interface{}{"connected": true},
		})
	}
	r.migrateHost()
	r.sendSyncState(p.ID)
}

// Disconnect marks a seat as disconnected and starts its reconnect grace window.
func (r *Room) Disconnect(playerID uuid.UUID) error {
	return r.do(func() { r.handleDisconnect(playerID) })
}

// Leave gives up a seat. Before the first deal and after game over the seat is freed at
// once; mid-game the cards stay in play and the seat is held like a disconnect.
func (r *Room) Leave(playerID uuid.UUID) error {
	var err error
	doErr := r.do(func() {
		p := r.getPlayerByID(playerID)
		if p == nil {
			err = ErrNotSeated
			return
		}
		if r.game.Phase == engine.PhaseLobby || r.game.Phase == engine.PhaseGameOver {
			r.removeSeat(p, "left")
			r.closeIfAbandoned()
			return
		}
		r.handleDisconnect(playerID)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (r *Room) handleDisconnect(playerID uuid.UUID) {
	p := r.getPlayerByID(playerID)
	if p == nil {
		log.Printf("Game %s: Disconnected player %s not found.", r.ID, playerID)
		return
	}
	if !p.Connected {
		return
	}
	p.Connected = false
	p.LeftAt = r.now()
	_ = r.game.SetConnected(pid(p.ID), false)
	log.Printf("Game %s: Player %s (%s) disconnected.", r.ID, p.ID, p.Username())
	r.logAction(p.ID, "player_disconnect", nil)

	r.broadcast(GameEvent{
		Type:    EventPlayerConnection,
		User:    eventUser(p),
		Payload: map[string]interface{}{"connected": false},
	})
	r.migrateHost()

	// The electorate shrank.
	if tally, ok := r.votes.Reevaluate(r.game.ConnectedPlayers(), r.now()); ok {
		r.onVoteTally(tally)
	}
	r.checkDeadlock()
	r.armGrace(p.ID)
}

func (r *Room) armGrace(playerID uuid.UUID) {
	r.graceGen[playerID]++
	gen := r.graceGen[playerID]
	if r.graceTimers[playerID] != nil {
		r.graceTimers[playerID].Stop()
	}
	r.graceTimers[playerID] = time.AfterFunc(r.settings.ReconnectGrace, func() {
		r.post(func() { r.graceExpired(playerID, gen) })
	})
}

func (r *Room) graceExpired(playerID uuid.UUID, gen uint64) {
	if r.graceGen[playerID] != gen {
		return
	}
	delete(r.graceTimers, playerID)
	p := r.getPlayerByID(playerID)
	if p == nil || p.Connected {
		return
	}
	log.Printf("Game %s: Reconnect grace expired for player %s.", r.ID, playerID)
	if r.game.Phase == engine.PhaseLobby || r.game.Phase == engine.PhaseGameOver {
		r.removeSeat(p, "timeout")
	}
	r.closeIfAbandoned()
}

func (r *Room) removeSeat(p *models.Player, reason string) {
	if err := r.game.RemovePlayer(pid(p.ID)); err != nil {
		log.Printf("Game %s: Removing player %s: %v", r.ID, p.ID, err)
		return
	}
	for i, pl := range r.players {
		if pl.ID == p.ID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	if t := r.graceTimers[p.ID]; t != nil {
		t.Stop()
		delete(r.graceTimers, p.ID)
	}
	r.graceGen[p.ID]++
	r.logAction(p.ID, "player_leave", map[string]interface{}{"reason": reason})
	r.broadcast(GameEvent{
		Type:    EventPlayerLeft,
		User:    eventUser(p),
		Payload: map[string]interface{}{"reason": reason},
	})
	if p.ID == r.hostID {
		r.hostID = uuid.Nil
	}
	r.migrateHost()
}

// migrateHost hands the host role to the earliest-joined connected human when the current
// host is gone or disconnected.
func (r *Room) migrateHost() {
	if host := r.getPlayerByID(r.hostID); host != nil && host.Connected {
		return
	}
	for _, p := range r.players {
		if p.Connected && !p.IsBot() {
			if p.ID == r.hostID {
				return
			}
			old := r.hostID
			r.hostID = p.ID
			log.Printf("Game %s: Host moved from %s to %s.", r.ID, old, p.ID)
			r.logAction(p.ID, "host_changed", map[string]interface{}{"previous": old})
			r.broadcast(GameEvent{
				Type:    EventHostChanged,
				User:    eventUser(p),
				Payload: map[string]interface{}{"hostId": p.ID, "previousHostId": old},
			})
			return
		}
	}
}

// closeIfAbandoned tears the room down once no human holds a connected seat or a seat
// still inside its grace window.
func (r *Room) closeIfAbandoned() {
	for _, p := range r.players {
		if p.IsBot() {
			continue
		}
		if p.Connected || r.graceTimers[p.ID] != nil {
			return
		}
	}
	r.beginClose("abandoned")
}

// Close tears the room down.
func (r *Room) Close(reason string) {
	r.post(func() { r.beginClose(reason) })
}

func (r *Room) beginClose(reason string) {
	if r.closing {
		return
	}
	r.closing = true
	r.closeReason = reason
}

// shutdown runs on the worker after the closing command.
func (r *Room) shutdown() {
	r.stopVoteTimer()
	if r.intermission != nil {
		r.intermission.Stop()
	}
	for _, t := range r.graceTimers {
		t.Stop()
	}
	log.Printf("Game %s: Room %s closed (%s).", r.ID, r.Code, r.closeReason)
	r.logAction(uuid.Nil, "room_closed", map[string]interface{}{"reason": r.closeReason})
	r.broadcast(GameEvent{Type: EventRoomClosed, Payload: map[string]interface{}{"reason": r.closeReason}})
	if r.OnClose != nil {
		r.OnClose(r)
	}
}

// ---------------------------------------------------------------------------
// Game actions
// ---------------------------------------------------------------------------

// StartGame deals the first round. Host only.
func (r *Room) StartGame(playerID uuid.UUID) error {
	var err error
	doErr := r.do(func() {
		if playerID != r.hostID {
			err = ErrNotHost
		} else if r.game.Phase != engine.PhaseLobby {
			err = fmt.Errorf("start game: %w", engine.ErrWrongPhase)
		} else {
			err = r.startRound()
		}
		if err != nil {
			r.refuse(playerID, err)
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// ProposeCardDrop arbitrates one move. Proposals are applied in the order they reach the
// worker; a denial goes to the proposer only and changes nothing.
func (r *Room) ProposeCardDrop(playerID uuid.UUID, prop engine.MoveProposal) (*engine.MoveResult, error) {
	var (
		res *engine.MoveResult
		err error
	)
	doErr := r.do(func() { res, err = r.proposeCardDrop(playerID, prop) })
	if doErr != nil {
		return nil, doErr
	}
	return res, err
}

func (r *Room) proposeCardDrop(playerID uuid.UUID, prop engine.MoveProposal) (*engine.MoveResult, error) {
	p := r.getPlayerByID(playerID)
	if p == nil {
		return nil, ErrNotSeated
	}
	prop.PlayerID = pid(playerID)

	res, err := r.game.ApplyMove(prop)
	if err != nil {
		log.Debugf("Game %s: Denied card drop from %s: %v", r.ID, playerID, err)
		r.sendTo(playerID, GameEvent{
			Type: EventCardDropDenied,
			User: eventUser(p),
			Payload: map[string]interface{}{
				"proposal": prop,
				"reason":   engine.ReasonOf(err),
			},
		})
		r.checkDeadlock()
		return nil, err
	}

	ps := r.game.Player(prop.PlayerID)
	payload := map[string]interface{}{
		"proposal":        prop,
		"moved":           res.Moved,
		"handTop":         res.RevealedHandTop,
		"squeakDeckCount": len(ps.SqueakDeck),
		"deckCount":       len(ps.Deck),
		"deckCursor":      ps.DeckCursor,
	}
	if res.RefilledStack >= 0 {
		payload["refilledStack"] = res.RefilledStack
		payload["refilledCard"] = res.RefilledCard
	}
	r.broadcast(GameEvent{Type: EventCardDropApproved, User: eventUser(p), Payload: payload})
	r.logAction(playerID, "card_drop", map[string]interface{}{
		"card":        prop.Card.String(),
		"origin":      prop.Origin,
		"destination": prop.Dest,
	})

	r.checkDeadlock()
	return res, nil
}

// DrawFromDeck flips the next three cards of the player's deck.
func (r *Room) DrawFromDeck(playerID uuid.UUID) (*engine.Card, error) {
	var (
		top *engine.Card
		err error
	)
	doErr := r.do(func() {
		p := r.getPlayerByID(playerID)
		if p == nil {
			err = ErrNotSeated
			return
		}
		var recycled bool
		top, recycled, err = r.game.Draw(pid(playerID))
		if err != nil {
			r.refuse(playerID, err)
			return
		}
		ps := r.game.Player(pid(playerID))
		r.broadcast(GameEvent{
			Type: EventDeckDrawn,
			User: eventUser(p),
			Payload: map[string]interface{}{
				"topCards":   ps.TopCardsInDeck(),
				"handTop":    top,
				"recycled":   recycled,
				"deckCursor": ps.DeckCursor,
				"deckCount":  len(ps.Deck),
			},
		})
		r.logAction(playerID, "deck_draw", map[string]interface{}{"recycled": recycled})
		r.checkDeadlock()
	})
	if doErr != nil {
		return nil, doErr
	}
	return top, err
}

// PressSqueak ends the round for a player whose squeak deck is empty.
func (r *Room) PressSqueak(playerID uuid.UUID) error {
	var err error
	doErr := r.do(func() {
		if r.getPlayerByID(playerID) == nil {
			err = ErrNotSeated
			return
		}
		var board *engine.Scoreboard
		board, err = r.game.Squeak(pid(playerID))
		if err != nil {
			r.refuse(playerID, err)
			return
		}
		log.Printf("Game %s: Player %s squeaked in round %d.", r.ID, playerID, board.Round)
		r.finishRound(board)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// checkDeadlock rotates decks while no connected player has a productive move, at most one
// rotation cycle per call. A deadlock that outlasts the cycle is rotated again on the next
// proposal or draw, until the rotation ceiling ends the round.
func (r *Room) checkDeadlock() {
	for n := 0; r.game.Phase == engine.PhasePlaying && r.game.IsDeadlocked(); n++ {
		if n == engine.RotationCycle {
			log.Debugf("Game %s: Still deadlocked after %d rotations; waiting for the next action.", r.ID, r.game.DeadlockRotations)
			return
		}
		if v, ok := r.votes.Cancel(); ok {
			r.stopVoteTimer()
			r.broadcast(GameEvent{Type: EventVoteUpdated, Payload: map[string]interface{}{
				"vote": engine.VoteTally{VoteID: v.ID, Type: v.Type, Initiator: v.Initiator, Ballots: v.Ballots, Outcome: engine.VoteCancelled, ExpiresAt: v.ExpiresAt},
			}})
		}
		board, err := r.game.RotateForDeadlock(r.settings.RotationCeiling)
		if err != nil {
			log.Printf("Error: Game %s: Deadlock rotation failed: %v", r.ID, err)
			return
		}
		if board != nil {
			log.Printf("Game %s: Rotation ceiling reached in round %d; ending round.", r.ID, board.Round)
			r.finishRound(board)
			return
		}
		r.broadcastRotation("deadlock")
	}
}

func (r *Room) broadcastRotation(reason string) {
	hands := make(map[string]interface{}, len(r.players))
	for _, p := range r.players {
		if ps := r.game.Player(pid(p.ID)); ps != nil {
			hands[p.ID.String()] = ps.TopCardsInDeck()
		}
	}
	r.broadcast(GameEvent{Type: EventDecksRotated, Payload: map[string]interface{}{
		"reason":    reason,
		"rotations": r.game.DeadlockRotations,
		"topCards":  hands,
	}})
	r.logAction(uuid.Nil, "decks_rotated", map[string]interface{}{"reason": reason})
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Snapshot returns the room as seen by forUser.
func (r *Room) Snapshot(forUser uuid.UUID) (RoomView, error) {
	var view RoomView
	err := r.do(func() { view = r.GetRoomView(forUser) })
	return view, err
}

// RequestResync sends a fresh syncState to the player.
func (r *Room) RequestResync(playerID uuid.UUID) error {
	return r.do(func() { r.sendSyncState(playerID) })
}

// LegalMoves lists the productive moves open to the player right now.
func (r *Room) LegalMoves(playerID uuid.UUID) ([]engine.MoveProposal, error) {
	var moves []engine.MoveProposal
	err := r.do(func() { moves = r.game.LegalMoves(pid(playerID)) })
	return moves, err
}

// HostID returns the current host.
func (r *Room) HostID() (uuid.UUID, error) {
	var id uuid.UUID
	err := r.do(func() { id = r.hostID })
	return id, err
}

// RoomInfo is the public summary used for listings.
type RoomInfo struct {
	ID          uuid.UUID    `json:"id"`
	Code        string       `json:"code"`
	Phase       engine.Phase `json:"phase"`
	Players     int          `json:"players"`
	MaxPlayers  int          `json:"maxPlayers"`
	PointsToWin int          `json:"pointsToWin"`
	Private     bool         `json:"private"`
}

// Info summarises the room.
func (r *Room) Info() (RoomInfo, error) {
	var info RoomInfo
	err := r.do(func() {
		info = RoomInfo{
			ID:          r.ID,
			Code:        r.Code,
			Phase:       r.game.Phase,
			Players:     len(r.players),
			MaxPlayers:  r.settings.MaxPlayers,
			PointsToWin: r.game.PointsToWin,
			Private:     r.HasPassword(),
		}
	})
	return info, err
}

// ---------------------------------------------------------------------------
// Event helpers. Worker only.
// ---------------------------------------------------------------------------

// broadcast stamps the next room timestamp and fans the event out.
func (r *Room) broadcast(ev GameEvent) {
	r.seq++
	ev.Seq = r.seq
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	} else {
		log.Printf("Warning: Game %s: BroadcastFn is nil, cannot broadcast event type %s.", r.ID, ev.Type)
	}
}

// sendTo delivers a private event stamped with the current timestamp to a connected player.
func (r *Room) sendTo(playerID uuid.UUID, ev GameEvent) {
	ev.Seq = r.seq
	if r.BroadcastToPlayerFn == nil {
		log.Printf("Warning: Game %s: BroadcastToPlayerFn is nil, cannot send event type %s to player %s.", r.ID, ev.Type, playerID)
		return
	}
	if p := r.getPlayerByID(playerID); p != nil && p.Connected {
		r.BroadcastToPlayerFn(playerID, ev)
	}
}

// refuse reports a rejected request to the requester only.
func (r *Room) refuse(playerID uuid.UUID, err error) {
	r.sendTo(playerID, GameEvent{
		Type:    EventError,
		Payload: map[string]interface{}{"code": errorCode(err), "message": err.Error()},
	})
}

func (r *Room) sendSyncState(playerID uuid.UUID) {
	view := r.GetRoomView(playerID)
	r.sendTo(playerID, GameEvent{Type: EventSyncState, State: &view})
}

func (r *Room) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func pid(id uuid.UUID) engine.PlayerID { return engine.PlayerID(id.String()) }

func eventUser(p *models.Player) *EventUser {
	return &EventUser{ID: p.ID, Username: p.Username()}
}

// errorCode maps an error to the machine-readable code carried by error events.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotHost):
		return "notHost"
	case errors.Is(err, ErrNotSeated):
		return "notSeated"
	case errors.Is(err, engine.ErrWrongPhase):
		return "wrongPhase"
	case errors.Is(err, engine.ErrRoomFull):
		return "roomFull"
	case errors.Is(err, engine.ErrNotEnoughPlayers):
		return "notEnoughPlayers"
	case errors.Is(err, engine.ErrSqueakNotReady):
		return "squeakNotReady"
	case errors.Is(err, engine.ErrVoteLockedOut):
		return "voteLockedOut"
	case errors.Is(err, engine.ErrVoteConflict):
		return "voteConflict"
	case errors.Is(err, engine.ErrNotEligible):
		return "notEligible"
	case errors.Is(err, engine.ErrNoActiveVote):
		return "noActiveVote"
	case errors.Is(err, engine.ErrInvalidMove):
		return "invalidMove"
	}
	return "error"
}
