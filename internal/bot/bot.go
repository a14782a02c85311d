// Package bot drives server-side players. A bot is an ordinary seat: it reads the same
// events a client does and submits proposals through the same room methods.
package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
	"github.com/michaelongaro/Squeak-sub000/internal/game"
	"github.com/michaelongaro/Squeak-sub000/internal/models"
	"github.com/michaelongaro/Squeak-sub000/internal/reconcile"
)

// Difficulty sets how quickly a bot acts and how well it picks moves.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty accepts the difficulty names case-insensitively. Empty means Medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Medium, nil
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("unknown bot difficulty %q", s)
}

// ThinkDelay is the pause between a bot's actions.
func (d Difficulty) ThinkDelay() time.Duration {
	switch d {
	case Easy:
		return 2500 * time.Millisecond
	case Hard:
		return 700 * time.Millisecond
	}
	return 1500 * time.Millisecond
}

// Room is the part of *game.Room a bot uses.
type Room interface {
	Subscribe(playerID uuid.UUID, sink game.Sink) func()
	JoinBot(hostID uuid.UUID, bot *models.User) error
	Snapshot(forUser uuid.UUID) (game.RoomView, error)
	LegalMoves(playerID uuid.UUID) ([]engine.MoveProposal, error)
	ProposeCardDrop(playerID uuid.UUID, prop engine.MoveProposal) (*engine.MoveResult, error)
	DrawFromDeck(playerID uuid.UUID) (*engine.Card, error)
	PressSqueak(playerID uuid.UUID) error
	CastVote(playerID uuid.UUID, ballot engine.Ballot) (engine.VoteTally, error)
	RequestResync(playerID uuid.UUID) error
	Done() <-chan struct{}
}

// Bot is one server-driven seat.
type Bot struct {
	User       *models.User
	Difficulty Difficulty
	ThinkDelay time.Duration

	room    Room
	events  chan game.GameEvent
	queue   *reconcile.Queue[game.GameEvent]
	flights *reconcile.Tracker
	rng     *rand.Rand
	now     func() time.Time
}

// New builds a bot for room without seating it.
func New(room Room, difficulty Difficulty, seed int64) *Bot {
	id := uuid.New()
	return &Bot{
		User:       &models.User{ID: id, Username: "Bot-" + id.String()[:4], IsBot: true},
		Difficulty: difficulty,
		ThinkDelay: difficulty.ThinkDelay(),
		room:       room,
		events:     make(chan game.GameEvent, 128),
		queue:      reconcile.NewQueue[game.GameEvent](0),
		flights:    reconcile.NewTracker(),
		rng:        rand.New(rand.NewSource(seed)),
		now:        time.Now,
	}
}

// Spawn seats a new bot on behalf of hostID and starts it. The bot stops when ctx ends or
// the room closes.
func Spawn(ctx context.Context, room Room, hostID uuid.UUID, difficulty Difficulty) (*Bot, error) {
	b := New(room, difficulty, time.Now().UnixNano())
	if err := b.Start(ctx, hostID); err != nil {
		return nil, err
	}
	return b, nil
}

// Start subscribes, joins and launches the bot loop.
func (b *Bot) Start(ctx context.Context, hostID uuid.UUID) error {
	unsubscribe := b.room.Subscribe(b.User.ID, b.deliver)
	if err := b.room.JoinBot(hostID, b.User); err != nil {
		unsubscribe()
		return fmt.Errorf("seat bot: %w", err)
	}
	log.Infof("Bot %s (%s) joined with difficulty %s.", b.User.ID, b.User.Username, b.Difficulty)
	go func() {
		defer unsubscribe()
		b.run(ctx)
	}()
	return nil
}

// deliver runs on the room worker and must not block or call back into the room.
func (b *Bot) deliver(ev game.GameEvent) {
	select {
	case b.events <- ev:
	default:
		// Dropped; the queue will notice the gap and ask for a resync.
	}
}

func (b *Bot) run(ctx context.Context) {
	ticker := time.NewTicker(b.ThinkDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.room.Done():
			return
		case ev := <-b.events:
			b.receive(ev)
			b.drain()
		case <-ticker.C:
			b.flights.SettleOlderThan(b.now(), b.ThinkDelay/2)
			b.drain()
			b.act()
		}
	}
}

// receive files an event into the reconciliation queue. Snapshots reset it.
func (b *Bot) receive(ev game.GameEvent) {
	switch {
	case ev.Type == game.EventSyncState && ev.State != nil:
		b.queue.Reset(ev.State.Seq)
		b.flights.Reset()
	case ev.Type.Public():
		b.queue.Push(ev.Seq, ev)
	}
}

func (b *Bot) drain() {
	ready, resync := b.queue.Ready(b.now(), b.flights.Busy())
	for _, ev := range ready {
		b.apply(ev)
	}
	if resync {
		log.Debugf("Bot %s: Event gap, requesting resync.", b.User.ID)
		if err := b.room.RequestResync(b.User.ID); err != nil {
			log.Debugf("Bot %s: Resync failed: %v", b.User.ID, err)
		}
	}
}

func (b *Bot) apply(ev game.GameEvent) {
	if ev.Type != game.EventVoteUpdated {
		return
	}
	tally, ok := ev.Payload["vote"].(engine.VoteTally)
	if !ok || tally.Outcome != engine.VotePending {
		return
	}
	me := engine.PlayerID(b.User.ID.String())
	if _, voted := tally.Ballots[me]; voted {
		return
	}
	// Bots never stand in the way of a vote.
	if _, err := b.room.CastVote(b.User.ID, engine.BallotAgree); err != nil {
		log.Debugf("Bot %s: Casting vote %d: %v", b.User.ID, tally.VoteID, err)
	}
}

// act takes at most one game action.
func (b *Bot) act() {
	if b.flights.Busy() {
		return
	}
	view, err := b.room.Snapshot(b.User.ID)
	if err != nil || view.Phase != engine.PhasePlaying {
		return
	}
	var self *game.PlayerView
	for i := range view.Players {
		if view.Players[i].PlayerID == b.User.ID {
			self = &view.Players[i]
		}
	}
	if self == nil {
		return
	}
	if self.SqueakDeckCount == 0 {
		if err := b.room.PressSqueak(b.User.ID); err == nil {
			return
		}
	}

	moves, err := b.room.LegalMoves(b.User.ID)
	if err != nil {
		return
	}
	if len(moves) == 0 || (b.Difficulty == Easy && b.rng.Intn(3) == 0) {
		if _, err := b.room.DrawFromDeck(b.User.ID); err != nil {
			log.Debugf("Bot %s: Draw failed: %v", b.User.ID, err)
		}
		return
	}

	move := b.choose(moves)
	now := b.now()
	if err := b.flights.Propose(move, now); err != nil {
		return
	}
	_, err = b.room.ProposeCardDrop(b.User.ID, move)
	_ = b.flights.Resolve(move.Card, err == nil, now)
}

// choose picks a move. Better bots empty their squeak stacks first, since that is what
// ends the round in their favour.
func (b *Bot) choose(moves []engine.MoveProposal) engine.MoveProposal {
	if b.Difficulty == Easy {
		return moves[b.rng.Intn(len(moves))]
	}
	var best []engine.MoveProposal
	for _, m := range moves {
		if m.Origin.Kind == engine.OriginSqueakStack && m.Dest.Kind == engine.DestBoard {
			best = append(best, m)
		}
	}
	if len(best) == 0 && b.Difficulty == Hard {
		for _, m := range moves {
			if m.Origin.Kind == engine.OriginSqueakStack {
				best = append(best, m)
			}
		}
	}
	if len(best) == 0 {
		best = moves
	}
	return best[b.rng.Intn(len(best))]
}
