// internal/game/round.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
	"github.com/michaelongaro/Squeak-sub000/internal/cache"
	"github.com/michaelongaro/Squeak-sub000/internal/database"
)

// startRound deals and announces a round. Worker only.
func (r *Room) startRound() error {
	if err := r.game.StartRound(); err != nil {
		return err
	}
	r.votes.Reset()
	r.stopVoteTimer()
	r.lastScoreboard = nil
	log.Printf("Game %s: Round %d started with %d players.", r.ID, r.game.Round, len(r.players))
	r.logAction(uuid.Nil, "round_start", map[string]interface{}{"round": r.game.Round})

	r.broadcast(GameEvent{Type: EventRoundStarted, Payload: map[string]interface{}{
		"round": r.game.Round,
		"board": r.game.Board,
	}})
	// Each player sees their own deck, so every seat gets a private snapshot.
	for _, p := range r.players {
		r.sendSyncState(p.ID)
	}
	r.checkDeadlock()
	return nil
}

// finishRound broadcasts the scoreboard, persists it and either ends the game or schedules
// the next deal.
func (r *Room) finishRound(board *engine.Scoreboard) {
	if v, ok := r.votes.Cancel(); ok {
		log.Debugf("Game %s: Dropping vote %d at round end.", r.ID, v.ID)
	}
	r.stopVoteTimer()
	r.lastScoreboard = board

	r.broadcast(GameEvent{Type: EventRoundOver, Payload: map[string]interface{}{"scoreboard": board}})
	r.logAction(uuid.Nil, "round_over", map[string]interface{}{
		"round":    board.Round,
		"squeaker": board.Squeaker,
	})
	r.persistRound(board)

	if board.GameOver {
		log.Printf("Game %s: Game over after round %d. Winner %s.", r.ID, board.Round, board.Winner)
		r.broadcast(GameEvent{Type: EventGameOver, Payload: map[string]interface{}{
			"winner":     board.Winner,
			"scoreboard": board,
		}})
		r.logAction(uuid.Nil, "game_over", map[string]interface{}{"winner": board.Winner})
		r.persistGame(board)
		return
	}

	r.intermissionGen++
	gen := r.intermissionGen
	r.intermission = time.AfterFunc(r.settings.RoundIntermission, func() {
		r.post(func() { r.intermissionOver(gen) })
	})
}

func (r *Room) intermissionOver(gen uint64) {
	if gen != r.intermissionGen || r.game.Phase != engine.PhaseRoundOver {
		return
	}
	if err := r.startRound(); err != nil {
		log.Printf("Error: Game %s: Starting round %d: %v", r.ID, r.game.Round+1, err)
	}
}

// ---------------------------------------------------------------------------
// Votes
// ---------------------------------------------------------------------------

// StartVote opens a unanimous vote. The initiator's ballot counts as agree.
func (r *Room) StartVote(playerID uuid.UUID, t engine.VoteType) (engine.VoteTally, error) {
	var (
		tally engine.VoteTally
		err   error
	)
	doErr := r.do(func() {
		if r.game.Phase != engine.PhasePlaying {
			err = engine.ErrWrongPhase
			r.refuse(playerID, err)
			return
		}
		tally, err = r.votes.Start(t, pid(playerID), r.game.ConnectedPlayers(), r.now())
		if err != nil {
			r.refuse(playerID, err)
			return
		}
		log.Printf("Game %s: Player %s started a %s vote.", r.ID, playerID, t)
		r.logAction(playerID, "vote_start", map[string]interface{}{"type": t})
		if tally.Outcome == engine.VotePending {
			r.armVoteTimer(tally.VoteID)
		}
		r.onVoteTally(tally)
	})
	if doErr != nil {
		return engine.VoteTally{}, doErr
	}
	return tally, err
}

// CastVote records a ballot on the active vote.
func (r *Room) CastVote(playerID uuid.UUID, ballot engine.Ballot) (engine.VoteTally, error) {
	var (
		tally engine.VoteTally
		err   error
	)
	doErr := r.do(func() {
		tally, err = r.votes.Cast(pid(playerID), ballot, r.game.ConnectedPlayers(), r.now())
		if err != nil {
			r.refuse(playerID, err)
			return
		}
		r.logAction(playerID, "vote_cast", map[string]interface{}{"ballot": ballot})
		r.onVoteTally(tally)
	})
	if doErr != nil {
		return engine.VoteTally{}, doErr
	}
	return tally, err
}

func (r *Room) armVoteTimer(id uint64) {
	r.stopVoteTimer()
	r.voteTimer = time.AfterFunc(r.settings.VoteTimeout, func() {
		r.post(func() {
			if tally, ok := r.votes.Expire(id, r.game.ConnectedPlayers(), r.now()); ok {
				log.Printf("Game %s: Vote %d expired.", r.ID, id)
				r.onVoteTally(tally)
			}
		})
	})
}

func (r *Room) stopVoteTimer() {
	if r.voteTimer != nil {
		r.voteTimer.Stop()
		r.voteTimer = nil
	}
}

// onVoteTally broadcasts a tally and applies the effect of a passed vote.
func (r *Room) onVoteTally(tally engine.VoteTally) {
	r.broadcast(GameEvent{Type: EventVoteUpdated, Payload: map[string]interface{}{"vote": tally}})
	switch tally.Outcome {
	case engine.VotePending:
		return
	case engine.VoteRejected:
		r.stopVoteTimer()
		r.logAction(uuid.Nil, "vote_rejected", map[string]interface{}{"type": tally.Type})
		return
	}

	r.stopVoteTimer()
	r.logAction(uuid.Nil, "vote_passed", map[string]interface{}{"type": tally.Type})
	switch tally.Type {
	case engine.VoteRotateDecks:
		if err := r.game.RotateDecks(); err != nil {
			log.Printf("Error: Game %s: Rotating decks after vote: %v", r.ID, err)
			return
		}
		r.broadcastRotation("vote")
		r.checkDeadlock()
	case engine.VoteFinishRound:
		board, err := r.game.EndRound("")
		if err != nil {
			log.Printf("Error: Game %s: Finishing round after vote: %v", r.ID, err)
			return
		}
		r.finishRound(board)
	}
}

// ---------------------------------------------------------------------------
// Historian and persistence
// ---------------------------------------------------------------------------

// logAction appends a record to the room's action history in Redis. Publishing happens off
// the worker so a slow Redis never stalls arbitration.
func (r *Room) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        r.ID,
		ActionIndex:   r.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     r.now().UnixMilli(),
	}
	if cache.Rdb == nil {
		return
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Printf("Error: Game %s: Failed publishing action %d ('%s') to Redis: %v", r.ID, rec.ActionIndex, rec.ActionType, err)
		}
	}(record)
}

func (r *Room) persistRound(board *engine.Scoreboard) {
	if database.DB == nil {
		return
	}
	rec := database.RoundRecord{RoomID: r.ID, Round: board.Round, Scoreboard: board}
	if board.Squeaker != "" {
		rec.SqueakerID, _ = uuid.Parse(string(board.Squeaker))
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.StoreRoundResult(ctx, rec); err != nil {
			log.Printf("Error: Game %s: Storing round %d: %v", r.ID, rec.Round, err)
		}
	}()
}

func (r *Room) persistGame(board *engine.Scoreboard) {
	if database.DB == nil {
		return
	}
	winner, _ := uuid.Parse(string(board.Winner))
	scores := make(map[uuid.UUID]int, len(board.Lines))
	for _, l := range board.Lines {
		if id, err := uuid.Parse(string(l.PlayerID)); err == nil {
			scores[id] = l.NewScore
		}
	}
	rounds := board.Round
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.StoreGameResult(ctx, r.ID, winner, rounds, scores); err != nil {
			log.Printf("Error: Game %s: Storing game result: %v", r.ID, err)
		}
	}()
}
