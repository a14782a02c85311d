package engine

import (
	"fmt"
	"sort"
)

// Scoring constants.
const (
	SqueakBonus       = 10
	SqueakCardPenalty = 1
)

// ScoreLine is one player's row in the end-of-round scoreboard.
type ScoreLine struct {
	PlayerID    PlayerID `json:"playerId"`
	OldScore    int      `json:"oldScore"`
	NewScore    int      `json:"newScore"`
	OldRank     int      `json:"oldRank"`
	NewRank     int      `json:"newRank"`
	RoundScore  int      `json:"roundScore"` // cards placed on the board
	Modifier    int      `json:"modifier"`   // squeak bonus or squeak-stack penalty
	CardsPlaced []Card   `json:"cardsPlaced"`
	Squeaked    bool     `json:"squeaked"`
}

// Delta is the change applied to the total this round.
func (l ScoreLine) Delta() int { return l.RoundScore + l.Modifier }

// Scoreboard is emitted once per round, rows ordered by new rank.
type Scoreboard struct {
	Round    int         `json:"round"`
	Squeaker PlayerID    `json:"squeaker,omitempty"`
	Lines    []ScoreLine `json:"lines"`
	GameOver bool        `json:"gameOver"`
	Winner   PlayerID    `json:"winner,omitempty"`
}

// Line returns the row for id.
func (s *Scoreboard) Line(id PlayerID) (ScoreLine, bool) {
	for _, l := range s.Lines {
		if l.PlayerID == id {
			return l, true
		}
	}
	return ScoreLine{}, false
}

// Squeak ends the round in favour of id. The player's squeak deck must be empty.
func (g *Game) Squeak(id PlayerID) (*Scoreboard, error) {
	if g.Phase != PhasePlaying {
		return nil, fmt.Errorf("squeak: %w", ErrWrongPhase)
	}
	p := g.Players[id]
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if len(p.SqueakDeck) > 0 {
		return nil, ErrSqueakNotReady
	}
	return g.EndRound(id)
}

// EndRound scores the round. squeaker may be empty when the round ends without a squeak, in
// which case nobody receives the bonus and everybody pays the squeak-stack penalty.
func (g *Game) EndRound(squeaker PlayerID) (*Scoreboard, error) {
	if g.Phase != PhasePlaying {
		return nil, fmt.Errorf("end round: %w", ErrWrongPhase)
	}
	if squeaker != "" {
		if p := g.Players[squeaker]; p == nil {
			return nil, ErrUnknownPlayer
		}
		g.Players[squeaker].Squeaked = true
	}

	lines := make([]ScoreLine, 0, len(g.Standings))
	for i, id := range g.Standings {
		p := g.Players[id]
		line := ScoreLine{
			PlayerID:    id,
			OldScore:    p.Score,
			OldRank:     i + 1,
			RoundScore:  len(p.CardsPlaced),
			CardsPlaced: append([]Card(nil), p.CardsPlaced...),
			Squeaked:    id == squeaker,
		}
		if line.Squeaked {
			line.Modifier = SqueakBonus
		} else {
			line.Modifier = -SqueakCardPenalty * p.SqueakHandCount()
		}
		line.NewScore = line.OldScore + line.Delta()
		p.Score = line.NewScore
		lines = append(lines, line)
	}

	// Stable: ties keep their prior rank order.
	sort.SliceStable(lines, func(a, b int) bool { return lines[a].NewScore > lines[b].NewScore })
	g.Standings = g.Standings[:0]
	for i := range lines {
		lines[i].NewRank = i + 1
		g.Standings = append(g.Standings, lines[i].PlayerID)
	}

	board := &Scoreboard{Round: g.Round, Squeaker: squeaker, Lines: lines}
	for _, l := range lines {
		if l.NewScore >= g.PointsToWin {
			// lines is sorted, so the first qualifying row is the highest score.
			board.GameOver = true
			board.Winner = l.PlayerID
			break
		}
	}

	if board.GameOver {
		g.Phase = PhaseGameOver
		g.Winner = board.Winner
	} else {
		g.Phase = PhaseRoundOver
	}
	return board, nil
}
