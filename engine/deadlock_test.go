package engine

import (
	"reflect"
	"testing"
)

// stuckLayout gives both players black fives in hand and four unplayable squeak stacks
// on an empty board, so nobody can move.
func stuckLayout(t *testing.T) *Game {
	t.Helper()
	g := newStartedGame(t)
	rig(g.Players["a"], cards("5C", "6C", "7C", "8C"), 0, cards("2H"),
		cards("KC"), cards("KS"), cards("QC"), cards("QS"))
	rig(g.Players["b"], cards("5S", "6S", "7S", "8S"), 0, cards("2D"),
		cards("KC"), cards("KS"), cards("QC"), cards("QS"))
	return g
}

func TestIsDeadlockedWhenNobodyCanMove(t *testing.T) {
	g := stuckLayout(t)
	if !g.IsDeadlocked() {
		t.Fatal("IsDeadlocked = false, want true")
	}
	if moves := g.LegalMoves("a"); len(moves) != 0 {
		t.Errorf("LegalMoves(a) = %v, want none", moves)
	}
}

// TestDeadlockConsidersReachableHandCards verifies cards that can surface by drawing count
// as moves, while cards the three-card window skips over do not.
func TestDeadlockConsidersReachableHandCards(t *testing.T) {
	g := stuckLayout(t)
	a := g.Players["a"]

	// Positions 2 and 3 surface when drawing four cards; position 1 never does.
	a.Deck = cards("5C", "AH", "6C", "7C")
	if !g.IsDeadlocked() {
		t.Fatal("an Ace at an unreachable position should not break the deadlock")
	}

	a.Deck = cards("5C", "6C", "7C", "AH")
	if g.IsDeadlocked() {
		t.Fatal("an Ace at a reachable position should break the deadlock")
	}
}

func TestRotateDecksResolvesDeadlock(t *testing.T) {
	g := stuckLayout(t)
	g.Players["a"].Deck = cards("6C", "AH", "7C", "8C")

	rotations := 0
	for g.IsDeadlocked() && rotations < 10 {
		if err := g.RotateDecks(); err != nil {
			t.Fatalf("RotateDecks: %v", err)
		}
		rotations++
	}
	if g.IsDeadlocked() {
		t.Fatalf("still deadlocked after %d rotations", rotations)
	}
	if rotations != 2 {
		t.Errorf("rotations = %d, want 2", rotations)
	}
}

func TestRotateDecksMovesFirstCardToBottom(t *testing.T) {
	g := stuckLayout(t)
	if err := g.RotateDecks(); err != nil {
		t.Fatalf("RotateDecks: %v", err)
	}
	if got, want := g.Players["a"].Deck, cards("6C", "7C", "8C", "5C"); !reflect.DeepEqual(got, want) {
		t.Errorf("deck = %v, want %v", got, want)
	}
}

func TestDeadlockIgnoresDisconnectedPlayers(t *testing.T) {
	g := stuckLayout(t)
	g.Players["b"].Deck = cards("AS")
	g.Players["b"].DeckCursor = 1
	if g.IsDeadlocked() {
		t.Fatal("b has a playable Ace, want no deadlock")
	}

	_ = g.SetConnected("b", false)
	if !g.IsDeadlocked() {
		t.Error("only connected players should be considered")
	}

	_ = g.SetConnected("a", false)
	if g.IsDeadlocked() {
		t.Error("a room with nobody connected is not deadlocked")
	}
}

func TestLegalMovesAceUsesOneEmptyCell(t *testing.T) {
	g := stuckLayout(t)
	a := g.Players["a"]
	a.Deck = cards("AH")
	a.DeckCursor = 1

	moves := g.LegalMoves("a")
	if len(moves) != 1 {
		t.Fatalf("LegalMoves = %v, want one board move", moves)
	}
	if moves[0].Dest.Kind != DestBoard || moves[0].Dest.Coord != (Coord{}) {
		t.Errorf("move = %+v, want board (0,0)", moves[0])
	}
}

// TestLegalMovesSlideNeedsProgress verifies slides only count when they empty a stack that
// can refill, or expose a card that plays to the board.
func TestLegalMovesSlideNeedsProgress(t *testing.T) {
	g := stuckLayout(t)
	a := g.Players["a"]
	// 8H could slide onto 9C, exposing 9S which has nowhere to go.
	rig(a, nil, 0, nil, cards("9S", "8H"), cards("9C"), cards("KC"), cards("KS"))
	if moves := g.LegalMoves("a"); len(moves) != 0 {
		t.Errorf("unproductive slide offered: %v", moves)
	}

	// With a squeak deck to refill from, sliding a whole stack is progress.
	rig(a, nil, 0, cards("2D"), cards("8H"), cards("9C"), cards("KC"), cards("KS"))
	moves := g.LegalMoves("a")
	if len(moves) != 1 || moves[0].Dest.Kind != DestSqueakStack || moves[0].Dest.Index != 1 {
		t.Errorf("LegalMoves = %+v, want slide 8H onto stack 1", moves)
	}
}

func TestRotateForDeadlockCeiling(t *testing.T) {
	g := stuckLayout(t)
	for i := 0; i < 3; i++ {
		board, err := g.RotateForDeadlock(3)
		if err != nil || board != nil {
			t.Fatalf("rotation %d = %v, %v; want a plain rotation", i, board, err)
		}
	}
	if g.DeadlockRotations != 3 {
		t.Errorf("DeadlockRotations = %d, want 3", g.DeadlockRotations)
	}
	board, err := g.RotateForDeadlock(3)
	if err != nil {
		t.Fatalf("RotateForDeadlock: %v", err)
	}
	if board == nil || board.Squeaker != "" {
		t.Fatalf("board = %+v, want a round ended without a squeaker", board)
	}
	if g.Phase != PhaseRoundOver {
		t.Errorf("Phase = %s, want roundOver", g.Phase)
	}
}

func TestSqueakReadyBreaksDeadlock(t *testing.T) {
	g := stuckLayout(t)
	g.Players["a"].SqueakDeck = nil
	if g.IsDeadlocked() {
		t.Fatal("a can squeak, want no deadlock")
	}
	_ = g.SetConnected("a", false)
	if !g.IsDeadlocked() {
		t.Error("a disconnected squeaker should not hold the room open")
	}
}

func TestApplyMoveResetsDeadlockRotations(t *testing.T) {
	g := stuckLayout(t)
	for i := 0; i < 2; i++ {
		if _, err := g.RotateForDeadlock(3); err != nil {
			t.Fatalf("RotateForDeadlock: %v", err)
		}
	}
	a := g.Players["a"]
	a.Deck = cards("AH")
	a.DeckCursor = 1
	if _, err := g.ApplyMove(MoveProposal{
		PlayerID: "a",
		Card:     MustParseCard("AH"),
		Origin:   Origin{Kind: OriginDeckHand},
		Dest:     Destination{Kind: DestBoard},
	}); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if g.DeadlockRotations != 0 {
		t.Fatalf("DeadlockRotations = %d, want 0 after a move", g.DeadlockRotations)
	}
	board, err := g.RotateForDeadlock(3)
	if err != nil || board != nil {
		t.Errorf("rotation after a move = %v, %v; want a plain rotation", board, err)
	}
}
