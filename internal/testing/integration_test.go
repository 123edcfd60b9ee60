// Package testing runs full-stack scenarios over real WebSocket
// connections with the game drivers on a mock clock, so turn timeouts,
// setup timeouts and time-bank forfeits can be stepped deterministically.
package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/server"
)

func TestTurnTimeoutAutoCalls(t *testing.T) {
	h := NewHarness(t, game.Config{
		Variant:          bingo.Quick25,
		MaxPlayers:       2,
		TurnLimitSeconds: 30,
	})

	alice := h.Dial("alice")
	bob := h.Dial("bob")

	gameID := alice.CreateAndJoin(server.CreateGameData{})
	bob.Join(gameID)

	alice.Ready(gameID)
	bob.Ready(gameID)

	g := alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusPlaying })
	firstHolder := g.CurrentTurn
	require.NotEmpty(t, firstHolder)

	// Nobody calls; the driver calls a random available number when the
	// turn limit lapses, and the turn rotates.
	h.Advance(30 * time.Second)
	g = alice.WaitState(func(g *game.Game) bool { return len(g.CalledNumbers) == 1 })
	assert.NotEqual(t, firstHolder, g.CurrentTurn)

	h.Advance(30 * time.Second)
	g = alice.WaitState(func(g *game.Game) bool { return len(g.CalledNumbers) == 2 })
	assert.Equal(t, firstHolder, g.CurrentTurn)
}

func TestSetupTimeoutDealsBoards(t *testing.T) {
	h := NewHarness(t, game.Config{
		Variant:           bingo.Quick25,
		MaxPlayers:        2,
		SetupLimitSeconds: 120,
	})

	alice := h.Dial("alice")
	bob := h.Dial("bob")

	gameID := alice.CreateAndJoin(server.CreateGameData{})
	bob.Join(gameID)

	alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusSetup })

	// Neither player confirms; the deadline deals for both
	h.Advance(120 * time.Second)

	g := alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusPlaying })
	for id, p := range g.Players {
		assert.True(t, p.Board.Valid(bingo.Quick25.PoolSize()), "player %s should have a dealt board", id)
	}
}

func TestTimeBankForfeitAndRematch(t *testing.T) {
	h := NewHarness(t, game.Config{
		Variant:         bingo.Quick25,
		MaxPlayers:      2,
		TimeBankSeconds: 60,
	})

	alice := h.Dial("alice")
	bob := h.Dial("bob")

	gameID := alice.CreateAndJoin(server.CreateGameData{})
	bob.Join(gameID)

	alice.Ready(gameID)
	bob.Ready(gameID)

	g := alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusPlaying })
	holder := g.CurrentTurn

	// Idling past the whole bank loses the game
	h.Advance(60 * time.Second)
	g = alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusFinished })
	require.NotEqual(t, holder, g.Winner)
	require.Contains(t, g.Players, g.Winner)

	// A rematch keeps the roster but resets boards and banks
	alice.Send(server.MessageTypeResetGame, server.ResetGameData{GameID: gameID})
	g = alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusSetup })
	assert.Len(t, g.Players, 2)
	for _, p := range g.Players {
		assert.False(t, p.Ready)
		assert.Empty(t, p.Board)
	}
	assert.Empty(t, g.CalledNumbers)
	assert.Empty(t, g.Winner)
}

func TestWinningCallFinishesGame(t *testing.T) {
	h := NewHarness(t, game.Config{
		Variant:    bingo.Quick25,
		MaxPlayers: 2,
	})

	alice := h.Dial("alice")
	bob := h.Dial("bob")

	gameID := alice.CreateAndJoin(server.CreateGameData{})
	bob.Join(gameID)

	// Fixed boards so the winning line is known: alice's first row is
	// 1-5. Bob gets the same layout with 1 and 6 swapped, which leaves
	// him no line inside the called set.
	aliceBoard := make([]int, bingo.BoardSize)
	for i := range aliceBoard {
		aliceBoard[i] = i + 1
	}
	bobBoard := append([]int(nil), aliceBoard...)
	bobBoard[0], bobBoard[5] = bobBoard[5], bobBoard[0]

	alice.Send(server.MessageTypeConfirmBoard, server.ConfirmBoardData{GameID: gameID, Board: aliceBoard})
	bob.Send(server.MessageTypeConfirmBoard, server.ConfirmBoardData{GameID: gameID, Board: bobBoard})

	g := alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusPlaying })

	// Walk alice's first row; whoever holds the turn calls the next one
	targets := []int{1, 2, 3, 4, 5}
	for g.Status == game.StatusPlaying && len(g.CalledNumbers) < len(targets) {
		caller := alice
		if g.CurrentTurn == bob.PlayerID {
			caller = bob
		}
		caller.Send(server.MessageTypeCallNumber, server.CallNumberData{
			GameID: gameID,
			Number: targets[len(g.CalledNumbers)],
		})

		want := len(g.CalledNumbers) + 1
		g = alice.WaitState(func(g *game.Game) bool {
			return len(g.CalledNumbers) >= want || g.Status == game.StatusFinished
		})
	}

	// A call only wins for the caller's own board. If bob called the
	// last number of alice's row the game is still on and alice has to
	// claim it herself.
	if g.Status != game.StatusFinished {
		alice.Send(server.MessageTypeDeclareBingo, server.DeclareBingoData{GameID: gameID})
		g = alice.WaitState(func(g *game.Game) bool { return g.Status == game.StatusFinished })
	}

	require.Equal(t, game.StatusFinished, g.Status)
	assert.Equal(t, alice.PlayerID, g.Winner)
}
