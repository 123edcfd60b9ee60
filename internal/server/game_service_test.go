package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/gameid"
	"github.com/lox/bingoforbots/internal/store"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestService(t *testing.T) (*GameService, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	defaults := game.Config{
		Variant:    bingo.Quick25,
		MaxPlayers: 2,
	}
	gs := NewGameService(s, quartz.NewReal(), defaults, 0, testLogger())
	t.Cleanup(gs.Close)
	return gs, s
}

func loadGame(t *testing.T, s store.Store, id string) *game.Game {
	t.Helper()
	snap, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	var g game.Game
	require.NoError(t, snap.Decode(&g))
	return &g
}

func sequentialBoard() bingo.Board {
	b := make(bingo.Board, bingo.BoardSize)
	for i := range b {
		b[i] = i + 1
	}
	return b
}

func TestGameServiceCreateAndList(t *testing.T) {
	ctx := context.Background()
	gs, s := newTestService(t)

	id, err := gs.CreateGame(ctx, CreateGameData{})
	require.NoError(t, err)
	require.NoError(t, gameid.Validate(id))

	g := loadGame(t, s, id)
	assert.Equal(t, game.StatusWaiting, g.Status)
	assert.Equal(t, bingo.Quick25, g.Config.Variant)

	games, err := gs.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, id, games[0].GameID)
	assert.Equal(t, "waiting", games[0].Status)
}

func TestGameServiceCreateOverrides(t *testing.T) {
	ctx := context.Background()
	gs, s := newTestService(t)

	id, err := gs.CreateGame(ctx, CreateGameData{
		Variant:          "classic75",
		TurnLimitSeconds: 10,
		TimeBankSeconds:  120,
	})
	require.NoError(t, err)

	g := loadGame(t, s, id)
	assert.Equal(t, bingo.Classic75, g.Config.Variant)
	assert.Equal(t, 10, g.Config.TurnLimitSeconds)
	assert.Equal(t, 120, g.Config.TimeBankSeconds)

	_, err = gs.CreateGame(ctx, CreateGameData{Variant: "blackout"})
	assert.Error(t, err)
}

func TestGameServiceFullPassage(t *testing.T) {
	ctx := context.Background()
	gs, s := newTestService(t)

	id, err := gs.CreateGame(ctx, CreateGameData{})
	require.NoError(t, err)

	require.NoError(t, gs.JoinGame(ctx, id, "a", "Alice"))
	require.NoError(t, gs.JoinGame(ctx, id, "b", "Bob"))
	assert.Equal(t, game.StatusSetup, loadGame(t, s, id).Status)

	require.NoError(t, gs.ConfirmBoard(ctx, id, "a", sequentialBoard()))
	require.NoError(t, gs.ConfirmBoard(ctx, id, "b", sequentialBoard()))

	g := loadGame(t, s, id)
	require.Equal(t, game.StatusPlaying, g.Status)

	// Advisory rejection for the player off turn.
	off := "a"
	if g.CurrentTurn == "a" {
		off = "b"
	}
	err = gs.CallNumber(ctx, id, off, 7)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	require.NoError(t, gs.CallNumber(ctx, id, g.CurrentTurn, 7))
	g = loadGame(t, s, id)
	assert.Equal(t, []int{7}, g.CalledNumbers)
	assert.Equal(t, off, g.CurrentTurn)

	err = gs.DeclareBingo(ctx, id, off)
	assert.ErrorIs(t, err, game.ErrNotBingo)
}

func TestGameServiceBotGame(t *testing.T) {
	ctx := context.Background()
	gs, s := newTestService(t)

	id, err := gs.CreateGame(ctx, CreateGameData{AddBot: true, BotDifficulty: "hard"})
	require.NoError(t, err)

	g := loadGame(t, s, id)
	require.Len(t, g.Players, 1)
	var botID string
	for pid, p := range g.Players {
		require.True(t, p.Automated)
		botID = pid
	}
	require.True(t, g.Config.BotEnabled)

	require.NoError(t, gs.JoinGame(ctx, id, "human", "Alice"))
	require.NoError(t, gs.ConfirmBoard(ctx, id, "human", sequentialBoard()))

	// The bot seat confirms its own board and the game starts.
	require.Eventually(t, func() bool {
		return loadGame(t, s, id).Status == game.StatusPlaying
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, loadGame(t, s, id).Players[botID].Ready)

	// With zero thinking delay the bot plays whenever it holds the
	// turn, so it is the human's move in short order.
	require.Eventually(t, func() bool {
		g := loadGame(t, s, id)
		return g.Status == game.StatusFinished || g.CurrentTurn == "human"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGameServiceRestoreAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/games.db"

	s, err := store.OpenSQLite(path)
	require.NoError(t, err)
	defaults := game.Config{
		Variant:          bingo.Quick25,
		MaxPlayers:       2,
		TurnLimitSeconds: 1,
	}
	gs := NewGameService(s, quartz.NewReal(), defaults, 0, testLogger())

	id, err := gs.CreateGame(ctx, CreateGameData{})
	require.NoError(t, err)
	require.NoError(t, gs.JoinGame(ctx, id, "a", "Alice"))
	require.NoError(t, gs.JoinGame(ctx, id, "b", "Bob"))
	require.NoError(t, gs.ConfirmBoard(ctx, id, "a", sequentialBoard()))
	require.NoError(t, gs.ConfirmBoard(ctx, id, "b", sequentialBoard()))
	require.Equal(t, game.StatusPlaying, loadGame(t, s, id).Status)

	// Server goes away mid-game.
	gs.Close()
	require.NoError(t, s.Close())

	reopened, err := store.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	restored := NewGameService(reopened, quartz.NewReal(), defaults, 0, testLogger())
	t.Cleanup(restored.Close)
	require.NoError(t, restored.Restore(ctx))

	// The re-attached timeout driver auto-calls once the turn expires.
	require.Eventually(t, func() bool {
		return len(loadGame(t, reopened, id).CalledNumbers) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestGameServiceRestoreReseatsBot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	defaults := game.Config{Variant: bingo.Quick25, MaxPlayers: 2}

	gs := NewGameService(s, quartz.NewReal(), defaults, 0, testLogger())
	id, err := gs.CreateGame(ctx, CreateGameData{AddBot: true})
	require.NoError(t, err)
	gs.Close()

	restored := NewGameService(s, quartz.NewReal(), defaults, 0, testLogger())
	t.Cleanup(restored.Close)
	require.NoError(t, restored.Restore(ctx))

	require.NoError(t, restored.JoinGame(ctx, id, "human", "Alice"))
	require.NoError(t, restored.ConfirmBoard(ctx, id, "human", sequentialBoard()))

	// The bot seat came back from the automated player flag, confirms
	// its own board and the game starts.
	require.Eventually(t, func() bool {
		return loadGame(t, s, id).Status == game.StatusPlaying
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGameServiceUnknownGame(t *testing.T) {
	ctx := context.Background()
	gs, _ := newTestService(t)

	err := gs.JoinGame(ctx, "0123456789abcdef", "a", "Alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
