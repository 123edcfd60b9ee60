package bot

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/randutil"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newEngine(t *testing.T, d Difficulty) *Engine {
	t.Helper()
	return NewEngine(d, randutil.New(1), testLogger())
}

// boards laid out row-major 1..25; see the bingo package tests.
func sequentialBoard() bingo.Board {
	b := make(bingo.Board, bingo.BoardSize)
	for i := range b {
		b[i] = i + 1
	}
	return b
}

// offsetBoard covers 26..50 so it shares no numbers with sequentialBoard.
func offsetBoard() bingo.Board {
	b := make(bingo.Board, bingo.BoardSize)
	for i := range b {
		b[i] = i + 26
	}
	return b
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("hard")
	require.NoError(t, err)
	assert.Equal(t, Hard, d)

	d, err = ParseDifficulty("")
	require.NoError(t, err)
	assert.Equal(t, Normal, d)

	_, err = ParseDifficulty("nightmare")
	assert.Error(t, err)
}

func TestDecideDeclaresExistingWin(t *testing.T) {
	own := sequentialBoard()
	called := []int{1, 2, 3, 4, 5}

	move := newEngine(t, Normal).Decide(own, offsetBoard(), called, bingo.Quick25)
	assert.True(t, move.DeclareWin)
	assert.Zero(t, move.Number)
}

func TestDecideCompletesOwnLine(t *testing.T) {
	own := sequentialBoard()
	// Row 0 is 1-5; four called, 5 still available.
	called := []int{1, 2, 3, 4}

	for _, d := range []Difficulty{Normal, Hard} {
		move := newEngine(t, d).Decide(own, offsetBoard(), called, bingo.Classic75)
		assert.False(t, move.DeclareWin)
		assert.Equal(t, 5, move.Number, "difficulty %s", d)
	}
}

func TestDecideHardBlocksOpponent(t *testing.T) {
	own := sequentialBoard()
	opp := offsetBoard()
	// Opponent's row 0 is 26-30: four called, 30 open. The bot's own
	// board has no combination anywhere near completion.
	called := []int{26, 27, 28, 29}

	move := newEngine(t, Hard).Decide(own, opp, called, bingo.Classic75)
	assert.Equal(t, 30, move.Number)
}

func TestDecideNormalDoesNotBlock(t *testing.T) {
	own := sequentialBoard()
	opp := offsetBoard()
	// Opponent is one away from a line (30 open) while the bot's own
	// row 0 has three of five called. Normal ignores the threat and
	// follows its own heuristic; Hard takes the block first.
	called := []int{1, 2, 3, 26, 27, 28, 29}

	move := newEngine(t, Normal).Decide(own, opp, called, bingo.Classic75)
	assert.Equal(t, 4, move.Number)

	move = newEngine(t, Hard).Decide(own, opp, called, bingo.Classic75)
	assert.Equal(t, 30, move.Number)
}

func TestDecideOwnLineBeatsBlock(t *testing.T) {
	own := sequentialBoard()
	opp := offsetBoard()
	// Both sides are one away; self-completion takes priority.
	called := []int{1, 2, 3, 4, 26, 27, 28, 29}

	move := newEngine(t, Hard).Decide(own, opp, called, bingo.Classic75)
	assert.Equal(t, 5, move.Number)
}

func TestDecideHeuristicPrefersAdvancedLine(t *testing.T) {
	own := sequentialBoard()
	// Row 1 (6-10) has three called, nothing has four. The best pick
	// completes progress on that row rather than an untouched line.
	called := []int{6, 7, 8}

	move := newEngine(t, Normal).Decide(own, offsetBoard(), called, bingo.Classic75)
	require.NotZero(t, move.Number)
	assert.Contains(t, []int{9, 10}, move.Number)
}

func TestDecideHeuristicTieBreaksFirstInPool(t *testing.T) {
	own := sequentialBoard()
	// 9 and 10 score identically; pool iteration order keeps 9.
	called := []int{6, 7, 8}

	move := newEngine(t, Normal).Decide(own, offsetBoard(), called, bingo.Classic75)
	assert.Equal(t, 9, move.Number)
}

func TestDecideRandomFallback(t *testing.T) {
	own := sequentialBoard()
	// Nothing called yet, so every combination has zero progress and
	// every candidate scores zero; the engine falls back to a uniform
	// pick from the pool.
	move := newEngine(t, Normal).Decide(own, offsetBoard(), nil, bingo.Quick25)
	assert.False(t, move.DeclareWin)
	assert.GreaterOrEqual(t, move.Number, 1)
	assert.LessOrEqual(t, move.Number, 25)
}

func TestDecideExhaustedPool(t *testing.T) {
	own := sequentialBoard()
	// Build a Quick25 history that calls all 25 numbers against an
	// invalid own board so no win fires and nothing remains to pick.
	called := make([]int, 0, 25)
	for n := 1; n <= 25; n++ {
		called = append(called, n)
	}

	move := newEngine(t, Normal).Decide(bingo.Board{1, 2, 3}, own, called, bingo.Quick25)
	assert.False(t, move.DeclareWin)
	assert.Zero(t, move.Number)
}

func TestDecideOversizedCallLog(t *testing.T) {
	// A foreign client can log more distinct calls than the variant's
	// pool holds; the engine passes instead of panicking.
	called := make([]int, 0, 30)
	for n := 1; n <= 30; n++ {
		called = append(called, n)
	}

	// Board values off the pool, so no line is ever complete.
	own := make(bingo.Board, bingo.BoardSize)
	for i := range own {
		own[i] = 100 + i
	}

	move := newEngine(t, Normal).Decide(own, offsetBoard(), called, bingo.Quick25)
	assert.False(t, move.DeclareWin)
	assert.Zero(t, move.Number)
}
