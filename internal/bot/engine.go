// Package bot implements the scripted opponent's decision engine. The
// engine is a pure decision function over board snapshots; applying the
// chosen move to game state is the caller's job.
package bot

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/randutil"
)

// Difficulty gates the blocking behaviour.
type Difficulty string

const (
	// Normal plays for its own board only.
	Normal Difficulty = "normal"

	// Hard additionally denies the opponent an immediate line completion.
	Hard Difficulty = "hard"
)

// ParseDifficulty converts a config string to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case Normal, Hard:
		return Difficulty(s), nil
	case "":
		return Normal, nil
	default:
		return "", fmt.Errorf("unknown difficulty: %q", s)
	}
}

// Move is the engine's chosen action: either declare victory, or call
// Number. A zero Move (no declare, no number) means the pool is
// exhausted and the caller should already have resolved a draw.
type Move struct {
	DeclareWin bool
	Number     int
}

// Engine chooses moves for an automated player.
type Engine struct {
	difficulty Difficulty
	rng        *rand.Rand
	logger     *log.Logger
}

// NewEngine creates an engine. The RNG is only consulted for the
// uniform fallback, so a seeded RNG makes the engine fully
// deterministic for a given game history.
func NewEngine(difficulty Difficulty, rng *rand.Rand, logger *log.Logger) *Engine {
	return &Engine{
		difficulty: difficulty,
		rng:        rng,
		logger:     logger.WithPrefix("bot"),
	}
}

// Decide picks the bot's next action from its own board, one designated
// opponent board (used for blocking on Hard; with more than two players
// only that one opponent is considered), and the called-numbers log.
//
// Priority order, first match wins:
//  1. the bot has already won: declare it rather than call a number
//  2. a number that completes one of the bot's own lines right now
//  3. Hard only: a number that would complete an opponent line, denied
//  4. highest-scoring available number by line-progress heuristic
//  5. uniform random among the remaining pool
func (e *Engine) Decide(own, opponent bingo.Board, called []int, v bingo.Variant) Move {
	if bingo.HasWon(v, own, called) {
		e.logger.Debug("declaring win", "lines", bingo.CountCompletedLines(own, called))
		return Move{DeclareWin: true}
	}

	calledSet := bingo.CalledSet(called)
	poolSize := v.PoolSize()

	if n := completingNumber(own, calledSet, poolSize); n != 0 {
		e.logger.Debug("completing own line", "number", n)
		return Move{Number: n}
	}

	if e.difficulty == Hard {
		if n := completingNumber(opponent, calledSet, poolSize); n != 0 {
			e.logger.Debug("blocking opponent line", "number", n)
			return Move{Number: n}
		}
	}

	if n := bestScoringNumber(own, calledSet, poolSize); n != 0 {
		e.logger.Debug("heuristic pick", "number", n)
		return Move{Number: n}
	}

	available := availableNumbers(calledSet, poolSize)
	if len(available) == 0 {
		// Pool exhausted; correct turn handling declares a draw before
		// the bot is ever asked to move in this state.
		return Move{}
	}

	n := randutil.Pick(e.rng, available)
	e.logger.Debug("random pick", "number", n, "available", len(available))
	return Move{Number: n}
}

// completingNumber returns the first number that would complete a line
// on the given board: a combination with exactly four of five values
// already called and the fifth still available. Combination order is
// fixed, so the first qualifying combination decides.
func completingNumber(board bingo.Board, calledSet map[int]bool, poolSize int) int {
	if !board.Complete() {
		return 0
	}
	for _, combo := range bingo.WinningCombinations {
		missing := 0
		calledCount := 0
		for _, idx := range combo {
			if calledSet[board[idx]] {
				calledCount++
			} else {
				missing = board[idx]
			}
		}
		if calledCount == 4 && missing >= 1 && missing <= poolSize {
			return missing
		}
	}
	return 0
}

// Heuristic weights keyed by how many of a combination's other four
// cells are already called.
var progressWeights = [5]int{0, 1, 2, 4, 0}

// bestScoringNumber scores every available number by summing, over all
// combinations containing it on the board, a weight for how close that
// combination already is. Ties break toward the first-seen number in
// pool iteration order; a zero best score means no pick.
func bestScoringNumber(board bingo.Board, calledSet map[int]bool, poolSize int) int {
	if !board.Complete() {
		return 0
	}

	// Cell position of each board value, for fast lookup per candidate.
	position := make(map[int]int, len(board))
	for idx, n := range board {
		position[n] = idx
	}

	best, bestScore := 0, 0
	for n := 1; n <= poolSize; n++ {
		if calledSet[n] {
			continue
		}
		idx, onBoard := position[n]
		if !onBoard {
			continue
		}

		score := 0
		for _, combo := range bingo.WinningCombinations {
			inCombo := false
			othersCalled := 0
			for _, cell := range combo {
				if cell == idx {
					inCombo = true
					continue
				}
				if calledSet[board[cell]] {
					othersCalled++
				}
			}
			if inCombo {
				score += progressWeights[othersCalled]
			}
		}
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	return best
}

func availableNumbers(calledSet map[int]bool, poolSize int) []int {
	// A foreign document can carry more distinct calls than the pool
	// holds, which would make the capacity hint negative.
	available := make([]int, 0, max(poolSize-len(calledSet), 0))
	for n := 1; n <= poolSize; n++ {
		if !calledSet[n] {
			available = append(available, n)
		}
	}
	return available
}
