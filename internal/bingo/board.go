// Package bingo implements the board model and the line/win evaluator
// shared by the game rules, the bot engine and the TUI.
package bingo

import (
	"fmt"
	rand "math/rand/v2"
)

// BoardSize is the number of cells on a board (5x5 grid).
const BoardSize = 25

// Variant selects the number pool and the win threshold.
type Variant string

const (
	// Classic75 draws from 1-75 and requires five completed lines to win.
	Classic75 Variant = "classic75"

	// Quick25 draws from 1-25 and any single completed line wins.
	Quick25 Variant = "quick25"
)

// ParseVariant converts a config string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case Classic75, Quick25:
		return Variant(s), nil
	case "":
		return Classic75, nil
	default:
		return "", fmt.Errorf("unknown variant: %q", s)
	}
}

// PoolSize returns the highest callable number for the variant.
func (v Variant) PoolSize() int {
	if v == Quick25 {
		return 25
	}
	return 75
}

// WinThreshold returns the number of simultaneously completed lines
// required to declare a win.
func (v Variant) WinThreshold() int {
	if v == Quick25 {
		return 1
	}
	return 5
}

// Pool returns all legal numbers for the variant, in ascending order.
func (v Variant) Pool() []int {
	pool := make([]int, v.PoolSize())
	for i := range pool {
		pool[i] = i + 1
	}
	return pool
}

// Board is a player's 25-cell grid. A zero cell is unset (board still
// being arranged during setup).
type Board []int

// Complete reports whether every cell has been assigned.
func (b Board) Complete() bool {
	if len(b) != BoardSize {
		return false
	}
	for _, n := range b {
		if n <= 0 {
			return false
		}
	}
	return true
}

// Valid reports whether the board is complete, duplicate-free and drawn
// entirely from the given pool size. The evaluator treats anything else
// as having no completed lines.
func (b Board) Valid(poolSize int) bool {
	if !b.Complete() {
		return false
	}
	seen := make(map[int]bool, BoardSize)
	for _, n := range b {
		if n > poolSize || seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}

// RandomBoard builds a ready-to-play board by shuffling the variant pool
// and taking the first 25 numbers. Used for the setup-timeout fallback
// and for bot seats.
func RandomBoard(v Variant, rng *rand.Rand) Board {
	pool := v.Pool()
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return Board(pool[:BoardSize])
}
