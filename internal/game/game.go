package game

import (
	"sort"
	"time"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/bot"
)

// Status is the lifecycle phase of a game.
type Status string

const (
	StatusWaiting  Status = "waiting"  // accepting players
	StatusSetup    Status = "setup"    // players arranging boards
	StatusPlaying  Status = "playing"  // turn-taking
	StatusFinished Status = "finished" // terminal until reset
)

// WinnerDraw marks a game that ended with the pool exhausted and no
// board over the win threshold.
const WinnerDraw = "DRAW"

// Config is the per-game rule configuration, fixed at creation.
type Config struct {
	Variant           bingo.Variant  `json:"variant"`
	MaxPlayers        int            `json:"maxPlayers"`
	BotEnabled        bool           `json:"botEnabled,omitempty"`
	BotDifficulty     bot.Difficulty `json:"botDifficulty,omitempty"`
	TurnLimitSeconds  int            `json:"turnLimitSeconds"`
	SetupLimitSeconds int            `json:"setupLimitSeconds"`
	TimeBankSeconds   int            `json:"timeBankSeconds"`
}

// DefaultConfig returns the standard two-player classic game.
func DefaultConfig() Config {
	return Config{
		Variant:           bingo.Classic75,
		MaxPlayers:        2,
		TurnLimitSeconds:  30,
		SetupLimitSeconds: 120,
		TimeBankSeconds:   300,
	}
}

// TurnLimit returns the per-turn limit as a duration, zero if disabled.
func (c Config) TurnLimit() time.Duration {
	return time.Duration(c.TurnLimitSeconds) * time.Second
}

// SetupLimit returns the setup-phase limit as a duration, zero if disabled.
func (c Config) SetupLimit() time.Duration {
	return time.Duration(c.SetupLimitSeconds) * time.Second
}

// Player is one seat in a game. Automated marks a seat driven by the
// bot engine rather than human input; the rules treat both identically.
type Player struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Board     bingo.Board `json:"board,omitempty"`
	Ready     bool        `json:"ready"`
	Automated bool        `json:"automated,omitempty"`
	JoinOrder int         `json:"joinOrder"`
	// TimeBank is the remaining total time budget in seconds, counted
	// down while the player holds the turn. Zero when banks are disabled.
	TimeBank float64 `json:"timeBank,omitempty"`
}

// Game is the shared document. Field names match the dot-paths used by
// the rule functions when building updates.
type Game struct {
	ID            string            `json:"id"`
	Status        Status            `json:"status"`
	Players       map[string]Player `json:"players"`
	CalledNumbers []int             `json:"calledNumbers"`
	CurrentTurn   string            `json:"currentTurn,omitempty"`
	// TurnSeq is a generation counter bumped on every turn change and
	// reset. Timers capture it when scheduled and discard themselves if
	// it has moved on by the time they fire.
	TurnSeq       int64     `json:"turnSeq"`
	TurnStartedAt time.Time `json:"turnStartedAt,omitzero"`
	Winner        string    `json:"winner,omitempty"`
	Config        Config    `json:"config"`
	CreatedAt     time.Time `json:"createdAt"`
	LastActivity  time.Time `json:"lastActivity"`
}

// New returns the initial document for a freshly created game.
func New(id string, cfg Config, now time.Time) *Game {
	return &Game{
		ID:            id,
		Status:        StatusWaiting,
		Players:       make(map[string]Player),
		CalledNumbers: []int{},
		Config:        cfg,
		CreatedAt:     now,
		LastActivity:  now,
	}
}

// TurnOrder returns player ids in join order. Concurrent joins can be
// assigned the same order index, so ids break ties deterministically.
func (g *Game) TurnOrder() []string {
	ids := make([]string, 0, len(g.Players))
	for id := range g.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.Players[ids[i]], g.Players[ids[j]]
		if a.JoinOrder != b.JoinOrder {
			return a.JoinOrder < b.JoinOrder
		}
		return a.ID < b.ID
	})
	return ids
}

// NextHolder returns the player after the current turn holder in join
// order, wrapping around. Empty when the holder is unknown.
func (g *Game) NextHolder() string {
	order := g.TurnOrder()
	for i, id := range order {
		if id == g.CurrentTurn {
			return order[(i+1)%len(order)]
		}
	}
	return ""
}

// AllReady reports whether every joined player has confirmed a board.
func (g *Game) AllReady() bool {
	if len(g.Players) < 2 {
		return false
	}
	for _, p := range g.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Available returns the pool numbers not yet in the called log, in
// ascending order.
func (g *Game) Available() []int {
	called := bingo.CalledSet(g.CalledNumbers)
	var out []int
	for _, n := range g.Config.Variant.Pool() {
		if !called[n] {
			out = append(out, n)
		}
	}
	return out
}

// Called reports whether n is already in the called log.
func (g *Game) Called(n int) bool {
	for _, c := range g.CalledNumbers {
		if c == n {
			return true
		}
	}
	return false
}

// Opponent returns the board of the player after id in turn order, for
// the hard bot's blocking check. With more than two players only the
// next seat is considered.
func (g *Game) Opponent(id string) bingo.Board {
	order := g.TurnOrder()
	for i, pid := range order {
		if pid == id {
			next := g.Players[order[(i+1)%len(order)]]
			return next.Board
		}
	}
	return nil
}
