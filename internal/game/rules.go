package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/randutil"
	"github.com/lox/bingoforbots/internal/store"
)

// Advisory errors. These reject an action without changing state; the
// transport surfaces them to the acting player as a toast rather than
// tearing the session down.
var (
	ErrGameFull         = errors.New("game is full")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotWaiting       = errors.New("game is not accepting players")
	ErrNotSetup         = errors.New("game is not in setup")
	ErrNotPlaying       = errors.New("game is not in play")
	ErrNotFinished      = errors.New("game is not finished")
	ErrNotEnoughPlayers = errors.New("need at least two players")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyCalled    = errors.New("number already called")
	ErrInvalidNumber    = errors.New("number is outside the pool")
	ErrBadBoard         = errors.New("board must be 25 distinct pool numbers")
	ErrNotBingo         = errors.New("not a bingo")
	ErrStaleTurn        = errors.New("turn has already moved on")
	ErrNotReady         = errors.New("players are not all ready")
)

var advisories = []error{
	ErrGameFull, ErrAlreadyJoined, ErrNotWaiting, ErrNotSetup,
	ErrNotPlaying, ErrNotFinished, ErrNotEnoughPlayers, ErrUnknownPlayer,
	ErrNotYourTurn, ErrAlreadyCalled, ErrInvalidNumber, ErrBadBoard,
	ErrNotBingo, ErrStaleTurn, ErrNotReady,
}

// IsAdvisory reports whether err is a rule rejection rather than an
// infrastructure failure.
func IsAdvisory(err error) bool {
	for _, a := range advisories {
		if errors.Is(err, a) {
			return true
		}
	}
	return false
}

func playerPath(id, field string) string {
	return fmt.Sprintf("players.%s.%s", id, field)
}

// Join adds a player to a waiting game. When the roster reaches the
// configured maximum the game moves to setup.
func Join(g *Game, id, name string, automated bool, now time.Time) (store.Update, error) {
	if g.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	if _, ok := g.Players[id]; ok {
		return nil, ErrAlreadyJoined
	}
	if len(g.Players) >= g.Config.MaxPlayers {
		return nil, ErrGameFull
	}

	u := store.Update{
		store.Set(playerPath(id, "id"), id),
		store.Set(playerPath(id, "name"), name),
		store.Set(playerPath(id, "ready"), false),
		store.Set(playerPath(id, "joinOrder"), len(g.Players)),
		store.Set("lastActivity", now),
	}
	if automated {
		u = append(u, store.Set(playerPath(id, "automated"), true))
	}
	if len(g.Players)+1 >= g.Config.MaxPlayers {
		u = append(u, store.Set("status", StatusSetup))
	}
	return u, nil
}

// Start forces a waiting game into setup before it is full. At least
// two players must have joined.
func Start(g *Game, now time.Time) (store.Update, error) {
	if g.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	if len(g.Players) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	return store.Update{
		store.Set("status", StatusSetup),
		store.Set("lastActivity", now),
	}, nil
}

// ConfirmBoard records a player's board and readiness. When the last
// player confirms, the game starts: random opening holder, cleared call
// log, reinitialized time banks, fresh turn timestamp.
func ConfirmBoard(g *Game, id string, board bingo.Board, rng *rand.Rand, now time.Time) (store.Update, error) {
	if g.Status != StatusSetup {
		return nil, ErrNotSetup
	}
	if _, ok := g.Players[id]; !ok {
		return nil, ErrUnknownPlayer
	}
	if !board.Valid(g.Config.Variant.PoolSize()) {
		return nil, ErrBadBoard
	}

	u := store.Update{
		store.Set(playerPath(id, "board"), board),
		store.Set(playerPath(id, "ready"), true),
		store.Set("lastActivity", now),
	}

	// Would this confirmation make everyone ready?
	allReady := len(g.Players) >= 2
	for pid, other := range g.Players {
		if pid != id && !other.Ready {
			allReady = false
		}
	}
	if allReady {
		u = append(u, playOps(g, rng, now)...)
	}

	return u, nil
}

// BeginPlay promotes a setup game whose players are all ready. The
// transition normally rides on the last board confirmation; this covers
// the race where two confirmations cross and neither sees the other.
func BeginPlay(g *Game, rng *rand.Rand, now time.Time) (store.Update, error) {
	if g.Status != StatusSetup {
		return nil, ErrNotSetup
	}
	if !g.AllReady() {
		return nil, ErrNotReady
	}
	u := append(playOps(g, rng, now), store.Set("lastActivity", now))
	return u, nil
}

// playOps is the setup-to-playing transition: random opening holder,
// cleared call log, reinitialized time banks, fresh turn timestamp.
func playOps(g *Game, rng *rand.Rand, now time.Time) []store.Op {
	order := g.TurnOrder()
	holder := randutil.Pick(rng, order)
	ops := []store.Op{
		store.Set("status", StatusPlaying),
		store.Set("calledNumbers", []int{}),
		store.Set("currentTurn", holder),
		store.Set("turnSeq", g.TurnSeq+1),
		store.Set("turnStartedAt", now),
	}
	if g.Config.TimeBankSeconds > 0 {
		for pid := range g.Players {
			ops = append(ops, store.Set(playerPath(pid, "timeBank"), float64(g.Config.TimeBankSeconds)))
		}
	}
	return ops
}

// CallNumber applies a turn-call by the current holder: append the
// number, finish on win or pool exhaustion, otherwise rotate the turn.
// The caller's elapsed turn time is charged against their time bank;
// an exhausted bank forfeits the game to the next player regardless of
// board state.
func CallNumber(g *Game, id string, number int, now time.Time) (store.Update, error) {
	if g.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	p, ok := g.Players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if g.CurrentTurn != id {
		return nil, ErrNotYourTurn
	}
	if number < 1 || number > g.Config.Variant.PoolSize() {
		return nil, ErrInvalidNumber
	}
	if g.Called(number) {
		return nil, ErrAlreadyCalled
	}

	u := store.Update{
		store.Union("calledNumbers", number),
		store.Set("lastActivity", now),
	}

	// Charge the elapsed turn time before deciding the outcome: running
	// out of bank forfeits even a winning call.
	if g.Config.TimeBankSeconds > 0 && !g.TurnStartedAt.IsZero() {
		remaining := p.TimeBank - now.Sub(g.TurnStartedAt).Seconds()
		if remaining <= 0 {
			u = append(u,
				store.Set(playerPath(id, "timeBank"), 0.0),
				store.Set("status", StatusFinished),
				store.Set("winner", g.NextHolder()),
			)
			return u, nil
		}
		u = append(u, store.Set(playerPath(id, "timeBank"), remaining))
	}

	called := append(append([]int{}, g.CalledNumbers...), number)
	switch {
	case bingo.HasWon(g.Config.Variant, p.Board, called):
		u = append(u,
			store.Set("status", StatusFinished),
			store.Set("winner", id),
		)
	case len(called) >= g.Config.Variant.PoolSize():
		u = append(u,
			store.Set("status", StatusFinished),
			store.Set("winner", WinnerDraw),
		)
	default:
		u = append(u,
			store.Set("currentTurn", g.NextHolder()),
			store.Set("turnSeq", g.TurnSeq+1),
			store.Set("turnStartedAt", now),
		)
	}
	return u, nil
}

// DeclareBingo resolves an explicit victory claim against the
// authoritative called log. A claim the log does not support is
// rejected with ErrNotBingo and no state change.
func DeclareBingo(g *Game, id string) (store.Update, error) {
	if g.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	p, ok := g.Players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !bingo.HasWon(g.Config.Variant, p.Board, g.CalledNumbers) {
		return nil, ErrNotBingo
	}
	return store.Update{
		store.Set("status", StatusFinished),
		store.Set("winner", id),
	}, nil
}

// TimeoutCall applies a turn-call on the holder's behalf after the turn
// limit elapsed. seq is the turn generation the timer was scheduled
// against; if the game has moved on the call is discarded as stale.
func TimeoutCall(g *Game, seq int64, number int, now time.Time) (store.Update, error) {
	if g.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if g.TurnSeq != seq {
		return nil, ErrStaleTurn
	}
	return CallNumber(g, g.CurrentTurn, number, now)
}

// Forfeit ends the game immediately with the next player as winner,
// used when the holder's time bank runs dry mid-turn.
func Forfeit(g *Game, id string) (store.Update, error) {
	if g.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if g.CurrentTurn != id {
		return nil, ErrNotYourTurn
	}
	return store.Update{
		store.Set(playerPath(id, "timeBank"), 0.0),
		store.Set("status", StatusFinished),
		store.Set("winner", g.NextHolder()),
	}, nil
}

// Leave removes a player from the game. Leaving mid-play abandons the
// game to the next player in turn order.
func Leave(g *Game, id string, now time.Time) (store.Update, error) {
	if _, ok := g.Players[id]; !ok {
		return nil, ErrUnknownPlayer
	}

	if g.Status == StatusPlaying {
		winner := otherPlayer(g, id)
		return store.Update{
			store.Set("status", StatusFinished),
			store.Set("winner", winner),
			store.Set("turnSeq", g.TurnSeq+1),
			store.Set("lastActivity", now),
		}, nil
	}

	return store.Update{
		store.Delete("players." + id),
		store.Set("lastActivity", now),
	}, nil
}

func otherPlayer(g *Game, id string) string {
	for _, pid := range g.TurnOrder() {
		if pid != id {
			return pid
		}
	}
	return ""
}

// Reset returns a finished game to setup, keeping the roster but
// clearing boards, readiness, the call log, the winner, and the turn
// pointer.
func Reset(g *Game, now time.Time) (store.Update, error) {
	if g.Status != StatusFinished {
		return nil, ErrNotFinished
	}
	u := store.Update{
		store.Set("status", StatusSetup),
		store.Set("calledNumbers", []int{}),
		store.Set("turnSeq", g.TurnSeq+1),
		store.Delete("currentTurn"),
		store.Delete("turnStartedAt"),
		store.Delete("winner"),
		store.Set("lastActivity", now),
	}
	for id := range g.Players {
		u = append(u,
			store.Delete(playerPath(id, "board")),
			store.Set(playerPath(id, "ready"), false),
		)
		if g.Config.TimeBankSeconds > 0 {
			u = append(u, store.Set(playerPath(id, "timeBank"), float64(g.Config.TimeBankSeconds)))
		}
	}
	return u, nil
}

// RandomAvailable picks a uniformly random uncalled number, the
// timeout fallback for human holders. Returns 0 on an exhausted pool.
func RandomAvailable(g *Game, rng *rand.Rand) int {
	avail := g.Available()
	if len(avail) == 0 {
		return 0
	}
	return randutil.Pick(rng, avail)
}
