package driver

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/bot"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/store"
)

// Timer names used by the timeout driver.
const (
	timerSetup = "setup"
	timerTurn  = "turn"
	timerBank  = "bank"
)

// TimeoutDriver is the authoritative per-game observer that enforces
// the clocks: it assigns boards to players who never finish setup,
// calls a number on behalf of a holder whose turn limit elapses, and
// forfeits a holder whose time bank runs dry. Exactly one should run
// per game, typically inside the server.
type TimeoutDriver struct {
	store  store.Store
	gameID string
	clock  quartz.Clock
	logger *log.Logger
	timers *timerSet

	// rng is shared between the observe loop and timer callbacks.
	rngMu sync.Mutex
	rng   *rand.Rand

	ctx context.Context
}

func NewTimeoutDriver(s store.Store, gameID string, clock quartz.Clock, rng *rand.Rand, logger *log.Logger) *TimeoutDriver {
	return &TimeoutDriver{
		store:  s,
		gameID: gameID,
		clock:  clock,
		rng:    rng,
		logger: logger.WithPrefix("timeout").With("game", gameID),
		timers: newTimerSet(clock),
	}
}

// Run observes the game until ctx is cancelled or the subscription
// closes, rescheduling timers from every snapshot.
func (d *TimeoutDriver) Run(ctx context.Context) error {
	d.ctx = ctx
	ch, cancel, err := d.store.Subscribe(ctx, d.gameID)
	if err != nil {
		return err
	}
	defer cancel()
	defer d.timers.stopAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			var g game.Game
			if err := snap.Decode(&g); err != nil {
				d.logger.Error("Failed to decode snapshot", "error", err)
				continue
			}
			d.observe(&g)
		}
	}
}

// observe reschedules timers to match one snapshot. Deadlines are
// computed from the timestamps in the document, not from when the
// snapshot arrived, so re-observing the same turn does not extend it.
func (d *TimeoutDriver) observe(g *game.Game) {
	switch g.Status {
	case game.StatusSetup:
		d.timers.stop(timerTurn, timerBank)
		if g.AllReady() {
			// Two board confirmations crossed and neither saw the other;
			// converge by starting the game from here.
			d.beginPlay(g)
			return
		}
		if limit := g.Config.SetupLimit(); limit > 0 {
			deadline := g.LastActivity.Add(limit)
			d.timers.schedule(timerSetup, deadline.Sub(d.clock.Now()), d.fireSetup)
		}

	case game.StatusPlaying:
		d.timers.stop(timerSetup)
		seq := g.TurnSeq
		if limit := g.Config.TurnLimit(); limit > 0 {
			deadline := g.TurnStartedAt.Add(limit)
			d.timers.schedule(timerTurn, deadline.Sub(d.clock.Now()), func() {
				d.fireTurn(seq)
			})
		}
		if g.Config.TimeBankSeconds > 0 {
			holder := g.Players[g.CurrentTurn]
			bank := time.Duration(holder.TimeBank * float64(time.Second))
			deadline := g.TurnStartedAt.Add(bank)
			d.timers.schedule(timerBank, deadline.Sub(d.clock.Now()), func() {
				d.fireBank(seq)
			})
		}

	default:
		d.timers.stopAll()
	}
}

func (d *TimeoutDriver) beginPlay(g *game.Game) {
	d.rngMu.Lock()
	u, err := game.BeginPlay(g, d.rng, d.clock.Now())
	d.rngMu.Unlock()
	if err != nil {
		d.discard("begin play", err)
		return
	}
	if _, err := d.apply(u); err != nil {
		d.logger.Error("Failed to start game", "error", err)
	}
}

// fireSetup assigns a random board to every player still arranging
// theirs, which also starts the game once the last one is confirmed.
func (d *TimeoutDriver) fireSetup() {
	g, err := d.reload()
	if err != nil || g.Status != game.StatusSetup {
		return
	}
	d.logger.Info("Setup time limit reached, assigning boards")

	for _, id := range g.TurnOrder() {
		if g.Players[id].Ready {
			continue
		}
		d.rngMu.Lock()
		board := bingo.RandomBoard(g.Config.Variant, d.rng)
		u, err := game.ConfirmBoard(g, id, board, d.rng, d.clock.Now())
		d.rngMu.Unlock()
		if err != nil {
			d.discard("confirm board", err)
			return
		}
		g, err = d.apply(u)
		if err != nil || g.Status != game.StatusSetup {
			return
		}
	}
}

// fireTurn calls a number on the holder's behalf. The captured turn
// generation lets the rules reject a timer that raced a real call.
func (d *TimeoutDriver) fireTurn(seq int64) {
	g, err := d.reload()
	if err != nil || g.Status != game.StatusPlaying || g.TurnSeq != seq {
		return
	}

	holder := g.Players[g.CurrentTurn]
	number := d.pickFor(g, holder)
	if number == 0 {
		return
	}
	d.logger.Info("Turn time limit reached, calling for holder",
		"holder", holder.ID, "number", number)

	u, err := game.TimeoutCall(g, seq, number, d.clock.Now())
	if err != nil {
		d.discard("timeout call", err)
		return
	}
	if _, err := d.apply(u); err != nil {
		d.logger.Error("Failed to apply timeout call", "error", err)
	}
}

// pickFor chooses the auto-call number: the bot engine for automated
// holders, uniform random for humans.
func (d *TimeoutDriver) pickFor(g *game.Game, holder game.Player) int {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	if holder.Automated && g.Config.BotEnabled {
		engine := bot.NewEngine(g.Config.BotDifficulty, d.rng, d.logger)
		move := engine.Decide(holder.Board, g.Opponent(holder.ID), g.CalledNumbers, g.Config.Variant)
		if !move.DeclareWin && move.Number > 0 {
			return move.Number
		}
	}
	return game.RandomAvailable(g, d.rng)
}

func (d *TimeoutDriver) fireBank(seq int64) {
	g, err := d.reload()
	if err != nil || g.Status != game.StatusPlaying || g.TurnSeq != seq {
		return
	}
	d.logger.Info("Time bank exhausted, forfeiting", "holder", g.CurrentTurn)

	u, err := game.Forfeit(g, g.CurrentTurn)
	if err != nil {
		d.discard("forfeit", err)
		return
	}
	if _, err := d.apply(u); err != nil {
		d.logger.Error("Failed to apply forfeit", "error", err)
	}
}

func (d *TimeoutDriver) reload() (*game.Game, error) {
	snap, err := d.store.Get(d.ctx, d.gameID)
	if err != nil {
		d.logger.Error("Failed to reload game", "error", err)
		return nil, err
	}
	var g game.Game
	if err := snap.Decode(&g); err != nil {
		d.logger.Error("Failed to decode game", "error", err)
		return nil, err
	}
	return &g, nil
}

func (d *TimeoutDriver) apply(u store.Update) (*game.Game, error) {
	snap, err := d.store.Apply(d.ctx, d.gameID, u)
	if err != nil {
		return nil, err
	}
	var g game.Game
	if err := snap.Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// discard logs a rule rejection. Advisory rejections are expected when
// a timer loses a race with a real action.
func (d *TimeoutDriver) discard(action string, err error) {
	if game.IsAdvisory(err) {
		d.logger.Debug("Discarded stale timer action", "action", action, "error", err)
		return
	}
	d.logger.Error("Timer action failed", "action", action, "error", err)
}
