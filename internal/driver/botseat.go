package driver

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/bot"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/store"
)

const timerThink = "think"

// DefaultThinkingDelay paces bot moves so a human opponent can follow
// the game. It carries no correctness weight and tests set it to zero.
const DefaultThinkingDelay = 1500 * time.Millisecond

// BotSeat drives one automated player through the same observe/act loop
// a human client uses: it confirms a random board during setup, and on
// its turn asks the engine for a move after a short thinking delay.
type BotSeat struct {
	store    store.Store
	gameID   string
	playerID string
	engine   *bot.Engine
	clock    quartz.Clock
	rng      *rand.Rand
	thinking time.Duration
	logger   *log.Logger
	timers   *timerSet

	ctx context.Context
}

func NewBotSeat(s store.Store, gameID, playerID string, difficulty bot.Difficulty, clock quartz.Clock, rng *rand.Rand, thinking time.Duration, logger *log.Logger) *BotSeat {
	logger = logger.WithPrefix("botseat").With("game", gameID, "player", playerID)
	return &BotSeat{
		store:    s,
		gameID:   gameID,
		playerID: playerID,
		engine:   bot.NewEngine(difficulty, rng, logger),
		clock:    clock,
		rng:      rng,
		thinking: thinking,
		logger:   logger,
		timers:   newTimerSet(clock),
	}
}

// Run observes the game until ctx is cancelled or the subscription
// closes. The seat's player must already be in the roster.
func (b *BotSeat) Run(ctx context.Context) error {
	b.ctx = ctx
	ch, cancel, err := b.store.Subscribe(ctx, b.gameID)
	if err != nil {
		return err
	}
	defer cancel()
	defer b.timers.stopAll()

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
				b.logger.Error("Failed to decode snapshot", "error", err)
				continue
			}
			b.observe(&g)
		}
	}
}

func (b *BotSeat) observe(g *game.Game) {
	switch {
	case g.Status == game.StatusSetup:
		b.timers.stop(timerThink)
		if me, ok := g.Players[b.playerID]; ok && !me.Ready {
			b.confirmBoard(g)
		}

	case g.Status == game.StatusPlaying && g.CurrentTurn == b.playerID:
		seq := g.TurnSeq
		b.timers.schedule(timerThink, b.thinking, func() {
			b.fireThink(seq)
		})

	default:
		b.timers.stop(timerThink)
	}
}

func (b *BotSeat) confirmBoard(g *game.Game) {
	board := bingo.RandomBoard(g.Config.Variant, b.rng)
	u, err := game.ConfirmBoard(g, b.playerID, board, b.rng, b.clock.Now())
	if err != nil {
		b.discard("confirm board", err)
		return
	}
	if _, err := b.store.Apply(b.ctx, b.gameID, u); err != nil {
		b.logger.Error("Failed to confirm board", "error", err)
	}
}

// fireThink runs after the thinking delay. The move is computed from a
// fresh snapshot, and the captured turn generation keeps a delayed
// think from acting on a turn that already passed.
func (b *BotSeat) fireThink(seq int64) {
	snap, err := b.store.Get(b.ctx, b.gameID)
	if err != nil {
		b.logger.Error("Failed to reload game", "error", err)
		return
	}
	var g game.Game
	if err := snap.Decode(&g); err != nil {
		b.logger.Error("Failed to decode game", "error", err)
		return
	}
	if g.Status != game.StatusPlaying || g.CurrentTurn != b.playerID || g.TurnSeq != seq {
		return
	}

	me := g.Players[b.playerID]
	move := b.engine.Decide(me.Board, g.Opponent(b.playerID), g.CalledNumbers, g.Config.Variant)

	var u store.Update
	switch {
	case move.DeclareWin:
		u, err = game.DeclareBingo(&g, b.playerID)
	case move.Number > 0:
		u, err = game.CallNumber(&g, b.playerID, move.Number, b.clock.Now())
	default:
		return // exhausted pool, nothing to call
	}
	if err != nil {
		b.discard("move", err)
		return
	}
	if _, err := b.store.Apply(b.ctx, b.gameID, u); err != nil {
		b.logger.Error("Failed to apply move", "error", err)
	}
}

func (b *BotSeat) discard(action string, err error) {
	if game.IsAdvisory(err) {
		b.logger.Debug("Discarded stale action", "action", action, "error", err)
		return
	}
	b.logger.Error("Action failed", "action", action, "error", err)
}
