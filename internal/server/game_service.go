package server

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/bot"
	"github.com/lox/bingoforbots/internal/driver"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/gameid"
	"github.com/lox/bingoforbots/internal/randutil"
	"github.com/lox/bingoforbots/internal/store"
)

// GameService hosts games on top of the document store. It evaluates
// client actions through the game rules, and runs the server-side
// observers per game: one authoritative timeout driver, plus a bot seat
// when the game was created with a bot opponent. Timeouts therefore
// fire even when every human client has gone away.
type GameService struct {
	store    store.Store
	clock    quartz.Clock
	logger   *log.Logger
	idgen    *gameid.Generator
	defaults game.Config
	thinking time.Duration

	mu      sync.Mutex
	rng     *rand.Rand
	drivers map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// NewGameService creates a game service. defaults fills in whatever a
// create_game request leaves unset.
func NewGameService(s store.Store, clock quartz.Clock, defaults game.Config, thinking time.Duration, logger *log.Logger) *GameService {
	ctx, cancel := context.WithCancel(context.Background())
	return &GameService{
		store:    s,
		clock:    clock,
		logger:   logger.WithPrefix("games"),
		idgen:    gameid.NewGenerator(),
		defaults: defaults,
		thinking: thinking,
		rng:      randutil.New(time.Now().UnixNano()),
		drivers:  make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Restore re-attaches observers to every unfinished game already in
// the store, re-seating the bot from the automated player flag. Run
// once on startup so a restart over a persistent store does not leave
// games without their timeout driver or bot seat.
func (gs *GameService) Restore(ctx context.Context) error {
	ids, err := gs.store.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		snap, err := gs.store.Get(ctx, id)
		if err != nil {
			continue
		}
		var g game.Game
		if err := snap.Decode(&g); err != nil {
			gs.logger.Error("Skipping undecodable game", "game", id, "error", err)
			continue
		}
		if g.Status == game.StatusFinished {
			continue
		}
		var botID string
		for pid, p := range g.Players {
			if p.Automated {
				botID = pid
				break
			}
		}
		gs.startDrivers(id, g.Config, botID)
		gs.logger.Info("Game restored", "game", id, "status", g.Status, "bot", botID != "")
	}
	return nil
}

// Close stops every per-game observer.
func (gs *GameService) Close() {
	gs.cancel()
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for id, cancel := range gs.drivers {
		cancel()
		delete(gs.drivers, id)
	}
}

// CreateGame creates a game from the request, starts its observers and
// returns the new game id.
func (gs *GameService) CreateGame(ctx context.Context, req CreateGameData) (string, error) {
	cfg, err := gs.buildConfig(req)
	if err != nil {
		return "", err
	}

	id := gs.idgen.Generate()
	g := game.New(id, cfg, gs.clock.Now())
	if _, err := gs.store.Create(ctx, id, g); err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}

	var botID string
	if cfg.BotEnabled {
		botID = "bot-" + uuid.NewString()
		if err := gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
			return game.Join(g, botID, "Bingo Bot", true, gs.clock.Now())
		}); err != nil {
			return "", fmt.Errorf("seat bot: %w", err)
		}
	}

	gs.startDrivers(id, cfg, botID)
	gs.logger.Info("Game created", "game", id, "variant", cfg.Variant, "bot", cfg.BotEnabled)
	return id, nil
}

func (gs *GameService) buildConfig(req CreateGameData) (game.Config, error) {
	cfg := gs.defaults

	variant, err := bingo.ParseVariant(req.Variant)
	if err != nil {
		return game.Config{}, err
	}
	if req.Variant != "" {
		cfg.Variant = variant
	}
	if req.MaxPlayers > 0 {
		cfg.MaxPlayers = req.MaxPlayers
	}
	if req.TurnLimitSeconds > 0 {
		cfg.TurnLimitSeconds = req.TurnLimitSeconds
	}
	if req.SetupLimitSeconds > 0 {
		cfg.SetupLimitSeconds = req.SetupLimitSeconds
	}
	if req.TimeBankSeconds > 0 {
		cfg.TimeBankSeconds = req.TimeBankSeconds
	}
	if req.AddBot {
		cfg.BotEnabled = true
		if req.BotDifficulty != "" {
			difficulty, err := bot.ParseDifficulty(req.BotDifficulty)
			if err != nil {
				return game.Config{}, err
			}
			cfg.BotDifficulty = difficulty
		} else if cfg.BotDifficulty == "" {
			cfg.BotDifficulty = bot.Normal
		}
	}
	if cfg.MaxPlayers < 2 {
		cfg.MaxPlayers = 2
	}
	return cfg, nil
}

// startDrivers launches the timeout driver and, if seated, the bot.
func (gs *GameService) startDrivers(id string, cfg game.Config, botID string) {
	ctx, cancel := context.WithCancel(gs.ctx)
	gs.mu.Lock()
	gs.drivers[id] = cancel
	gs.mu.Unlock()

	timeout := driver.NewTimeoutDriver(gs.store, id, gs.clock, randutil.New(time.Now().UnixNano()), gs.logger)
	go func() {
		if err := timeout.Run(ctx); err != nil && ctx.Err() == nil {
			gs.logger.Error("Timeout driver stopped", "game", id, "error", err)
		}
	}()

	if botID != "" {
		seat := driver.NewBotSeat(gs.store, id, botID, cfg.BotDifficulty, gs.clock, randutil.New(time.Now().UnixNano()), gs.thinking, gs.logger)
		go func() {
			if err := seat.Run(ctx); err != nil && ctx.Err() == nil {
				gs.logger.Error("Bot seat stopped", "game", id, "error", err)
			}
		}()
	}
}

// act loads the game, evaluates a rule against the fresh snapshot and
// applies the resulting update.
func (gs *GameService) act(ctx context.Context, id string, rule func(*game.Game) (store.Update, error)) error {
	snap, err := gs.store.Get(ctx, id)
	if err != nil {
		return err
	}
	var g game.Game
	if err := snap.Decode(&g); err != nil {
		return fmt.Errorf("decode game %s: %w", id, err)
	}

	u, err := rule(&g)
	if err != nil {
		return err
	}
	if _, err := gs.store.Apply(ctx, id, u); err != nil {
		return fmt.Errorf("apply update to %s: %w", id, err)
	}
	return nil
}

func (gs *GameService) JoinGame(ctx context.Context, id, playerID, name string) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		return game.Join(g, playerID, name, false, gs.clock.Now())
	})
}

func (gs *GameService) LeaveGame(ctx context.Context, id, playerID string) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		return game.Leave(g, playerID, gs.clock.Now())
	})
}

func (gs *GameService) StartGame(ctx context.Context, id string) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		return game.Start(g, gs.clock.Now())
	})
}

func (gs *GameService) ConfirmBoard(ctx context.Context, id, playerID string, board bingo.Board) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		gs.mu.Lock()
		defer gs.mu.Unlock()
		if len(board) == 0 {
			// An empty confirmation asks the house to deal
			board = bingo.RandomBoard(g.Config.Variant, gs.rng)
		}
		return game.ConfirmBoard(g, playerID, board, gs.rng, gs.clock.Now())
	})
}

func (gs *GameService) CallNumber(ctx context.Context, id, playerID string, number int) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		return game.CallNumber(g, playerID, number, gs.clock.Now())
	})
}

func (gs *GameService) DeclareBingo(ctx context.Context, id, playerID string) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		return game.DeclareBingo(g, playerID)
	})
}

func (gs *GameService) ResetGame(ctx context.Context, id string) error {
	return gs.act(ctx, id, func(g *game.Game) (store.Update, error) {
		return game.Reset(g, gs.clock.Now())
	})
}

// Subscribe passes through to the store so connections can stream
// snapshots.
func (gs *GameService) Subscribe(ctx context.Context, id string) (<-chan store.Snapshot, func(), error) {
	return gs.store.Subscribe(ctx, id)
}

// ListGames summarizes every stored game. Loads fan out because a
// SQLite-backed store pays a query per game.
func (gs *GameService) ListGames(ctx context.Context) ([]GameSummary, error) {
	ids, err := gs.store.List(ctx)
	if err != nil {
		return nil, err
	}

	loaded := make([]*game.Game, len(ids))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i, id := range ids {
		eg.Go(func() error {
			snap, err := gs.store.Get(ctx, id)
			if err != nil {
				return nil // deleted between List and Get
			}
			var g game.Game
			if err := snap.Decode(&g); err != nil {
				gs.logger.Error("Skipping undecodable game", "game", id, "error", err)
				return nil
			}
			loaded[i] = &g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]GameSummary, 0, len(ids))
	for _, g := range loaded {
		if g == nil {
			continue
		}
		summaries = append(summaries, GameSummary{
			GameID:  g.ID,
			Status:  string(g.Status),
			Players: len(g.Players),
			Max:     g.Config.MaxPlayers,
			Variant: string(g.Config.Variant),
		})
	}
	return summaries, nil
}
