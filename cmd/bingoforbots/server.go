package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/quartz"

	"github.com/lox/bingoforbots/cmd/bingoforbots/shared"
	"github.com/lox/bingoforbots/internal/auth"
	"github.com/lox/bingoforbots/internal/server"
	"github.com/lox/bingoforbots/internal/store"
)

// ServerCmd runs the WebSocket bingo server
type ServerCmd struct {
	Config string `kong:"default='bingoforbots.hcl',help='Path to HCL config file'"`
	Addr   string `kong:"help='Listen address, overrides config (host:port)'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		return err
	}

	var st store.Store
	if cfg.Server.Database != "" {
		sqliteStore, err := store.OpenSQLite(cfg.Server.Database)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		st = sqliteStore
		logger.Info("Using SQLite document store", "path", cfg.Server.Database)
	} else {
		st = store.NewMemStore()
		logger.Info("Using in-memory document store")
	}

	var validator auth.Validator = &auth.NoopValidator{}
	if cfg.Server.AuthURL != "" {
		validator = auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret)
		logger.Info("Token validation enabled", "url", cfg.Server.AuthURL)
	}

	gameService := server.NewGameService(st, quartz.NewReal(), cfg.GameConfig(), cfg.ThinkingDelay(), logger)
	if err := gameService.Restore(context.Background()); err != nil {
		return err
	}

	addr := cfg.Addr()
	if c.Addr != "" {
		addr = c.Addr
	}
	srv := server.NewServer(addr, gameService, validator, logger)

	logger.Info("Starting bingoforbots server",
		"addr", addr,
		"variant", cfg.Game.Variant,
		"max_players", cfg.Game.MaxPlayers,
		"turn_limit_seconds", cfg.Game.TurnLimitSeconds,
		"time_bank_seconds", cfg.Game.TimeBankSeconds,
		"bot_difficulty", cfg.Bot.Difficulty,
	)

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		return srv.Stop()
	case err := <-serverErr:
		return err
	}
}
