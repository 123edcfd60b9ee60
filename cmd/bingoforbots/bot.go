package main

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/lox/bingoforbots/cmd/bingoforbots/shared"
	"github.com/lox/bingoforbots/internal/bot"
	"github.com/lox/bingoforbots/internal/client"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/randutil"
	"github.com/lox/bingoforbots/internal/server"
)

// BotCmd runs a headless bot seat against a remote server
type BotCmd struct {
	Server     string `kong:"default='ws://localhost:8080/ws',help='WebSocket server URL'"`
	Name       string `kong:"default='Bot',help='Display name'"`
	Game       string `kong:"required,help='Game id to join'"`
	Difficulty string `kong:"default='normal',help='Bot difficulty (normal, hard)'"`
	DelayMs    int    `kong:"default='1500',help='Thinking delay in milliseconds'"`
	Seed       *int64 `kong:"help='Deterministic RNG seed (optional)'"`
	Debug      bool   `kong:"help='Enable debug logging'"`
}

func (c *BotCmd) Run() error {
	level := "info"
	if c.Debug {
		level = "debug"
	}
	logger, err := shared.SetupLogger(level, "")
	if err != nil {
		return err
	}

	difficulty, err := bot.ParseDifficulty(c.Difficulty)
	if err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	engine := bot.NewEngine(difficulty, randutil.New(seed), logger)

	cl := client.NewClient(strings.TrimSpace(c.Server), logger)

	done := make(chan struct{})
	var closeDone sync.Once

	// Snapshot-driven play: confirm a board during setup, move on our
	// turn, stop when the game finishes. lastActed discards snapshots
	// for turns this seat already played.
	var mu sync.Mutex
	var lastActed int64 = -1
	boardRequested := false

	cl.AddEventHandler(server.MessageTypeAuthResponse, func(msg *server.Message) {
		_ = cl.JoinGame(c.Game)
	})

	cl.AddEventHandler(server.MessageTypeGameState, func(msg *server.Message) {
		var state server.GameStateData
		if err := json.Unmarshal(msg.Data, &state); err != nil {
			return
		}
		g := state.Game

		me, ok := g.Players[cl.PlayerID()]
		if !ok {
			return
		}

		mu.Lock()
		defer mu.Unlock()

		switch g.Status {
		case game.StatusSetup:
			if !me.Ready && !boardRequested {
				boardRequested = true
				_ = cl.ConfirmBoard(g.ID, nil)
			}

		case game.StatusPlaying:
			boardRequested = false
			if g.CurrentTurn != me.ID || g.TurnSeq == lastActed {
				return
			}
			lastActed = g.TurnSeq

			if c.DelayMs > 0 {
				time.Sleep(time.Duration(c.DelayMs) * time.Millisecond)
			}

			move := engine.Decide(me.Board, g.Opponent(me.ID), g.CalledNumbers, g.Config.Variant)
			switch {
			case move.DeclareWin:
				logger.Info("Declaring bingo", "game", g.ID)
				_ = cl.DeclareBingo(g.ID)
			case move.Number > 0:
				logger.Info("Calling number", "game", g.ID, "number", move.Number)
				_ = cl.CallNumber(g.ID, move.Number)
			}

		case game.StatusFinished:
			logger.Info("Game finished", "game", g.ID, "winner", g.Winner)
			closeDone.Do(func() { close(done) })
		}
	})

	cl.AddEventHandler(server.MessageTypeError, func(msg *server.Message) {
		var data server.ErrorData
		_ = json.Unmarshal(msg.Data, &data)
		logger.Error("Server error", "code", data.Code, "message", data.Message)
		closeDone.Do(func() { close(done) })
	})

	if err := cl.Connect(); err != nil {
		return err
	}
	defer func() { _ = cl.Disconnect() }()

	if err := cl.Auth(c.Name, ""); err != nil {
		return err
	}

	ctx := shared.SetupSignalHandlerWithLogger(logger)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}
