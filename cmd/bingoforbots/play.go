package main

import (
	"os"
	"strings"
	"sync"

	"github.com/lox/bingoforbots/cmd/bingoforbots/shared"
	"github.com/lox/bingoforbots/internal/client"
	"github.com/lox/bingoforbots/internal/server"
	"github.com/lox/bingoforbots/internal/tui"
)

// PlayCmd connects to a server and plays bingo in the terminal
type PlayCmd struct {
	Server  string `kong:"default='ws://localhost:8080/ws',help='WebSocket server URL'"`
	Name    string `kong:"default='',help='Display name (defaults to $USER or \"Player\")'"`
	Game    string `kong:"help='Game id to join on startup'"`
	Bot     bool   `kong:"help='Create a game against the server bot on startup'"`
	Hard    bool   `kong:"help='Use the hard bot (implies --bot)'"`
	Token   string `kong:"help='Auth token, optional'"`
	LogFile string `kong:"default='bingoforbots.log',help='Debug log file (the TUI owns the terminal)'"`
}

func (c *PlayCmd) Run() error {
	logger, err := shared.SetupLogger("info", c.LogFile)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "Player"
	}

	cl := client.NewClient(strings.TrimSpace(c.Server), logger)

	// Kick off the opening moves once authentication lands
	var opening sync.Once
	cl.AddEventHandler(server.MessageTypeAuthResponse, func(msg *server.Message) {
		opening.Do(func() {
			switch {
			case c.Game != "":
				_ = cl.JoinGame(c.Game)
			case c.Bot || c.Hard:
				data := server.CreateGameData{AddBot: true}
				if c.Hard {
					data.BotDifficulty = "hard"
				}
				_ = cl.CreateGame(data)
			default:
				_ = cl.ListGames()
			}
		})
	})

	if err := cl.Connect(); err != nil {
		return err
	}
	defer func() { _ = cl.Disconnect() }()

	if err := cl.Auth(name, c.Token); err != nil {
		return err
	}

	model := tui.NewTUIModel(logger)
	return tui.Run(cl, model)
}
