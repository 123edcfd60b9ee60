package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lox/bingoforbots/cmd/bingoforbots/shared"
	"github.com/lox/bingoforbots/internal/client"
	"github.com/lox/bingoforbots/internal/server"
)

// NewGameCmd creates a game on a remote server and prints its id
type NewGameCmd struct {
	Server     string `kong:"default='ws://localhost:8080/ws',help='WebSocket server URL'"`
	Variant    string `kong:"default='',help='Game variant (classic75, quick25)'"`
	MaxPlayers int    `kong:"default='0',help='Max players, 0 = server default'"`
	Bot        bool   `kong:"help='Seat a server-hosted bot opponent'"`
	Hard       bool   `kong:"help='Use the hard bot (implies --bot)'"`
}

func (c *NewGameCmd) Run() error {
	logger, err := shared.SetupLogger("warn", "")
	if err != nil {
		return err
	}

	cl := client.NewClient(strings.TrimSpace(c.Server), logger)

	created := make(chan string, 1)
	failed := make(chan string, 1)

	cl.AddEventHandler(server.MessageTypeAuthResponse, func(msg *server.Message) {
		data := server.CreateGameData{
			Variant:    c.Variant,
			MaxPlayers: c.MaxPlayers,
			AddBot:     c.Bot || c.Hard,
		}
		if c.Hard {
			data.BotDifficulty = "hard"
		}
		_ = cl.CreateGame(data)
	})
	cl.AddEventHandler(server.MessageTypeGameCreated, func(msg *server.Message) {
		var data server.GameCreatedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		created <- data.GameID
	})
	cl.AddEventHandler(server.MessageTypeError, func(msg *server.Message) {
		var data server.ErrorData
		_ = json.Unmarshal(msg.Data, &data)
		failed <- fmt.Sprintf("%s: %s", data.Code, data.Message)
	})

	if err := cl.Connect(); err != nil {
		return err
	}
	defer func() { _ = cl.Disconnect() }()

	if err := cl.Auth("organizer", ""); err != nil {
		return err
	}

	select {
	case id := <-created:
		fmt.Println(id)
		return nil
	case reason := <-failed:
		return fmt.Errorf("create failed: %s", reason)
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for the server")
	}
}
