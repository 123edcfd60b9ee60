package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/bingoforbots/internal/client"
	"github.com/lox/bingoforbots/internal/server"
)

// Bridge manages the connection between a client and TUI model. Server
// events become Bubble Tea messages; user actions become client calls.
type Bridge struct {
	client *client.Client
	tui    *TUIModel

	mu     sync.RWMutex
	sender programSender
	gameID string
}

// programSender is the slice of tea.Program the bridge needs
type programSender interface {
	Send(tea.Msg)
}

// NewBridge creates a new bridge between client and TUI
func NewBridge(client *client.Client, tui *TUIModel) *Bridge {
	bridge := &Bridge{
		client: client,
		tui:    tui,
	}

	bridge.setupEventHandlers()
	return bridge
}

// SetProgram attaches the running Bubble Tea program so server events
// can be delivered into the model's Update loop
func (b *Bridge) SetProgram(p *tea.Program) {
	b.mu.Lock()
	b.sender = p
	b.mu.Unlock()
}

// Start begins the command handling loop (non-blocking)
func (b *Bridge) Start() {
	go b.commandLoop()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.sender
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// GameID returns the game the bridge is currently attached to
func (b *Bridge) GameID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gameID
}

func (b *Bridge) setGameID(id string) {
	b.mu.Lock()
	b.gameID = id
	b.mu.Unlock()
}

// setupEventHandlers configures all client event handlers
func (b *Bridge) setupEventHandlers() {
	b.client.AddEventHandler(server.MessageTypeAuthResponse, b.handleAuthResponse)
	b.client.AddEventHandler(server.MessageTypeGameCreated, b.handleGameCreated)
	b.client.AddEventHandler(server.MessageTypeGameJoined, b.handleGameJoined)
	b.client.AddEventHandler(server.MessageTypeGameLeft, b.handleGameLeft)
	b.client.AddEventHandler(server.MessageTypeGameList, b.handleGameList)
	b.client.AddEventHandler(server.MessageTypeGameState, b.handleGameState)
	b.client.AddEventHandler(server.MessageTypeAdvisory, b.handleAdvisory)
	b.client.AddEventHandler(server.MessageTypeError, b.handleError)
}

// commandLoop handles user actions from the TUI
func (b *Bridge) commandLoop() {
	for {
		action, args, shouldContinue, err := b.tui.WaitForAction()
		if err != nil {
			continue
		}

		if !shouldContinue {
			_ = b.client.Disconnect()
			break
		}

		if err := b.dispatch(action, args); err != nil {
			b.send(AdvisoryMsg{Code: "input", Message: err.Error()})
		}
	}
}

// dispatch turns a parsed user action into a client request
func (b *Bridge) dispatch(action string, args []string) error {
	switch action {
	case "new", "create":
		data := server.CreateGameData{}
		for _, arg := range args {
			switch arg {
			case "bot":
				data.AddBot = true
			case "hard":
				data.AddBot = true
				data.BotDifficulty = "hard"
			default:
				data.Variant = arg
			}
		}
		return b.client.CreateGame(data)

	case "join":
		if len(args) != 1 {
			return fmt.Errorf("usage: join <game-id>")
		}
		return b.client.JoinGame(args[0])

	case "leave":
		return b.client.LeaveGame(b.requireGame())

	case "list", "games":
		return b.client.ListGames()

	case "start":
		return b.client.StartGame(b.requireGame())

	case "ready", "board":
		// No layout given, the server deals a random board
		return b.client.ConfirmBoard(b.requireGame(), nil)

	case "call":
		if len(args) != 1 {
			return fmt.Errorf("usage: call <number>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("not a number: %s", args[0])
		}
		return b.client.CallNumber(b.requireGame(), n)

	case "bingo":
		return b.client.DeclareBingo(b.requireGame())

	case "reset", "rematch":
		return b.client.ResetGame(b.requireGame())

	case "help":
		b.send(AdvisoryMsg{Message: "Commands: new [bot|hard|variant], join <id>, list, start, ready, call <n>, bingo, reset, leave, quit"})
		return nil

	default:
		return fmt.Errorf("unknown command %q, try 'help'", action)
	}
}

// requireGame returns the current game id; empty ids are rejected
// server-side with a clear error, so no guard is needed here.
func (b *Bridge) requireGame() string {
	return b.GameID()
}

// Event handlers

func (b *Bridge) handleAuthResponse(msg *server.Message) {
	var data server.AuthResponseData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}

	if !data.Success {
		b.send(ServerErrorMsg{Code: "auth_failed", Message: data.Error})
		return
	}
	b.send(IdentityMsg{PlayerID: data.PlayerID})
}

func (b *Bridge) handleGameCreated(msg *server.Message) {
	var data server.GameCreatedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}

	// Creating does not seat the creator, join right away
	if err := b.client.JoinGame(data.GameID); err != nil {
		b.send(ServerErrorMsg{Code: "join_failed", Message: err.Error()})
	}
}

func (b *Bridge) handleGameJoined(msg *server.Message) {
	var data server.GameJoinedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}

	b.setGameID(data.GameID)
	b.send(JoinedMsg{GameID: data.GameID, PlayerID: data.PlayerID})
}

func (b *Bridge) handleGameLeft(msg *server.Message) {
	var data server.GameLeftData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}

	b.setGameID("")
	b.send(LeftMsg{GameID: data.GameID})
}

func (b *Bridge) handleGameList(msg *server.Message) {
	var data server.GameListData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	b.send(GameListMsg{Games: data.Games})
}

func (b *Bridge) handleGameState(msg *server.Message) {
	var data server.GameStateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	b.send(GameStateMsg{Revision: data.Revision, Game: data.Game})
}

func (b *Bridge) handleAdvisory(msg *server.Message) {
	var data server.AdvisoryData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	b.send(AdvisoryMsg{Code: data.Code, Message: data.Message})
}

func (b *Bridge) handleError(msg *server.Message) {
	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	b.send(ServerErrorMsg{Code: data.Code, Message: data.Message})
}

// Run connects everything and blocks until the user quits
func Run(c *client.Client, model *TUIModel) error {
	bridge := NewBridge(c, model)
	program := tea.NewProgram(model, tea.WithAltScreen())
	bridge.SetProgram(program)
	bridge.Start()

	_, err := program.Run()
	return err
}
