package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/bingoforbots/internal/server" // Reuse message types
)

// Client represents a WebSocket client for the bingo game
type Client struct {
	serverURL  string
	conn       *websocket.Conn
	send       chan *server.Message
	receive    chan *server.Message
	logger     *log.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	connected  bool
	playerName string
	playerID   string
	closeOnce  sync.Once

	// Event handlers
	eventHandlers map[server.MessageType][]EventHandler
}

// EventHandler is a function that handles incoming events
type EventHandler func(*server.Message)

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL:     serverURL,
		send:          make(chan *server.Message, 256),
		receive:       make(chan *server.Message, 256),
		logger:        logger.WithPrefix("client"),
		ctx:           ctx,
		cancel:        cancel,
		eventHandlers: make(map[server.MessageType][]EventHandler),
	}
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect() error {
	c.logger.Info("Connecting to server", "url", c.serverURL)

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Convert http/https to ws/wss
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.eventProcessor()

	c.logger.Info("Connected to server")
	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close() // Ignore close errors during shutdown
			c.connected = false
		}

		close(c.send)

		c.logger.Info("Disconnected from server")
	})
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// PlayerID returns the identity assigned by the server, empty before auth.
func (c *Client) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// SendMessage sends a message to the server
func (c *Client) SendMessage(msg *server.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg server.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.logger.Debug("Received message", "type", msg.Type)

		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// eventProcessor processes incoming messages and dispatches to handlers
func (c *Client) eventProcessor() {
	for {
		select {
		case msg := <-c.receive:
			c.handleMessage(msg)
		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches messages to registered handlers
func (c *Client) handleMessage(msg *server.Message) {
	c.trackIdentity(msg)

	c.mu.RLock()
	handlers, exists := c.eventHandlers[msg.Type]
	c.mu.RUnlock()

	if exists {
		for _, handler := range handlers {
			handler(msg)
		}
	} else {
		c.logger.Debug("No handler for message type", "type", msg.Type)
	}
}

// trackIdentity remembers the player id from auth responses so callers
// can tell their own seat apart in game snapshots.
func (c *Client) trackIdentity(msg *server.Message) {
	if msg.Type != server.MessageTypeAuthResponse {
		return
	}
	var data server.AuthResponseData
	if err := json.Unmarshal(msg.Data, &data); err != nil || !data.Success {
		return
	}
	c.mu.Lock()
	c.playerID = data.PlayerID
	c.mu.Unlock()
}

// AddEventHandler adds an event handler for a specific message type
func (c *Client) AddEventHandler(messageType server.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eventHandlers[messageType] = append(c.eventHandlers[messageType], handler)
}

// Auth performs authentication with the server
func (c *Client) Auth(playerName, token string) error {
	c.playerName = playerName
	return c.sendTyped(server.MessageTypeAuth, server.AuthData{
		PlayerName: playerName,
		Token:      token,
	})
}

// CreateGame asks the server to create a new game
func (c *Client) CreateGame(data server.CreateGameData) error {
	return c.sendTyped(server.MessageTypeCreateGame, data)
}

// JoinGame joins an existing game by id
func (c *Client) JoinGame(gameID string) error {
	return c.sendTyped(server.MessageTypeJoinGame, server.JoinGameData{GameID: gameID})
}

// LeaveGame leaves the current game
func (c *Client) LeaveGame(gameID string) error {
	return c.sendTyped(server.MessageTypeLeaveGame, server.LeaveGameData{GameID: gameID})
}

// ListGames requests the server's game list
func (c *Client) ListGames() error {
	return c.sendTyped(server.MessageTypeListGames, struct{}{})
}

// StartGame begins setup for a game still waiting for players
func (c *Client) StartGame(gameID string) error {
	return c.sendTyped(server.MessageTypeStartGame, server.StartGameData{GameID: gameID})
}

// ConfirmBoard submits a board layout. A nil board asks the server to
// deal a random one.
func (c *Client) ConfirmBoard(gameID string, board []int) error {
	return c.sendTyped(server.MessageTypeConfirmBoard, server.ConfirmBoardData{
		GameID: gameID,
		Board:  board,
	})
}

// CallNumber calls a number on the player's turn
func (c *Client) CallNumber(gameID string, number int) error {
	return c.sendTyped(server.MessageTypeCallNumber, server.CallNumberData{
		GameID: gameID,
		Number: number,
	})
}

// DeclareBingo claims a win on the player's current board
func (c *Client) DeclareBingo(gameID string) error {
	return c.sendTyped(server.MessageTypeDeclareBingo, server.DeclareBingoData{GameID: gameID})
}

// ResetGame starts a rematch of a finished game
func (c *Client) ResetGame(gameID string) error {
	return c.sendTyped(server.MessageTypeResetGame, server.ResetGameData{GameID: gameID})
}

func (c *Client) sendTyped(messageType server.MessageType, data any) error {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}
