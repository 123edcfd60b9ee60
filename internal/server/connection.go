package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/bingoforbots/internal/auth"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/gameid"
	"github.com/lox/bingoforbots/internal/store"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn        *websocket.Conn
	send        chan *Message
	playerID    string
	playerName  string
	gameID      string
	unsubscribe func()
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	closeOnce   sync.Once
	gameService *GameService
	validator   auth.Validator
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, gameService *GameService, validator auth.Validator) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:        conn,
		send:        make(chan *Message, 256),
		logger:      logger.WithPrefix("conn"),
		ctx:         ctx,
		cancel:      cancel,
		gameService: gameService,
		validator:   validator,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stopSubscription()
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// Player returns the authenticated player id, empty before auth.
func (c *Connection) Player() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// Game returns the game this connection is joined to.
func (c *Connection) Game() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID
}

func (c *Connection) setIdentity(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = id
	c.playerName = name
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.Player())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeCreateGame:
		var data CreateGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse create game data")
			return
		}
		c.handleCreateGame(data)

	case MessageTypeJoinGame:
		var data JoinGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join game data")
			return
		}
		c.handleJoinGame(data)

	case MessageTypeLeaveGame:
		var data LeaveGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse leave game data")
			return
		}
		c.handleLeaveGame(data)

	case MessageTypeListGames:
		c.handleListGames()

	case MessageTypeStartGame:
		var data StartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse start game data")
			return
		}
		c.act(data.GameID, "start", func() error {
			return c.gameService.StartGame(c.ctx, data.GameID)
		})

	case MessageTypeConfirmBoard:
		var data ConfirmBoardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse confirm board data")
			return
		}
		c.act(data.GameID, "confirm_board", func() error {
			return c.gameService.ConfirmBoard(c.ctx, data.GameID, c.Player(), data.Board)
		})

	case MessageTypeCallNumber:
		var data CallNumberData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse call number data")
			return
		}
		c.act(data.GameID, "call_number", func() error {
			return c.gameService.CallNumber(c.ctx, data.GameID, c.Player(), data.Number)
		})

	case MessageTypeDeclareBingo:
		var data DeclareBingoData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse declare bingo data")
			return
		}
		c.act(data.GameID, "declare_bingo", func() error {
			return c.gameService.DeclareBingo(c.ctx, data.GameID, c.Player())
		})

	case MessageTypeResetGame:
		var data ResetGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse reset game data")
			return
		}
		c.act(data.GameID, "reset", func() error {
			return c.gameService.ResetGame(c.ctx, data.GameID)
		})

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// act runs a game action, converting rule rejections into advisories
// rather than errors so the client can show a toast and move on.
func (c *Connection) act(gameIDStr, code string, fn func() error) {
	if c.Player() == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}
	if err := fn(); err != nil {
		if game.IsAdvisory(err) {
			c.sendAdvisory(gameIDStr, code, err)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			c.sendError("game_not_found", "No such game: "+gameIDStr)
			return
		}
		c.logger.Error("Action failed", "action", code, "error", err)
		c.sendError(code+"_failed", err.Error())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}

func (c *Connection) sendAdvisory(gameIDStr, code string, ruleErr error) {
	message := ruleErr.Error()
	if errors.Is(ruleErr, game.ErrNotBingo) {
		message = "Not a Bingo!"
	}

	msg, err := NewMessage(MessageTypeAdvisory, AdvisoryData{
		GameID:  gameIDStr,
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create advisory message", "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) handleAuth(data AuthData) {
	c.logger.Info("Auth request", "playerName", data.PlayerName)

	if data.PlayerName == "" {
		c.sendError("invalid_auth", "Player name required")
		return
	}

	identity := auth.Anonymous(data.PlayerName)
	if c.validator != nil {
		validated, err := c.validator.Validate(c.ctx, data.Token)
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			c.sendError("invalid_auth", "Token rejected")
			return
		case err != nil:
			// Fail open: auth service trouble never locks players out of
			// a bingo game.
			c.logger.Warn("Auth service unavailable, allowing anonymous", "error", err)
		case validated != nil:
			identity = *validated
			if identity.Name == "" {
				identity.Name = data.PlayerName
			}
		}
	}

	c.setIdentity(identity.PlayerID, identity.Name)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		PlayerID: identity.PlayerID,
	})
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleCreateGame(data CreateGameData) {
	if c.Player() == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}

	id, err := c.gameService.CreateGame(c.ctx, data)
	if err != nil {
		c.sendError("create_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeGameCreated, GameCreatedData{GameID: id})
	_ = c.SendMessage(response)
}

func (c *Connection) handleJoinGame(data JoinGameData) {
	c.logger.Info("Join game request", "gameId", data.GameID, "player", c.Player())

	if c.Player() == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}
	if err := gameid.Validate(data.GameID); err != nil {
		c.sendError("invalid_game_id", err.Error())
		return
	}

	c.mu.RLock()
	name := c.playerName
	c.mu.RUnlock()

	err := c.gameService.JoinGame(c.ctx, data.GameID, c.Player(), name)
	if err != nil && !errors.Is(err, game.ErrAlreadyJoined) {
		if game.IsAdvisory(err) {
			c.sendAdvisory(data.GameID, "join", err)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			c.sendError("game_not_found", "No such game: "+data.GameID)
			return
		}
		c.sendError("join_failed", err.Error())
		return
	}

	if err := c.subscribe(data.GameID); err != nil {
		c.sendError("subscribe_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeGameJoined, GameJoinedData{
		GameID:   data.GameID,
		PlayerID: c.Player(),
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleLeaveGame(data LeaveGameData) {
	c.act(data.GameID, "leave", func() error {
		return c.gameService.LeaveGame(c.ctx, data.GameID, c.Player())
	})
	c.stopSubscription()

	response, _ := NewMessage(MessageTypeGameLeft, GameLeftData{GameID: data.GameID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleListGames() {
	games, err := c.gameService.ListGames(c.ctx)
	if err != nil {
		c.sendError("list_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeGameList, GameListData{Games: games})
	_ = c.SendMessage(response)
}

// subscribe streams every snapshot of the game to the client as a
// game_state message until the connection leaves or closes.
func (c *Connection) subscribe(gameIDStr string) error {
	c.stopSubscription()

	ch, cancel, err := c.gameService.Subscribe(c.ctx, gameIDStr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.gameID = gameIDStr
	c.unsubscribe = cancel
	c.mu.Unlock()

	go func() {
		for snap := range ch {
			var g game.Game
			if err := snap.Decode(&g); err != nil {
				c.logger.Error("Failed to decode snapshot", "game", gameIDStr, "error", err)
				continue
			}
			msg, err := NewMessage(MessageTypeGameState, GameStateData{
				Revision: snap.Revision,
				Game:     g,
			})
			if err != nil {
				c.logger.Error("Failed to create game state message", "error", err)
				continue
			}
			_ = c.SendMessage(msg)
		}
	}()
	return nil
}

func (c *Connection) stopSubscription() {
	c.mu.Lock()
	cancel := c.unsubscribe
	c.unsubscribe = nil
	c.gameID = ""
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
