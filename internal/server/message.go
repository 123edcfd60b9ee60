package server

import (
	"encoding/json"
	"time"

	"github.com/lox/bingoforbots/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	PlayerName string `json:"playerName"`
	Token      string `json:"token,omitempty"`
}

type CreateGameData struct {
	Variant           string `json:"variant,omitempty"`
	MaxPlayers        int    `json:"maxPlayers,omitempty"`
	AddBot            bool   `json:"addBot,omitempty"`
	BotDifficulty     string `json:"botDifficulty,omitempty"`
	TurnLimitSeconds  int    `json:"turnLimitSeconds,omitempty"`
	SetupLimitSeconds int    `json:"setupLimitSeconds,omitempty"`
	TimeBankSeconds   int    `json:"timeBankSeconds,omitempty"`
}

type JoinGameData struct {
	GameID string `json:"gameId"`
}

type LeaveGameData struct {
	GameID string `json:"gameId"`
}

type StartGameData struct {
	GameID string `json:"gameId"`
}

type ConfirmBoardData struct {
	GameID string `json:"gameId"`
	Board  []int  `json:"board"`
}

type CallNumberData struct {
	GameID string `json:"gameId"`
	Number int    `json:"number"`
}

type DeclareBingoData struct {
	GameID string `json:"gameId"`
}

type ResetGameData struct {
	GameID string `json:"gameId"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AdvisoryData is a non-fatal rule rejection surfaced to the acting
// player, e.g. "Not a Bingo!". The session stays up.
type AdvisoryData struct {
	GameID  string `json:"gameId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameCreatedData struct {
	GameID string `json:"gameId"`
}

type GameJoinedData struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type GameLeftData struct {
	GameID string `json:"gameId"`
}

// GameStateData carries a full game snapshot. The server pushes one on
// every document change; clients recompute their view from it.
type GameStateData struct {
	Revision int64     `json:"revision"`
	Game     game.Game `json:"game"`
}

type GameSummary struct {
	GameID  string `json:"gameId"`
	Status  string `json:"status"`
	Players int    `json:"players"`
	Max     int    `json:"max"`
	Variant string `json:"variant"`
}

type GameListData struct {
	Games []GameSummary `json:"games"`
}
