package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeAuth         MessageType = "auth"
	MessageTypeCreateGame   MessageType = "create_game"
	MessageTypeJoinGame     MessageType = "join_game"
	MessageTypeLeaveGame    MessageType = "leave_game"
	MessageTypeListGames    MessageType = "list_games"
	MessageTypeStartGame    MessageType = "start_game"
	MessageTypeConfirmBoard MessageType = "confirm_board"
	MessageTypeCallNumber   MessageType = "call_number"
	MessageTypeDeclareBingo MessageType = "declare_bingo"
	MessageTypeResetGame    MessageType = "reset_game"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeGameCreated  MessageType = "game_created"
	MessageTypeGameJoined   MessageType = "game_joined"
	MessageTypeGameLeft     MessageType = "game_left"
	MessageTypeGameList     MessageType = "game_list"
	MessageTypeGameState    MessageType = "game_state"
	MessageTypeAdvisory     MessageType = "advisory"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
