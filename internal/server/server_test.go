package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bingoforbots/internal/auth"
	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/store"
)

// wsClient wraps a test websocket connection with typed send/expect
// helpers.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialTestServer(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(mt MessageType, data any) {
	c.t.Helper()
	msg, err := NewMessage(mt, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// expect reads messages until one of the wanted type arrives, skipping
// game_state pushes that interleave with responses.
func (c *wsClient) expect(mt MessageType, into any) {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type == mt {
			if into != nil {
				require.NoError(c.t, json.Unmarshal(msg.Data, into))
			}
			return
		}
		if msg.Type == MessageTypeError {
			var e ErrorData
			_ = json.Unmarshal(msg.Data, &e)
			c.t.Fatalf("expected %s, got error %s: %s", mt, e.Code, e.Message)
		}
	}
}

func (c *wsClient) auth(name string) string {
	c.t.Helper()
	c.send(MessageTypeAuth, AuthData{PlayerName: name})
	var resp AuthResponseData
	c.expect(MessageTypeAuthResponse, &resp)
	require.True(c.t, resp.Success)
	require.NotEmpty(c.t, resp.PlayerID)
	return resp.PlayerID
}

func newWSTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	defaults := game.Config{Variant: bingo.Quick25, MaxPlayers: 2}
	gs := NewGameService(store.NewMemStore(), quartz.NewReal(), defaults, 0, testLogger())

	srv := NewServer("localhost:0", gs, auth.NewNoopValidator(), testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})
	return ts
}

func TestServerAuthRequired(t *testing.T) {
	ts := newWSTestServer(t)
	c := dialTestServer(t, ts)

	c.send(MessageTypeCreateGame, CreateGameData{})

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, c.conn.SetReadDeadline(deadline))
	var msg Message
	require.NoError(t, c.conn.ReadJSON(&msg))
	require.Equal(t, MessageTypeError, msg.Type)

	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, "not_authenticated", e.Code)
}

func TestServerTwoPlayerGame(t *testing.T) {
	ts := newWSTestServer(t)

	alice := dialTestServer(t, ts)
	bob := dialTestServer(t, ts)
	alice.auth("Alice")
	bobID := bob.auth("Bob")

	alice.send(MessageTypeCreateGame, CreateGameData{})
	var created GameCreatedData
	alice.expect(MessageTypeGameCreated, &created)
	require.NotEmpty(t, created.GameID)

	alice.send(MessageTypeJoinGame, JoinGameData{GameID: created.GameID})
	alice.expect(MessageTypeGameJoined, nil)

	bob.send(MessageTypeJoinGame, JoinGameData{GameID: created.GameID})
	var joined GameJoinedData
	bob.expect(MessageTypeGameJoined, &joined)
	assert.Equal(t, bobID, joined.PlayerID)

	// Second join moved the game to setup; both confirm boards.
	alice.send(MessageTypeConfirmBoard, ConfirmBoardData{GameID: created.GameID, Board: sequentialBoard()})
	bob.send(MessageTypeConfirmBoard, ConfirmBoardData{GameID: created.GameID, Board: sequentialBoard()})

	// Both clients converge on a playing snapshot.
	var state GameStateData
	for state.Game.Status != game.StatusPlaying {
		bob.expect(MessageTypeGameState, &state)
	}
	assert.Len(t, state.Game.Players, 2)
	assert.NotEmpty(t, state.Game.CurrentTurn)
}

func TestServerAdvisoryOnBadDeclare(t *testing.T) {
	ts := newWSTestServer(t)

	alice := dialTestServer(t, ts)
	bob := dialTestServer(t, ts)
	alice.auth("Alice")
	bob.auth("Bob")

	alice.send(MessageTypeCreateGame, CreateGameData{})
	var created GameCreatedData
	alice.expect(MessageTypeGameCreated, &created)

	alice.send(MessageTypeJoinGame, JoinGameData{GameID: created.GameID})
	alice.expect(MessageTypeGameJoined, nil)
	bob.send(MessageTypeJoinGame, JoinGameData{GameID: created.GameID})
	bob.expect(MessageTypeGameJoined, nil)

	alice.send(MessageTypeConfirmBoard, ConfirmBoardData{GameID: created.GameID, Board: sequentialBoard()})
	bob.send(MessageTypeConfirmBoard, ConfirmBoardData{GameID: created.GameID, Board: sequentialBoard()})

	var state GameStateData
	for state.Game.Status != game.StatusPlaying {
		alice.expect(MessageTypeGameState, &state)
	}

	// Nothing called yet, so a declaration is a toast, not a win.
	alice.send(MessageTypeDeclareBingo, DeclareBingoData{GameID: created.GameID})
	var advisory AdvisoryData
	alice.expect(MessageTypeAdvisory, &advisory)
	assert.Equal(t, "Not a Bingo!", advisory.Message)
}

func TestServerListGames(t *testing.T) {
	ts := newWSTestServer(t)

	c := dialTestServer(t, ts)
	c.auth("Alice")

	c.send(MessageTypeListGames, nil)
	var list GameListData
	c.expect(MessageTypeGameList, &list)
	assert.Empty(t, list.Games)

	c.send(MessageTypeCreateGame, CreateGameData{})
	c.expect(MessageTypeGameCreated, nil)

	c.send(MessageTypeListGames, nil)
	c.expect(MessageTypeGameList, &list)
	require.Len(t, list.Games, 1)
	assert.Equal(t, "waiting", list.Games[0].Status)
	assert.Equal(t, "quick25", list.Games[0].Variant)
}
