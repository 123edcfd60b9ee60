package testing

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/bingoforbots/internal/auth"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/server"
	"github.com/lox/bingoforbots/internal/store"
)

// settleDelay gives the driver goroutines time to observe a snapshot
// and arm their timers before the mock clock advances past them.
const settleDelay = 50 * time.Millisecond

// Harness wires a real server stack onto a mock clock so scenarios can
// step through timeouts deterministically.
type Harness struct {
	T       *testing.T
	Clock   *quartz.Mock
	Store   *store.MemStore
	Service *server.GameService
	TS      *httptest.Server
}

// NewHarness starts a full server on an httptest listener
func NewHarness(t *testing.T, defaults game.Config) *Harness {
	t.Helper()

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	clock := quartz.NewMock(t)
	memStore := store.NewMemStore()
	service := server.NewGameService(memStore, clock, defaults, 0, logger)
	srv := server.NewServer("", service, &auth.NoopValidator{}, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})

	return &Harness{
		T:       t,
		Clock:   clock,
		Store:   memStore,
		Service: service,
		TS:      ts,
	}
}

// Settle waits for in-flight snapshot deliveries to drain
func (h *Harness) Settle() {
	time.Sleep(settleDelay)
}

// Advance settles, moves the mock clock and settles again, so timers
// armed before the advance have fired and their updates propagated.
func (h *Harness) Advance(d time.Duration) {
	h.T.Helper()
	h.Settle()
	h.Clock.Advance(d).MustWait(h.T.Context())
	h.Settle()
}

// WSPlayer is one authenticated websocket seat in a scenario
type WSPlayer struct {
	t        *testing.T
	conn     *websocket.Conn
	Name     string
	PlayerID string
}

// Dial connects and authenticates a named player
func (h *Harness) Dial(name string) *WSPlayer {
	h.T.Helper()

	url := "ws" + strings.TrimPrefix(h.TS.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(h.T, err)
	h.T.Cleanup(func() { _ = conn.Close() })

	p := &WSPlayer{t: h.T, conn: conn, Name: name}
	p.Send(server.MessageTypeAuth, server.AuthData{PlayerName: name})

	var resp server.AuthResponseData
	p.Expect(server.MessageTypeAuthResponse, &resp)
	require.True(h.T, resp.Success)
	p.PlayerID = resp.PlayerID
	return p
}

// Send writes a typed message to the server
func (p *WSPlayer) Send(mt server.MessageType, data any) {
	p.t.Helper()
	msg, err := server.NewMessage(mt, data)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteJSON(msg))
}

// Expect reads until a message of the wanted type arrives, skipping
// interleaved game_state pushes. Protocol errors fail the test.
func (p *WSPlayer) Expect(mt server.MessageType, into any) {
	p.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(p.t, p.conn.SetReadDeadline(deadline))
		var msg server.Message
		require.NoError(p.t, p.conn.ReadJSON(&msg))
		if msg.Type == mt {
			if into != nil {
				require.NoError(p.t, json.Unmarshal(msg.Data, into))
			}
			return
		}
		if msg.Type == server.MessageTypeError {
			var e server.ErrorData
			_ = json.Unmarshal(msg.Data, &e)
			p.t.Fatalf("expected %s, got error %s: %s", mt, e.Code, e.Message)
		}
	}
}

// WaitState reads game_state pushes until the predicate holds, and
// returns that snapshot.
func (p *WSPlayer) WaitState(pred func(*game.Game) bool) *game.Game {
	p.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(p.t, p.conn.SetReadDeadline(deadline))
		var msg server.Message
		require.NoError(p.t, p.conn.ReadJSON(&msg))
		if msg.Type == server.MessageTypeError {
			var e server.ErrorData
			_ = json.Unmarshal(msg.Data, &e)
			p.t.Fatalf("waiting on state, got error %s: %s", e.Code, e.Message)
		}
		if msg.Type != server.MessageTypeGameState {
			continue
		}
		var state server.GameStateData
		require.NoError(p.t, json.Unmarshal(msg.Data, &state))
		if pred(&state.Game) {
			return &state.Game
		}
	}
}

// CreateAndJoin creates a game, joins it and returns the game id
func (p *WSPlayer) CreateAndJoin(data server.CreateGameData) string {
	p.t.Helper()
	p.Send(server.MessageTypeCreateGame, data)

	var created server.GameCreatedData
	p.Expect(server.MessageTypeGameCreated, &created)
	p.Join(created.GameID)
	return created.GameID
}

// Join joins an existing game by id
func (p *WSPlayer) Join(gameID string) {
	p.t.Helper()
	p.Send(server.MessageTypeJoinGame, server.JoinGameData{GameID: gameID})

	var joined server.GameJoinedData
	p.Expect(server.MessageTypeGameJoined, &joined)
	require.Equal(p.t, gameID, joined.GameID)
}

// Ready confirms with a server-dealt random board
func (p *WSPlayer) Ready(gameID string) {
	p.t.Helper()
	p.Send(server.MessageTypeConfirmBoard, server.ConfirmBoardData{GameID: gameID})
}
