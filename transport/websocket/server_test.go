package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
)

const readTimeout = 5 * time.Second

type testApp struct {
	server *Server
	hub    *Hub
	games  service.GameService
}

func newTestApp(t *testing.T) testApp {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	hub := NewHub(logger)
	locks := service.NewSessionLocks()
	gameService := service.NewGameService(repository.NewMemoryGameRepository())
	playerService := service.NewPlayerService(repository.NewMemoryPlayerRepository())

	matchmaker := service.NewMatchmaker(logger, locks, gameService, playerService, hub, service.MatchmakerOptions{})
	gamePlay := service.NewGamePlayService(logger, locks, gameService, playerService, hub)
	gameUseCase := usecase.NewGameUseCase(logger, matchmaker, gamePlay, gameService, hub)

	return testApp{
		server: New(logger, hub, gameUseCase),
		hub:    hub,
		games:  gameService,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := newTestApp(t)

	srv := httptest.NewServer(app.server.Handler(ctx))
	t.Cleanup(srv.Close)

	return srv, app.hub
}

func freePort(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	return port
}

// dialRetry - dials until the server accepts or readTimeout passes.
func dialRetry(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	deadline := time.Now().Add(readTimeout)

	for {
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			_ = resp.Body.Close()
			t.Cleanup(func() { _ = conn.Close() })

			return conn
		}

		require.True(t, time.Now().Before(deadline), "server did not come up: %v", err)
		time.Sleep(20 * time.Millisecond)
	}
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) entity.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	var event entity.Event
	require.NoError(t, conn.ReadJSON(&event))

	return event
}

func sendTurn(t *testing.T, conn *websocket.Conn, row, col int) {
	t.Helper()

	payload, err := json.Marshal(TurnPayload{Row: &row, Col: &col})
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{Action: actionGameTurn, Payload: payload}))
}

func connect(t *testing.T, srv *httptest.Server, query string) (*websocket.Conn, string) {
	t.Helper()

	conn := dial(t, srv, query)

	greeting := readEvent(t, conn)
	require.Equal(t, entity.EventConnected, greeting.Action)
	require.NotNil(t, greeting.Payload.Player)
	require.NotEmpty(t, greeting.Payload.Player.ID)

	return conn, greeting.Payload.Player.ID
}

func TestServer_Game(t *testing.T) {
	srv, _ := newTestServer(t)

	// Given: A waits for an opponent
	connA, idA := connect(t, srv, "")
	waiting := readEvent(t, connA)
	require.Equal(t, entity.EventWaiting, waiting.Action)

	// When: B connects
	connB, idB := connect(t, srv, "")

	// Then: both get game:start and A plays X
	startA := readEvent(t, connA)
	startB := readEvent(t, connB)
	require.Equal(t, entity.EventSessionStart, startA.Action)
	require.Equal(t, startA, startB)
	require.NotNil(t, startA.Payload.Game.Turn)
	assert.Equal(t, idA, *startA.Payload.Game.Turn)
	assert.Equal(t, &entity.SlotPlayer{ID: idA, Mark: entity.PlayerX}, startA.Payload.Game.Players.Slot1)
	assert.Equal(t, &entity.SlotPlayer{ID: idB, Mark: entity.PlayerO}, startA.Payload.Game.Players.Slot2)

	// And: X wins on the main diagonal
	moves := []struct {
		conn     *websocket.Conn
		row, col int
	}{
		{connA, 0, 0},
		{connB, 0, 1},
		{connA, 1, 1},
		{connB, 0, 2},
		{connA, 2, 2},
	}

	var last entity.Event
	for _, move := range moves {
		sendTurn(t, move.conn, move.row, move.col)

		last = readEvent(t, connA)
		assert.Equal(t, last, readEvent(t, connB))
	}

	assert.Equal(t, entity.EventSessionEnded, last.Action)
	assert.Equal(t, entity.ResultWin, last.Payload.Game.Result)
	assert.Equal(t, entity.PlayerX, last.Payload.Game.Winner)
	assert.Nil(t, last.Payload.Game.Turn)
}

func TestServer_RejectedMessagesGoToSenderOnly(t *testing.T) {
	srv, _ := newTestServer(t)

	connA, _ := connect(t, srv, "")
	readEvent(t, connA)
	connB, _ := connect(t, srv, "")
	readEvent(t, connA)
	readEvent(t, connB)

	tests := []struct {
		name   string
		send   func()
		reason string
	}{
		{
			name:   "not your turn",
			send:   func() { sendTurn(t, connB, 0, 0) },
			reason: "not_your_turn",
		},
		{
			name:   "unknown action",
			send:   func() { require.NoError(t, connB.WriteJSON(Message{Action: "game:dance"})) },
			reason: "unknown_action",
		},
		{
			name:   "missing coordinates",
			send:   func() { require.NoError(t, connB.WriteJSON(Message{Action: actionGameTurn, Payload: []byte(`{"row":1}`)})) },
			reason: "invalid_payload",
		},
		{
			name:   "not json",
			send:   func() { require.NoError(t, connB.WriteMessage(websocket.TextMessage, []byte("hello"))) },
			reason: "invalid_payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()

			event := readEvent(t, connB)
			assert.Equal(t, entity.EventError, event.Action)
			assert.Equal(t, tt.reason, event.Payload.Error)
		})
	}

	// A heard nothing: its next event is the move it makes itself
	sendTurn(t, connA, 0, 0)
	event := readEvent(t, connA)
	assert.Equal(t, entity.EventMoveApplied, event.Action)
}

func TestServer_DisconnectAbandonsGame(t *testing.T) {
	srv, hub := newTestServer(t)

	connA, _ := connect(t, srv, "")
	readEvent(t, connA)
	connB, _ := connect(t, srv, "")
	readEvent(t, connA)
	readEvent(t, connB)

	// When: A closes the socket
	require.NoError(t, connA.Close())

	// Then: B is told the game was abandoned
	event := readEvent(t, connB)
	assert.Equal(t, entity.EventSessionEnded, event.Action)
	assert.Equal(t, entity.ResultAbandoned, event.Payload.Game.Result)

	assert.Eventually(t, func() bool { return hub.Len() == 1 }, readTimeout, 10*time.Millisecond)
}

func TestServer_JoinByGameID(t *testing.T) {
	srv, _ := newTestServer(t)

	connA, idA := connect(t, srv, "")
	waiting := readEvent(t, connA)
	gameID := waiting.Payload.Game.ID

	// When: B asks for A's game by id
	connB, _ := connect(t, srv, "?game="+gameID)

	start := readEvent(t, connB)
	assert.Equal(t, entity.EventSessionStart, start.Action)
	assert.Equal(t, gameID, start.Payload.Game.ID)
	assert.Equal(t, idA, start.Payload.Game.Players.Slot1.ID)

	// And: a third connection asking for the same game is turned away
	connC, _ := connect(t, srv, "?game="+gameID)

	rejected := readEvent(t, connC)
	assert.Equal(t, entity.EventError, rejected.Action)
	assert.Equal(t, "game_full", rejected.Payload.Error)
}

func TestServer_ShutdownDisconnectsOpenConnections(t *testing.T) {
	app := newTestApp(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- app.server.Start(ctx, port) }()

	// Given: A waits for an opponent
	conn := dialRetry(t, "ws://127.0.0.1:"+port+"/ws")
	require.Equal(t, entity.EventConnected, readEvent(t, conn).Action)

	waiting := readEvent(t, conn)
	require.Equal(t, entity.EventWaiting, waiting.Action)

	// When: the server shuts down
	cancel()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(readTimeout):
		t.Fatal("server did not stop")
	}

	// Then: the connection was closed and its game abandoned before Start returned
	assert.Zero(t, app.hub.Len())

	game, err := app.games.GetGameByID(context.Background(), waiting.Payload.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ResultAbandoned, game.Result)

	_, err = app.games.FindJoinableGame(context.Background())
	require.ErrorIs(t, err, apperror.ErrNoJoinableGames)

	// And: the client sees the socket closed
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestHub_CloseAllRefusesNewConnections(t *testing.T) {
	srv, hub := newTestServer(t)

	connA, _ := connect(t, srv, "")
	readEvent(t, connA)

	// When: the hub is closed
	hub.CloseAll()

	// Then: A is dropped and a new connection is turned away
	require.Eventually(t, func() bool { return hub.Len() == 0 }, readTimeout, 10*time.Millisecond)

	connB := dial(t, srv, "")
	require.NoError(t, connB.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err := connB.ReadMessage()
	require.Error(t, err)
	assert.Zero(t, hub.Len())
}
