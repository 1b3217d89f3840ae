package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullRoom seats four players through the lobby and returns their join responses.
func fullRoom(t *testing.T, gs *GameServer) []joinResponse {
	t.Helper()
	h := Routes(gs)
	var out []joinResponse
	for _, name := range []string{"ann", "ben", "cat", "dan"} {
		out = append(out, join(t, h, name))
	}
	require.NotEqual(t, uuid.Nil, out[3].RoomID)
	return out
}

func dial(ctx context.Context, t *testing.T, srv *httptest.Server, roomID uuid.UUID, token string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + roomID.String() + "?token=" + token
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"game"}})
	return c, err
}

func readEvent(ctx context.Context, t *testing.T, c *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var ev map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func readUntil(ctx context.Context, t *testing.T, c *websocket.Conn, typ string) map[string]json.RawMessage {
	t.Helper()
	for {
		ev := readEvent(ctx, t, c)
		if string(ev["type"]) == `"`+typ+`"` {
			return ev
		}
	}
}

func TestRoomWebSocketFlow(t *testing.T) {
	rules := game.DefaultHouseRules()
	rules.AbortOnDisconnect = false
	gs := newTestServer(t, rules)
	srv := httptest.NewServer(Routes(gs))
	defer srv.Close()

	players := fullRoom(t, gs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := dial(ctx, t, srv, players[3].RoomID, players[0].Token)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	ev := readUntil(ctx, t, c, string(game.EventPrivateSyncState))
	assert.NotEmpty(t, ev["state"])

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	readUntil(ctx, t, c, "pong")

	// seat 1 opens in the discard phase, so a draw is refused
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"action_draw","payload":{"source":"stock"}}`)))
	fail := readUntil(ctx, t, c, string(game.EventPrivateActionFail))
	var e game.Error
	require.NoError(t, json.Unmarshal(fail["error"], &e))
	assert.Equal(t, game.ErrNoDrawRight.Code, e.Code)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"action_evaluate"}`)))
	readUntil(ctx, t, c, string(game.EventPrivateEvaluation))
}

func TestRoomWebSocketKeepsEventOrder(t *testing.T) {
	rules := game.DefaultHouseRules()
	rules.AbortOnDisconnect = false
	gs := newTestServer(t, rules)
	srv := httptest.NewServer(Routes(gs))
	defer srv.Close()

	players := fullRoom(t, gs)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := dial(ctx, t, srv, players[3].RoomID, players[1].Token)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")
	readUntil(ctx, t, c, string(game.EventPrivateSyncState))

	const n = 100
	sent := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			msg := fmt.Sprintf(`{"type":"x%03d"}`, i)
			if err := c.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				sent <- err
				return
			}
		}
		sent <- nil
	}()

	for i := 0; i < n; i++ {
		ev := readUntil(ctx, t, c, string(game.EventPrivateActionFail))
		var payload struct {
			Action string `json:"action"`
		}
		require.NoError(t, json.Unmarshal(ev["payload"], &payload))
		require.Equal(t, fmt.Sprintf("x%03d", i), payload.Action)
	}
	require.NoError(t, <-sent)
}

func TestRoomWebSocketRejectsBadTicket(t *testing.T) {
	gs := newTestServer(t, game.DefaultHouseRules())
	srv := httptest.NewServer(Routes(gs))
	defer srv.Close()

	players := fullRoom(t, gs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := dial(ctx, t, srv, players[3].RoomID, "not-a-token")
	require.NoError(t, err)
	_, _, err = c.Read(ctx)
	assert.Equal(t, InvalidAuthTokenError, websocket.CloseStatus(err))
}

func TestRoomWebSocketDisconnectAborts(t *testing.T) {
	gs := newTestServer(t, game.DefaultHouseRules())
	srv := httptest.NewServer(Routes(gs))
	defer srv.Close()

	players := fullRoom(t, gs)
	roomID := players[3].RoomID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := dial(ctx, t, srv, roomID, players[1].Token)
	require.NoError(t, err)
	readUntil(ctx, t, c, string(game.EventPrivateSyncState))
	c.Close(websocket.StatusNormalClosure, "bye")

	require.Eventually(t, func() bool {
		_, ok := gs.Rooms.GetRoom(roomID)
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
	_, ok := gs.Lobbies.GetLobby(players[0].LobbyID)
	assert.False(t, ok)
}
