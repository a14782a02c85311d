// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelongaro/Squeak-sub000/internal/auth"
	"github.com/michaelongaro/Squeak-sub000/internal/config"
	"github.com/michaelongaro/Squeak-sub000/internal/game"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.Config{Port: "0", Game: game.DefaultSettings()}
	hub := game.NewHub(cfg.Game)
	srv := New(ctx, cfg, hub, auth.NewSigner("test-secret", time.Hour))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		cancel()
		ts.Close()
		hub.Shutdown()
	})
	return ts
}

func guestToken(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	body, _ := json.Marshal(guestRequest{Username: name})
	resp, err := http.Post(ts.URL+"/auth/guest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, name, out.User.Username)
	return out.Token
}

func createRoom(t *testing.T, ts *httptest.Server, token string, req createRoomRequest) game.RoomInfo {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequest(http.MethodPost, ts.URL+"/rooms", bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info game.RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return info
}

func wsURL(ts *httptest.Server, code, token, password string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + code + "?token=" + token
	if password != "" {
		u += "&password=" + password
	}
	return u
}

// readUntil reads events until one of type want arrives.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, want game.GameEventType) map[string]interface{} {
	t.Helper()
	for {
		var ev map[string]interface{}
		require.NoError(t, wsjson.Read(ctx, c, &ev))
		if ev["type"] == string(want) {
			return ev
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoomNeedsToken(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/rooms", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndGetRoom(t *testing.T) {
	ts := newTestServer(t)
	token := guestToken(t, ts, "alice")
	info := createRoom(t, ts, token, createRoomRequest{PointsToWin: 30, MaxPlayers: 3})
	assert.Equal(t, 30, info.PointsToWin)
	assert.Equal(t, 3, info.MaxPlayers)

	resp, err := http.Get(ts.URL + "/rooms/" + strings.ToLower(info.Code))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(ts.URL + "/rooms/ZZZZZZ")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestWebSocketJoinAndPlay(t *testing.T) {
	ts := newTestServer(t)
	aliceTok := guestToken(t, ts, "alice")
	bobTok := guestToken(t, ts, "bob")
	info := createRoom(t, ts, aliceTok, createRoomRequest{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, _, err := websocket.Dial(ctx, wsURL(ts, info.Code, aliceTok, ""), nil)
	require.NoError(t, err)
	defer alice.CloseNow()
	syncEv := readUntil(t, ctx, alice, game.EventSyncState)
	state := syncEv["state"].(map[string]interface{})
	assert.Equal(t, "lobby", state["phase"])

	bob, _, err := websocket.Dial(ctx, wsURL(ts, info.Code, bobTok, ""), nil)
	require.NoError(t, err)
	defer bob.CloseNow()
	readUntil(t, ctx, bob, game.EventSyncState)
	readUntil(t, ctx, alice, game.EventPlayerJoined)

	require.NoError(t, wsjson.Write(ctx, bob, map[string]string{"type": game.ActionStartGame}))
	errEv := readUntil(t, ctx, bob, game.EventError)
	assert.Equal(t, "notHost", errEv["payload"].(map[string]interface{})["code"])

	require.NoError(t, wsjson.Write(ctx, alice, map[string]string{"type": game.ActionStartGame}))
	readUntil(t, ctx, bob, game.EventRoundStarted)

	require.NoError(t, wsjson.Write(ctx, bob, map[string]string{"type": game.ActionDrawFromDeck}))
	drawn := readUntil(t, ctx, alice, game.EventDeckDrawn)
	assert.Equal(t, "bob", drawn["user"].(map[string]interface{})["username"])
}

func TestWebSocketUnknownAction(t *testing.T) {
	ts := newTestServer(t)
	token := guestToken(t, ts, "carol")
	info := createRoom(t, ts, token, createRoomRequest{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, wsURL(ts, info.Code, token, ""), nil)
	require.NoError(t, err)
	defer c.CloseNow()

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "teleport"}))
	ev := readUntil(t, ctx, c, game.EventError)
	assert.Equal(t, "badRequest", ev["payload"].(map[string]interface{})["code"])
}

func TestWebSocketRejects(t *testing.T) {
	ts := newTestServer(t)
	token := guestToken(t, ts, "dave")
	info := createRoom(t, ts, token, createRoomRequest{Password: "secret"})
	assert.True(t, info.Private)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(ts, info.Code, token, "wrong"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, wsURL(ts, info.Code, "bogus", ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c, _, err := websocket.Dial(ctx, wsURL(ts, info.Code, token, "secret"), nil)
	require.NoError(t, err)
	c.CloseNow()
}

func TestAddBotThroughWebSocket(t *testing.T) {
	ts := newTestServer(t)
	token := guestToken(t, ts, "erin")
	info := createRoom(t, ts, token, createRoomRequest{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, wsURL(ts, info.Code, token, ""), nil)
	require.NoError(t, err)
	defer c.CloseNow()
	readUntil(t, ctx, c, game.EventSyncState)

	require.NoError(t, wsjson.Write(ctx, c, map[string]interface{}{
		"type":    game.ActionAddBot,
		"payload": map[string]string{"difficulty": "easy"},
	}))
	joined := readUntil(t, ctx, c, game.EventPlayerJoined)
	player := joined["payload"].(map[string]interface{})["player"].(map[string]interface{})
	assert.Equal(t, true, player["isBot"])
}

func TestHistoryDisabledWithoutBackends(t *testing.T) {
	ts := newTestServer(t)
	token := guestToken(t, ts, "frank")
	info := createRoom(t, ts, token, createRoomRequest{})

	for _, path := range []string{"/history", "/rounds"} {
		resp, err := http.Get(ts.URL + "/rooms/" + info.Code + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}
