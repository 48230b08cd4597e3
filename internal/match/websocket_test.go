package match_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/xo-server/internal/match"
)

// newTestServer 啟動只掛 WebSocket 路由的測試服務器
func newTestServer(t *testing.T) (*httptest.Server, *testEngine) {
	t.Helper()
	te := newTestEngine(t, 10)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := match.NewHub(te.engine, logger)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return srv, te
}

// dialPlayer 以指定玩家身份建立 WebSocket 連線
func dialPlayer(t *testing.T, srv *httptest.Server, playerID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?player_id=" + playerID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendEvent 發送客戶端事件
func sendEvent(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

// readEvent 讀取下一個服務端事件（2 秒內必須送達）
func readEvent(t *testing.T, conn *websocket.Conn) match.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event match.ServerEvent
	require.NoError(t, json.Unmarshal(message, &event))
	return event
}

// TestServeWS_RejectsBadPlayerID 測試身份參數校驗
func TestServeWS_RejectsBadPlayerID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?player_id=not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestServeWS_MatchOverWire 測試完整的線上流程：配對、落子、協議錯誤、斷線判負
func TestServeWS_MatchOverWire(t *testing.T) {
	srv, te := newTestServer(t)
	xID, oID := uuid.New(), uuid.New()

	xConn := dialPlayer(t, srv, xID)
	oConn := dialPlayer(t, srv, oID)

	// 先手先入隊，確保配對結果確定
	sendEvent(t, xConn, `{"event":"search"}`)
	require.Eventually(t, func() bool {
		return te.registry.WaitingCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	sendEvent(t, oConn, `{"event":"search"}`)

	// X 視角：game_found、round_start、your_turn
	found := readEvent(t, xConn)
	require.Equal(t, match.EventGameFound, found.Event)
	data := found.Data.(map[string]any)
	assert.Equal(t, xID.String(), data["x_player"])
	assert.Equal(t, oID.String(), data["o_player"])
	assert.Equal(t, match.EventRoundStart, readEvent(t, xConn).Event)
	assert.Equal(t, match.EventYourTurn, readEvent(t, xConn).Event)

	// O 視角：game_found、round_start
	assert.Equal(t, match.EventGameFound, readEvent(t, oConn).Event)
	assert.Equal(t, match.EventRoundStart, readEvent(t, oConn).Event)

	// X 落子，O 收到 play 與行動權
	sendEvent(t, xConn, `{"event":"play","data":{"place":4}}`)
	play := readEvent(t, oConn)
	require.Equal(t, match.EventPlay, play.Event)
	playData := play.Data.(map[string]any)
	assert.Equal(t, float64(4), playData["place"])
	assert.Equal(t, xID.String(), playData["player"])
	assert.Equal(t, match.EventYourTurn, readEvent(t, oConn).Event)

	// 協議錯誤只回 error 事件，連線不斷
	sendEvent(t, oConn, `{"event":"bogus"}`)
	errorEvent := readEvent(t, oConn)
	require.Equal(t, match.EventError, errorEvent.Event)
	assert.Equal(t, string(match.ErrUnknownEvent), errorEvent.Data)

	sendEvent(t, oConn, `{"event":"play"}`)
	errorEvent = readEvent(t, oConn)
	require.Equal(t, match.EventError, errorEvent.Event)
	assert.Equal(t, string(match.ErrInvalidBody), errorEvent.Data)

	// X 斷線，O 收到判負的 game_over
	require.NoError(t, xConn.Close())
	over := readEvent(t, oConn)
	require.Equal(t, match.EventGameOver, over.Event)
	overData := over.Data.(map[string]any)
	assert.Equal(t, oID.String(), overData["winner"])
	assert.Equal(t, string(match.ReasonPlayerDisconnected), overData["reason"])

	// 對局已註銷
	require.Eventually(t, func() bool {
		return te.registry.GameCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
