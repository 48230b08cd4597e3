package match

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub WebSocket 連接中心
//
// 系統設計考量：
//
//  1. 傳輸與規則分離
//     - Hub 只做三件事：升級連線、把入站事件轉成引擎呼叫、把引擎
//     發出的事件寫回連線
//     - 引擎透過 Player 握把發事件，完全不 import websocket
//
//  2. 心跳機制：54s Ping / 60s 讀超時
//     - 玩家斷線（網絡故障、瀏覽器崩潰）時 readPump 超時退出，
//     觸發 Disconnect 轉移判負
//     - 54 秒避開常見代理的 60 秒超時閾值，留 6 秒余量
//
//  3. 協議錯誤不斷線
//     - 非法事件只回 error 事件，連線保持；只有讀取失敗（斷線、
//     超時）才觸發判負
type Hub struct {
	engine   *Engine
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	conns    map[uuid.UUID]*Conn
}

// Conn 一個玩家的 WebSocket 連線
type Conn struct {
	player    *Player
	ws        *websocket.Conn
	events    chan ServerEvent // Player 握把的出站通道，writePump 消費
	done      chan struct{}    // 關閉信號；events 永不 close，引擎可能還握著 Player
	hub       *Hub
	closeOnce sync.Once
}

// NewHub 創建 WebSocket Hub
func NewHub(engine *Engine, logger *slog.Logger) *Hub {
	return &Hub{
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[uuid.UUID]*Conn),
	}
}

// ServeWS 處理 WebSocket 連接
//
// 玩家身份來自 player_id 查詢參數。認證屬於部署層（反向代理或
// 閘道），這裡信任已通過的身份。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
	if err != nil {
		http.Error(w, "invalid player_id", http.StatusBadRequest)
		return
	}

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	events := make(chan ServerEvent, 256)
	conn := &Conn{
		player: NewPlayer(playerID, events),
		ws:     ws,
		events: events,
		done:   make(chan struct{}),
		hub:    hub,
	}

	hub.register(conn)

	go conn.writePump()
	go conn.readPump()

	hub.logger.Info("WebSocket 連接建立", "player_id", playerID)
}

// register 註冊連接，同一玩家的舊連線直接頂掉
func (hub *Hub) register(conn *Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if old, exists := hub.conns[conn.player.ID]; exists {
		old.close()
	}
	hub.conns[conn.player.ID] = conn
}

// unregister 取消註冊連接（只在仍是當前連線時生效，避免頂掉重連）
func (hub *Hub) unregister(conn *Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if current, exists := hub.conns[conn.player.ID]; exists && current == conn {
		delete(hub.conns, conn.player.ID)
	}
	conn.close()
}

// Stop 停止 Hub，關閉所有連線
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, conn := range hub.conns {
		conn.close()
	}
	hub.conns = make(map[uuid.UUID]*Conn)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// ConnectionCount 當前連線數
func (hub *Hub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.conns)
}

// close 發出關閉信號並關閉底層連線（只執行一次）
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.ws.Close()
}

// readPump 讀取客戶端事件
//
// 退出時（無論何種原因）觸發斷線轉移：在局中判負、在佇列移出。
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		if err := c.hub.engine.Disconnect(context.Background(), c.player); err != nil {
			c.hub.logger.Error("斷線轉移失敗",
				"player_id", c.player.ID,
				"error", err)
		}
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	// 收到 Pong 重置超時
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"player_id", c.player.ID,
					"error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			c.player.Send(errorEvent(ErrInvalidBody))
			continue
		}
		c.dispatch(message)
	}
}

// dispatch 解析入站事件並呼叫引擎
func (c *Conn) dispatch(message []byte) {
	var event ClientEvent
	if err := json.Unmarshal(message, &event); err != nil {
		c.player.Send(errorEvent(ErrUnknownEvent))
		return
	}

	ctx := context.Background()
	switch event.Event {
	case ClientSearch:
		if event.Data != nil {
			c.player.Send(errorEvent(ErrInvalidBody))
			return
		}
		if err := c.hub.engine.Search(ctx, c.player); err != nil {
			c.hub.logger.Error("配對轉移失敗",
				"player_id", c.player.ID,
				"error", err)
		}
	case ClientPlay:
		if event.Data == nil || event.Data.Place == nil {
			c.player.Send(errorEvent(ErrInvalidBody))
			return
		}
		if err := c.hub.engine.Play(ctx, c.player, *event.Data.Place); err != nil {
			c.hub.logger.Error("落子轉移失敗",
				"player_id", c.player.ID,
				"error", err)
		}
	default:
		c.player.Send(errorEvent(ErrUnknownEvent))
	}
}

// writePump 把引擎事件寫回客戶端
//
// 單一寫者：所有出站流量（事件 + Ping）都經過這個 goroutine，
// 避免多個 goroutine 同時寫同一條連線。
func (c *Conn) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			// Hub 發出關閉信號，優雅關閉連接
			deadline := time.Now().Add(time.Second)
			if err := c.ws.SetWriteDeadline(deadline); err == nil {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return

		case event := <-c.events:
			if err := c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.writeEvent(event); err != nil {
				return
			}

			// 批量發送隊列中的事件
			n := len(c.events)
			for i := 0; i < n; i++ {
				if err := c.writeEvent(<-c.events); err != nil {
					c.hub.logger.Error("發送事件失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeEvent 序列化並寫出單一事件
func (c *Conn) writeEvent(event ServerEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		c.hub.logger.Error("序列化事件失敗",
			"event", event.Event,
			"error", err)
		return nil
	}
	return c.ws.WriteMessage(websocket.TextMessage, message)
}
