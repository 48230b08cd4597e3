package match

import (
	"sync"

	"github.com/google/uuid"
)

// Player 一條連線上的玩家握把
//
// 把玩家身份與出站事件通道綁在一起：引擎與排程器只對 Player 發事件，
// 完全不感知底層是 WebSocket 連線還是測試裡的裸 channel。
type Player struct {
	ID   uuid.UUID
	sink chan<- ServerEvent
}

// NewPlayer 創建玩家握把
func NewPlayer(id uuid.UUID, sink chan<- ServerEvent) *Player {
	return &Player{ID: id, sink: sink}
}

// Send 非阻塞發送事件
//
// 緩衝區滿時直接丟棄：慢消費者不能拖住引擎的狀態轉移。
func (p *Player) Send(event ServerEvent) {
	select {
	case p.sink <- event:
	default:
	}
}

// liveGame 進行中對局的兩條連線
type liveGame struct {
	x *Player
	o *Player
}

// Registry 會話註冊表：進行中對局 + 配對等待佇列
//
// 系統設計考量：
//
//  1. 兩個集合、各自一把 RWMutex
//     - games：gameID → 兩個玩家握把，playerGame 反向索引支持 O(1) 查找
//     - queue：FIFO 等待佇列（先搜先配）
//     - 分開上鎖：廣播（讀 games）不會被配對入隊（寫 queue）擋住
//
//  2. 互斥不變量由引擎維護
//     - 一個玩家不能同時在佇列和對局中
//     - Registry 只提供檢查（InGame/Waiting），轉移順序由引擎的
//     單一互斥鎖保證
type Registry struct {
	gamesMu    sync.RWMutex
	games      map[uuid.UUID]*liveGame
	playerGame map[uuid.UUID]uuid.UUID // playerID -> gameID

	queueMu sync.RWMutex
	queue   []*Player
}

// NewRegistry 創建會話註冊表
func NewRegistry() *Registry {
	return &Registry{
		games:      make(map[uuid.UUID]*liveGame),
		playerGame: make(map[uuid.UUID]uuid.UUID),
	}
}

// AddGame 登記進行中對局
func (r *Registry) AddGame(gameID uuid.UUID, x, o *Player) {
	r.gamesMu.Lock()
	defer r.gamesMu.Unlock()

	r.games[gameID] = &liveGame{x: x, o: o}
	r.playerGame[x.ID] = gameID
	r.playerGame[o.ID] = gameID
}

// RemoveGame 註銷對局與玩家索引
func (r *Registry) RemoveGame(gameID uuid.UUID) {
	r.gamesMu.Lock()
	defer r.gamesMu.Unlock()

	lg, exists := r.games[gameID]
	if !exists {
		return
	}
	delete(r.playerGame, lg.x.ID)
	delete(r.playerGame, lg.o.ID)
	delete(r.games, gameID)
}

// Players 取得對局的兩個玩家握把（X、O）
func (r *Registry) Players(gameID uuid.UUID) (x, o *Player, ok bool) {
	r.gamesMu.RLock()
	defer r.gamesMu.RUnlock()

	lg, exists := r.games[gameID]
	if !exists {
		return nil, nil, false
	}
	return lg.x, lg.o, true
}

// GameOf 依玩家查對局，回傳對局 ID 與對手握把
func (r *Registry) GameOf(playerID uuid.UUID) (gameID uuid.UUID, opponent *Player, ok bool) {
	r.gamesMu.RLock()
	defer r.gamesMu.RUnlock()

	gameID, exists := r.playerGame[playerID]
	if !exists {
		return uuid.Nil, nil, false
	}
	lg := r.games[gameID]
	if lg.x.ID == playerID {
		return gameID, lg.o, true
	}
	return gameID, lg.x, true
}

// InGame 玩家是否在進行中對局
func (r *Registry) InGame(playerID uuid.UUID) bool {
	r.gamesMu.RLock()
	defer r.gamesMu.RUnlock()

	_, exists := r.playerGame[playerID]
	return exists
}

// GameCount 進行中對局數
func (r *Registry) GameCount() int {
	r.gamesMu.RLock()
	defer r.gamesMu.RUnlock()

	return len(r.games)
}

// Broadcast 向對局的兩個玩家發送同一事件
func (r *Registry) Broadcast(gameID uuid.UUID, event ServerEvent) {
	r.gamesMu.RLock()
	lg, exists := r.games[gameID]
	r.gamesMu.RUnlock()

	if !exists {
		return
	}
	lg.x.Send(event)
	lg.o.Send(event)
}

// Enqueue 加入等待佇列尾端
func (r *Registry) Enqueue(p *Player) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	r.queue = append(r.queue, p)
}

// PopWaiter 取出等待最久的玩家（FIFO）
func (r *Registry) PopWaiter() (*Player, bool) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	if len(r.queue) == 0 {
		return nil, false
	}
	p := r.queue[0]
	r.queue = r.queue[1:]
	return p, true
}

// RemoveWaiter 從佇列移除指定玩家（斷線時）
func (r *Registry) RemoveWaiter(playerID uuid.UUID) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	for i, p := range r.queue {
		if p.ID == playerID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// Waiting 玩家是否在等待佇列
func (r *Registry) Waiting(playerID uuid.UUID) bool {
	r.queueMu.RLock()
	defer r.queueMu.RUnlock()

	for _, p := range r.queue {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// WaitingCount 等待佇列長度
func (r *Registry) WaitingCount() int {
	r.queueMu.RLock()
	defer r.queueMu.RUnlock()

	return len(r.queue)
}
