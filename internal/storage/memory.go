package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/xo-server/internal/game"
)

// UserStats 玩家戰績計數
type UserStats struct {
	Wins   int64
	Losses int64
	Draws  int64
}

// Memory 記憶體版 GameStore
//
// 用於本地開發與單元測試。所有讀取都回傳副本（copy-out），
// 避免呼叫方拿到內部指標後繞過鎖修改。
type Memory struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*GameRecord
	users map[uuid.UUID]*UserStats
}

// NewMemory 創建記憶體存儲
func NewMemory() *Memory {
	return &Memory{
		games: make(map[uuid.UUID]*GameRecord),
		users: make(map[uuid.UUID]*UserStats),
	}
}

// CreateGame 建立新對局
func (m *Memory) CreateGame(ctx context.Context, xPlayer, oPlayer uuid.UUID, movePeriod time.Duration) (*GameRecord, error) {
	now := time.Now()
	deadline := now.Add(movePeriod)
	rec := &GameRecord{
		ID:           uuid.New(),
		Round:        1,
		Deadline:     &deadline,
		RoundsResult: game.NewRoundsResult().String(),
		XPlayer:      xPlayer,
		OPlayer:      oPlayer,
		Board:        game.NewBoard().String(),
		CreatedAt:    now,
	}

	m.mu.Lock()
	m.games[rec.ID] = rec
	m.mu.Unlock()

	return cloneRecord(rec), nil
}

// Game 依 ID 讀取對局
func (m *Memory) Game(ctx context.Context, id uuid.UUID, ended bool) (*GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.games[id]
	if !exists || rec.Ended() != ended {
		return nil, ErrGameNotFound
	}
	return cloneRecord(rec), nil
}

// ActiveGames 回傳所有進行中且有落子期限的對局
func (m *Memory) ActiveGames(ctx context.Context) ([]*GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*GameRecord
	for _, rec := range m.games {
		if !rec.Ended() && rec.Deadline != nil {
			active = append(active, cloneRecord(rec))
		}
	}
	return active, nil
}

// Save 寫回對局的可變欄位
func (m *Memory) Save(ctx context.Context, rec *GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.games[rec.ID]
	if !exists {
		return fmt.Errorf("save game %s: %w", rec.ID, ErrGameNotFound)
	}

	stored.Board = rec.Board
	stored.RoundsResult = rec.RoundsResult
	stored.Round = rec.Round
	stored.Deadline = copyTime(rec.Deadline)
	stored.Winner = copyUUID(rec.Winner)
	stored.Reason = copyString(rec.Reason)
	return nil
}

// EndGame 結束對局並更新玩家戰績
func (m *Memory) EndGame(ctx context.Context, id uuid.UUID, winner *uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.games[id]
	if !exists || rec.Ended() {
		return fmt.Errorf("end game %s: %w", id, ErrGameNotFound)
	}

	now := time.Now()
	rec.Board = ""
	rec.Deadline = nil
	rec.Winner = copyUUID(winner)
	rec.Reason = &reason
	rec.EndedAt = &now

	if winner != nil {
		loser := rec.XPlayer
		if loser == *winner {
			loser = rec.OPlayer
		}
		m.stats(*winner).Wins++
		m.stats(loser).Losses++
	} else {
		m.stats(rec.XPlayer).Draws++
		m.stats(rec.OPlayer).Draws++
	}
	return nil
}

// Stats 讀取玩家戰績（測試用）
func (m *Memory) Stats(playerID uuid.UUID) UserStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if stats, exists := m.users[playerID]; exists {
		return *stats
	}
	return UserStats{}
}

// stats 取得（必要時建立）玩家戰績，呼叫方必須持有寫鎖
func (m *Memory) stats(playerID uuid.UUID) *UserStats {
	if stats, exists := m.users[playerID]; exists {
		return stats
	}
	stats := &UserStats{}
	m.users[playerID] = stats
	return stats
}

func cloneRecord(rec *GameRecord) *GameRecord {
	clone := *rec
	clone.Deadline = copyTime(rec.Deadline)
	clone.Winner = copyUUID(rec.Winner)
	clone.Reason = copyString(rec.Reason)
	clone.EndedAt = copyTime(rec.EndedAt)
	return &clone
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
