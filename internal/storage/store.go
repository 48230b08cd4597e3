// Package storage 提供對局記錄的持久化層。
//
// 系統設計考量：
//
//  1. 為什麼同時有 Memory 和 Postgres 兩種實現？
//     - Memory：本地開發與單元測試（零依賴、確定性）
//     - Postgres：生產環境（對局結算與玩家戰績必須持久）
//     - 兩者共用 GameStore 介面，引擎完全不感知後端
//
//  2. 棋盤與回合結果存為字串
//     - 引擎每次轉移都讀出、解析、改寫、存回（write-through）
//     - 資料庫不理解棋局語義，只負責存放與過濾生命週期欄位
//
//  3. 結束對局是單一原子操作（EndGame）
//     - 清空棋盤、蓋上結束時間、更新雙方戰績必須一起發生
//     - 分開寫會讓排程器在中間狀態掃到已結束的對局
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrGameNotFound 對局不存在（或不符合 ended 過濾條件）
var ErrGameNotFound = errors.New("game not found")

// GameRecord 一場對局的持久化記錄
type GameRecord struct {
	ID           uuid.UUID
	Round        int16      // 當前回合（1-3）
	Deadline     *time.Time // 當前行動方的自動落子期限，對局結束後為 nil
	RoundsResult string     // game.RoundsResult 編碼
	XPlayer      uuid.UUID
	OPlayer      uuid.UUID
	Board        string     // game.Board 編碼，對局結束後清空
	Winner       *uuid.UUID // nil 表示未結束或平手
	Reason       *string
	CreatedAt    time.Time
	EndedAt      *time.Time
}

// Ended 對局是否已結束
func (r *GameRecord) Ended() bool {
	return r.EndedAt != nil
}

// GameStore 對局持久化介面
type GameStore interface {
	// CreateGame 建立新對局：第一回合、空棋盤、期限為 now+movePeriod
	CreateGame(ctx context.Context, xPlayer, oPlayer uuid.UUID, movePeriod time.Duration) (*GameRecord, error)

	// Game 依 ID 讀取對局；ended 過濾生命週期
	// （false 只回傳進行中的、true 只回傳已結束的），不符合回傳 ErrGameNotFound
	Game(ctx context.Context, id uuid.UUID, ended bool) (*GameRecord, error)

	// ActiveGames 回傳所有進行中且有落子期限的對局（排程器掃描用）
	ActiveGames(ctx context.Context) ([]*GameRecord, error)

	// Save 寫回對局的可變欄位（棋盤、回合結果、回合數、期限、勝者、原因）
	Save(ctx context.Context, rec *GameRecord) error

	// EndGame 結束對局：清空棋盤、蓋上結束時間，並更新玩家戰績
	// （winner 非 nil 時勝者 wins+1、敗者 losses+1，否則雙方 draws+1）
	EndGame(ctx context.Context, id uuid.UUID, winner *uuid.UUID, reason string) error
}
