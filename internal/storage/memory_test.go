package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/xo-server/internal/storage"
)

// TestMemory_CreateGame 測試建檔的初始狀態
func TestMemory_CreateGame(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	xPlayer, oPlayer := uuid.New(), uuid.New()

	rec, err := store.CreateGame(ctx, xPlayer, oPlayer, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, int16(1), rec.Round)
	assert.Equal(t, xPlayer, rec.XPlayer)
	assert.Equal(t, oPlayer, rec.OPlayer)
	assert.Equal(t, "---------:", rec.Board)
	assert.Equal(t, " ", rec.RoundsResult)
	assert.Nil(t, rec.Winner)
	assert.Nil(t, rec.EndedAt)
	require.NotNil(t, rec.Deadline)
	assert.True(t, rec.Deadline.After(time.Now()))
}

// TestMemory_Game 測試 ended 過濾
func TestMemory_Game(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()

	rec, err := store.CreateGame(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	// 進行中：ended=false 找得到，ended=true 找不到
	got, err := store.Game(ctx, rec.ID, false)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = store.Game(ctx, rec.ID, true)
	assert.ErrorIs(t, err, storage.ErrGameNotFound)

	// 不存在的對局
	_, err = store.Game(ctx, uuid.New(), false)
	assert.ErrorIs(t, err, storage.ErrGameNotFound)

	// 結束後過濾反轉
	require.NoError(t, store.EndGame(ctx, rec.ID, nil, "Draw"))

	_, err = store.Game(ctx, rec.ID, false)
	assert.ErrorIs(t, err, storage.ErrGameNotFound)

	ended, err := store.Game(ctx, rec.ID, true)
	require.NoError(t, err)
	assert.True(t, ended.Ended())
}

// TestMemory_Save 測試可變欄位寫回與 copy-out 隔離
func TestMemory_Save(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()

	rec, err := store.CreateGame(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Hour)
	rec.Board = "X--------:0"
	rec.RoundsResult = " "
	rec.Round = 2
	rec.Deadline = &deadline
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Game(ctx, rec.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "X--------:0", got.Board)
	assert.Equal(t, int16(2), got.Round)

	// 讀出的是副本，改它不影響存儲
	got.Board = "mutated"
	again, err := store.Game(ctx, rec.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "X--------:0", again.Board)

	// 不存在的對局不能 Save
	missing := *rec
	missing.ID = uuid.New()
	assert.ErrorIs(t, store.Save(ctx, &missing), storage.ErrGameNotFound)
}

// TestMemory_ActiveGames 測試排程器掃描的過濾條件
func TestMemory_ActiveGames(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()

	live, err := store.CreateGame(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)
	done, err := store.CreateGame(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.EndGame(ctx, done.ID, nil, "Draw"))

	active, err := store.ActiveGames(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live.ID, active[0].ID)
}

// TestMemory_EndGame 測試結束對局與戰績更新
func TestMemory_EndGame(t *testing.T) {
	t.Run("with winner", func(t *testing.T) {
		store := storage.NewMemory()
		ctx := context.Background()
		xPlayer, oPlayer := uuid.New(), uuid.New()

		rec, err := store.CreateGame(ctx, xPlayer, oPlayer, time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.EndGame(ctx, rec.ID, &xPlayer, "Player Won"))

		ended, err := store.Game(ctx, rec.ID, true)
		require.NoError(t, err)
		assert.Empty(t, ended.Board, "結束後棋盤清空")
		assert.Nil(t, ended.Deadline)
		require.NotNil(t, ended.Winner)
		assert.Equal(t, xPlayer, *ended.Winner)
		require.NotNil(t, ended.Reason)
		assert.Equal(t, "Player Won", *ended.Reason)
		require.NotNil(t, ended.EndedAt)

		assert.Equal(t, int64(1), store.Stats(xPlayer).Wins)
		assert.Equal(t, int64(1), store.Stats(oPlayer).Losses)
		assert.Equal(t, int64(0), store.Stats(oPlayer).Wins)
	})

	t.Run("draw", func(t *testing.T) {
		store := storage.NewMemory()
		ctx := context.Background()
		xPlayer, oPlayer := uuid.New(), uuid.New()

		rec, err := store.CreateGame(ctx, xPlayer, oPlayer, time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.EndGame(ctx, rec.ID, nil, "Draw"))

		assert.Equal(t, int64(1), store.Stats(xPlayer).Draws)
		assert.Equal(t, int64(1), store.Stats(oPlayer).Draws)
	})

	t.Run("already ended", func(t *testing.T) {
		store := storage.NewMemory()
		ctx := context.Background()

		rec, err := store.CreateGame(ctx, uuid.New(), uuid.New(), time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.EndGame(ctx, rec.ID, nil, "Draw"))

		// 重複結束被拒，戰績不能被灌水
		assert.ErrorIs(t, store.EndGame(ctx, rec.ID, nil, "Draw"), storage.ErrGameNotFound)
	})
}
