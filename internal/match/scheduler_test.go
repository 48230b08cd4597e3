package match_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/xo-server/internal/game"
	"github.com/koopa0/xo-server/internal/match"
)

// newTestScheduler 創建排程器，間隔無關緊要（測試直接呼叫 ScanOnce）
func newTestScheduler(te *testEngine) *match.Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return match.NewScheduler(te.engine, te.registry, te.store,
		2*time.Second, 5*time.Second, logger)
}

// TestScheduler_IdleWhenNoGames 測試沒有對局時掃描是空轉
func TestScheduler_IdleWhenNoGames(t *testing.T) {
	te := newTestEngine(t, 10)
	scheduler := newTestScheduler(te)

	active, err := scheduler.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

// TestScheduler_SkipsFutureDeadline 測試未到期的對局不被代下
func TestScheduler_SkipsFutureDeadline(t *testing.T) {
	te := newTestEngine(t, 10)
	scheduler := newTestScheduler(te)
	x, xCh := newTestPlayer()
	o, oCh := newTestPlayer()
	rec := pairPlayers(t, te, x, o, xCh, oCh)

	active, err := scheduler.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	assert.Empty(t, drainEvents(xCh))
	assert.Empty(t, drainEvents(oCh))

	after, err := te.store.Game(context.Background(), rec.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "---------:", after.Board, "盤面不能被動過")
}

// TestScheduler_AutoPlaysExpiredTurn 測試過期對局被代下一步
func TestScheduler_AutoPlaysExpiredTurn(t *testing.T) {
	te := newTestEngine(t, 10)
	scheduler := newTestScheduler(te)
	ctx := context.Background()
	x, xCh := newTestPlayer()
	o, oCh := newTestPlayer()
	rec := pairPlayers(t, te, x, o, xCh, oCh)

	// 把期限改到過去，輪到 X 的第一手超時
	past := time.Now().Add(-time.Second)
	rec.Deadline = &past
	require.NoError(t, te.store.Save(ctx, rec))

	active, err := scheduler.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	// 當事人（X）收到 auto_play，對手收到一般的 play + your_turn
	xEvents := drainEvents(xCh)
	require.Len(t, xEvents, 1)
	require.Equal(t, match.EventAutoPlay, xEvents[0].Event)
	auto := xEvents[0].Data.(match.AutoPlayData)
	assert.GreaterOrEqual(t, auto.Place, 0)
	assert.LessOrEqual(t, auto.Place, 8)

	assert.Equal(t, []match.ServerEventKind{
		match.EventPlay, match.EventYourTurn,
	}, kinds(drainEvents(oCh)))

	// 盤面恰好多了一步 X，期限被延長
	after, err := te.store.Game(ctx, rec.ID, false)
	require.NoError(t, err)
	board, err := game.ParseBoard(after.Board)
	require.NoError(t, err)
	assert.Equal(t, 1, board.PlayedCount())
	assert.Equal(t, game.SymbolX, board.Cell(auto.Place))
	require.NotNil(t, after.Deadline)
	assert.True(t, after.Deadline.After(time.Now()))
}
