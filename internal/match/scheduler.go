package match

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/koopa0/xo-server/internal/game"
	"github.com/koopa0/xo-server/internal/storage"
)

// Scheduler 超時排程器
//
// 系統設計問題：
//   行動期限到了玩家還不落子，對局會永遠卡住。誰來代他下？
//
// 設計方案：掃描迴圈而非每手一個計時器
//   - 定期撈出所有進行中的對局，過期的代下一步（均勻隨機選空格）
//   - 每手一個 time.Timer 精度更高，但要處理取消/重設競態；
//     期限本身是秒級粗粒度，掃描間隔秒級已經足夠
//   - 代下走與玩家相同的 Play 轉移，排程器不碰棋局規則
//
// 間隔策略：有對局 2 秒、空閒 5 秒、掃描出錯冷卻 5 秒。
type Scheduler struct {
	engine       *Engine
	registry     *Registry
	store        storage.GameStore
	logger       *slog.Logger
	scanInterval time.Duration
	idleInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewScheduler 創建超時排程器
func NewScheduler(engine *Engine, registry *Registry, store storage.GameStore, scanInterval, idleInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:       engine,
		registry:     registry,
		store:        store,
		logger:       logger,
		scanInterval: scanInterval,
		idleInterval: idleInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start 啟動掃描迴圈
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop 停止掃描迴圈並等待收尾
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("超時排程器已停止")
}

// loop 掃描迴圈
func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		active, err := s.ScanOnce(context.Background())

		wait := s.scanInterval
		switch {
		case err != nil:
			s.logger.Error("超時掃描失敗", "error", err)
			wait = s.idleInterval
		case active == 0:
			wait = s.idleInterval
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(wait):
		}
	}
}

// ScanOnce 執行一次掃描（公開方法供測試使用）
//
// 回傳進行中的對局數。對每個過期對局：推導行動方、均勻隨機選一個
// 空格、先發 auto_play 通知當事人，再走一般的 Play 轉移。
func (s *Scheduler) ScanOnce(ctx context.Context) (int, error) {
	games, err := s.store.ActiveGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active games: %w", err)
	}

	now := time.Now()
	for _, rec := range games {
		if rec.Deadline == nil || now.Before(*rec.Deadline) {
			continue
		}

		board, err := game.ParseBoard(rec.Board)
		if err != nil {
			s.logger.Error("棋盤編碼損壞，跳過對局",
				"game_id", rec.ID,
				"error", err)
			continue
		}
		if board.IsEnd() {
			continue
		}

		// 撈出來之後對局可能剛好結束了，握把不在就跳過
		x, o, live := s.registry.Players(rec.ID)
		if !live {
			continue
		}
		actor := x
		if board.Turn() != game.SymbolX {
			actor = o
		}

		empty := board.EmptyCells()
		place := empty[rand.IntN(len(empty))]

		actor.Send(autoPlayEvent(place))
		s.logger.Info("超時代下",
			"game_id", rec.ID,
			"player_id", actor.ID,
			"place", place)

		if err := s.engine.Play(ctx, actor, place); err != nil {
			return len(games), fmt.Errorf("auto play game %s: %w", rec.ID, err)
		}
	}
	return len(games), nil
}
