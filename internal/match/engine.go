package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/xo-server/internal/game"
	"github.com/koopa0/xo-server/internal/storage"
)

// Engine 對局狀態機
//
// 系統設計問題：
//   兩個玩家、一個排程器同時觸發狀態轉移，如何保證對局不會出現
//   幽靈回合（雙方同時落子、落子後盤面回退）？
//
// 設計方案：
//
//  1. 單一互斥鎖串行化所有轉移
//     - Search / Play / Disconnect 整段持鎖：讀庫、驗證、廣播、寫庫
//     是一個不可分割的轉移
//     - 棋局轉移輕量（微秒級），鎖競爭可忽略；需要分片時再按
//     gameID 拆鎖
//
//  2. write-through 持久化
//     - 每次轉移結束前把棋盤/回合結果寫回存儲
//     - 記憶體裡只有連線握把（Registry），重啟後對局可從存儲恢復
//
//  3. 協議錯誤不是 Go error
//     - 玩家的非法操作（搶手、佔格）發 error 事件給當事人，轉移
//     正常結束
//     - Go error 只表示基礎設施故障（存儲、編碼），由呼叫方記錄
type Engine struct {
	registry   *Registry
	store      storage.GameStore
	logger     *slog.Logger
	movePeriod time.Duration // 每手的行動期限
	maxGames   int           // 同時進行的對局上限
	mu         sync.Mutex
}

// NewEngine 創建對局狀態機
func NewEngine(registry *Registry, store storage.GameStore, movePeriod time.Duration, maxGames int, logger *slog.Logger) *Engine {
	return &Engine{
		registry:   registry,
		store:      store,
		logger:     logger,
		movePeriod: movePeriod,
		maxGames:   maxGames,
	}
}

// Search 玩家請求配對
//
// 佇列為空 → 入隊等待；佇列有人 → 取出等待最久的玩家配對，
// 等待方執 X（先手）、搜索方執 O。配對成功後依序廣播
// game_found、round_start(1)，並向 X 發 your_turn。
func (e *Engine) Search(ctx context.Context, p *Player) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.registry.InGame(p.ID):
		e.logger.Warn("配對被拒：玩家已在對局中", "player_id", p.ID)
		p.Send(errorEvent(ErrAlreadyInGame))
		return nil
	case e.registry.Waiting(p.ID):
		e.logger.Warn("配對被拒：玩家已在佇列中", "player_id", p.ID)
		p.Send(errorEvent(ErrAlreadyInSearch))
		return nil
	case e.registry.GameCount() >= e.maxGames:
		e.logger.Warn("配對被拒：對局數已達上限",
			"player_id", p.ID,
			"max_games", e.maxGames)
		p.Send(errorEvent(ErrMaxGamesReached))
		return nil
	}

	opponent, found := e.registry.PopWaiter()
	if !found {
		e.registry.Enqueue(p)
		e.logger.Info("玩家進入配對佇列",
			"player_id", p.ID,
			"waiting", e.registry.WaitingCount())
		return nil
	}

	rec, err := e.store.CreateGame(ctx, opponent.ID, p.ID, e.movePeriod)
	if err != nil {
		// 建檔失敗不能吞掉等待方，放回佇列
		e.registry.Enqueue(opponent)
		return fmt.Errorf("create game: %w", err)
	}

	e.registry.AddGame(rec.ID, opponent, p)
	e.registry.Broadcast(rec.ID, gameFoundEvent(opponent.ID, p.ID))
	e.registry.Broadcast(rec.ID, roundStartEvent(1))
	opponent.Send(yourTurnEvent(*rec.Deadline))

	e.logger.Info("配對成功",
		"game_id", rec.ID,
		"x_player", opponent.ID,
		"o_player", p.ID)
	return nil
}

// Play 玩家落子
//
// 驗證順序：在局 → 行動權 → 格位合法 → 回合未結束，任一失敗
// 只向當事人發一個 error 事件。接受的落子先通知對手，再延長期限、
// 更新盤面與計分，最後依回合/系列賽狀態分流。
func (e *Engine) Play(ctx context.Context, p *Player, place int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	gameID, opponent, inGame := e.registry.GameOf(p.ID)
	if !inGame {
		e.logger.Warn("落子被拒：玩家不在對局中", "player_id", p.ID)
		p.Send(errorEvent(ErrNotInGame))
		return nil
	}

	rec, err := e.store.Game(ctx, gameID, false)
	if err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	board, err := game.ParseBoard(rec.Board)
	if err != nil {
		return fmt.Errorf("parse board of game %s: %w", gameID, err)
	}

	playerSymbol := game.SymbolX
	if rec.XPlayer != p.ID {
		playerSymbol = game.SymbolO
	}

	switch {
	case board.Turn() != playerSymbol:
		e.logger.Warn("落子被拒：未輪到該玩家",
			"game_id", gameID,
			"player_id", p.ID)
		p.Send(errorEvent(ErrNotYourTurn))
		return nil
	case place < 0 || place > 8 || !board.IsEmptyCell(place):
		e.logger.Warn("落子被拒：格位非法",
			"game_id", gameID,
			"player_id", p.ID,
			"place", place)
		p.Send(errorEvent(ErrInvalidPlace))
		return nil
	case board.IsEnd():
		// 回合已結束但轉移還沒收尾（理論上不可達），當作搶手處理
		p.Send(errorEvent(ErrNotYourTurn))
		return nil
	}

	// 先通知對手，再推進狀態
	opponent.Send(playEvent(place, p.ID))

	deadline := time.Now().Add(e.movePeriod)
	rec.Deadline = &deadline
	board.SetCell(place, playerSymbol)

	rounds, err := game.ParseRoundsResult(rec.RoundsResult)
	if err != nil {
		return fmt.Errorf("parse rounds result of game %s: %w", gameID, err)
	}

	switch {
	case board.IsWin(playerSymbol):
		rounds.AddWin(playerSymbol)
		e.logger.Info("回合分出勝負",
			"game_id", gameID,
			"round", rec.Round,
			"winner", p.ID)
	case board.IsDraw():
		rounds.AddDraw()
		e.logger.Info("回合平手", "game_id", gameID, "round", rec.Round)
	}

	// 系列賽結束：打滿三回合，或任一方先取兩勝
	seriesOver := board.IsEnd() &&
		(rec.Round == 3 ||
			rounds.Wins(game.SymbolX) == 2 ||
			rounds.Wins(game.SymbolO) == 2)

	switch {
	case seriesOver:
		return e.finishSeries(ctx, gameID, rec, board, rounds, p, opponent, playerSymbol)

	case board.IsEnd():
		// 回合結束、系列賽未定：換新回合，X 重新先手
		var roundWinner *uuid.UUID
		if board.IsWin(playerSymbol) {
			roundWinner = &p.ID
		}
		e.registry.Broadcast(gameID, roundEndEvent(rec.Round, roundWinner))
		e.registry.Broadcast(gameID, roundStartEvent(rec.Round+1))

		rounds.AddBoard(board)
		board = game.NewBoard()
		rec.Round++

		firstMover := p
		if playerSymbol != game.SymbolX {
			firstMover = opponent
		}
		firstMover.Send(yourTurnEvent(deadline))

	default:
		// 回合繼續：行動權交給對手
		opponent.Send(yourTurnEvent(deadline))
	}

	rec.Board = board.String()
	rec.RoundsResult = rounds.String()
	if err := e.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save game %s: %w", gameID, err)
	}
	return nil
}

// finishSeries 結束系列賽：廣播 game_over、歸檔、持久化結局、註銷對局
//
// 勝負採單一比較：回合勝場嚴格多者勝，否則平手。
func (e *Engine) finishSeries(ctx context.Context, gameID uuid.UUID, rec *storage.GameRecord, board *game.Board, rounds *game.RoundsResult, p, opponent *Player, playerSymbol game.Symbol) error {
	var winner *uuid.UUID
	reason := ReasonDraw
	switch {
	case rounds.Wins(playerSymbol) > rounds.Wins(playerSymbol.Opponent()):
		winner = &p.ID
		reason = ReasonPlayerWon
	case rounds.Wins(playerSymbol.Opponent()) > rounds.Wins(playerSymbol):
		winner = &opponent.ID
		reason = ReasonPlayerWon
	}

	e.registry.Broadcast(gameID, gameOverEvent(winner, reason))

	// 先保存最終計分，再結束對局。順序不能反過來：
	// EndGame 之後再 Save 會把已清空的棋盤復活
	rounds.AddBoard(board)
	rec.Board = board.String()
	rec.RoundsResult = rounds.String()
	if err := e.store.Save(ctx, rec); err != nil {
		e.registry.RemoveGame(gameID)
		return fmt.Errorf("save final game %s: %w", gameID, err)
	}
	if err := e.store.EndGame(ctx, gameID, winner, reason.Title()); err != nil {
		e.registry.RemoveGame(gameID)
		return fmt.Errorf("end game %s: %w", gameID, err)
	}
	e.registry.RemoveGame(gameID)

	e.logger.Info("系列賽結束",
		"game_id", gameID,
		"winner", winner,
		"reason", reason)
	return nil
}

// Disconnect 玩家斷線
//
// 在局中 → 判負，對手獲勝；在佇列 → 移出；其餘 → 無事。
func (e *Engine) Disconnect(ctx context.Context, p *Player) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	gameID, opponent, inGame := e.registry.GameOf(p.ID)
	if !inGame {
		if e.registry.Waiting(p.ID) {
			e.registry.RemoveWaiter(p.ID)
			e.logger.Info("玩家離開配對佇列", "player_id", p.ID)
		}
		return nil
	}

	winner := opponent.ID
	opponent.Send(gameOverEvent(&winner, ReasonPlayerDisconnected))

	err := e.store.EndGame(ctx, gameID, &winner, ReasonPlayerDisconnected.Title())
	e.registry.RemoveGame(gameID)
	if err != nil {
		return fmt.Errorf("end game %s on disconnect: %w", gameID, err)
	}

	e.logger.Info("玩家斷線判負",
		"game_id", gameID,
		"player_id", p.ID,
		"winner", winner)
	return nil
}
