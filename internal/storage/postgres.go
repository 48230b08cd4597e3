package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/xo-server/internal/game"
)

// Postgres PostgreSQL 版 GameStore
//
// 使用 pgxpool 連接池與原生 SQL。表結構由 migrations 套件建立。
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres 創建 PostgreSQL 存儲
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const gameColumns = `uuid, round, deadline, rounds_result, x_player, o_player, board, winner, reason, created_at, ended_at`

// CreateGame 建立新對局
func (p *Postgres) CreateGame(ctx context.Context, xPlayer, oPlayer uuid.UUID, movePeriod time.Duration) (*GameRecord, error) {
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

	_, err := p.pool.Exec(ctx, `
		INSERT INTO games (uuid, round, deadline, rounds_result, x_player, o_player, board, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Round, rec.Deadline, rec.RoundsResult, rec.XPlayer, rec.OPlayer, rec.Board, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	return rec, nil
}

// Game 依 ID 讀取對局
func (p *Postgres) Game(ctx context.Context, id uuid.UUID, ended bool) (*GameRecord, error) {
	endedFilter := "ended_at IS NULL"
	if ended {
		endedFilter = "ended_at IS NOT NULL"
	}

	row := p.pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE uuid = $1 AND `+endedFilter, id)

	rec, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("query game: %w", err)
	}
	return rec, nil
}

// ActiveGames 回傳所有進行中且有落子期限的對局
func (p *Postgres) ActiveGames(ctx context.Context) ([]*GameRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+gameColumns+` FROM games WHERE ended_at IS NULL AND deadline IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query active games: %w", err)
	}
	defer rows.Close()

	var active []*GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active game: %w", err)
		}
		active = append(active, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active games: %w", err)
	}
	return active, nil
}

// Save 寫回對局的可變欄位
func (p *Postgres) Save(ctx context.Context, rec *GameRecord) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE games
		SET board = $2, rounds_result = $3, round = $4, deadline = $5, winner = $6, reason = $7
		WHERE uuid = $1`,
		rec.ID, rec.Board, rec.RoundsResult, rec.Round, rec.Deadline, rec.Winner, rec.Reason)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save game %s: %w", rec.ID, ErrGameNotFound)
	}
	return nil
}

// EndGame 結束對局並更新玩家戰績（單一交易）
func (p *Postgres) EndGame(ctx context.Context, id uuid.UUID, winner *uuid.UUID, reason string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin end game: %w", err)
	}
	defer tx.Rollback(ctx)

	var xPlayer, oPlayer uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE games
		SET board = '', deadline = NULL, winner = $2, reason = $3, ended_at = NOW()
		WHERE uuid = $1 AND ended_at IS NULL
		RETURNING x_player, o_player`,
		id, winner, reason).Scan(&xPlayer, &oPlayer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("end game %s: %w", id, ErrGameNotFound)
		}
		return fmt.Errorf("end game: %w", err)
	}

	// 玩家帳號由外部系統管理，戰績列採 upsert 以容忍尚未建檔的玩家
	if winner != nil {
		loser := xPlayer
		if loser == *winner {
			loser = oPlayer
		}
		if err := bumpStat(ctx, tx, *winner, "wins"); err != nil {
			return err
		}
		if err := bumpStat(ctx, tx, loser, "losses"); err != nil {
			return err
		}
	} else {
		if err := bumpStat(ctx, tx, xPlayer, "draws"); err != nil {
			return err
		}
		if err := bumpStat(ctx, tx, oPlayer, "draws"); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit end game: %w", err)
	}
	return nil
}

// bumpStat 將指定戰績欄位 +1；column 只接受程式內的固定值，不接受外部輸入
func bumpStat(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, column string) error {
	switch column {
	case "wins", "losses", "draws":
	default:
		return fmt.Errorf("bump stat: invalid column %q", column)
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO users (uuid, `+column+`) VALUES ($1, 1)
		ON CONFLICT (uuid) DO UPDATE SET `+column+` = users.`+column+` + 1`,
		playerID)
	if err != nil {
		return fmt.Errorf("bump %s for %s: %w", column, playerID, err)
	}
	return nil
}

// scanGame 從單列掃出 GameRecord
func scanGame(row pgx.Row) (*GameRecord, error) {
	rec := &GameRecord{}
	err := row.Scan(
		&rec.ID, &rec.Round, &rec.Deadline, &rec.RoundsResult,
		&rec.XPlayer, &rec.OPlayer, &rec.Board,
		&rec.Winner, &rec.Reason, &rec.CreatedAt, &rec.EndedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
