package game

import (
	"fmt"
	"strings"
)

// RoundsResult 三戰兩勝的系列賽結果
//
// 記錄兩件事：
//   - 勝平計數（X 勝場、O 勝場、平手場數）
//   - 已結束回合的終局棋盤（存檔，最多三面）
//
// 不變量：任何靜止狀態下 xWins+oWins+draws == len(boards)。
// 引擎在一次轉移內先記分再歸檔，轉移結束後不變量恢復。
type RoundsResult struct {
	xWins  int
	oWins  int
	draws  int
	boards []*Board
}

// NewRoundsResult 創建空結果
func NewRoundsResult() *RoundsResult {
	return &RoundsResult{}
}

// Wins 指定符號的勝場數
func (r *RoundsResult) Wins(symbol Symbol) int {
	if symbol == SymbolX {
		return r.xWins
	}
	return r.oWins
}

// AddWin 記一勝
func (r *RoundsResult) AddWin(symbol Symbol) {
	if symbol == SymbolX {
		r.xWins++
	} else {
		r.oWins++
	}
}

// Draws 平手場數
func (r *RoundsResult) Draws() int {
	return r.draws
}

// AddDraw 記一平
func (r *RoundsResult) AddDraw() {
	r.draws++
}

// Rounds 已結束的回合數
func (r *RoundsResult) Rounds() int {
	return r.xWins + r.oWins + r.draws
}

// Boards 已歸檔的終局棋盤
func (r *RoundsResult) Boards() []*Board {
	return r.boards
}

// AddBoard 歸檔一面終局棋盤
//
// 歸檔第四面棋盤、或歸檔未結束的棋盤，都是呼叫方的程式錯誤，panic。
func (r *RoundsResult) AddBoard(b *Board) {
	if len(r.boards) >= 3 {
		panic("game: rounds result already holds 3 boards")
	}
	if !b.IsEnd() {
		panic("game: archiving a board that has not ended")
	}
	r.boards = append(r.boards, b)
}

// Equal 計數與歸檔棋盤皆相同
func (r *RoundsResult) Equal(other *RoundsResult) bool {
	if other == nil ||
		r.xWins != other.xWins ||
		r.oWins != other.oWins ||
		r.draws != other.draws ||
		len(r.boards) != len(other.boards) {
		return false
	}
	for i, b := range r.boards {
		if !b.Equal(other.boards[i]) {
			return false
		}
	}
	return true
}

// String 編碼為 "<計數><空格><棋盤列表>"
//
// 計數部分是 xWins 個 X、oWins 個 O、draws 個 -，空格分隔符永遠存在，
// 棋盤列表以逗號連接（可為空）。例如一勝一平、兩面歸檔棋盤：
// "X- XXXOO----:03142,XOXXOOOXX:012435768"。
func (r *RoundsResult) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("X", r.xWins))
	sb.WriteString(strings.Repeat("O", r.oWins))
	sb.WriteString(strings.Repeat("-", r.draws))
	sb.WriteByte(' ')
	for i, b := range r.boards {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(b.String())
	}
	return sb.String()
}

// ParseRoundsResult 解析系列賽結果編碼
func ParseRoundsResult(s string) (*RoundsResult, error) {
	countsPart, boardsPart, found := strings.Cut(s, " ")
	if !found {
		return nil, fmt.Errorf("invalid rounds result %q: missing separator", s)
	}

	result := NewRoundsResult()
	for _, ch := range countsPart {
		switch ch {
		case 'X':
			result.xWins++
		case 'O':
			result.oWins++
		case '-':
			result.draws++
		default:
			return nil, fmt.Errorf("invalid rounds result %q: bad count %q", s, ch)
		}
	}
	if result.Rounds() > 3 {
		return nil, fmt.Errorf("invalid rounds result %q: more than 3 rounds", s)
	}

	if boardsPart != "" {
		for _, encoded := range strings.Split(boardsPart, ",") {
			board, err := ParseBoard(encoded)
			if err != nil {
				return nil, fmt.Errorf("invalid rounds result %q: %w", s, err)
			}
			// 外部輸入走錯誤回傳，不走 AddBoard 的契約 panic
			if len(result.boards) >= 3 {
				return nil, fmt.Errorf("invalid rounds result %q: more than 3 boards", s)
			}
			if !board.IsEnd() {
				return nil, fmt.Errorf("invalid rounds result %q: board %q has not ended", s, encoded)
			}
			result.boards = append(result.boards, board)
		}
	}
	return result, nil
}
