// Package game 實現 XO 對戰的核心規則：棋盤、回合結果與勝負判定。
//
// 這個套件是純值類型（value type），沒有任何 I/O 或鎖：
//   - 並發控制由上層的對局引擎負責
//   - 持久化透過字串編碼（資料庫只存一個 TEXT 欄位）
package game

import (
	"fmt"
	"strings"
)

// Symbol 棋盤符號（X 先手、O 後手）
type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"

	// SymbolNone 空格
	SymbolNone Symbol = ""
)

// Opponent 對方符號
func (s Symbol) Opponent() Symbol {
	if s == SymbolX {
		return SymbolO
	}
	return SymbolX
}

// winningTriples 八組獲勝線（三橫、三直、兩斜）
var winningTriples = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // 橫
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // 直
	{0, 4, 8}, {2, 4, 6}, // 斜
}

// Board 九宮格棋盤
//
// 系統設計考量：
//
//  1. 雙重表示：cells + played
//     - cells：當前盤面（查詢快，勝負判定直接掃八條線）
//     - played：落子順序（行動權由奇偶性推導，不需要額外的 turn 欄位）
//     - 兩者必須一致：cells 的非空格數 == len(played)
//
//  2. 行動權推導而非存儲
//     - 已落子數為偶數 → 輪到 X（X 永遠先手）
//     - 存一個 turn 欄位會引入第二個真相來源，落子與換手之間
//     一旦不同步就是幽靈回合
//
//  3. 契約式校驗
//     - SetCell 越界或落在已佔用格是呼叫方的程式錯誤，直接 panic
//     - 協議層的非法落子（invalid_place）必須在呼叫前擋掉
type Board struct {
	cells  [9]Symbol
	played []int
}

// NewBoard 創建空棋盤
func NewBoard() *Board {
	return &Board{}
}

// Cell 取得指定格的符號
func (b *Board) Cell(place int) Symbol {
	if place < 0 || place > 8 {
		panic(fmt.Sprintf("game: cell index out of range: %d", place))
	}
	return b.cells[place]
}

// IsEmptyCell 指定格是否為空
func (b *Board) IsEmptyCell(place int) bool {
	return b.Cell(place) == SymbolNone
}

// SetCell 落子並記錄順序
//
// 越界或落在已佔用格視為契約違反（呼叫方必須先驗證），panic。
func (b *Board) SetCell(place int, symbol Symbol) {
	if place < 0 || place > 8 {
		panic(fmt.Sprintf("game: cell index out of range: %d", place))
	}
	if symbol != SymbolX && symbol != SymbolO {
		panic(fmt.Sprintf("game: invalid symbol %q", symbol))
	}
	if b.cells[place] != SymbolNone {
		panic(fmt.Sprintf("game: cell %d already occupied", place))
	}
	b.cells[place] = symbol
	b.played = append(b.played, place)
}

// PlayedCount 已落子數
func (b *Board) PlayedCount() int {
	return len(b.played)
}

// EmptyCells 回傳所有空格（升序）
func (b *Board) EmptyCells() []int {
	empty := make([]int, 0, 9-len(b.played))
	for i, cell := range b.cells {
		if cell == SymbolNone {
			empty = append(empty, i)
		}
	}
	return empty
}

// IsFull 棋盤是否已滿
func (b *Board) IsFull() bool {
	return len(b.played) == 9
}

// Turn 當前行動方
//
// 由奇偶性推導：X 先手，偶數步輪 X，奇數步輪 O。
func (b *Board) Turn() Symbol {
	if len(b.played)%2 == 0 {
		return SymbolX
	}
	return SymbolO
}

// IsWin 指定符號是否佔滿任一條獲勝線
func (b *Board) IsWin(symbol Symbol) bool {
	for _, triple := range winningTriples {
		if b.cells[triple[0]] == symbol &&
			b.cells[triple[1]] == symbol &&
			b.cells[triple[2]] == symbol {
			return true
		}
	}
	return false
}

// IsDraw 棋盤已滿且無人獲勝
func (b *Board) IsDraw() bool {
	return b.IsFull() && !b.IsWin(SymbolX) && !b.IsWin(SymbolO)
}

// IsEnd 本回合是否結束（一方獲勝或平手）
func (b *Board) IsEnd() bool {
	return b.IsWin(SymbolX) || b.IsWin(SymbolO) || b.IsDraw()
}

// Equal 盤面與落子順序皆相同
func (b *Board) Equal(other *Board) bool {
	if other == nil || b.cells != other.cells || len(b.played) != len(other.played) {
		return false
	}
	for i, place := range b.played {
		if other.played[i] != place {
			return false
		}
	}
	return true
}

// String 編碼為 "<九格>:<落子順序>"
//
// 九格依序為 X、O 或 -（空格），冒號後是落子格位的數字序列。
// 例如 X 下 0、O 下 1 之後是 "XO-------:01"。
func (b *Board) String() string {
	var sb strings.Builder
	sb.Grow(10 + len(b.played))
	for _, cell := range b.cells {
		if cell == SymbolNone {
			sb.WriteByte('-')
		} else {
			sb.WriteString(string(cell))
		}
	}
	sb.WriteByte(':')
	for _, place := range b.played {
		sb.WriteByte(byte('0' + place))
	}
	return sb.String()
}

// ParseBoard 解析棋盤編碼
//
// 解析採用重放（replay）策略：逐一重放落子順序，讓 cells 與 played
// 不可能在解析後不一致。校驗規則：
//   - 必須恰好一個冒號，左側恰好 9 個格字元（X/O/-）
//   - 右側至多 9 個數字，每個都在 0-8 且不重複
//   - 每個落子格位在左側必須是 X 或 O（不能指向空格）
func ParseBoard(s string) (*Board, error) {
	cellsPart, playedPart, found := strings.Cut(s, ":")
	if !found {
		return nil, fmt.Errorf("invalid board %q: missing separator", s)
	}
	if len(cellsPart) != 9 {
		return nil, fmt.Errorf("invalid board %q: want 9 cells, got %d", s, len(cellsPart))
	}
	if len(playedPart) > 9 {
		return nil, fmt.Errorf("invalid board %q: too many plays", s)
	}

	board := NewBoard()
	for _, ch := range playedPart {
		if ch < '0' || ch > '8' {
			return nil, fmt.Errorf("invalid board %q: bad play index %q", s, ch)
		}
		place := int(ch - '0')
		if !board.IsEmptyCell(place) {
			return nil, fmt.Errorf("invalid board %q: duplicate play at %d", s, place)
		}
		switch cellsPart[place] {
		case 'X':
			board.SetCell(place, SymbolX)
		case 'O':
			board.SetCell(place, SymbolO)
		default:
			return nil, fmt.Errorf("invalid board %q: play at empty cell %d", s, place)
		}
	}

	// 重放後逐格比對，抓出「有符號但不在落子順序裡」的格
	for i := 0; i < 9; i++ {
		var want Symbol
		switch cellsPart[i] {
		case 'X':
			want = SymbolX
		case 'O':
			want = SymbolO
		case '-':
			want = SymbolNone
		default:
			return nil, fmt.Errorf("invalid board %q: bad cell %q", s, cellsPart[i])
		}
		if board.cells[i] != want {
			return nil, fmt.Errorf("invalid board %q: cell %d not in play order", s, i)
		}
	}

	return board, nil
}
