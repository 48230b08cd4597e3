package game_test

import (
	"testing"

	"github.com/koopa0/xo-server/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// xWinBoard X 佔滿第一橫排的終局棋盤
func xWinBoard(t *testing.T) *game.Board {
	t.Helper()
	return playSequence(t, 0, 3, 1, 4, 2)
}

// drawBoard 滿盤無勝者的終局棋盤
func drawBoard(t *testing.T) *game.Board {
	t.Helper()
	return playSequence(t, 0, 1, 2, 4, 3, 5, 7, 6, 8)
}

// TestRoundsResult_Tally 測試勝平計數
func TestRoundsResult_Tally(t *testing.T) {
	result := game.NewRoundsResult()
	assert.Equal(t, 0, result.Rounds())

	result.AddWin(game.SymbolX)
	result.AddWin(game.SymbolX)
	result.AddWin(game.SymbolO)
	result.AddDraw()

	assert.Equal(t, 2, result.Wins(game.SymbolX))
	assert.Equal(t, 1, result.Wins(game.SymbolO))
	assert.Equal(t, 1, result.Draws())
	assert.Equal(t, 4, result.Rounds())
}

// TestRoundsResult_AddBoardContract 測試歸檔契約
func TestRoundsResult_AddBoardContract(t *testing.T) {
	result := game.NewRoundsResult()

	// 未結束的棋盤不能歸檔
	assert.Panics(t, func() { result.AddBoard(game.NewBoard()) })

	for i := 0; i < 3; i++ {
		result.AddBoard(xWinBoard(t))
	}
	assert.Len(t, result.Boards(), 3)

	// 第四面棋盤超出三戰兩勝的上限
	assert.Panics(t, func() { result.AddBoard(xWinBoard(t)) })
}

// TestRoundsResult_String 測試編碼格式（空格分隔符永遠存在）
func TestRoundsResult_String(t *testing.T) {
	result := game.NewRoundsResult()
	assert.Equal(t, " ", result.String())

	result.AddWin(game.SymbolX)
	result.AddBoard(xWinBoard(t))
	assert.Equal(t, "X XXXOO----:03142", result.String())

	result.AddDraw()
	result.AddBoard(drawBoard(t))
	assert.Equal(t, "X- XXXOO----:03142,XOXXOOOXX:012435768", result.String())
}

// TestRoundsResult_RoundTrip 測試編碼解析等價
func TestRoundsResult_RoundTrip(t *testing.T) {
	result := game.NewRoundsResult()
	result.AddWin(game.SymbolX)
	result.AddBoard(xWinBoard(t))
	result.AddDraw()
	result.AddBoard(drawBoard(t))

	parsed, err := game.ParseRoundsResult(result.String())
	require.NoError(t, err)
	assert.True(t, result.Equal(parsed))

	// 全新對局的編碼（單一空格）也要能解析
	fresh, err := game.ParseRoundsResult(game.NewRoundsResult().String())
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Rounds())
	assert.Empty(t, fresh.Boards())
}

// TestParseRoundsResult_Invalid 測試非法編碼全部被拒絕
func TestParseRoundsResult_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "missing separator", encoded: "X"},
		{name: "bad count character", encoded: "XZ "},
		{name: "more than three rounds", encoded: "XXOO "},
		{name: "bad board", encoded: "X garbage"},
		{name: "board not ended", encoded: "X XO-------:01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := game.ParseRoundsResult(tt.encoded)
			assert.Error(t, err)
		})
	}
}
