// Package match 實現對局會話：配對、回合狀態機、超時排程與 WebSocket 傳輸。
package match

import (
	"time"

	"github.com/google/uuid"
)

// 線上協議：雙向都是 {"event": <種類>, "data": <負載>} 的 JSON 信封，
// data 依事件種類而定，無負載時省略。

// ClientEventKind 客戶端事件種類
type ClientEventKind string

const (
	ClientSearch ClientEventKind = "search" // 進入配對佇列（無負載）
	ClientPlay   ClientEventKind = "play"   // 落子 {place}
)

// ClientEvent 客戶端事件信封
type ClientEvent struct {
	Event ClientEventKind `json:"event"`
	Data  *PlayData       `json:"data,omitempty"`
}

// PlayData 落子負載（入站時也作為校驗對象，place 缺失視為 invalid_body）
type PlayData struct {
	Place  *int       `json:"place,omitempty"`
	Player *uuid.UUID `json:"player,omitempty"` // 出站通知對手時填上落子方
}

// ServerEventKind 服務端事件種類
type ServerEventKind string

const (
	EventGameFound  ServerEventKind = "game_found"  // 配對成功 {x_player, o_player}
	EventRoundStart ServerEventKind = "round_start" // 回合開始 {round}
	EventRoundEnd   ServerEventKind = "round_end"   // 回合結束 {round, winner?}
	EventYourTurn   ServerEventKind = "your_turn"   // 輪到你 {auto_play_after}
	EventPlay       ServerEventKind = "play"        // 對手落子 {place, player}
	EventAutoPlay   ServerEventKind = "auto_play"   // 超時代下 {place}
	EventGameOver   ServerEventKind = "game_over"   // 對局結束 {winner?, reason}
	EventError      ServerEventKind = "error"       // 協議錯誤，data 為錯誤種類字串
)

// ServerEvent 服務端事件信封
//
// 事件種類是封閉集合：引擎只透過下方的構造函數產生事件，
// 處理端對 Event 欄位做窮舉 switch，不依賴 data 的動態型別。
type ServerEvent struct {
	Event ServerEventKind `json:"event"`
	Data  any             `json:"data,omitempty"`
}

// GameFoundData 配對成功負載
type GameFoundData struct {
	XPlayer uuid.UUID `json:"x_player"`
	OPlayer uuid.UUID `json:"o_player"`
}

// RoundData 回合開始負載
type RoundData struct {
	Round int16 `json:"round"`
}

// RoundEndData 回合結束負載（winner 為 nil 表示平手回合）
type RoundEndData struct {
	Round  int16      `json:"round"`
	Winner *uuid.UUID `json:"winner,omitempty"`
}

// YourTurnData 行動權負載，期限為 Unix 秒
type YourTurnData struct {
	AutoPlayAfter int64 `json:"auto_play_after"`
}

// AutoPlayData 超時代下負載
type AutoPlayData struct {
	Place int `json:"place"`
}

// GameOverData 對局結束負載（winner 為 nil 表示系列賽平手）
type GameOverData struct {
	Winner *uuid.UUID     `json:"winner,omitempty"`
	Reason GameOverReason `json:"reason"`
}

// ErrorKind 協議錯誤種類（直接作為 error 事件的 data）
type ErrorKind string

const (
	ErrInvalidBody     ErrorKind = "invalid_body"
	ErrUnknownEvent    ErrorKind = "unknown_event"
	ErrAlreadyInSearch ErrorKind = "already_in_search"
	ErrAlreadyInGame   ErrorKind = "already_in_game"
	ErrNotInGame       ErrorKind = "not_in_game"
	ErrNotYourTurn     ErrorKind = "not_your_turn"
	ErrInvalidPlace    ErrorKind = "invalid_place"
	ErrMaxGamesReached ErrorKind = "max_games_reached"
)

// GameOverReason 對局結束原因
type GameOverReason string

const (
	ReasonPlayerWon          GameOverReason = "player_won"
	ReasonDraw               GameOverReason = "draw"
	ReasonPlayerDisconnected GameOverReason = "player_disconnected"
)

// Title 持久化到 reason 欄位的可讀描述
func (r GameOverReason) Title() string {
	switch r {
	case ReasonPlayerWon:
		return "Player Won"
	case ReasonDraw:
		return "Draw"
	case ReasonPlayerDisconnected:
		return "Player Disconnected"
	default:
		return string(r)
	}
}

// 事件構造函數：引擎產生事件的唯一入口

func gameFoundEvent(xPlayer, oPlayer uuid.UUID) ServerEvent {
	return ServerEvent{Event: EventGameFound, Data: GameFoundData{XPlayer: xPlayer, OPlayer: oPlayer}}
}

func roundStartEvent(round int16) ServerEvent {
	return ServerEvent{Event: EventRoundStart, Data: RoundData{Round: round}}
}

func roundEndEvent(round int16, winner *uuid.UUID) ServerEvent {
	return ServerEvent{Event: EventRoundEnd, Data: RoundEndData{Round: round, Winner: winner}}
}

func yourTurnEvent(deadline time.Time) ServerEvent {
	return ServerEvent{Event: EventYourTurn, Data: YourTurnData{AutoPlayAfter: deadline.Unix()}}
}

func playEvent(place int, player uuid.UUID) ServerEvent {
	return ServerEvent{Event: EventPlay, Data: PlayData{Place: &place, Player: &player}}
}

func autoPlayEvent(place int) ServerEvent {
	return ServerEvent{Event: EventAutoPlay, Data: AutoPlayData{Place: place}}
}

func gameOverEvent(winner *uuid.UUID, reason GameOverReason) ServerEvent {
	return ServerEvent{Event: EventGameOver, Data: GameOverData{Winner: winner, Reason: reason}}
}

func errorEvent(kind ErrorKind) ServerEvent {
	return ServerEvent{Event: EventError, Data: kind}
}
