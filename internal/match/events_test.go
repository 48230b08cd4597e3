package match_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/xo-server/internal/match"
)

// TestServerEvent_WireFormat 測試出站事件的線上格式
func TestServerEvent_WireFormat(t *testing.T) {
	playerID := uuid.MustParse("6edc4d41-988b-4bb6-a9a9-8ce75c50c2bd")
	deadline := time.Unix(1700000000, 0)

	tests := []struct {
		name  string
		event match.ServerEvent
		want  string
	}{
		{
			name:  "error event carries bare kind string",
			event: match.ServerEvent{Event: match.EventError, Data: match.ErrInvalidPlace},
			want:  `{"event":"error","data":"invalid_place"}`,
		},
		{
			name:  "your_turn carries unix deadline",
			event: match.ServerEvent{Event: match.EventYourTurn, Data: match.YourTurnData{AutoPlayAfter: deadline.Unix()}},
			want:  `{"event":"your_turn","data":{"auto_play_after":1700000000}}`,
		},
		{
			name:  "round_start carries round number",
			event: match.ServerEvent{Event: match.EventRoundStart, Data: match.RoundData{Round: 2}},
			want:  `{"event":"round_start","data":{"round":2}}`,
		},
		{
			name:  "round_end omits winner on draw",
			event: match.ServerEvent{Event: match.EventRoundEnd, Data: match.RoundEndData{Round: 1}},
			want:  `{"event":"round_end","data":{"round":1}}`,
		},
		{
			name:  "game_over carries snake_case reason",
			event: match.ServerEvent{Event: match.EventGameOver, Data: match.GameOverData{Winner: &playerID, Reason: match.ReasonPlayerWon}},
			want:  `{"event":"game_over","data":{"winner":"6edc4d41-988b-4bb6-a9a9-8ce75c50c2bd","reason":"player_won"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

// TestClientEvent_Unmarshal 測試入站事件解析
func TestClientEvent_Unmarshal(t *testing.T) {
	var search match.ClientEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event":"search"}`), &search))
	assert.Equal(t, match.ClientSearch, search.Event)
	assert.Nil(t, search.Data)

	var play match.ClientEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event":"play","data":{"place":4}}`), &play))
	assert.Equal(t, match.ClientPlay, play.Event)
	require.NotNil(t, play.Data)
	require.NotNil(t, play.Data.Place)
	assert.Equal(t, 4, *play.Data.Place)

	// place 缺失要能被上層識別為 invalid_body
	var empty match.ClientEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event":"play","data":{}}`), &empty))
	require.NotNil(t, empty.Data)
	assert.Nil(t, empty.Data.Place)
}

// TestGameOverReason_Title 測試持久化用的可讀描述
func TestGameOverReason_Title(t *testing.T) {
	assert.Equal(t, "Player Won", match.ReasonPlayerWon.Title())
	assert.Equal(t, "Draw", match.ReasonDraw.Title())
	assert.Equal(t, "Player Disconnected", match.ReasonPlayerDisconnected.Title())
}
