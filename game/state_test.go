package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// battleState 两人已加入并放好宝藏：A 在 (0,0)，B 在 (5,5)
func battleState(t *testing.T) *State {
	t.Helper()
	s := NewState()
	_, err := s.Join()
	require.NoError(t, err)
	_, err = s.Join()
	require.NoError(t, err)
	require.NoError(t, s.PlaceTreasure(PlayerA, 0, 0))
	require.NoError(t, s.PlaceTreasure(PlayerB, 5, 5))
	return s
}

func TestJoin(t *testing.T) {
	s := NewState()

	id, err := s.Join()
	require.NoError(t, err)
	assert.Equal(t, PlayerA, id)
	assert.Equal(t, PhaseWaiting, s.Phase)

	id, err = s.Join()
	require.NoError(t, err)
	assert.Equal(t, PlayerB, id)
	assert.Equal(t, PhasePlacement, s.Phase)

	_, err = s.Join()
	assert.ErrorIs(t, err, ErrGameFull)
	assert.True(t, IsCapacity(err))
	assert.Equal(t, PhasePlacement, s.Phase)
}

func TestJoinAfterEndedResets(t *testing.T) {
	s := battleState(t)
	for i := 0; i < StartingHP; i++ {
		_, err := s.PerformAction(PlayerA, ActionDig, 5, 5)
		require.NoError(t, err)
		if s.Phase == PhaseEnded {
			break
		}
		_, err = s.PerformAction(PlayerB, ActionMove, 5, 5)
		require.NoError(t, err)
	}
	require.Equal(t, PhaseEnded, s.Phase)

	id, err := s.Join()
	require.NoError(t, err)
	assert.Equal(t, PlayerA, id)
	assert.Equal(t, PhaseWaiting, s.Phase)
	assert.Empty(t, s.Winner)
	for _, slot := range s.Slots {
		assert.Equal(t, StartingHP, slot.HP)
		assert.Nil(t, slot.Treasure)
	}
}

func TestPlaceTreasure(t *testing.T) {
	tests := []struct {
		name    string
		y, x    int
		wantErr error
	}{
		{name: "top left", y: 0, x: 0},
		{name: "bottom right anchor", y: GridSize - TreasureSize, x: GridSize - TreasureSize},
		{name: "row overflows", y: GridSize - TreasureSize + 1, x: 0, wantErr: ErrInvalidPlacement},
		{name: "col overflows", y: 0, x: GridSize - 1, wantErr: ErrInvalidPlacement},
		{name: "negative", y: -1, x: 2, wantErr: ErrInvalidPlacement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			s.Join()
			s.Join()

			err := s.PlaceTreasure(PlayerA, tt.y, tt.x)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s.Slots[0].Treasure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, &Pos{Y: tt.y, X: tt.x}, s.Slots[0].Treasure)
			assert.Equal(t, PhasePlacement, s.Phase)
		})
	}
}

func TestPlaceTreasureOncePerPlayerEverywhere(t *testing.T) {
	for y := 0; y <= GridSize-TreasureSize; y++ {
		for x := 0; x <= GridSize-TreasureSize; x++ {
			s := NewState()
			s.Join()
			s.Join()
			require.NoError(t, s.PlaceTreasure(PlayerB, y, x))
			assert.ErrorIs(t, s.PlaceTreasure(PlayerB, 0, 0), ErrAlreadyPlaced)
			assert.Equal(t, &Pos{Y: y, X: x}, s.Slots[1].Treasure)
		}
	}
}

func TestPlaceTreasureRejected(t *testing.T) {
	s := NewState()
	assert.ErrorIs(t, s.PlaceTreasure(PlayerA, 0, 0), ErrNotPlacementPhase)

	s.Join()
	s.Join()
	assert.ErrorIs(t, s.PlaceTreasure("C", 0, 0), ErrUnknownPlayer)

	s = battleState(t)
	assert.ErrorIs(t, s.PlaceTreasure(PlayerA, 1, 1), ErrNotPlacementPhase)
}

func TestBattleStartsWhenBothPlaced(t *testing.T) {
	s := NewState()
	s.Join()
	s.Join()

	require.NoError(t, s.PlaceTreasure(PlayerB, 3, 3))
	assert.Equal(t, PhasePlacement, s.Phase)

	require.NoError(t, s.PlaceTreasure(PlayerA, 0, 0))
	assert.Equal(t, PhaseBattle, s.Phase)
	assert.Equal(t, PlayerA, s.Turn)
	assert.Equal(t, "Giliran Pemain A untuk beraksi.", s.ActionMessage)
}

func TestPerformActionRejectedWithoutMutation(t *testing.T) {
	s := battleState(t)
	before := *s
	beforeMarks := copyMarks(s.Slots[0].DigMarks)

	cases := []struct {
		name string
		p    PlayerID
		t    ActionType
		y, x int
		want error
	}{
		{"wrong turn", PlayerB, ActionDig, 0, 0, ErrNotYourTurn},
		{"unknown player", "C", ActionDig, 0, 0, ErrNotYourTurn},
		{"move out of bounds", PlayerA, ActionMove, 6, 6, ErrInvalidMove},
		{"dig off grid", PlayerA, ActionDig, 7, 0, ErrInvalidDig},
		{"unknown action", PlayerA, "jump", 1, 1, ErrUnknownAction},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.PerformAction(c.p, c.t, c.y, c.x)
			assert.ErrorIs(t, err, c.want)
			assert.Equal(t, before.Phase, s.Phase)
			assert.Equal(t, before.Turn, s.Turn)
			assert.Equal(t, before.ActionMessage, s.ActionMessage)
			assert.Equal(t, &Pos{0, 0}, s.Slots[0].Treasure)
			assert.Equal(t, StartingHP, s.Slots[1].HP)
			assert.Equal(t, beforeMarks, s.Slots[0].DigMarks)
		})
	}

	_, err := NewState().PerformAction(PlayerA, ActionDig, 0, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestDigHitDetection(t *testing.T) {
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			s := battleState(t)
			res, err := s.PerformAction(PlayerA, ActionDig, y, x)
			require.NoError(t, err)

			want := 5 <= y && y < 7 && 5 <= x && x < 7
			assert.Equal(t, want, res.Hit, "cell (%d,%d)", y, x)
			if want {
				assert.Equal(t, MarkHit, s.Slots[0].DigMarks[y][x])
				assert.Equal(t, StartingHP-1, s.Slots[1].HP)
			} else {
				assert.Equal(t, MarkMiss, s.Slots[0].DigMarks[y][x])
				assert.Equal(t, StartingHP, s.Slots[1].HP)
			}
			assert.Equal(t, PlayerB, s.Turn)
			// 对手的挖掘记录从不被写入
			assert.Equal(t, emptyMarks(), s.Slots[1].DigMarks)
		}
	}
}

func TestDigUntilGameOver(t *testing.T) {
	s := battleState(t)

	res, err := s.PerformAction(PlayerA, ActionDig, 5, 5)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, 2, s.Slots[1].HP)
	assert.Equal(t, PlayerB, s.Turn)

	_, err = s.PerformAction(PlayerB, ActionDig, 3, 3)
	require.NoError(t, err)
	_, err = s.PerformAction(PlayerA, ActionDig, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Slots[1].HP)
	_, err = s.PerformAction(PlayerB, ActionDig, 3, 4)
	require.NoError(t, err)

	res, err = s.PerformAction(PlayerA, ActionDig, 6, 6)
	require.NoError(t, err)
	assert.True(t, res.GameOver)
	assert.Equal(t, PhaseEnded, s.Phase)
	assert.Equal(t, PlayerA, s.Winner)
	assert.Equal(t, 0, s.Slots[1].HP)
	// 终局不切换回合
	assert.Equal(t, PlayerA, s.Turn)
	assert.Equal(t, "Game Selesai! Pemenangnya adalah Pemain A!", s.ActionMessage)

	_, err = s.PerformAction(PlayerB, ActionDig, 0, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestMoveSwitchesTurnAndClearsOpponentMarks(t *testing.T) {
	s := battleState(t)

	_, err := s.PerformAction(PlayerA, ActionDig, 1, 1)
	require.NoError(t, err)
	_, err = s.PerformAction(PlayerB, ActionDig, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, MarkMiss, s.Slots[1].DigMarks[4][4])
	// 轮到 A 时 A 自己的旧记录已被清空
	assert.Equal(t, emptyMarks(), s.Slots[0].DigMarks)

	res, err := s.PerformAction(PlayerA, ActionMove, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, ActionMove, res.Type)
	assert.Equal(t, &Pos{5, 5}, s.Slots[0].Treasure)
	assert.Equal(t, PlayerB, s.Turn)
	assert.Equal(t, emptyMarks(), s.Slots[1].DigMarks)
	assert.Equal(t, "Pemain A memindahkan hartanya. Giliran Pemain B.", s.ActionMessage)
}

func TestViewFor(t *testing.T) {
	s := battleState(t)
	_, err := s.PerformAction(PlayerA, ActionDig, 5, 5)
	require.NoError(t, err)

	_, err = s.ViewFor("C")
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	v, err := s.ViewFor(PlayerB)
	require.NoError(t, err)
	assert.Equal(t, PlayerB, v.PlayerID)
	assert.Equal(t, 2, v.MyHP)
	assert.Equal(t, 3, v.OpponentHP)
	assert.Equal(t, &Pos{5, 5}, v.MyTreasurePos)
	assert.Equal(t, PlayerB, v.Turn)
	assert.Nil(t, v.Winner)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{
		"player_id", "game_phase", "my_hp", "opponent_hp", "my_treasure_pos", "my_dig_marks",
		"turn", "winner", "action_message", "grid_size", "treasure_size",
	}, keys(raw))
	assert.Equal(t, []any{5.0, 5.0}, raw["my_treasure_pos"])
	assert.Nil(t, raw["winner"])
	assert.Equal(t, 7.0, raw["grid_size"])
	assert.Equal(t, 2.0, raw["treasure_size"])
	// A 的挖掘记录不出现在 B 的视角中
	marks := raw["my_dig_marks"].([]any)
	require.Len(t, marks, GridSize)
	for _, row := range marks {
		for _, cell := range row.([]any) {
			assert.Nil(t, cell)
		}
	}
}

func TestViewForDoesNotAlias(t *testing.T) {
	s := battleState(t)
	v, err := s.ViewFor(PlayerA)
	require.NoError(t, err)
	v.MyDigMarks[0][0] = MarkHit
	v.MyTreasurePos.Y = 4
	assert.Equal(t, MarkNone, s.Slots[0].DigMarks[0][0])
	assert.Equal(t, 0, s.Slots[0].Treasure.Y)
}

func TestViewMarksJSON(t *testing.T) {
	s := battleState(t)
	_, err := s.PerformAction(PlayerA, ActionDig, 5, 5)
	require.NoError(t, err)
	_, err = s.PerformAction(PlayerB, ActionMove, 0, 0)
	require.NoError(t, err)
	_, err = s.PerformAction(PlayerA, ActionDig, 0, 1)
	require.NoError(t, err)

	v, err := s.ViewFor(PlayerA)
	require.NoError(t, err)
	data, err := json.Marshal(v.MyDigMarks[0][:3])
	require.NoError(t, err)
	assert.JSONEq(t, `[null,"hit",null]`, string(data))
}

func TestSummaryHidesTreasure(t *testing.T) {
	s := battleState(t)
	data, err := json.Marshal(s.Summary())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "treasure")
	assert.JSONEq(t, `{"game_phase":"BATTLE","players":["A","B"],"hp":{"A":3,"B":3},"turn":"A","action_message":"Giliran Pemain A untuk beraksi."}`, string(data))
}

func TestReset(t *testing.T) {
	s := battleState(t)
	_, err := s.PerformAction(PlayerA, ActionDig, 5, 5)
	require.NoError(t, err)

	s.Reset()
	assert.Equal(t, NewState(), s)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
