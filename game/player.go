package game

import "encoding/json"

// 棋盘与宝藏的固定规则
const (
	GridSize     = 7
	TreasureSize = 2
	StartingHP   = 3
)

// PlayerID 玩家标识，只有 A 与 B 两个槽位
type PlayerID string

const (
	PlayerA PlayerID = "A"
	PlayerB PlayerID = "B"
)

// Valid 是否为合法槽位
func (p PlayerID) Valid() bool { return p == PlayerA || p == PlayerB }

// Opponent 返回对手
func (p PlayerID) Opponent() PlayerID {
	if p == PlayerA {
		return PlayerB
	}
	return PlayerA
}

func (p PlayerID) index() int {
	if p == PlayerB {
		return 1
	}
	return 0
}

// Phase 会话阶段
type Phase string

const (
	PhaseWaiting   Phase = "WAITING_FOR_PLAYERS"
	PhasePlacement Phase = "PLACEMENT"
	PhaseBattle    Phase = "BATTLE"
	PhaseEnded     Phase = "ENDED"
)

// ActionType 战斗阶段的动作
type ActionType string

const (
	ActionMove ActionType = "move"
	ActionDig  ActionType = "dig"
)

// ParseActionType 只接受 move / dig
func ParseActionType(s string) (ActionType, bool) {
	switch ActionType(s) {
	case ActionMove, ActionDig:
		return ActionType(s), true
	}
	return "", false
}

// Mark 挖掘标记；空字符串表示未挖
type Mark string

const (
	MarkNone Mark = ""
	MarkHit  Mark = "hit"
	MarkMiss Mark = "miss"
)

// MarshalJSON 未挖的格子输出 null
func (m Mark) MarshalJSON() ([]byte, error) {
	if m == MarkNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

// Pos 宝藏左上角锚点 (行, 列)
type Pos struct {
	Y int `msgpack:"y"`
	X int `msgpack:"x"`
}

// MarshalJSON 输出为 [y, x]
func (p Pos) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Y, p.X})
}

// Covers 判断 (y, x) 是否落在以 p 为锚点的宝藏范围内
func (p Pos) Covers(y, x int) bool {
	return p.Y <= y && y < p.Y+TreasureSize && p.X <= x && x < p.X+TreasureSize
}

// anchorInBounds 锚点必须让整个宝藏留在棋盘内
func anchorInBounds(y, x int) bool {
	return 0 <= y && y <= GridSize-TreasureSize && 0 <= x && x <= GridSize-TreasureSize
}

func cellInBounds(y, x int) bool {
	return 0 <= y && y < GridSize && 0 <= x && x < GridSize
}
