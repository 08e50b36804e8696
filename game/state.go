package game

import "fmt"

// Slot 单个玩家槽位的权威状态
type Slot struct {
	Joined   bool     `msgpack:"joined"`
	Treasure *Pos     `msgpack:"treasure"`
	HP       int      `msgpack:"hp"`
	DigMarks [][]Mark `msgpack:"dig_marks"` // 自己对对手棋盘的挖掘记录
}

// State 整局游戏的权威状态。
// 本身不加锁，只能在 Store 的临界区内读写。
// 所有规则方法先校验再修改，失败时状态保持不变。
type State struct {
	Phase         Phase    `msgpack:"phase"`
	Slots         [2]Slot  `msgpack:"slots"`
	Turn          PlayerID `msgpack:"turn"`
	Winner        PlayerID `msgpack:"winner"` // 仅 ENDED 时非空
	ActionMessage string   `msgpack:"action_message"`
}

// NewState 开局状态
func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset 将所有字段恢复为开局值
func (s *State) Reset() {
	s.Phase = PhaseWaiting
	for i := range s.Slots {
		s.Slots[i] = Slot{HP: StartingHP, DigMarks: emptyMarks()}
	}
	s.Turn = PlayerA
	s.Winner = ""
	s.ActionMessage = "Menunggu kedua pemain bergabung..."
}

func emptyMarks() [][]Mark {
	m := make([][]Mark, GridSize)
	for i := range m {
		m[i] = make([]Mark, GridSize)
	}
	return m
}

func (s *State) slot(p PlayerID) *Slot { return &s.Slots[p.index()] }

// Join 分配下一个空槽位；已结束的对局先重置
func (s *State) Join() (PlayerID, error) {
	if s.Phase == PhaseEnded {
		s.Reset()
	}
	switch {
	case !s.slot(PlayerA).Joined:
		s.slot(PlayerA).Joined = true
		s.ActionMessage = "Pemain A bergabung. Menunggu Pemain B..."
		return PlayerA, nil
	case !s.slot(PlayerB).Joined:
		s.slot(PlayerB).Joined = true
		s.Phase = PhasePlacement
		s.ActionMessage = "Pemain B bergabung. Tahap penempatan dimulai."
		return PlayerB, nil
	}
	return "", ErrGameFull
}

// PlaceTreasure 放置阶段每位玩家只能放一次
func (s *State) PlaceTreasure(p PlayerID, y, x int) error {
	if !p.Valid() {
		return ErrUnknownPlayer
	}
	if s.Phase != PhasePlacement {
		return ErrNotPlacementPhase
	}
	me := s.slot(p)
	if me.Treasure != nil {
		return ErrAlreadyPlaced
	}
	if !anchorInBounds(y, x) {
		return ErrInvalidPlacement
	}
	me.Treasure = &Pos{Y: y, X: x}
	if s.slot(PlayerA).Treasure != nil && s.slot(PlayerB).Treasure != nil {
		s.Phase = PhaseBattle
		s.Turn = PlayerA
		s.ActionMessage = "Giliran Pemain A untuk beraksi."
	}
	return nil
}

// ActionResult 一次动作的结果
type ActionResult struct {
	Type     ActionType
	Hit      bool
	GameOver bool
}

// PerformAction 只有轮到的玩家可以在战斗阶段行动
func (s *State) PerformAction(p PlayerID, t ActionType, y, x int) (ActionResult, error) {
	if s.Phase != PhaseBattle || s.Turn != p {
		return ActionResult{}, ErrNotYourTurn
	}
	opp := p.Opponent()
	switch t {
	case ActionMove:
		if !anchorInBounds(y, x) {
			return ActionResult{}, ErrInvalidMove
		}
		s.slot(p).Treasure = &Pos{Y: y, X: x}
		s.Turn = opp
		s.ActionMessage = fmt.Sprintf("Pemain %s memindahkan hartanya. Giliran Pemain %s.", p, opp)
		s.slot(opp).DigMarks = emptyMarks()
		return ActionResult{Type: ActionMove}, nil

	case ActionDig:
		if !cellInBounds(y, x) {
			return ActionResult{}, ErrInvalidDig
		}
		res := ActionResult{Type: ActionDig}
		target := s.slot(opp)
		if target.Treasure != nil && target.Treasure.Covers(y, x) {
			res.Hit = true
			s.slot(p).DigMarks[y][x] = MarkHit
			target.HP--
			if target.HP <= 0 {
				s.Phase = PhaseEnded
				s.Winner = p
				s.ActionMessage = fmt.Sprintf("Game Selesai! Pemenangnya adalah Pemain %s!", p)
				res.GameOver = true
				return res, nil
			}
			s.ActionMessage = fmt.Sprintf("Pemain %s berhasil mengenai harta! Giliran Pemain %s.", p, opp)
		} else {
			s.slot(p).DigMarks[y][x] = MarkMiss
			s.ActionMessage = fmt.Sprintf("Pemain %s gagal menemukan harta. Giliran Pemain %s.", p, opp)
		}
		s.Turn = opp
		// 新的行动方丢弃自己此前的挖掘记录
		s.slot(opp).DigMarks = emptyMarks()
		return res, nil
	}
	return ActionResult{}, ErrUnknownAction
}

// View 面向单个玩家的状态投影，不含对手宝藏位置与对手挖掘记录
type View struct {
	PlayerID      PlayerID  `json:"player_id"`
	Phase         Phase     `json:"game_phase"`
	MyHP          int       `json:"my_hp"`
	OpponentHP    int       `json:"opponent_hp"`
	MyTreasurePos *Pos      `json:"my_treasure_pos"`
	MyDigMarks    [][]Mark  `json:"my_dig_marks"`
	Turn          PlayerID  `json:"turn"`
	Winner        *PlayerID `json:"winner"`
	ActionMessage string    `json:"action_message"`
	GridSize      int       `json:"grid_size"`
	TreasureSize  int       `json:"treasure_size"`
}

// ViewFor 生成玩家视角；返回值不与 State 共享内存
func (s *State) ViewFor(p PlayerID) (View, error) {
	if !p.Valid() {
		return View{}, ErrUnknownPlayer
	}
	me, opp := s.slot(p), s.slot(p.Opponent())
	v := View{
		PlayerID:      p,
		Phase:         s.Phase,
		MyHP:          nonNegative(me.HP),
		OpponentHP:    nonNegative(opp.HP),
		MyDigMarks:    copyMarks(me.DigMarks),
		Turn:          s.Turn,
		ActionMessage: s.ActionMessage,
		GridSize:      GridSize,
		TreasureSize:  TreasureSize,
	}
	if me.Treasure != nil {
		pos := *me.Treasure
		v.MyTreasurePos = &pos
	}
	if s.Winner != "" {
		w := s.Winner
		v.Winner = &w
	}
	return v, nil
}

// Summary 公开信息摘要，用于事件与管理接口
type Summary struct {
	Phase         Phase            `json:"game_phase"`
	Players       []PlayerID       `json:"players"`
	HP            map[PlayerID]int `json:"hp"`
	Turn          PlayerID         `json:"turn"`
	Winner        PlayerID         `json:"winner,omitempty"`
	ActionMessage string           `json:"action_message"`
}

// Summary 生成不含任何宝藏位置的摘要
func (s *State) Summary() Summary {
	sum := Summary{
		Phase:         s.Phase,
		Players:       make([]PlayerID, 0, 2),
		HP:            make(map[PlayerID]int, 2),
		Turn:          s.Turn,
		Winner:        s.Winner,
		ActionMessage: s.ActionMessage,
	}
	for _, p := range []PlayerID{PlayerA, PlayerB} {
		if s.slot(p).Joined {
			sum.Players = append(sum.Players, p)
		}
		sum.HP[p] = nonNegative(s.slot(p).HP)
	}
	return sum
}

func copyMarks(src [][]Mark) [][]Mark {
	dst := make([][]Mark, len(src))
	for i := range src {
		dst[i] = append([]Mark(nil), src[i]...)
	}
	return dst
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
