package game

import (
	"context"

	"treasurehunt/events"
)

// Session 对局规则的唯一入口。
// 并发策略由 Store 决定（进程内 Mutex 或 Redis 租约），规则只写一遍。
// 每次成功的修改在释放锁之后发布一个事件。
type Session struct {
	store   Store
	pub     events.Publisher
	onError func(error)
}

// Option Session 可选项
type Option func(*Session)

// WithPublisher 设置事件接收端
func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.pub = p }
}

// WithErrorHandler 事件发布失败时回调（不影响请求结果）
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// NewSession 创建会话；store 为 nil 时使用内存存储
func NewSession(store Store, opts ...Option) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store, pub: events.Nop{}, onError: func(error) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join 分配 A 或 B
func (s *Session) Join(ctx context.Context) (PlayerID, error) {
	var (
		id  PlayerID
		sum Summary
	)
	err := s.store.Update(ctx, func(st *State) error {
		var err error
		if id, err = st.Join(); err != nil {
			return err
		}
		sum = st.Summary()
		return nil
	})
	if err != nil {
		return "", err
	}
	s.publish(ctx, events.TypeJoin, id, nil, sum)
	return id, nil
}

// PlaceTreasure 放置宝藏
func (s *Session) PlaceTreasure(ctx context.Context, p PlayerID, y, x int) error {
	var sum Summary
	err := s.store.Update(ctx, func(st *State) error {
		if err := st.PlaceTreasure(p, y, x); err != nil {
			return err
		}
		sum = st.Summary()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.TypePlace, p, nil, sum)
	return nil
}

// PerformAction 执行 move / dig
func (s *Session) PerformAction(ctx context.Context, p PlayerID, t ActionType, y, x int) (ActionResult, error) {
	var (
		res ActionResult
		sum Summary
	)
	err := s.store.Update(ctx, func(st *State) error {
		var err error
		if res, err = st.PerformAction(p, t, y, x); err != nil {
			return err
		}
		sum = st.Summary()
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	switch {
	case res.Type == ActionMove:
		s.publish(ctx, events.TypeMove, p, nil, sum)
	case res.GameOver:
		s.publish(ctx, events.TypeGameOver, p, &res.Hit, sum)
	default:
		s.publish(ctx, events.TypeDig, p, &res.Hit, sum)
	}
	return res, nil
}

// StateFor 玩家视角的只读投影
func (s *Session) StateFor(ctx context.Context, p PlayerID) (View, error) {
	var v View
	err := s.store.View(ctx, func(st *State) error {
		var err error
		v, err = st.ViewFor(p)
		return err
	})
	return v, err
}

// Summary 公开摘要
func (s *Session) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.store.View(ctx, func(st *State) error {
		sum = st.Summary()
		return nil
	})
	return sum, err
}

// Reset 无条件重置
func (s *Session) Reset(ctx context.Context) error {
	var sum Summary
	err := s.store.Update(ctx, func(st *State) error {
		st.Reset()
		sum = st.Summary()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.TypeReset, "", nil, sum)
	return nil
}

func (s *Session) publish(ctx context.Context, t events.Type, p PlayerID, hit *bool, sum Summary) {
	e := events.New(t, string(p))
	e.Hit = hit
	e.Phase = string(sum.Phase)
	e.Turn = string(sum.Turn)
	e.Winner = string(sum.Winner)
	e.Message = sum.ActionMessage
	e.HP = make(map[string]int, len(sum.HP))
	for id, hp := range sum.HP {
		e.HP[string(id)] = hp
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		s.onError(err)
	}
}
