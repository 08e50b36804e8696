// Package events 把已提交的对局变化广播给外部订阅者。
// 事件只携带公开信息，不包含任何宝藏位置。
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Type 事件类型
type Type string

const (
	TypeJoin     Type = "join"
	TypePlace    Type = "place"
	TypeMove     Type = "move"
	TypeDig      Type = "dig"
	TypeGameOver Type = "game_over"
	TypeReset    Type = "reset"
)

// Event 一次已提交的会话变化
type Event struct {
	ID      string         `json:"id"`
	Type    Type           `json:"type"`
	Player  string         `json:"player,omitempty"`
	Hit     *bool          `json:"hit,omitempty"`
	Phase   string         `json:"game_phase"`
	Turn    string         `json:"turn"`
	Winner  string         `json:"winner,omitempty"`
	HP      map[string]int `json:"hp"`
	Message string         `json:"action_message"`
	At      time.Time      `json:"at"`
}

// New 填充 ID 与时间戳
func New(t Type, player string) Event {
	return Event{ID: uuid.NewString(), Type: t, Player: player, At: time.Now().UTC()}
}

// Encode JSON 编码，供消息队列使用
func (e Event) Encode() ([]byte, error) { return json.Marshal(e) }

// Publisher 事件接收端。Publish 在会话锁之外调用，实现不得阻塞过久。
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc 函数适配器
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi 顺序投递给多个 Publisher，汇总错误但不中断
type Multi struct {
	mu    sync.RWMutex
	sinks []Publisher
}

// NewMulti 构造扇出器
func NewMulti(sinks ...Publisher) *Multi {
	return &Multi{sinks: sinks}
}

// Add 运行期追加接收端
func (m *Multi) Add(p Publisher) {
	m.mu.Lock()
	m.sinks = append(m.sinks, p)
	m.mu.Unlock()
}

// Len 当前接收端数量
func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

func (m *Multi) Publish(ctx context.Context, e Event) error {
	m.mu.RLock()
	sinks := append([]Publisher(nil), m.sinks...)
	m.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}
