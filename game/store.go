package game

import (
	"context"
	"sync"
)

// Store 为 State 提供唯一的临界区。
// Update 中 fn 返回错误时，实现不得持久化任何修改；
// View 同样在锁内执行，但从不写回。
type Store interface {
	Update(ctx context.Context, fn func(*State) error) error
	View(ctx context.Context, fn func(*State) error) error
}

// MemoryStore 单进程存储：一把 Mutex 串行化所有读写
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore 创建开局状态
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewState()}
}

func (m *MemoryStore) Update(_ context.Context, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *MemoryStore) View(_ context.Context, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}
