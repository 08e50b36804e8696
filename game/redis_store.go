package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// 只有持有者才能释放锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions Redis 存储参数
type RedisOptions struct {
	Key       string        // 状态快照的 key，锁为 Key + ":lock"
	LockTTL   time.Duration // 租约时长，持有者崩溃后自动过期
	LockRetry time.Duration // 抢锁失败后的重试间隔
}

// RedisStore 多进程共享一局游戏：
// SET NX PX 租约作为全局锁，状态以 msgpack 快照保存。
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	lockKey string
	ttl     time.Duration
	retry   time.Duration
}

// NewRedisStore 零值参数取默认
func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	if opts.Key == "" {
		opts.Key = "treasurehunt:session"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Second
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = 5 * time.Millisecond
	}
	return &RedisStore{
		client:  client,
		key:     opts.Key,
		lockKey: opts.Key + ":lock",
		ttl:     opts.LockTTL,
		retry:   opts.LockRetry,
	}
}

func (s *RedisStore) Update(ctx context.Context, fn func(*State) error) error {
	return s.withLock(ctx, func() error {
		st, err := s.load(ctx)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return s.save(ctx, st)
	})
}

func (s *RedisStore) View(ctx context.Context, fn func(*State) error) error {
	return s.withLock(ctx, func() error {
		st, err := s.load(ctx)
		if err != nil {
			return err
		}
		return fn(st)
	})
}

func (s *RedisStore) withLock(ctx context.Context, fn func() error) error {
	token := uuid.NewString()
	for {
		ok, err := s.client.SetNX(ctx, s.lockKey, token, s.ttl).Result()
		if err != nil {
			return Unavailable(fmt.Errorf("acquire lock: %w", err))
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return Unavailable(fmt.Errorf("acquire lock: %w", ctx.Err()))
		case <-time.After(s.retry):
		}
	}
	// 释放用独立 context，请求超时也要尽量归还租约
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = unlockScript.Run(rctx, s.client, []string{s.lockKey}, token).Err()
	}()
	return fn()
}

func (s *RedisStore) load(ctx context.Context) (*State, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewState(), nil
	}
	if err != nil {
		return nil, Unavailable(fmt.Errorf("load state: %w", err))
	}
	st := &State{}
	if err := msgpack.Unmarshal(data, st); err != nil {
		return nil, Unavailable(fmt.Errorf("decode state: %w", err))
	}
	return st, nil
}

func (s *RedisStore) save(ctx context.Context, st *State) error {
	data, err := msgpack.Marshal(st)
	if err != nil {
		return Unavailable(fmt.Errorf("encode state: %w", err))
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return Unavailable(fmt.Errorf("save state: %w", err))
	}
	return nil
}
