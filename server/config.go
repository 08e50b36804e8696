package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务配置，对应 config.yaml
type Config struct {
	Server ServerConfig `yaml:"server"`
	Admin  AdminConfig  `yaml:"admin"`
	Store  StoreConfig  `yaml:"store"`
	Events EventsConfig `yaml:"events"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig 游戏端口（手写 HTTP）
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`      // 单次读等待上限
	MaxRequestBytes int           `yaml:"max_request_bytes"` // 0 表示不限
	ReadChunk       int           `yaml:"read_chunk"`
	StatsInterval   time.Duration `yaml:"stats_interval"` // 0 关闭周期统计日志
}

// AdminConfig 管理端口：metrics / healthz / ws；Addr 为空则不启动
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig 会话存储
type StoreConfig struct {
	Driver string      `yaml:"driver"` // memory | redis
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig 多进程共享一局游戏时使用
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Key       string        `yaml:"key"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
	LockRetry time.Duration `yaml:"lock_retry"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// EventsConfig 事件接收端，均为可选
type EventsConfig struct {
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

// LogConfig 日志
type LogConfig struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Stderr bool   `yaml:"stderr"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8889",
			IdleTimeout:     5 * time.Second,
			MaxRequestBytes: 1 << 20, // 1MB
			ReadChunk:       4096,
			StatsInterval:   time.Minute,
		},
		Admin: AdminConfig{Addr: ":8890"},
		Store: StoreConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Key:       "treasurehunt:session",
				LockTTL:   2 * time.Second,
				LockRetry: 5 * time.Millisecond,
				OpTimeout: 3 * time.Second,
			},
		},
		Log: LogConfig{File: "app.log", Level: "debug"},
	}
}

// LoadConfig 读取 YAML；文件不存在时返回默认配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.IdleTimeout <= 0 {
		return errors.New("server.idle_timeout must be positive")
	}
	if c.Server.MaxRequestBytes < 0 {
		return errors.New("server.max_request_bytes must not be negative")
	}
	if c.Server.ReadChunk <= 0 {
		return errors.New("server.read_chunk must be positive")
	}
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.driver %q: want memory or redis", c.Store.Driver)
	}
	return nil
}
