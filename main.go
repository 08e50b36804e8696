package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"treasurehunt/events"
	"treasurehunt/game"
	"treasurehunt/server"
)

// 寻宝对战入口：游戏端口（手写 HTTP）+ 管理端口（metrics / healthz / ws）
func main() {
	var (
		cfgPath   string
		addr      string
		adminAddr string
	)
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to YAML config; missing file uses defaults")
	flag.StringVar(&addr, "addr", "", "game listen address, overrides server.addr, e.g. :8889")
	flag.StringVar(&adminAddr, "admin-addr", "", "admin listen address, overrides admin.addr")
	flag.Parse()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if adminAddr != "" {
		cfg.Admin.Addr = adminAddr
	}

	// 使用第三方 zap 日志库写入 app.log（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := openStore(ctx, cfg.Store)
	defer closeStore()

	reportErr := func(err error) { server.Log.Warnf("event publish: %v", err) }
	sinks := events.NewMulti()
	closeSinks := openSinks(cfg.Events, sinks, reportErr)
	defer closeSinks()

	session := game.NewSession(store,
		game.WithPublisher(sinks),
		game.WithErrorHandler(reportErr),
	)

	// 实时状态推送：订阅会话事件
	hub := server.NewHub(session)
	sinks.Add(hub)
	go hub.Run(ctx)

	router := server.NewRouter(session, cfg.Store.Redis.OpTimeout)
	srv := server.NewServer(cfg.Server, router, &server.Metrics{})
	server.StartStatsReporter(ctx, cfg.Server.StatsInterval, srv.Metrics())

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, server.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	var admin *http.Server
	if cfg.Admin.Addr != "" {
		admin = &http.Server{
			Addr:    cfg.Admin.Addr,
			Handler: server.NewAdmin(session, srv, hub, cfg.Store.Redis.OpTimeout).Handler(),
		}
		go func() {
			server.Log.Infof("admin listening on %s", cfg.Admin.Addr)
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				server.Log.Fatalf("admin listen: %v", err)
			}
		}()
	}

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnf("game server shutdown: %v", err)
	}
	if admin != nil {
		_ = admin.Shutdown(shutdownCtx)
	}
	cancel()
}

// openStore memory 为单进程；redis 允许多个进程共享同一局
func openStore(ctx context.Context, cfg server.StoreConfig) (game.Store, func()) {
	if cfg.Driver != "redis" {
		server.Log.Info("session store: memory")
		return game.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.OpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// 启动时不可达只告警；请求阶段返回 503
		server.Log.Warnf("redis %s not reachable: %v", cfg.Redis.Addr, err)
	}
	server.Log.Infof("session store: redis %s key=%s", cfg.Redis.Addr, cfg.Redis.Key)

	store := game.NewRedisStore(client, game.RedisOptions{
		Key:       cfg.Redis.Key,
		LockTTL:   cfg.Redis.LockTTL,
		LockRetry: cfg.Redis.LockRetry,
	})
	return store, func() { _ = client.Close() }
}

// openSinks 按配置挂载 NATS / Kafka；连接失败只告警
func openSinks(cfg server.EventsConfig, sinks *events.Multi, onError func(error)) func() {
	var closers []func()

	if cfg.NATS.URL != "" {
		subject := cfg.NATS.Subject
		if subject == "" {
			subject = "treasurehunt.events"
		}
		p, err := events.DialNATS(cfg.NATS.URL, subject)
		if err != nil {
			server.Log.Warnf("nats disabled: %v", err)
		} else {
			sinks.Add(p)
			closers = append(closers, p.Close)
			server.Log.Infof("events -> nats %s (%s.*)", cfg.NATS.URL, subject)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = "treasurehunt-events"
		}
		p := events.NewKafkaPublisher(cfg.Kafka.Brokers, topic, onError)
		sinks.Add(p)
		closers = append(closers, func() {
			if err := p.Close(); err != nil {
				server.Log.Warnf("kafka close: %v", err)
			}
		})
		server.Log.Infof("events -> kafka %v topic=%s", cfg.Kafka.Brokers, topic)
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}
