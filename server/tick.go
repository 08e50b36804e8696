package server

import (
	"context"
	"time"
)

// StartStatsReporter 定期把指标写入日志；interval<=0 不启动
func StartStatsReporter(ctx context.Context, interval time.Duration, m *Metrics) {
	if interval <= 0 || m == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := m.Snapshot()
				Log.Infow("stats",
					"requests", s["requests"],
					"conns_active", s["conns_active"],
					"status_4xx", s["status_4xx"],
					"status_5xx", s["status_5xx"],
					"idle_timeouts", s["idle_timeouts"],
					"avg_handle_ms", s["avg_handle_ms"],
				)
			}
		}
	}()
}
