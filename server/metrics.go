package server

import (
	"sync/atomic"
)

// Metrics 记录游戏端口的连接与请求指标（用于监控与调试）
type Metrics struct {
	ConnsAccepted int64 // 接受的连接数
	ConnsActive   int64 // 当前在处理的连接
	Requests      int64 // 写出响应的请求数
	Status2xx     int64
	Status4xx     int64
	Status5xx     int64
	IdleTimeouts  int64 // 读超时被丢弃的连接
	ClosedEarly   int64 // 请求未完整即断开
	FramingErrors int64 // Content-Length 非法或超出大小限制
	TotalHandleNs int64 // 请求处理累计耗时（纳秒）
}

func (m *Metrics) IncAccepted() { atomic.AddInt64(&m.ConnsAccepted, 1) }
func (m *Metrics) IncActive() { atomic.AddInt64(&m.ConnsActive, 1) }
func (m *Metrics) DecActive() { atomic.AddInt64(&m.ConnsActive, -1) }
func (m *Metrics) IncIdleTimeout() { atomic.AddInt64(&m.IdleTimeouts, 1) }
func (m *Metrics) IncClosedEarly() { atomic.AddInt64(&m.ClosedEarly, 1) }
func (m *Metrics) IncFramingError() { atomic.AddInt64(&m.FramingErrors, 1) }

// ObserveRequest 记录一次已响应的请求
func (m *Metrics) ObserveRequest(status int, ns int64) {
	atomic.AddInt64(&m.Requests, 1)
	atomic.AddInt64(&m.TotalHandleNs, ns)
	switch {
	case status >= 500:
		atomic.AddInt64(&m.Status5xx, 1)
	case status >= 400:
		atomic.AddInt64(&m.Status4xx, 1)
	default:
		atomic.AddInt64(&m.Status2xx, 1)
	}
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	reqs := atomic.LoadInt64(&m.Requests)
	total := atomic.LoadInt64(&m.TotalHandleNs)
	var avgMs float64
	if reqs > 0 {
		avgMs = float64(total) / float64(reqs) / 1e6
	}
	return map[string]any{
		"conns_accepted": atomic.LoadInt64(&m.ConnsAccepted),
		"conns_active":   atomic.LoadInt64(&m.ConnsActive),
		"requests":       reqs,
		"status_2xx":     atomic.LoadInt64(&m.Status2xx),
		"status_4xx":     atomic.LoadInt64(&m.Status4xx),
		"status_5xx":     atomic.LoadInt64(&m.Status5xx),
		"idle_timeouts":  atomic.LoadInt64(&m.IdleTimeouts),
		"closed_early":   atomic.LoadInt64(&m.ClosedEarly),
		"framing_errors": atomic.LoadInt64(&m.FramingErrors),
		"avg_handle_ms":  avgMs,
	}
}
