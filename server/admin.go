package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"treasurehunt/game"
)

// summarySource /admin/session 所需的会话契约
type summarySource interface {
	Summary(ctx context.Context) (game.Summary, error)
	Reset(ctx context.Context) error
}

// Admin 管理与监控接口（独立端口，标准 net/http）
type Admin struct {
	session summarySource
	server  *Server
	hub     *Hub
	timeout time.Duration
}

// NewAdmin hub 可为 nil（不提供 /ws）
func NewAdmin(session summarySource, srv *Server, hub *Hub, timeout time.Duration) *Admin {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Admin{session: session, server: srv, hub: hub, timeout: timeout}
}

// Handler 组装管理端路由
func (a *Admin) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", a.HandleMetrics)
	mux.HandleFunc("/healthz", a.HandleHealthz)
	mux.HandleFunc("/admin/session", a.HandleSession)
	if a.hub != nil {
		mux.HandleFunc("/ws", a.hub.HandleWS)
	}
	return mux
}

// HandleMetrics 输出游戏端口的运行指标
// GET /metrics
func (a *Admin) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"metrics":        a.server.Metrics().Snapshot(),
		"active_clients": a.server.ActiveClients(),
	}
	if a.hub != nil {
		payload["ws_subscribers"] = a.hub.Clients()
	}
	writeJSON(w, http.StatusOK, payload)
}

// HandleHealthz 会话存储可读即健康
func (a *Admin) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	if _, err := a.session.Summary(ctx); err != nil {
		Log.Warnf("healthz: %v", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

// HandleSession 会话概要（不含宝藏位置）
// GET /admin/session     返回概要
// DELETE /admin/session  重置会话
func (a *Admin) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		sum, err := a.session.Summary(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorReply{game.MessageOf(err)})
			return
		}
		writeJSON(w, http.StatusOK, sum)
	case http.MethodDelete:
		if err := a.session.Reset(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorReply{game.MessageOf(err)})
			return
		}
		Log.Infof("session reset via admin from %s", r.RemoteAddr)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
