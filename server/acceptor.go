package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrServerClosed Shutdown 之后 Serve 返回
var ErrServerClosed = errors.New("server closed")

// Server 游戏端口：每个 TCP 连接一个 goroutine，一问一答后关闭
type Server struct {
	cfg     ServerConfig
	router  *Router
	metrics *Metrics

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	ln      net.Listener
	conns   map[string]net.Conn // 活跃连接登记
	closing bool
	wg      sync.WaitGroup
}

// NewServer 组装 Framer → Router → Session → Builder 流水线
func NewServer(cfg ServerConfig, router *Router, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = &Metrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		router:  router,
		metrics: metrics,
		baseCtx: ctx,
		cancel:  cancel,
		conns:   make(map[string]net.Conn),
	}
}

// Metrics 指标
func (s *Server) Metrics() *Metrics { return s.metrics }

// ListenAndServe 监听 cfg.Addr 并阻塞处理连接
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve 在给定 listener 上接受连接，直到 Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	Log.Infof("game server listening on %s", ln.Addr())
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// 临时错误退避重试
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else if backoff < time.Second {
					backoff *= 2
				}
				Log.Warnf("accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		id := uuid.NewString()
		if !s.track(id, conn) {
			_ = conn.Close()
			return ErrServerClosed
		}
		s.metrics.IncAccepted()
		Log.Debugf("new connection %s from %s; active clients: %s", id, conn.RemoteAddr(), strings.Join(s.ActiveClients(), ", "))
		go s.handleConn(id, conn)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// track 登记连接；关闭中不再接收
func (s *Server) track(id string, conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[id] = conn
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	s.wg.Done()
}

// ActiveClients 活跃连接的远端地址（排序后）
func (s *Server) ActiveClients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.RemoteAddr().String())
	}
	sort.Strings(out)
	return out
}

// handleConn 一个连接的完整生命周期：读请求 → 路由 → 写响应 → 关闭
func (s *Server) handleConn(id string, conn net.Conn) {
	defer s.untrack(id)
	defer conn.Close()
	s.metrics.IncActive()
	defer s.metrics.DecActive()

	remote := conn.RemoteAddr()
	f := NewFramer(s.cfg.MaxRequestBytes)
	err := ReadRequest(conn, f, s.cfg.IdleTimeout, s.cfg.ReadChunk)
	start := time.Now()

	var (
		req  Request
		resp Response
	)
	switch {
	case err == nil:
		req, resp = s.router.Serve(s.baseCtx, f.Head(), f.Body())
	case errors.Is(err, errIdleTimeout):
		// 超时直接断开，不写响应，由客户端重新轮询
		s.metrics.IncIdleTimeout()
		Log.Warnf("connection %s from %s timed out", id, remote)
		return
	case errors.Is(err, ErrBadContentLength):
		s.metrics.IncFramingError()
		Log.Errorf("connection %s from %s: %v", id, remote, err)
		resp = jsonResponse(http.StatusBadRequest, errorReply{"Malformed request"})
	case errors.Is(err, ErrRequestTooLarge):
		s.metrics.IncFramingError()
		Log.Errorf("connection %s from %s: %v", id, remote, err)
		resp = jsonResponse(http.StatusRequestEntityTooLarge, errorReply{"Request too large"})
	default:
		s.metrics.IncClosedEarly()
		Log.Debugf("connection %s from %s closed: %v", id, remote, err)
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.IdleTimeout))
	if _, werr := conn.Write(resp.Bytes(time.Now())); werr != nil {
		Log.Errorf("connection %s from %s: write response: %v", id, remote, werr)
		return
	}
	elapsed := time.Since(start)
	s.metrics.ObserveRequest(resp.Status, elapsed.Nanoseconds())
	Log.Infof("%s %s %s -> %d (%s)", remote, req.Method, req.Target, resp.Status, elapsed)
}

// Shutdown 停止接收新连接并等待在途请求；ctx 到期后强制关闭剩余连接
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}
