package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"treasurehunt/events"
	"treasurehunt/game"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// stateSource 推送所需的只读视图
type stateSource interface {
	StateFor(ctx context.Context, p game.PlayerID) (game.View, error)
}

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws     *websocket.Conn
	player game.PlayerID
	send   chan []byte
	once   sync.Once
}

func newClientConn(ws *websocket.Conn, player game.PlayerID) *ClientConn {
	return &ClientConn{
		ws:     ws,
		player: player,
		send:   make(chan []byte, 16),
	}
}

// enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 客户端太慢；下一次事件会带来完整状态
	}
}

// close 关闭发送队列，写协程随之退出
func (c *ClientConn) close() {
	c.once.Do(func() { close(c.send) })
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只读控制帧；客户端不通过 WS 发指令，动作仍走游戏端口
func (c *ClientConn) readPump(h *Hub) {
	defer h.remove(c)
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub 订阅会话事件，并向每个 WS 客户端推送它自己的玩家视角
type Hub struct {
	src     stateSource
	mu      sync.Mutex
	clients map[*ClientConn]struct{}
	events  chan events.Event
}

// NewHub 事件缓冲满时丢弃旧通知
func NewHub(src stateSource) *Hub {
	return &Hub{
		src:     src,
		clients: make(map[*ClientConn]struct{}),
		events:  make(chan events.Event, 64),
	}
}

// Publish 实现 events.Publisher；不阻塞会话
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	select {
	case h.events <- e:
	default:
	}
	return nil
}

// Run 事件循环，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case e := <-h.events:
			h.broadcast(ctx, e)
		}
	}
}

// Clients 当前订阅数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ctx context.Context, e events.Event) {
	h.mu.Lock()
	targets := make([]*ClientConn, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	// 每个玩家只算一次视图
	cache := make(map[game.PlayerID][]byte, 2)
	for _, c := range targets {
		msg, ok := cache[c.player]
		if !ok {
			var err error
			if msg, err = h.snapshot(ctx, c.player, e.Type); err != nil {
				Log.Errorf("ws snapshot for %s: %v", c.player, err)
				return
			}
			cache[c.player] = msg
		}
		h.mu.Lock()
		if _, live := h.clients[c]; live {
			c.enqueue(msg)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) snapshot(ctx context.Context, p game.PlayerID, cause events.Type) ([]byte, error) {
	view, err := h.src.StateFor(ctx, p)
	if err != nil {
		return nil, err
	}
	payload := struct {
		Type  string      `json:"type"`
		Cause events.Type `json:"cause,omitempty"`
		State game.View   `json:"state"`
	}{Type: "state", Cause: cause, State: view}
	return json.Marshal(payload)
}

func (h *Hub) add(c *ClientConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *ClientConn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 与游戏端口的 CORS 策略一致：允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入：/ws?player_id=A
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	player := game.PlayerID(r.URL.Query().Get("player_id"))
	if !player.Valid() {
		http.Error(w, game.ErrUnknownPlayer.Message, http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("ws upgrade error: %v", err)
		return
	}

	c := newClientConn(ws, player)
	// 先推一次当前状态，之后随事件更新
	if msg, err := h.snapshot(r.Context(), player, ""); err == nil {
		c.enqueue(msg)
	}
	h.add(c)
	Log.Infof("ws subscriber %s joined from %s", player, r.RemoteAddr)

	go c.writePump()
	go c.readPump(h)
}
