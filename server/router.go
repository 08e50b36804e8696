package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"treasurehunt/game"
)

const statePrefix = "/state?player_id="

// GameSession 路由所需的会话契约
type GameSession interface {
	Join(ctx context.Context) (game.PlayerID, error)
	PlaceTreasure(ctx context.Context, p game.PlayerID, y, x int) error
	PerformAction(ctx context.Context, p game.PlayerID, t game.ActionType, y, x int) (game.ActionResult, error)
	StateFor(ctx context.Context, p game.PlayerID) (game.View, error)
	Reset(ctx context.Context) error
}

// Request 解析后的请求
type Request struct {
	Method string
	Target string
	Body   []byte
}

var errMalformed = errors.New("malformed request line")

// ParseRequest 解析请求行；方法统一转为大写
func ParseRequest(head string, body []byte) (Request, error) {
	line, _, _ := strings.Cut(head, "\r\n")
	parts := strings.Split(line, " ")
	if len(parts) < 2 {
		return Request{}, errMalformed
	}
	method := strings.ToUpper(strings.TrimSpace(parts[0]))
	target := strings.TrimSpace(parts[1])
	if method == "" || target == "" {
		return Request{}, errMalformed
	}
	return Request{Method: method, Target: target, Body: body}, nil
}

// Router 按方法与路径分发到会话操作
type Router struct {
	session   GameSession
	opTimeout time.Duration
}

// NewRouter opTimeout<=0 表示不额外限时
func NewRouter(session GameSession, opTimeout time.Duration) *Router {
	return &Router{session: session, opTimeout: opTimeout}
}

// Serve 处理一个完整请求；解析失败时返回的 Request 为空
func (rt *Router) Serve(ctx context.Context, head string, body []byte) (Request, Response) {
	req, err := ParseRequest(head, body)
	if err != nil {
		return req, jsonResponse(http.StatusBadRequest, errorReply{"Malformed request"})
	}
	if rt.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.opTimeout)
		defer cancel()
	}
	return req, rt.Handle(ctx, req)
}

// Handle 分发已解析的请求
func (rt *Router) Handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case http.MethodOptions:
		// CORS 预检，与路径无关
		resp := Response{Status: http.StatusNoContent}
		resp.Headers = append(resp.Headers, Header{"Allow", "OPTIONS, GET, POST"})
		return resp
	case http.MethodGet:
		return rt.get(ctx, req.Target)
	case http.MethodPost:
		return rt.post(ctx, req.Target, req.Body)
	}
	return jsonResponse(http.StatusBadRequest, errorReply{"Unsupported method"})
}

func (rt *Router) get(ctx context.Context, target string) Response {
	if !strings.HasPrefix(target, statePrefix) {
		return notFound(http.MethodGet, target)
	}
	id := target[strings.LastIndex(target, "=")+1:]
	view, err := rt.session.StateFor(ctx, game.PlayerID(id))
	if err != nil {
		return errorResponse(err)
	}
	return jsonResponse(http.StatusOK, view)
}

func (rt *Router) post(ctx context.Context, target string, body []byte) Response {
	switch target {
	case "/join", "/place", "/action", "/reset":
	default:
		return notFound(http.MethodPost, target)
	}

	var p requestPayload
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			return jsonResponse(http.StatusBadRequest, errorReply{"Invalid JSON body"})
		}
	}

	if target == "/join" {
		id, err := rt.session.Join(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, joinReply{PlayerID: id})
	}

	if p.PlayerID == "" {
		return jsonResponse(http.StatusBadRequest, errorReply{"player_id dibutuhkan"})
	}
	player := game.PlayerID(p.PlayerID)

	switch target {
	case "/place":
		y, x, ok := p.coords()
		if !ok {
			return jsonResponse(http.StatusBadRequest, errorReply{"Koordinat tidak valid"})
		}
		if err := rt.session.PlaceTreasure(ctx, player, y, x); err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, successReply{Success: true})

	case "/action":
		y, x, ok := p.coords()
		if p.Type == "" || !ok {
			return jsonResponse(http.StatusBadRequest, errorReply{"Payload aksi tidak lengkap"})
		}
		t, ok := game.ParseActionType(p.Type)
		if !ok {
			return jsonResponse(http.StatusBadRequest, actionReply{Message: game.ErrUnknownAction.Message})
		}
		res, err := rt.session.PerformAction(ctx, player, t, y, x)
		if err != nil {
			if game.IsUnavailable(err) {
				return errorResponse(err)
			}
			return jsonResponse(http.StatusBadRequest, actionReply{Message: game.MessageOf(err)})
		}
		reply := actionReply{Success: true}
		if res.Type == game.ActionDig {
			reply.Result = string(game.MarkMiss)
			if res.Hit {
				reply.Result = string(game.MarkHit)
			}
		}
		return jsonResponse(http.StatusOK, reply)
	}

	// /reset
	if err := rt.session.Reset(ctx); err != nil {
		return errorResponse(err)
	}
	return jsonResponse(http.StatusOK, messageReply{"Game state has been reset."})
}

func notFound(method, target string) Response {
	return jsonResponse(http.StatusNotFound, errorReply{fmt.Sprintf("Endpoint %s %s tidak ditemukan", method, target)})
}

// errorResponse 会话错误到状态码的映射
func errorResponse(err error) Response {
	switch game.KindOf(err) {
	case game.KindCapacity:
		return jsonResponse(http.StatusForbidden, errorReply{game.MessageOf(err)})
	case game.KindUnavailable:
		return jsonResponse(http.StatusServiceUnavailable, errorReply{game.MessageOf(err)})
	}
	return jsonResponse(http.StatusBadRequest, errorReply{game.MessageOf(err)})
}
