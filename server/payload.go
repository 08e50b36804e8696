package server

import (
	"encoding/json"

	"treasurehunt/game"
)

// requestPayload POST 请求体；空 body 视为 {}
// 示例：{"player_id":"A","type":"dig","coords":[5,5]}
type requestPayload struct {
	PlayerID     string          `json:"player_id"`
	SessionToken string          `json:"session_token,omitempty"` // 客户端重连时携带，服务端不校验
	Type         string          `json:"type"`
	Coords       json.RawMessage `json:"coords"`
}

// coords 必须是恰好两个整数 [y, x]
func (p requestPayload) coords() (y, x int, ok bool) {
	if len(p.Coords) == 0 {
		return 0, 0, false
	}
	var c []int
	if err := json.Unmarshal(p.Coords, &c); err != nil || len(c) != 2 {
		return 0, 0, false
	}
	return c[0], c[1], true
}

type errorReply struct {
	Error string `json:"error"`
}

type joinReply struct {
	PlayerID game.PlayerID `json:"player_id"`
}

type successReply struct {
	Success bool `json:"success"`
}

// actionReply 成功时带 dig 结果，失败时带原因
type actionReply struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

type messageReply struct {
	Message string `json:"message"`
}
