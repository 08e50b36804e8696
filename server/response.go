package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const serverName = "GameServer/1.0"

// Header 保持写出顺序的响应头
type Header struct {
	Name  string
	Value string
}

// Response 待序列化的响应。Body 为 []byte/string 时原样写出，其他值编码为 JSON。
type Response struct {
	Status  int
	Reason  string // 为空时使用标准短语
	Headers []Header
	Body    any
}

func jsonResponse(status int, body any) Response {
	return Response{Status: status, Body: body}
}

// Bytes 序列化为完整的响应报文
func (r Response) Bytes(now time.Time) []byte {
	return BuildResponse(now, r.Status, r.Reason, r.Body, r.Headers...)
}

// corsHeaders 允许任意来源访问
var corsHeaders = []Header{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "Content-Type"},
}

// BuildResponse 状态行、Date、Server、Content-Length、附加头、CORS、空行、body
func BuildResponse(now time.Time, status int, reason string, body any, headers ...Header) []byte {
	if reason == "" {
		reason = http.StatusText(status)
	}

	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	case string:
		payload = []byte(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			Log.Errorf("encode response body: %v", err)
			status, reason = http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
			data = []byte(`{"error":"internal error"}`)
		}
		payload = data
	}

	var buf bytes.Buffer
	buf.WriteString("HTTP/1.1 " + strconv.Itoa(status) + " " + reason + "\r\n")
	writeHeader(&buf, "Date", now.UTC().Format(http.TimeFormat))
	writeHeader(&buf, "Server", serverName)
	writeHeader(&buf, "Content-Length", strconv.Itoa(len(payload)))

	hasType := false
	for _, h := range headers {
		if http.CanonicalHeaderKey(h.Name) == "Content-Type" {
			hasType = true
		}
		writeHeader(&buf, h.Name, h.Value)
	}
	if !hasType {
		writeHeader(&buf, "Content-Type", "application/json")
	}
	for _, h := range corsHeaders {
		writeHeader(&buf, h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(payload)
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}
