package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

func splitResponse(t *testing.T, raw []byte) (string, []string, string) {
	t.Helper()
	head, body, found := strings.Cut(string(raw), "\r\n\r\n")
	require.True(t, found, "missing header terminator")
	lines := strings.Split(head, "\r\n")
	return lines[0], lines[1:], body
}

func TestBuildResponseJSON(t *testing.T) {
	raw := BuildResponse(fixedNow, 200, "", map[string]string{"player_id": "A"})
	status, headers, body := splitResponse(t, raw)

	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, []string{
		"Date: Tue, 05 Mar 2024 14:07:09 GMT",
		"Server: GameServer/1.0",
		"Content-Length: 17",
		"Content-Type: application/json",
		"Access-Control-Allow-Origin: *",
		"Access-Control-Allow-Methods: GET, POST, OPTIONS",
		"Access-Control-Allow-Headers: Content-Type",
	}, headers)
	assert.JSONEq(t, `{"player_id":"A"}`, body)
}

func TestBuildResponseContentLengthCountsBytes(t *testing.T) {
	raw := BuildResponse(fixedNow, 200, "", "héllo")
	_, headers, body := splitResponse(t, raw)
	assert.Contains(t, headers, "Content-Length: 6")
	assert.Equal(t, "héllo", body)
}

func TestBuildResponseRawBodies(t *testing.T) {
	cases := []struct {
		name string
		body any
		want string
	}{
		{"nil", nil, ""},
		{"bytes", []byte(`{"a":1}`), `{"a":1}`},
		{"string", "plain", "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, body := splitResponse(t, BuildResponse(fixedNow, 200, "", tc.body))
			assert.Equal(t, tc.want, body)
		})
	}
}

func TestBuildResponseSuppliedContentType(t *testing.T) {
	raw := BuildResponse(fixedNow, 200, "", "ok", Header{"content-type", "text/plain"})
	_, headers, _ := splitResponse(t, raw)
	assert.Contains(t, headers, "content-type: text/plain")
	assert.NotContains(t, headers, "Content-Type: application/json")
}

func TestBuildResponseStatusLines(t *testing.T) {
	cases := []struct {
		status int
		reason string
		want   string
	}{
		{204, "", "HTTP/1.1 204 No Content"},
		{400, "", "HTTP/1.1 400 Bad Request"},
		{404, "", "HTTP/1.1 404 Not Found"},
		{413, "", "HTTP/1.1 413 Request Entity Too Large"},
		{503, "", "HTTP/1.1 503 Service Unavailable"},
		{200, "Fine", "HTTP/1.1 200 Fine"},
	}
	for _, tc := range cases {
		status, _, _ := splitResponse(t, BuildResponse(fixedNow, tc.status, tc.reason, nil))
		assert.Equal(t, tc.want, status)
	}
}

func TestBuildResponseEncodeFailure(t *testing.T) {
	raw := BuildResponse(fixedNow, 200, "", map[string]any{"bad": make(chan int)})
	status, _, body := splitResponse(t, raw)
	assert.Equal(t, "HTTP/1.1 500 Internal Server Error", status)
	assert.JSONEq(t, `{"error":"internal error"}`, body)
}

func TestResponseBytesIncludesExtraHeaders(t *testing.T) {
	resp := Response{Status: 204, Headers: []Header{{"Allow", "OPTIONS, GET, POST"}}}
	status, headers, body := splitResponse(t, resp.Bytes(fixedNow))
	assert.Equal(t, "HTTP/1.1 204 No Content", status)
	assert.Equal(t, "Allow: OPTIONS, GET, POST", headers[3])
	assert.Contains(t, headers, "Content-Length: 0")
	assert.Empty(t, body)
}
