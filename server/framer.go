package server

import (
	"bytes"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

var headerDelim = []byte("\r\n\r\n")

// 分帧错误
var (
	ErrBadContentLength = errors.New("invalid Content-Length")
	ErrRequestTooLarge  = errors.New("request exceeds size limit")
	errIdleTimeout      = errors.New("idle timeout")
	errClosedEarly      = errors.New("connection closed before request completed")
)

type frameState int

const (
	awaitingHeaders frameState = iota
	awaitingBody
	frameComplete
)

// Framer 增量拼装一个 HTTP 请求：
// AwaitingHeaders → AwaitingBody(remaining) → Complete。
// 已扫描过的字节不会重复查找分隔符。
type Framer struct {
	buf       []byte
	state     frameState
	scanned   int // 已确认不含分隔符起点的前缀长度
	headerEnd int // 分隔符之后的偏移
	bodyLen   int // -1 表示没有 Content-Length
	remaining int
	maxBytes  int
}

// NewFramer maxBytes<=0 表示不限制请求大小
func NewFramer(maxBytes int) *Framer {
	return &Framer{bodyLen: -1, maxBytes: maxBytes}
}

// Feed 追加一段数据，返回请求是否已完整
func (f *Framer) Feed(chunk []byte) (bool, error) {
	if f.state == frameComplete {
		return true, nil
	}
	f.buf = append(f.buf, chunk...)
	if f.maxBytes > 0 && len(f.buf) > f.maxBytes && f.state == awaitingHeaders {
		return false, ErrRequestTooLarge
	}

	switch f.state {
	case awaitingHeaders:
		start := f.scanned - (len(headerDelim) - 1)
		if start < 0 {
			start = 0
		}
		i := bytes.Index(f.buf[start:], headerDelim)
		if i < 0 {
			f.scanned = len(f.buf)
			return false, nil
		}
		f.headerEnd = start + i + len(headerDelim)
		n, ok, err := contentLength(f.buf[:start+i])
		if err != nil {
			return false, err
		}
		if !ok {
			f.state = frameComplete
			return true, nil
		}
		if f.maxBytes > 0 && f.headerEnd+n > f.maxBytes {
			return false, ErrRequestTooLarge
		}
		f.bodyLen = n
		f.remaining = n - (len(f.buf) - f.headerEnd)
		f.state = awaitingBody
	case awaitingBody:
		f.remaining -= len(chunk)
	}

	if f.remaining <= 0 {
		f.state = frameComplete
		return true, nil
	}
	return false, nil
}

// Done 请求是否完整
func (f *Framer) Done() bool { return f.state == frameComplete }

// Remaining 还差多少字节 body
func (f *Framer) Remaining() int {
	if f.state != awaitingBody {
		return 0
	}
	return f.remaining
}

// Head 请求行与头部（不含空行）
func (f *Framer) Head() string {
	if f.state != frameComplete {
		return ""
	}
	return string(f.buf[:f.headerEnd-len(headerDelim)])
}

// Body 按 Content-Length 截取的 body；无 Content-Length 时为分隔符后的全部数据
func (f *Framer) Body() []byte {
	if f.state != frameComplete {
		return nil
	}
	body := f.buf[f.headerEnd:]
	if f.bodyLen >= 0 && len(body) > f.bodyLen {
		body = body[:f.bodyLen]
	}
	return body
}

// contentLength 在头部中查找 Content-Length（大小写不敏感）
func contentLength(head []byte) (int, bool, error) {
	lines := strings.Split(string(head), "\r\n")
	for _, line := range lines[1:] {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, false, ErrBadContentLength
		}
		return n, true, nil
	}
	return 0, false, nil
}

// ReadRequest 从连接读取一个完整请求；每次读都有独立的空闲超时
func ReadRequest(conn net.Conn, f *Framer, idle time.Duration, chunkSize int) error {
	chunk := make([]byte, chunkSize)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return err
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			done, ferr := f.Feed(chunk[:n])
			if ferr != nil {
				return ferr
			}
			if done {
				return nil
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return errIdleTimeout
			}
			return errClosedEarly
		}
	}
}
