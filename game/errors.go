package game

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别，传输层据此映射状态码
type ErrorKind string

const (
	KindInvalid     ErrorKind = "INVALID"     // 规则不允许，状态未改变
	KindCapacity    ErrorKind = "CAPACITY"    // 两个槽位已满
	KindUnavailable ErrorKind = "UNAVAILABLE" // 存储不可用
)

// Error 会话错误；Message 直接返回给客户端
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Unavailable 包装存储层错误
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "Session store unavailable", Err: err}
}

// 预定义的规则错误
var (
	ErrUnknownPlayer     = newError(KindInvalid, "Player ID tidak valid")
	ErrGameFull          = newError(KindCapacity, "Game sudah penuh")
	ErrNotPlacementPhase = newError(KindInvalid, "Bukan tahap penempatan")
	ErrAlreadyPlaced     = newError(KindInvalid, "Harta sudah ditempatkan")
	ErrInvalidPlacement  = newError(KindInvalid, "Penempatan tidak valid")
	ErrNotYourTurn       = newError(KindInvalid, "Bukan giliranmu atau game belum dimulai.")
	ErrInvalidMove       = newError(KindInvalid, "Lokasi pemindahan tidak valid.")
	ErrInvalidDig        = newError(KindInvalid, "Lokasi penggalian tidak valid.")
	ErrUnknownAction     = newError(KindInvalid, "Aksi tidak dikenal.")
)

// KindOf 取出错误类别；非 *Error 视为 KindUnavailable
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// MessageOf 取出面向客户端的消息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsCapacity 是否因满员被拒
func IsCapacity(err error) bool { return KindOf(err) == KindCapacity }

// IsUnavailable 是否为存储故障
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }
