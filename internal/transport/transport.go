package transport

import (
	"context"
	"errors"
)

var ErrConnClosed = errors.New("transport connection closed")

// Conn 一条已建立的双向连接
// 实现负责帧的收发边界，重连策略由上层通道持有
type Conn interface {
	// ReadFrame 阻塞读取下一帧，连接断开时返回错误
	ReadFrame() (eventType uint16, body []byte, err error)
	// WriteFrame 写出一帧；非并发安全，由上层串行化
	WriteFrame(eventType uint16, body []byte) error
	// Close 关闭连接，可重复调用
	Close() error
}

// Dialer 连接拨号器
// 每次重连都会拨出一条全新的 Conn
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
