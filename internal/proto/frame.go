package proto

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize 帧头长度：4 字节 body 长度 + 2 字节事件类型
	HeaderSize = 6

	// MaxFrameSize 单帧 body 上限，超过视为协议错误
	MaxFrameSize = 1 << 20
)

var ErrFrameTooLarge = errors.New("frame body too large")

// EncodeFrame 编码一帧：帧头 + body
func EncodeFrame(eventType uint16, body []byte) []byte {
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	binary.BigEndian.PutUint16(frame[4:6], eventType)
	copy(frame[HeaderSize:], body)
	return frame
}

// DecodeFrame 解码一段完整的帧数据（用于自带消息边界的传输，如 WebSocket）
func DecodeFrame(data []byte) (uint16, []byte, error) {
	if len(data) < HeaderSize {
		return 0, nil, io.ErrUnexpectedEOF
	}
	length := binary.BigEndian.Uint32(data[:4])
	eventType := binary.BigEndian.Uint16(data[4:6])
	if length > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}
	if len(data) < HeaderSize+int(length) {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return eventType, data[HeaderSize : HeaderSize+int(length)], nil
}

// ReadFrame 从字节流读取一帧（用于流式传输，如 WebTransport 双向流）
func ReadFrame(r io.Reader) (uint16, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	length := binary.BigEndian.Uint32(header[:4])
	eventType := binary.BigEndian.Uint16(header[4:6])
	if length > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	return eventType, body, nil
}
