package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wileybooking.im.client/internal/proto"
)

// WebSocketDialer WebSocket 拨号器
type WebSocketDialer struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Dial 建立 WebSocket 连接
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	c, resp, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return &wsConn{conn: c}, nil
}

// wsConn WebSocket 连接
// 帧编码与流式传输保持一致：每条二进制消息承载一帧
type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadFrame() (uint16, []byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, nil, err
		}
		if msgType != websocket.BinaryMessage {
			// 忽略文本/控制消息
			continue
		}
		return proto.DecodeFrame(data)
	}
}

func (c *wsConn) WriteFrame(eventType uint16, body []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.BinaryMessage, proto.EncodeFrame(eventType, body))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		// 尽力发送关闭帧后再关底层连接
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
