package transport

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"

	"wileybooking.im.client/internal/proto"
)

// WebTransportDialer WebTransport 拨号器
// 会话建立后打开一条双向流，帧在流上以长度前缀编码传输
type WebTransportDialer struct {
	URL             string
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
	// InsecureSkipVerify 仅用于本地自签名证书的开发环境
	InsecureSkipVerify bool
}

// Dial 建立 WebTransport 会话并打开双向流
func (d *WebTransportDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := webtransport.Dialer{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: d.InsecureSkipVerify,
		},
		QUICConfig: &quic.Config{
			MaxIdleTimeout:  d.MaxIdleTimeout,
			KeepAlivePeriod: d.KeepAlivePeriod,
			EnableDatagrams: true, // WebTransport 需要启用数据报支持
		},
	}

	_, session, err := dialer.Dial(ctx, d.URL, nil)
	if err != nil {
		return nil, err
	}

	stream, err := session.OpenStreamSync(ctx)
	if err != nil {
		session.CloseWithError(0, "failed to open stream")
		return nil, err
	}

	return &wtConn{session: session, stream: stream}, nil
}

// wtConn WebTransport 连接
type wtConn struct {
	session   *webtransport.Session
	stream    webtransport.Stream
	closeOnce sync.Once
}

func (c *wtConn) ReadFrame() (uint16, []byte, error) {
	return proto.ReadFrame(c.stream)
}

func (c *wtConn) WriteFrame(eventType uint16, body []byte) error {
	_, err := c.stream.Write(proto.EncodeFrame(eventType, body))
	return err
}

func (c *wtConn) Close() error {
	c.closeOnce.Do(func() {
		c.stream.Close()
		c.session.CloseWithError(0, "connection closed")
	})
	return nil
}
