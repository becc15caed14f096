package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wileybooking.im.client/internal/proto"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer 回显收到的每一帧
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	dialer := &WebSocketDialer{URL: wsURL(srv), HandshakeTimeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := dialer.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	body := []byte(`{"conversationId":"c1"}`)
	if err := conn.WriteFrame(proto.EventJoin, body); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	eventType, got, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if eventType != proto.EventJoin {
		t.Errorf("Expected event type %d, got %d", proto.EventJoin, eventType)
	}
	if string(got) != string(body) {
		t.Errorf("Expected body %q, got %q", body, got)
	}
}

func TestWebSocketDialer_DialFailure(t *testing.T) {
	dialer := &WebSocketDialer{URL: "ws://127.0.0.1:1/realtime", HandshakeTimeout: 200 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := dialer.Dial(ctx); err == nil {
		t.Fatal("Expected dial to fail against closed port")
	}
}

func TestWSConn_ReadAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	dialer := &WebSocketDialer{URL: wsURL(srv), HandshakeTimeout: 2 * time.Second}
	conn, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	conn.Close()
	// 重复关闭应当安全
	conn.Close()

	if _, _, err := conn.ReadFrame(); err == nil {
		t.Error("Expected read error after close")
	}
}
