package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wileybooking.im.client/internal/credential"
	"wileybooking.im.client/internal/errs"
	"wileybooking.im.client/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T, token string) *credential.Store {
	t.Helper()
	store := credential.NewStore(filepath.Join(t.TempDir(), "credential.json"))
	if token != "" {
		require.NoError(t, store.Save(token))
	}
	return store
}

func newTestServer(t *testing.T, register func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_UnreadCount(t *testing.T) {
	var gotAuth string
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/messages/unread-count", func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			c.JSON(http.StatusOK, gin.H{"unreadCount": 7})
		})
	})

	client := New(srv.URL, testStore(t, "tok-123"), time.Second, nil, testLogger())

	count, err := client.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClient_Conversations(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/conversations", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{
				{
					"_id": "conv-1",
					"participants": []gin.H{
						{"_id": "u1", "username": "alice"},
						{"_id": "u2", "username": "bob"},
					},
					"unreadCount": 2,
				},
			})
		})
	})

	client := New(srv.URL, testStore(t, "tok-123"), time.Second, nil, testLogger())

	convs, err := client.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "conv-1", convs[0].ID)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Len(t, convs[0].Participants, 2)
}

func TestClient_ConversationMessages(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/conversations/:id/messages", func(c *gin.Context) {
			assert.Equal(t, "conv-9", c.Param("id"))
			c.JSON(http.StatusOK, []gin.H{
				{"_id": "m1", "content": "hello", "senderUsername": "bob"},
			})
		})
	})

	client := New(srv.URL, testStore(t, "tok-123"), time.Second, nil, testLogger())

	msgs, err := client.ConversationMessages(context.Background(), "conv-9")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "bob", msgs[0].Sender.Username)
}

func TestClient_UnauthorizedTriggersCallback(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/messages/unread-count", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
		})
	})

	var fired int
	client := New(srv.URL, testStore(t, "tok-123"), time.Second, func() { fired++ }, testLogger())

	_, err := client.UnreadCount(context.Background())
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
	assert.Equal(t, 1, fired)
}

func TestClient_MissingCredential(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {})

	client := New(srv.URL, testStore(t, ""), time.Second, nil, testLogger())

	_, err := client.UnreadCount(context.Background())
	assert.True(t, errors.Is(err, errs.ErrCredentialMissing))
}

func TestClient_BadStatus(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/conversations", func(c *gin.Context) {
			c.String(http.StatusInternalServerError, "boom")
		})
	})

	client := New(srv.URL, testStore(t, "tok-123"), time.Second, nil, testLogger())

	_, err := client.Conversations(context.Background())
	assert.True(t, errors.Is(err, errs.ErrBadResponse))
}

func TestClient_UnauthorizedClearsCredential(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/messages/unread-count", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
		})
	})

	store := testStore(t, "tok-123")
	monitor := session.NewMonitor(store, time.Hour, nil, nil, testLogger())
	client := New(srv.URL, store, time.Second, monitor.Invalidate, testLogger())

	_, err := client.UnreadCount(context.Background())
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	// 被服务端拒绝的凭证必须立刻清除，下次启动不得复用
	_, err = store.Load()
	assert.True(t, errors.Is(err, errs.ErrCredentialMissing))
	assert.False(t, monitor.Check())
}
