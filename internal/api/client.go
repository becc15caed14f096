package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wileybooking.im.client/internal/credential"
	"wileybooking.im.client/internal/errs"
	"wileybooking.im.client/internal/model"
)

// Client Wiley Booking REST 接口客户端
// 所有请求携带 Bearer 凭证；任何接口返回 401 都会触发注入的
// onUnauthorized 回调（清凭证、跳登录），与过期检测走同一条失败路径
type Client struct {
	baseURL        string
	store          *credential.Store
	httpClient     *http.Client
	onUnauthorized func()
	logger         *slog.Logger
}

// New 创建 REST 客户端
func New(baseURL string, store *credential.Store, timeout time.Duration, onUnauthorized func(), logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		store:          store,
		httpClient:     &http.Client{Timeout: timeout},
		onUnauthorized: onUnauthorized,
		logger:         logger,
	}
}

// unreadCountResponse 未读数接口响应
type unreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}

// UnreadCount 拉取未读消息总数
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadCountResponse
	if err := c.get(ctx, "/api/v1/messages/unread-count", &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// Conversations 拉取会话列表
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var resp []model.Conversation
	if err := c.get(ctx, "/api/v1/conversations", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ConversationMessages 拉取某会话的消息历史
func (c *Client) ConversationMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var resp []model.Message
	path := fmt.Sprintf("/api/v1/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Profile 拉取当前用户资料
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var resp model.User
	if err := c.get(ctx, "/api/v1/users/profile", &resp); err != nil {
		return model.User{}, err
	}
	return resp, nil
}

// get 执行一次带凭证的 GET 请求
func (c *Client) get(ctx context.Context, path string, out any) error {
	token, err := c.store.Load()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("API request unauthorized", "path", path)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return errs.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return errs.ErrBadResponse.Wrap(fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.ErrBadResponse.Wrap(err)
	}
	return nil
}
