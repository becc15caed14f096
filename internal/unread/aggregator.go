package unread

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"sync"
	"time"

	"wileybooking.im.client/internal/api"
	"wileybooking.im.client/internal/channel"
	"wileybooking.im.client/internal/proto"
	"wileybooking.im.client/internal/workerpool"
)

// refreshKey 未读刷新任务的合并键
const refreshKey = "unread-refresh"

// Options 聚合器配置
type Options struct {
	PollInterval time.Duration // 兜底轮询间隔，默认 30s
	FetchTimeout time.Duration // 单次拉取超时，默认 5s
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	return o
}

// Handlers 聚合器回调
type Handlers struct {
	OnUnread   func(count int)                            // 未读总数变化
	OnPresence func(userID, username string, online bool) // 用户上下线
}

// Aggregator 未读数与在线状态聚合器
// 未读总数永远来自服务端：收到新消息推送后重新拉取，
// 绝不在本地自增，推送丢失时靠轮询兜底
type Aggregator struct {
	ch       *channel.Channel
	client   *api.Client
	pool     *workerpool.Pool
	opts     Options
	handlers Handlers
	logger   *slog.Logger

	sub      *channel.Subscription
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	unread  int
	fetched bool
	online  map[string]bool
}

// New 创建聚合器
func New(ch *channel.Channel, client *api.Client, pool *workerpool.Pool, opts Options, handlers Handlers, logger *slog.Logger) *Aggregator {
	a := &Aggregator{
		ch:       ch,
		client:   client,
		pool:     pool,
		opts:     opts.withDefaults(),
		handlers: handlers,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		online:   make(map[string]bool),
	}
	return a
}

// Start 启动聚合器：立即拉取一次，之后推送触发 + 轮询兜底
func (a *Aggregator) Start(ctx context.Context) error {
	sub, err := a.ch.Subscribe()
	if err != nil {
		return err
	}
	a.sub = sub

	a.scheduleRefresh(ctx)

	go a.loop(ctx)
	return nil
}

// Stop 停止聚合器，可重复调用
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		if a.sub != nil {
			a.sub.Cancel()
		}
	})
	<-a.done
}

// Unread 当前未读总数
func (a *Aggregator) Unread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread
}

// Online 指定用户是否在线，key 为用户名（无用户名时为用户 ID）
func (a *Aggregator) Online(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online[key]
}

// OnlineUsers 当前在线用户快照
func (a *Aggregator) OnlineUsers() map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.online)
}

func (a *Aggregator) loop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.scheduleRefresh(ctx)
		case state, ok := <-a.sub.States():
			if !ok {
				return
			}
			// 重连成功后立即补拉，弥补断线期间丢失的推送
			if state == channel.StateReady {
				a.scheduleRefresh(ctx)
			}
		case ev, ok := <-a.sub.Events():
			if !ok {
				return
			}
			a.handle(ctx, ev)
		}
	}
}

func (a *Aggregator) handle(ctx context.Context, ev channel.Event) {
	switch ev.Type {
	case proto.EventNewMessage:
		// 未读数只信服务端，推送仅用来触发一次重新拉取
		a.scheduleRefresh(ctx)
	case proto.EventUserStatus:
		var status proto.UserStatusEvent
		if err := json.Unmarshal(ev.Body, &status); err != nil {
			a.logger.Warn("Malformed user status event", "error", err)
			return
		}
		a.updatePresence(status)
	}
}

func (a *Aggregator) updatePresence(status proto.UserStatusEvent) {
	key := status.Username
	if key == "" {
		key = status.UserID
	}
	if key == "" {
		return
	}

	a.mu.Lock()
	changed := a.online[key] != status.Online
	if status.Online {
		a.online[key] = true
	} else {
		delete(a.online, key)
	}
	a.mu.Unlock()

	if changed && a.handlers.OnPresence != nil {
		a.handlers.OnPresence(status.UserID, status.Username, status.Online)
	}
}

func (a *Aggregator) scheduleRefresh(ctx context.Context) {
	ok := a.pool.Submit(refreshKey, func() {
		a.refresh(ctx)
	})
	if !ok {
		a.logger.Warn("Unread refresh task dropped, queue full")
	}
}

// refresh 从服务端拉取未读总数，失败时保留上一次的值
func (a *Aggregator) refresh(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	count, err := a.client.UnreadCount(fetchCtx)
	if err != nil {
		a.logger.Warn("Unread count fetch failed", "error", err)
		return
	}

	a.mu.Lock()
	changed := !a.fetched || a.unread != count
	a.unread = count
	a.fetched = true
	a.mu.Unlock()

	if changed && a.handlers.OnUnread != nil {
		a.handlers.OnUnread(count)
	}
}
