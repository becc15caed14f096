package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wileybooking.im.client/internal/credential"
)

// Monitor 会话存活监视器
// 保证任何界面都不会在凭证过期后继续可用：
// 定时检查兜底，输入活动触发同步检查补住两次 tick 之间的过期
type Monitor struct {
	store         *credential.Store
	checkInterval time.Duration
	onTeardown    func() // 跳转前清理内存中的敏感状态
	onRedirect    func() // 导航到登录入口
	logger        *slog.Logger

	expired atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor 创建会话监视器
// onTeardown 和 onRedirect 由拥有界面的一方注入，均可为 nil
func NewMonitor(store *credential.Store, checkInterval time.Duration, onTeardown, onRedirect func(), logger *slog.Logger) *Monitor {
	if checkInterval <= 0 {
		checkInterval = 2 * time.Second
	}

	return &Monitor{
		store:         store,
		checkInterval: checkInterval,
		onTeardown:    onTeardown,
		onRedirect:    onRedirect,
		logger:        logger,
	}
}

// Start 启动定时检查（随界面生命周期运行，Stop 或 ctx 取消时退出）
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run(ctx)
}

// Stop 停止监视器
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.Info("Session monitor started", "check_interval", m.checkInterval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session monitor stopped")
			return
		case <-ticker.C:
			if !m.Check() {
				return
			}
		}
	}
}

// Activity 输入活动触发的同步检查（点击、按键、滚动）
func (m *Monitor) Activity() bool {
	return m.Check()
}

// Invalidate 外部判定凭证已失效时强制走失败路径
// 典型来源：接口返回未授权，此时凭证可能尚未到期但已被服务端吊销
func (m *Monitor) Invalidate() {
	if m.expired.Load() {
		return
	}
	m.logger.Warn("Credential rejected by server, forcing logout")
	m.expire()
}

// Check 检查凭证有效性
// 缺失、无法解码、已过期三种情况走同一条失败路径：
// 清理回调 -> 清除凭证 -> 跳转，整条路径只执行一次
func (m *Monitor) Check() bool {
	if m.expired.Load() {
		return false
	}

	token, err := m.store.Load()
	if err != nil {
		m.logger.Warn("Credential missing, forcing logout", "error", err)
		m.expire()
		return false
	}

	expiresAt, err := credential.ParseExpireTime(token)
	if err != nil {
		m.logger.Warn("Credential undecodable, forcing logout", "error", err)
		m.expire()
		return false
	}

	if expiresAt.Before(time.Now()) {
		m.logger.Info("Credential expired, forcing logout", "expired_at", expiresAt)
		m.expire()
		return false
	}

	return true
}

// expire 执行一次性的失败路径
func (m *Monitor) expire() {
	if !m.expired.CompareAndSwap(false, true) {
		return
	}

	if m.onTeardown != nil {
		m.onTeardown()
	}
	if err := m.store.Clear(); err != nil {
		m.logger.Error("Failed to clear credential", "error", err)
	}
	if m.onRedirect != nil {
		m.onRedirect()
	}
}
