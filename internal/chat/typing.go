package chat

import (
	"sort"
	"sync"
	"time"
)

// TypingTracker 打字状态集合
// 按用户身份键控，允许多人同时打字；每个条目带独立截止时间，
// stop 事件立即移除，截止时间兜底对端掉线收不到 stop 的情况
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // key -> 过期时刻
}

// NewTypingTracker 创建打字状态跟踪器
func NewTypingTracker(ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &TypingTracker{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// Start 记录一次打字开始事件，刷新该用户的截止时间
func (t *TypingTracker) Start(key string) {
	if key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = time.Now().Add(t.ttl)
}

// Stop 立即移除该用户的打字状态，返回是否存在过
func (t *TypingTracker) Stop(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	return true
}

// Expire 移除所有已过期的条目并返回被移除的键
func (t *TypingTracker) Expire() []string {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for key, deadline := range t.entries {
		if deadline.Before(now) {
			delete(t.entries, key)
			expired = append(expired, key)
		}
	}
	return expired
}

// Active 当前仍在打字的用户（已排序，便于稳定展示）
func (t *TypingTracker) Active() []string {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.entries))
	for key, deadline := range t.entries {
		if !deadline.Before(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
