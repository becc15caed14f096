package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wileybooking.im.client/internal/channel"
	"wileybooking.im.client/internal/errs"
	"wileybooking.im.client/internal/model"
	"wileybooking.im.client/internal/proto"
)

// Options 同步客户端配置
type Options struct {
	TypingTTL     time.Duration // 打字状态自动过期时间
	SweepInterval time.Duration // 过期清理周期
	AckTimeout    time.Duration // 发送后等待确认/回显的超时
	History       []model.Message
}

// Handlers 事件回调，均可为 nil
// 回调在同步客户端的事件协程内按到达顺序调用
type Handlers struct {
	OnMessage    func(model.Message)       // 新消息已合并进本地列表
	OnTyping     func(users []string)      // 打字用户集合变化
	OnPresence   func(online bool)         // 对方在线状态变化
	OnConnected  func(connected bool)      // 通道连通性变化（重连横幅）
	OnAckTimeout func(clientMsgID string)  // 发送后未收到确认/回显
}

// Sync 单个活跃会话的同步客户端
// 持有一个通道订阅：启动时 join，停止或切换会话时 leave 并取消订阅。
// 本地消息列表的顺序由服务端断言——发送不做乐观插入，
// 自己的消息同样通过服务端回显进入列表
type Sync struct {
	ch       *channel.Channel
	convID   string
	self     model.Sender
	opts     Options
	handlers Handlers
	logger   *slog.Logger

	sub *channel.Subscription

	mu       sync.RWMutex
	messages []model.Message
	seen     map[string]struct{}
	pending  map[string]time.Time // clientMsgId -> 确认截止时刻
	joined   bool
	online   bool
	stopped  bool

	typing *TypingTracker

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New 创建会话同步客户端
func New(ch *channel.Channel, conversationID string, self model.Sender, opts Options, handlers Handlers, logger *slog.Logger) *Sync {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = 3 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 500 * time.Millisecond
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}

	s := &Sync{
		ch:       ch,
		convID:   conversationID,
		self:     self,
		opts:     opts,
		handlers: handlers,
		logger:   logger,
		seen:     make(map[string]struct{}),
		pending:  make(map[string]time.Time),
		typing:   NewTypingTracker(opts.TypingTTL),
		stopCh:   make(chan struct{}),
	}

	// REST 拉取的历史作为初始列表，推送在其上幂等合并
	for _, m := range opts.History {
		if m.ID == "" {
			continue
		}
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}

	return s
}

// Start 订阅通道并加入会话
func (s *Sync) Start(ctx context.Context) error {
	sub, err := s.ch.Subscribe()
	if err != nil {
		return err
	}
	s.sub = sub

	// 通道已就绪时立即 join，否则等状态通知
	if s.ch.State() == channel.StateReady {
		s.join()
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop 停止同步：发出 leave 信号并无条件关闭订阅
// 返回后不再处理任何事件，包括已在途的
func (s *Sync) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	joined := s.joined
	s.joined = false
	s.mu.Unlock()

	if joined {
		// 尽力而为；通道不可用时服务端靠连接断开自行清理
		if err := s.ch.Emit(proto.EventLeave, proto.LeaveRequest{ConversationID: s.convID}); err != nil {
			s.logger.Debug("Leave emit skipped", "conversation_id", s.convID, "error", err)
		}
	}

	close(s.stopCh)
	s.sub.Cancel()
	s.wg.Wait()
}

// Send 发送消息
// 通道未加入或内容为空时同步拒绝，不产生网络效果，调用方保留草稿
// 成功时返回 clientMsgId；消息本身只会经服务端回显进入本地列表
func (s *Sync) Send(content string, msgType model.MessageType, replyTo string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errs.ErrEmptyMessage
	}

	s.mu.Lock()
	if s.stopped || !s.joined {
		s.mu.Unlock()
		return "", errs.ErrNotJoined
	}
	s.mu.Unlock()

	if msgType == "" {
		msgType = model.MessageTypeText
	}

	clientMsgID := uuid.NewString()
	err := s.ch.Emit(proto.EventSend, proto.SendRequest{
		ClientMsgID:    clientMsgID,
		ConversationID: s.convID,
		Content:        content,
		Type:           msgType,
		ReplyTo:        replyTo,
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pending[clientMsgID] = time.Now().Add(s.opts.AckTimeout)
	s.mu.Unlock()

	return clientMsgID, nil
}

// Typing 上报自己的打字状态
func (s *Sync) Typing(isTyping bool) error {
	s.mu.RLock()
	joined := s.joined && !s.stopped
	s.mu.RUnlock()
	if !joined {
		return errs.ErrNotJoined
	}

	return s.ch.Emit(proto.EventTyping, proto.TypingEvent{
		ConversationID: s.convID,
		Sender:         s.self,
		IsTyping:       isTyping,
	})
}

// Messages 本地消息列表快照
func (s *Sync) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// TypingUsers 当前正在打字的用户
func (s *Sync) TypingUsers() []string {
	return s.typing.Active()
}

// Connected 通道是否连通且已加入会话（false 时应展示重连横幅并禁用发送）
func (s *Sync) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joined && !s.stopped
}

// Online 对方是否在线
func (s *Sync) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Own 判断消息是否为当前用户所发
func (s *Sync) Own(m model.Message) bool {
	return m.Sender.Same(s.self)
}

// ConversationID 绑定的会话
func (s *Sync) ConversationID() string {
	return s.convID
}

// loop 事件协程：状态通知、下行事件、过期清理
func (s *Sync) loop(ctx context.Context) {
	defer s.wg.Done()

	sweep := time.NewTicker(s.opts.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case st := <-s.sub.States():
			s.onState(st)
		case e := <-s.sub.Events():
			s.handle(e)
		case <-sweep.C:
			s.sweepExpired()
		}
	}
}

// onState 通道状态变化
// 每次重连就绪后重新 join；失去连接时置为未加入并亮起重连横幅
func (s *Sync) onState(st channel.State) {
	if st == channel.StateReady {
		s.join()
		return
	}

	s.mu.Lock()
	wasJoined := s.joined
	s.joined = false
	s.mu.Unlock()

	if wasJoined && s.handlers.OnConnected != nil {
		s.handlers.OnConnected(false)
	}
}

// join 加入会话广播组
func (s *Sync) join() {
	s.mu.Lock()
	if s.stopped || s.joined {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.ch.Emit(proto.EventJoin, proto.JoinRequest{ConversationID: s.convID})
	if err != nil {
		s.logger.Warn("Join emit failed", "conversation_id", s.convID, "error", err)
		return
	}

	s.mu.Lock()
	s.joined = true
	s.mu.Unlock()

	s.logger.Info("Joined conversation", "conversation_id", s.convID)
	if s.handlers.OnConnected != nil {
		s.handlers.OnConnected(true)
	}
}

// handle 处理一个下行事件
func (s *Sync) handle(e channel.Event) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	switch e.Type {
	case proto.EventNewMessage:
		s.handleNewMessage(e.Body)
	case proto.EventTyping:
		s.handleTyping(e.Body)
	case proto.EventSendAck:
		s.handleSendAck(e.Body)
	case proto.EventUserStatus:
		s.handleUserStatus(e.Body)
	case proto.EventError:
		var ev proto.ErrorEvent
		if err := json.Unmarshal(e.Body, &ev); err == nil {
			s.logger.Warn("Channel error event", "code", ev.Code, "message", ev.Message)
		}
	}
}

// handleNewMessage 幂等合并新消息
// 其他会话的事件直接忽略；重复投递不产生重复条目
func (s *Sync) handleNewMessage(body []byte) {
	var ev proto.NewMessageEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.logger.Error("Failed to decode new message event", "error", err)
		return
	}
	if ev.ConversationID != s.convID {
		return
	}

	m := ev.Message
	s.mu.Lock()
	if m.ID != "" {
		if _, dup := s.seen[m.ID]; dup {
			s.mu.Unlock()
			return
		}
		s.seen[m.ID] = struct{}{}
	}
	s.messages = append(s.messages, m)
	if ev.ClientMsgID != "" {
		delete(s.pending, ev.ClientMsgID)
	}
	s.mu.Unlock()

	// 发出消息意味着对方已停止打字
	if s.typing.Stop(m.Sender.Key()) && s.handlers.OnTyping != nil {
		s.handlers.OnTyping(s.typing.Active())
	}

	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(m)
	}
}

// handleTyping 打字状态事件
func (s *Sync) handleTyping(body []byte) {
	var ev proto.TypingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return
	}
	if ev.ConversationID != s.convID {
		return
	}
	// 自己的打字回显不进集合
	if ev.Sender.Same(s.self) {
		return
	}

	if ev.IsTyping {
		s.typing.Start(ev.Sender.Key())
	} else {
		s.typing.Stop(ev.Sender.Key())
	}
	if s.handlers.OnTyping != nil {
		s.handlers.OnTyping(s.typing.Active())
	}
}

// handleSendAck 发送确认
func (s *Sync) handleSendAck(body []byte) {
	var ack proto.SendAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return
	}

	s.mu.Lock()
	delete(s.pending, ack.ClientMsgID)
	s.mu.Unlock()
}

// handleUserStatus 对方在线状态
func (s *Sync) handleUserStatus(body []byte) {
	var ev proto.UserStatusEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return
	}
	if ev.UserID == s.self.ID {
		return
	}

	s.mu.Lock()
	changed := s.online != ev.Online
	s.online = ev.Online
	s.mu.Unlock()

	if changed && s.handlers.OnPresence != nil {
		s.handlers.OnPresence(ev.Online)
	}
}

// sweepExpired 清理过期的打字状态和超时未确认的发送
func (s *Sync) sweepExpired() {
	if expired := s.typing.Expire(); len(expired) > 0 && s.handlers.OnTyping != nil {
		s.handlers.OnTyping(s.typing.Active())
	}

	now := time.Now()
	var timedOut []string
	s.mu.Lock()
	for id, deadline := range s.pending {
		if deadline.Before(now) {
			delete(s.pending, id)
			timedOut = append(timedOut, id)
		}
	}
	s.mu.Unlock()

	for _, id := range timedOut {
		s.logger.Warn("Send not acknowledged in time", "client_msg_id", id)
		if s.handlers.OnAckTimeout != nil {
			s.handlers.OnAckTimeout(id)
		}
	}
}
