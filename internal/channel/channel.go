package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wileybooking.im.client/internal/credential"
	"wileybooking.im.client/internal/errs"
	"wileybooking.im.client/internal/proto"
	"wileybooking.im.client/internal/transport"
)

// State 通道状态
type State int32

const (
	StateDisconnected State = iota // 未连接
	StateConnecting                // 正在建立底层连接
	StateAuthenticating            // 已连接，等待认证结果
	StateReady                     // 已认证，可收发事件
	StateClosed                    // 已关闭，不再重连
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event 下行事件
type Event struct {
	Type uint16
	Body []byte
}

type frame struct {
	eventType uint16
	body      []byte
}

// Options 通道配置
type Options struct {
	DeviceID         string
	Platform         string
	DialTimeout      time.Duration
	RedialMinBackoff time.Duration
	RedialMaxBackoff time.Duration
}

// Channel 进程内共享的实时通道
// 所有消费者（会话同步、未读聚合）通过订阅共用一条连接，
// 引用计数归零时关闭连接，避免每个组件各自建连、各自握手。
// 断线后自动重连，每次重连都重新认证；订阅方通过状态通知自行重新 join。
type Channel struct {
	dialer transport.Dialer
	store  *credential.Store
	opts   Options
	logger *slog.Logger

	stateVal atomic.Int32

	mu        sync.Mutex
	subs      map[int64]*Subscription
	nextSubID int64
	closed    bool
	runCancel context.CancelFunc
	runDone   chan struct{}

	writeChan chan frame
}

// New 创建通道（不建连，首个订阅到来时启动）
func New(dialer transport.Dialer, store *credential.Store, opts Options, logger *slog.Logger) *Channel {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.RedialMinBackoff <= 0 {
		opts.RedialMinBackoff = 500 * time.Millisecond
	}
	if opts.RedialMaxBackoff <= 0 {
		opts.RedialMaxBackoff = 15 * time.Second
	}
	if opts.Platform == "" {
		opts.Platform = "desktop"
	}

	return &Channel{
		dialer:    dialer,
		store:     store,
		opts:      opts,
		logger:    logger,
		subs:      make(map[int64]*Subscription),
		writeChan: make(chan frame, 256),
	}
}

// State 当前通道状态
func (c *Channel) State() State {
	return State(c.stateVal.Load())
}

// Subscribe 订阅通道事件与状态变化
// 首个订阅启动连接循环，之后的订阅复用同一条连接
func (c *Channel) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errs.ErrChannelClosed
	}

	c.nextSubID++
	sub := &Subscription{
		id:     c.nextSubID,
		ch:     c,
		events: make(chan Event, 64),
		states: make(chan State, 8),
		done:   make(chan struct{}),
	}
	c.subs[sub.id] = sub

	if len(c.subs) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		c.runCancel = cancel
		c.runDone = make(chan struct{})
		go c.run(ctx, c.runDone)
	}

	return sub, nil
}

// Emit 发送一个上行事件
// 通道未就绪时同步拒绝，不产生任何网络效果，调用方保留草稿自行重试
func (c *Channel) Emit(eventType uint16, payload any) error {
	if c.State() != StateReady {
		return errs.ErrChannelNotReady
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	select {
	case c.writeChan <- frame{eventType: eventType, body: body}:
		return nil
	default:
		return errs.ErrChannelBusy
	}
}

// Close 永久关闭通道
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.runCancel
	done := c.runDone
	c.runCancel = nil
	c.runDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.setState(StateClosed)
}

// run 连接循环：拨号 -> 认证 -> 服务，断开后退避重连
func (c *Channel) run(ctx context.Context, done chan struct{}) {
	// 收尾的状态复位由停止方（unsubscribe/Close）在确认没有新连接循环
	// 接管后执行，本协程退出时不能直接写状态：最后一个订阅取消与新订阅
	// 并发时，新循环可能已经启动，这里写入会覆盖它的状态
	defer close(done)

	backoff := c.opts.RedialMinBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, err := c.dialer.Dial(dialCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Channel dial failed", "error", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = minDuration(backoff*2, c.opts.RedialMaxBackoff)
			continue
		}

		if err := c.authenticate(conn); err != nil {
			conn.Close()
			c.setState(StateDisconnected)
			c.logger.Warn("Channel authentication failed", "error", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = minDuration(backoff*2, c.opts.RedialMaxBackoff)
			continue
		}

		backoff = c.opts.RedialMinBackoff
		c.drainStale()
		c.setState(StateReady)
		c.logger.Info("Channel ready")

		c.serve(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.logger.Info("Channel disconnected, reconnecting")
	}
}

// authenticate 在新连接上完成通道级认证握手
func (c *Channel) authenticate(conn transport.Conn) error {
	token, err := c.store.Load()
	if err != nil {
		return err
	}

	c.setState(StateAuthenticating)

	body, err := json.Marshal(proto.AuthRequest{
		Token:    token,
		DeviceID: c.opts.DeviceID,
		Platform: c.opts.Platform,
	})
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(proto.EventAuth, body); err != nil {
		return err
	}

	eventType, ackBody, err := conn.ReadFrame()
	if err != nil {
		return err
	}
	if eventType != proto.EventAuthAck {
		return errs.ErrChannelAuthFailed
	}

	var ack proto.AuthAck
	if err := json.Unmarshal(ackBody, &ack); err != nil {
		return errs.ErrChannelAuthFailed.Wrap(err)
	}
	if ack.Code != errs.CodeSuccess {
		c.logger.Warn("Channel auth rejected", "code", ack.Code, "message", ack.Message)
		return errs.ErrChannelAuthFailed
	}

	return nil
}

// serve 在一条已认证连接上收发帧，连接断开时返回
func (c *Channel) serve(ctx context.Context, conn transport.Conn) {
	connDone := make(chan struct{})
	var wg sync.WaitGroup

	// 写协程：上行帧串行写出
	// 关闭时先把已排队的帧冲刷出去（leave 信号走这条路），再关连接解除读阻塞
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.flushPending(conn)
				conn.Close()
				return
			case <-connDone:
				return
			case f := <-c.writeChan:
				if err := conn.WriteFrame(f.eventType, f.body); err != nil {
					c.logger.Error("Channel write failed",
						"event", proto.EventName(f.eventType),
						"error", err)
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		eventType, body, err := conn.ReadFrame()
		if err != nil {
			break
		}
		c.dispatch(Event{Type: eventType, Body: body})
	}

	close(connDone)
	wg.Wait()
}

// dispatch 按传输到达顺序投递事件给所有订阅
func (c *Channel) dispatch(e Event) {
	for _, sub := range c.snapshotSubs() {
		select {
		case sub.events <- e:
		case <-sub.done:
		}
	}
}

// setState 更新状态并通知订阅方
func (c *Channel) setState(s State) {
	if State(c.stateVal.Swap(int32(s))) == s {
		return
	}

	for _, sub := range c.snapshotSubs() {
		sub.pushState(s)
	}
}

func (c *Channel) snapshotSubs() []*Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	return subs
}

// flushPending 连接收尾前尽力写出已排队的帧
func (c *Channel) flushPending(conn transport.Conn) {
	for {
		select {
		case f := <-c.writeChan:
			if err := conn.WriteFrame(f.eventType, f.body); err != nil {
				return
			}
		default:
			return
		}
	}
}

// drainStale 丢弃断线期间残留在队列里的帧
// 发送在未就绪时已被同步拒绝，这里只可能是断开瞬间排队的少量帧
func (c *Channel) drainStale() {
	for {
		select {
		case f := <-c.writeChan:
			c.logger.Warn("Dropping frame queued across reconnect",
				"event", proto.EventName(f.eventType))
		default:
			return
		}
	}
}

// unsubscribe 移除订阅，引用计数归零时停止连接循环
func (c *Channel) unsubscribe(id int64) {
	c.mu.Lock()
	delete(c.subs, id)
	stop := len(c.subs) == 0 && c.runCancel != nil
	var cancel context.CancelFunc
	var done chan struct{}
	if stop {
		cancel = c.runCancel
		done = c.runDone
		c.runCancel = nil
		c.runDone = nil
	}
	c.mu.Unlock()

	if stop {
		cancel()
		<-done

		// 等待期间可能有新订阅启动了新的连接循环，此时状态归它管
		c.mu.Lock()
		owns := c.runDone == nil && !c.closed
		c.mu.Unlock()
		if owns {
			c.setState(StateDisconnected)
		}
		c.logger.Info("Last subscriber gone, channel connection released")
	}
}

// Subscription 一个通道订阅
// Events 按到达顺序投递，States 只保留最新状态
type Subscription struct {
	id     int64
	ch     *Channel
	events chan Event
	states chan State
	done   chan struct{}
	once   sync.Once
}

// Events 下行事件流
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// States 状态变化通知
func (s *Subscription) States() <-chan State {
	return s.states
}

// Cancel 取消订阅，可重复调用
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.ch.unsubscribe(s.id)
	})
}

// pushState 投递状态；订阅方消费不及时只保留最新值
func (s *Subscription) pushState(st State) {
	for {
		select {
		case s.states <- st:
			return
		case <-s.done:
			return
		default:
		}
		select {
		case <-s.states:
		default:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
