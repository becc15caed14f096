package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wileybooking.im.client/internal/api"
	"wileybooking.im.client/internal/channel"
	"wileybooking.im.client/internal/chat"
	"wileybooking.im.client/internal/config"
	"wileybooking.im.client/internal/credential"
	"wileybooking.im.client/internal/model"
	"wileybooking.im.client/internal/session"
	"wileybooking.im.client/internal/transport"
	"wileybooking.im.client/internal/unread"
	"wileybooking.im.client/internal/workerpool"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	token := flag.String("token", "", "save this credential before starting")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	// 凭证仓库
	credPath := cfg.Credential.Path
	if credPath == "" {
		credPath = credential.DefaultPath()
	}
	store := credential.NewStore(credPath)
	if *token != "" {
		if err := store.Save(*token); err != nil {
			logger.Error("Failed to save credential", "error", err)
			os.Exit(1)
		}
	}

	claims, err := requireCredential(store)
	if err != nil {
		fmt.Fprintln(os.Stderr, "no valid credential, log in and pass -token")
		os.Exit(1)
	}
	self := claims.Identity().AsSender()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 实时通道
	ch := channel.New(newDialer(cfg.Realtime), store, channel.Options{
		DeviceID:         claims.UserID,
		Platform:         cfg.Realtime.Platform,
		DialTimeout:      cfg.Realtime.DialTimeout,
		RedialMinBackoff: cfg.Realtime.RedialMinBackoff,
		RedialMaxBackoff: cfg.Realtime.RedialMaxBackoff,
	}, logger)
	defer ch.Close()

	// 会话监视：过期即停通道、清凭证、退出
	expired := make(chan struct{}, 1)
	notifyExpired := func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	}
	monitor := session.NewMonitor(store, cfg.Session.CheckInterval,
		func() { ch.Close() }, notifyExpired, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	// REST 客户端：任何接口的未授权响应与本地过期走同一条失败路径
	// （停通道 -> 清凭证 -> 退出）
	client := api.New(cfg.API.BaseURL, store, cfg.API.Timeout, monitor.Invalidate, logger)

	// 未读与在线状态聚合
	pool := workerpool.New(cfg.Unread.Workers, cfg.Unread.QueueSize, logger)
	defer pool.Shutdown()

	aggregator := unread.New(ch, client, pool, unread.Options{
		PollInterval: cfg.Unread.PollInterval,
		FetchTimeout: cfg.Unread.FetchTimeout,
	}, unread.Handlers{
		OnUnread: func(count int) {
			fmt.Printf("* unread messages: %d\n", count)
		},
		OnPresence: func(userID, username string, online bool) {
			state := "offline"
			if online {
				state = "online"
			}
			fmt.Printf("* %s is %s\n", displayKey(username, userID), state)
		},
	}, logger)
	if err := aggregator.Start(ctx); err != nil {
		logger.Error("Failed to start unread aggregator", "error", err)
		os.Exit(1)
	}
	defer aggregator.Stop()

	// 启动时拉一次资料，确认凭证在服务端仍然有效
	if profile, err := client.Profile(ctx); err == nil {
		self = profile.AsSender()
		fmt.Printf("logged in as %s\n", profile.DisplayName)
	} else {
		logger.Warn("Profile fetch failed", "error", err)
	}

	logger.Info("Messenger started",
		"user", self.Username,
		"api", cfg.API.BaseURL,
		"realtime", cfg.Realtime.URL)

	app := &replApp{
		ctx:     ctx,
		cfg:     cfg,
		ch:      ch,
		client:  client,
		monitor: monitor,
		self:    self,
		logger:  logger,
		doneCh:  make(chan struct{}),
	}
	go app.run(os.Stdin)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down...")
	case <-expired:
		fmt.Fprintln(os.Stderr, "session expired, please log in again")
	case <-app.done():
	}

	cancel()
	app.closeChat()
	logger.Info("Messenger stopped")
}

// requireCredential 启动前检查凭证，缺失或已过期直接拒绝启动
func requireCredential(store *credential.Store) (*credential.Claims, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	claims, err := credential.ParseClaims(tok)
	if err != nil {
		return nil, err
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && time.Now().After(exp.Time) {
		return nil, fmt.Errorf("credential expired at %v", exp.Time)
	}
	return claims, nil
}

func newDialer(cfg config.RealtimeConfig) transport.Dialer {
	if cfg.Transport == "webtransport" {
		return &transport.WebTransportDialer{
			URL:                cfg.URL,
			MaxIdleTimeout:     cfg.MaxIdleTimeout,
			KeepAlivePeriod:    cfg.KeepAlivePeriod,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}
	return &transport.WebSocketDialer{
		URL:              cfg.URL,
		HandshakeTimeout: cfg.DialTimeout,
	}
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func displayKey(username, userID string) string {
	if username != "" {
		return username
	}
	return userID
}

// replApp 标准输入交互循环
type replApp struct {
	ctx     context.Context
	cfg     *config.Config
	ch      *channel.Channel
	client  *api.Client
	monitor *session.Monitor
	self    model.Sender
	logger  *slog.Logger

	current *chat.Sync
	doneCh  chan struct{}
}

func (a *replApp) done() <-chan struct{} {
	return a.doneCh
}

func (a *replApp) run(in io.Reader) {
	defer close(a.doneCh)

	fmt.Println("commands: /list, /open <conversation-id>, /typing, /who, /quit")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		// 每次输入都同步检查一次凭证，补住两次定时检查之间的过期
		if !a.monitor.Activity() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/list":
			a.listConversations()
		case line == "/typing":
			a.sendTyping()
		case line == "/who":
			a.printTyping()
		case strings.HasPrefix(line, "/open "):
			a.openConversation(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		default:
			a.sendMessage(line)
		}
	}
}

func (a *replApp) listConversations() {
	convs, err := a.client.Conversations(a.ctx)
	if err != nil {
		fmt.Printf("failed to list conversations: %v\n", err)
		return
	}
	for _, c := range convs {
		marker := ""
		if c.UnreadCount > 0 {
			marker = fmt.Sprintf(" (%d unread)", c.UnreadCount)
		}
		fmt.Printf("%s  %s%s\n", c.ID, c.DisplayName(a.self.ID), marker)
	}
}

// openConversation 切换当前会话：先拉历史，再启动实时同步
func (a *replApp) openConversation(conversationID string) {
	if conversationID == "" {
		fmt.Println("usage: /open <conversation-id>")
		return
	}
	a.closeChat()

	history, err := a.client.ConversationMessages(a.ctx, conversationID)
	if err != nil {
		fmt.Printf("failed to load history: %v\n", err)
		return
	}
	for _, m := range history {
		a.printMessage(m)
	}

	sync := chat.New(a.ch, conversationID, a.self, chat.Options{
		TypingTTL:     a.cfg.Chat.TypingTTL,
		SweepInterval: a.cfg.Chat.SweepInterval,
		AckTimeout:    a.cfg.Chat.AckTimeout,
		History:       history,
	}, chat.Handlers{
		OnMessage: a.printMessage,
		OnTyping: func(users []string) {
			if len(users) > 0 {
				fmt.Printf("* typing: %s\n", strings.Join(users, ", "))
			}
		},
		OnPresence: func(online bool) {
			if online {
				fmt.Println("* peer is online")
			} else {
				fmt.Println("* peer went offline")
			}
		},
		OnConnected: func(connected bool) {
			if connected {
				fmt.Println("* connected")
			} else {
				fmt.Println("* reconnecting...")
			}
		},
		OnAckTimeout: func(clientMsgID string) {
			fmt.Printf("* message %s was not acknowledged, it may not have been delivered\n", clientMsgID)
		},
	}, a.logger)

	if err := sync.Start(a.ctx); err != nil {
		fmt.Printf("failed to open conversation: %v\n", err)
		return
	}
	a.current = sync
	fmt.Printf("opened conversation %s\n", conversationID)
}

func (a *replApp) sendMessage(content string) {
	if a.current == nil {
		fmt.Println("no conversation open, use /open <conversation-id>")
		return
	}
	if _, err := a.current.Send(content, model.MessageTypeText, ""); err != nil {
		fmt.Printf("send failed: %v\n", err)
	}
}

func (a *replApp) sendTyping() {
	if a.current == nil {
		fmt.Println("no conversation open")
		return
	}
	if err := a.current.Typing(true); err != nil {
		fmt.Printf("typing failed: %v\n", err)
	}
}

func (a *replApp) printTyping() {
	if a.current == nil {
		fmt.Println("no conversation open")
		return
	}
	users := a.current.TypingUsers()
	if len(users) == 0 {
		fmt.Println("nobody is typing")
		return
	}
	fmt.Printf("typing: %s\n", strings.Join(users, ", "))
}

func (a *replApp) closeChat() {
	if a.current != nil {
		a.current.Stop()
		a.current = nil
	}
}

func (a *replApp) printMessage(m model.Message) {
	who := m.Sender.Key()
	if m.Sender.Same(a.self) {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), who, m.Content)
}
