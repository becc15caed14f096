package proto

import (
	"wileybooking.im.client/internal/model"
)

// 事件类型
const (
	EventAuth       uint16 = 1  // 客户端 -> 服务端：通道认证
	EventAuthAck    uint16 = 2  // 服务端 -> 客户端：认证结果
	EventJoin       uint16 = 3  // 客户端 -> 服务端：加入会话广播组
	EventLeave      uint16 = 4  // 客户端 -> 服务端：离开会话广播组
	EventError      uint16 = 9  // 服务端 -> 客户端：通道级错误
	EventSend       uint16 = 10 // 客户端 -> 服务端：发送消息
	EventSendAck    uint16 = 11 // 服务端 -> 客户端：发送确认
	EventNewMessage uint16 = 12 // 服务端 -> 客户端：新消息推送（发送者自己的消息同样经此回显）
	EventTyping     uint16 = 13 // 双向：打字状态
	EventUserStatus uint16 = 14 // 服务端 -> 客户端：用户在线状态变化
)

// AuthRequest 通道认证请求，连接建立后发送一次，重连后重新发送
type AuthRequest struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
	Platform string `json:"platform"`
}

// AuthAck 认证结果
type AuthAck struct {
	Code    int    `json:"code"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// JoinRequest 加入会话
type JoinRequest struct {
	ConversationID string `json:"conversationId"`
}

// LeaveRequest 离开会话
type LeaveRequest struct {
	ConversationID string `json:"conversationId"`
}

// SendRequest 发送消息
// clientMsgId 由客户端生成，服务端回显/确认时原样带回
type SendRequest struct {
	ClientMsgID    string            `json:"clientMsgId"`
	ConversationID string            `json:"conversationId"`
	Content        string            `json:"content"`
	Type           model.MessageType `json:"messageType"`
	ReplyTo        string            `json:"replyTo,omitempty"`
}

// SendAck 发送确认
type SendAck struct {
	ClientMsgID string `json:"clientMsgId"`
	ServerMsgID string `json:"serverMsgId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewMessageEvent 新消息推送
type NewMessageEvent struct {
	ConversationID string        `json:"conversationId"`
	ClientMsgID    string        `json:"clientMsgId,omitempty"`
	Message        model.Message `json:"message"`
}

// TypingEvent 打字状态事件
type TypingEvent struct {
	ConversationID string       `json:"conversationId"`
	Sender         model.Sender `json:"sender"`
	IsTyping       bool         `json:"isTyping"`
}

// UserStatusEvent 用户在线状态事件
type UserStatusEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// ErrorEvent 通道级错误
type ErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EventName 事件类型的可读名称，用于日志
func EventName(eventType uint16) string {
	switch eventType {
	case EventAuth:
		return "auth"
	case EventAuthAck:
		return "auth_ack"
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventError:
		return "error"
	case EventSend:
		return "send"
	case EventSendAck:
		return "send_ack"
	case EventNewMessage:
		return "new_message"
	case EventTyping:
		return "typing"
	case EventUserStatus:
		return "user_status"
	default:
		return "unknown"
	}
}
