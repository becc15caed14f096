package model

import (
	"encoding/json"
	"time"
)

// MessageType 消息类型
type MessageType string

const (
	MessageTypeText    MessageType = "text"    // 普通文本
	MessageTypeBooking MessageType = "booking" // 预订上下文消息
	MessageTypeSystem  MessageType = "system"  // 系统消息
)

// Reaction 消息表情回应
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

// Message 消息实体
// 消息一经创建不可变，已读标记和表情回应除外
type Message struct {
	ID        string      `json:"_id"`
	Sender    Sender      `json:"sender"`
	Content   string      `json:"content"`
	Type      MessageType `json:"messageType"`
	ReplyTo   string      `json:"replyTo,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Read      bool        `json:"read"`
	Reactions []Reaction  `json:"reactions,omitempty"`
}

// rawMessage 服务端消息的线格式
// sender 字段存在两种形态：完整对象或仅 senderUsername 字符串，
// 解码时归一化为 Sender，消费侧不再感知差异
type rawMessage struct {
	ID             string          `json:"_id"`
	RawSender      json.RawMessage `json:"sender,omitempty"`
	SenderUsername string          `json:"senderUsername,omitempty"`
	Content        string          `json:"content"`
	Type           MessageType     `json:"messageType"`
	ReplyTo        string          `json:"replyTo,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Read           bool            `json:"read"`
	Reactions      []Reaction      `json:"reactions,omitempty"`
}

// UnmarshalJSON 解码消息并归一化发送者引用
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = raw.ID
	m.Content = raw.Content
	m.Type = raw.Type
	m.ReplyTo = raw.ReplyTo
	m.CreatedAt = raw.CreatedAt
	m.Read = raw.Read
	m.Reactions = raw.Reactions
	if m.Type == "" {
		m.Type = MessageTypeText
	}

	m.Sender = decodeSender(raw.RawSender, raw.SenderUsername)
	return nil
}

// decodeSender 归一化发送者字段
// sender 为对象时取 _id/username；为纯字符串时视为用户 ID；
// 两者都没有时回退到顶层 senderUsername
func decodeSender(raw json.RawMessage, fallbackUsername string) Sender {
	var s Sender
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			var id string
			if json.Unmarshal(raw, &id) == nil {
				s.ID = id
			}
		}
	}
	if s.Username == "" {
		s.Username = fallbackUsername
	}
	return s
}
