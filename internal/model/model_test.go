package model

import (
	"encoding/json"
	"testing"
)

// TestSenderSame 测试发送者身份比较的回退链
func TestSenderSame(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Sender
		expected bool
	}{
		{
			name:     "same id",
			a:        Sender{ID: "u1", Username: "alice"},
			b:        Sender{ID: "u1", Username: "renamed"},
			expected: true,
		},
		{
			name:     "different id same username",
			a:        Sender{ID: "u1", Username: "alice"},
			b:        Sender{ID: "u2", Username: "alice"},
			expected: false,
		},
		{
			name:     "missing id falls back to username",
			a:        Sender{Username: "alice"},
			b:        Sender{ID: "u1", Username: "alice"},
			expected: true,
		},
		{
			name:     "both empty",
			a:        Sender{},
			b:        Sender{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Same(tt.b); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// TestMessageUnmarshal_SenderObject 测试 sender 为对象的消息解码
func TestMessageUnmarshal_SenderObject(t *testing.T) {
	data := []byte(`{"_id":"m1","sender":{"_id":"u1","username":"alice"},"content":"hi","messageType":"text","createdAt":"2024-03-01T10:00:00Z"}`)

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.ID != "m1" {
		t.Errorf("Expected ID m1, got %s", msg.ID)
	}
	if msg.Sender.ID != "u1" {
		t.Errorf("Expected sender ID u1, got %s", msg.Sender.ID)
	}
	if msg.Sender.Username != "alice" {
		t.Errorf("Expected sender username alice, got %s", msg.Sender.Username)
	}
}

// TestMessageUnmarshal_SenderUsernameOnly 测试仅含 senderUsername 的消息解码
func TestMessageUnmarshal_SenderUsernameOnly(t *testing.T) {
	data := []byte(`{"_id":"m2","senderUsername":"bob","content":"hello","createdAt":"2024-03-01T10:00:00Z"}`)

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Sender.ID != "" {
		t.Errorf("Expected empty sender ID, got %s", msg.Sender.ID)
	}
	if msg.Sender.Username != "bob" {
		t.Errorf("Expected sender username bob, got %s", msg.Sender.Username)
	}
	// messageType 缺失时默认为文本
	if msg.Type != MessageTypeText {
		t.Errorf("Expected type text, got %s", msg.Type)
	}
}

// TestMessageUnmarshal_SenderString 测试 sender 为纯字符串 ID 的消息解码
func TestMessageUnmarshal_SenderString(t *testing.T) {
	data := []byte(`{"_id":"m3","sender":"u9","content":"x","createdAt":"2024-03-01T10:00:00Z"}`)

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Sender.ID != "u9" {
		t.Errorf("Expected sender ID u9, got %s", msg.Sender.ID)
	}
}

// TestConversationDisplayName 测试会话展示名计算
func TestConversationDisplayName(t *testing.T) {
	direct := &Conversation{
		ID: "c1",
		Participants: []Participant{
			{ID: "u1", Username: "alice", DisplayName: "Alice W"},
			{ID: "u2", Username: "bob"},
		},
	}

	if got := direct.DisplayName("u1"); got != "bob" {
		t.Errorf("Expected display name bob, got %s", got)
	}
	if got := direct.DisplayName("u2"); got != "Alice W" {
		t.Errorf("Expected display name 'Alice W', got %s", got)
	}

	group := &Conversation{
		ID:        "c2",
		IsGroup:   true,
		GroupName: "Floor 3",
		Participants: []Participant{
			{ID: "u1", Username: "alice"},
			{ID: "u2", Username: "bob"},
		},
	}
	if got := group.DisplayName("u1"); got != "Floor 3" {
		t.Errorf("Expected group name 'Floor 3', got %s", got)
	}
}
