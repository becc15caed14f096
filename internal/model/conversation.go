package model

// Participant 会话参与者
type Participant struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Conversation 会话实体
// 客户端只读：由服务端在首条消息时创建，本地随推送原地更新，从不删除
type Conversation struct {
	ID           string        `json:"_id"`
	Participants []Participant `json:"participants"`
	IsGroup      bool          `json:"isGroup"`
	GroupName    string        `json:"groupName,omitempty"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int           `json:"unreadCount"`
	Online       bool          `json:"-"` // 对方在线标记，仅内存态
}

// DisplayName 计算会话展示名
// 群聊取群名，私聊取对方参与者的展示名（缺失时取用户名）
func (c *Conversation) DisplayName(selfID string) string {
	if c.IsGroup {
		return c.GroupName
	}
	for _, p := range c.Participants {
		if p.ID == selfID {
			continue
		}
		if p.DisplayName != "" {
			return p.DisplayName
		}
		return p.Username
	}
	return ""
}

// Peer 返回私聊会话中的对方参与者
func (c *Conversation) Peer(selfID string) (Participant, bool) {
	if c.IsGroup {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p, true
		}
	}
	return Participant{}, false
}
