package model

// User 当前登录用户信息（来自 REST profile 接口或凭证声明）
type User struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
}

// AsSender 转换为消息归属比较用的 Sender
func (u User) AsSender() Sender {
	return Sender{ID: u.ID, Username: u.Username}
}

// Sender 消息发送者的规范化引用
// 服务端不同路径下发的发送者字段形态不一致（sender 对象 / senderUsername 字符串），
// 统一在解码边界归一化为该结构，比较只通过 Same 进行
type Sender struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Same 判断两个发送者是否为同一身份
// 优先按 ID 比较，双方任一缺失 ID 时回退到用户名比较
func (s Sender) Same(o Sender) bool {
	if s.ID != "" && o.ID != "" {
		return s.ID == o.ID
	}
	return s.Username != "" && s.Username == o.Username
}

// IsZero 发送者引用是否为空
func (s Sender) IsZero() bool {
	return s.ID == "" && s.Username == ""
}

// Key 返回用于集合去重的稳定键（打字状态集合等）
func (s Sender) Key() string {
	if s.Username != "" {
		return s.Username
	}
	return s.ID
}
