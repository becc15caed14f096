package credential

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"wileybooking.im.client/internal/errs"
)

// StorageKey 凭证在存储文档中的固定键名
const StorageKey = "wiley_booking_token"

// Store 文件存储的凭证
// 单个不透明 token，登录时写入，登出/过期时清除
// 读取是幂等的，写入（清除）是终态的，无需更细粒度的锁
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore 创建凭证存储
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath 默认凭证文件路径
func DefaultPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, ".wiley-booking", "credential.json")
}

// Load 读取凭证
// 文件不存在或不含凭证时返回 ErrCredentialMissing
func (s *Store) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.ErrCredentialMissing
		}
		return "", errs.ErrCredentialMissing.Wrap(err)
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		// 损坏的存储等同于凭证缺失
		return "", errs.ErrCredentialMissing.Wrap(err)
	}

	token, ok := doc[StorageKey]
	if !ok || token == "" {
		return "", errs.ErrCredentialMissing
	}
	return token, nil
}

// Save 写入凭证
func (s *Store) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(map[string]string{StorageKey: token})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear 清除凭证，不存在时视为成功
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
