package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.CheckInterval != 2*time.Second {
		t.Errorf("expected default check interval 2s, got %v", cfg.Session.CheckInterval)
	}
	if cfg.Unread.PollInterval != 30*time.Second {
		t.Errorf("expected default poll interval 30s, got %v", cfg.Unread.PollInterval)
	}
	if cfg.Chat.TypingTTL != 3*time.Second {
		t.Errorf("expected default typing ttl 3s, got %v", cfg.Chat.TypingTTL)
	}
	if cfg.Realtime.Transport != "websocket" {
		t.Errorf("expected default transport websocket, got %s", cfg.Realtime.Transport)
	}
}

func TestLoad_File(t *testing.T) {
	content := `
app:
  log_level: debug
api:
  base_url: https://booking.example.com
realtime:
  url: wss://booking.example.com/ws
  transport: webtransport
session:
  check_interval: 5s
chat:
  ack_timeout: 3s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.App.LogLevel)
	}
	if cfg.API.BaseURL != "https://booking.example.com" {
		t.Errorf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.Realtime.Transport != "webtransport" {
		t.Errorf("expected transport webtransport, got %s", cfg.Realtime.Transport)
	}
	if cfg.Session.CheckInterval != 5*time.Second {
		t.Errorf("expected check interval 5s, got %v", cfg.Session.CheckInterval)
	}
	if cfg.Chat.AckTimeout != 3*time.Second {
		t.Errorf("expected ack timeout 3s, got %v", cfg.Chat.AckTimeout)
	}
	// 文件未覆盖的字段回落到默认值
	if cfg.Unread.PollInterval != 30*time.Second {
		t.Errorf("expected default poll interval 30s, got %v", cfg.Unread.PollInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
