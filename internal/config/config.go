package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Session    SessionConfig    `mapstructure:"session"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Unread     UnreadConfig     `mapstructure:"unread"`
	Credential CredentialConfig `mapstructure:"credential"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RealtimeConfig struct {
	URL                string        `mapstructure:"url"`
	Transport          string        `mapstructure:"transport"` // websocket | webtransport
	Platform           string        `mapstructure:"platform"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	RedialMinBackoff   time.Duration `mapstructure:"redial_min_backoff"`
	RedialMaxBackoff   time.Duration `mapstructure:"redial_max_backoff"`
	MaxIdleTimeout     time.Duration `mapstructure:"max_idle_timeout"`
	KeepAlivePeriod    time.Duration `mapstructure:"keep_alive_period"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

type SessionConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

type ChatConfig struct {
	TypingTTL     time.Duration `mapstructure:"typing_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	AckTimeout    time.Duration `mapstructure:"ack_timeout"`
}

type UnreadConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
}

type CredentialConfig struct {
	Path string `mapstructure:"path"` // 为空时使用默认路径
}

// Load 从指定路径加载配置
// path 为空时只使用默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wiley-messenger")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("realtime.url", "ws://localhost:8081/ws")
	v.SetDefault("realtime.transport", "websocket")
	v.SetDefault("realtime.platform", "desktop")
	v.SetDefault("realtime.dial_timeout", 5*time.Second)
	v.SetDefault("realtime.redial_min_backoff", 500*time.Millisecond)
	v.SetDefault("realtime.redial_max_backoff", 15*time.Second)
	v.SetDefault("realtime.max_idle_timeout", 30*time.Second)
	v.SetDefault("realtime.keep_alive_period", 15*time.Second)

	v.SetDefault("session.check_interval", 2*time.Second)

	v.SetDefault("chat.typing_ttl", 3*time.Second)
	v.SetDefault("chat.sweep_interval", 500*time.Millisecond)
	v.SetDefault("chat.ack_timeout", 10*time.Second)

	v.SetDefault("unread.poll_interval", 30*time.Second)
	v.SetDefault("unread.fetch_timeout", 5*time.Second)
	v.SetDefault("unread.workers", 2)
	v.SetDefault("unread.queue_size", 16)
}
