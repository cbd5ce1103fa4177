package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	RelayURL string `mapstructure:"relay_url"`
	DiagAddr string `mapstructure:"diag_addr"`

	UserID   string `mapstructure:"user_id"`
	Username string `mapstructure:"username"`
	// Channel to join on startup; empty means wait for an explicit Join.
	Channel string `mapstructure:"channel"`

	StunURLs []string `mapstructure:"stun_urls"`

	SpeakThreshold float64       `mapstructure:"speak_threshold"`
	SpeakInterval  time.Duration `mapstructure:"speak_interval"`
	SpeakGrace     time.Duration `mapstructure:"speak_grace"`

	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	RegistryLinger     time.Duration `mapstructure:"registry_linger"`

	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("relay_url", "ws://localhost:8080/api/ws/voice")
	v.SetDefault("diag_addr", "127.0.0.1:9090")
	v.SetDefault("username", "guest")
	v.SetDefault("stun_urls", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("speak_threshold", 12.0)
	v.SetDefault("speak_interval", "100ms")
	v.SetDefault("speak_grace", "300ms")
	v.SetDefault("negotiation_timeout", "30s")
	v.SetDefault("registry_linger", "200ms")
	v.SetDefault("reconnect_min", "500ms")
	v.SetDefault("reconnect_max", "15s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Relay: %s | Diag: %s\n", cfg.Mode, cfg.RelayURL, cfg.DiagAddr)
	return &cfg, nil
}
