package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	LogLevel       string        `mapstructure:"log_level"`
	SignalURL      string        `mapstructure:"signal_url"`
	StageID        string        `mapstructure:"stage_id"`
	DeviceName     string        `mapstructure:"device_name"`
	ICEServers     []string      `mapstructure:"ice_servers"`
	StatusPort     int           `mapstructure:"status_port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
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
	v.SetDefault("log_level", "info")
	v.SetDefault("signal_url", "ws://localhost:4000/ws")
	v.SetDefault("device_name", "client-go")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("status_port", 8080)
	v.SetDefault("request_timeout", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Signal: %s | Status port: %d\n", cfg.Mode, cfg.SignalURL, cfg.StatusPort)
	return &cfg, nil
}
