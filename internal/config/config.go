package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config 汇总服务的全部环境配置，带默认值，可被环境变量覆盖。
type Config struct {
	Env           string `env:"ENV" env-default:"local"`
	Port          string `env:"PORT" env-default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL" env-default:"host=localhost user=postgres password=postgres dbname=anonboard port=5432 sslmode=disable"`
	SessionSecret string `env:"SESSION_SECRET" env-default:"secret_key_change_me"`
	IPHashSalt    string `env:"IP_HASH_SALT" env-default:"default-salt"`
	PerPage       int    `env:"PER_PAGE" env-default:"20"`

	Realtime RealtimeConfig
}

// RealtimeConfig 实时订阅的重连策略。
type RealtimeConfig struct {
	MaxReconnectAttempts int           `env:"REALTIME_MAX_RECONNECT_ATTEMPTS" env-default:"5"`
	ReconnectInterval    time.Duration `env:"REALTIME_RECONNECT_INTERVAL" env-default:"1s"`
}

// Load 从环境变量读取配置。
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad 读取失败时直接退出。
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
