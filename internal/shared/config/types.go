package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	BaseURL       string `mapstructure:"base_url"`
	RequireAuth   bool   `mapstructure:"require_auth"`
	AuthRateLimit int    `mapstructure:"auth_rate_limit"` // token requests per client IP per minute, 0 disables
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	Path            string `mapstructure:"path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Broker auth modes.
const (
	BrokerAuthNone  = "none"
	BrokerAuthToken = "token"
)

// Broker kinds.
const (
	BrokerKindMQTT = "mqtt"
	BrokerKindNATS = "nats"
)

type BrokerConfig struct {
	Kind            string        `mapstructure:"kind"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	PublishTimeout  time.Duration `mapstructure:"publish_timeout"`
	KeepAlive       time.Duration `mapstructure:"keep_alive"`
	QoS             byte          `mapstructure:"qos"`
	AuthMode        string        `mapstructure:"auth_mode"`
	ServiceUsername string        `mapstructure:"service_username"`
	ServicePassword string        `mapstructure:"service_password"`
}

func (b *BrokerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

type CommConfig struct {
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	InboundQueue       int           `mapstructure:"inbound_queue"`
	InboxLimit         int64         `mapstructure:"inbox_limit"`
	InboxRetention     time.Duration `mapstructure:"inbox_retention"`
	ReconcileInterval  time.Duration `mapstructure:"reconcile_interval"`
	RebuildConcurrency int           `mapstructure:"rebuild_concurrency"`
}

type PasswordConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
	RefreshExpDays   int    `mapstructure:"refresh_exp_days"`
}

type AuthConfig struct {
	Password PasswordConfig `mapstructure:"password"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}
