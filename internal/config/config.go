package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Fanout     FanoutConfig     `mapstructure:"fanout"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

type ServerConfig struct {
	ChatPort   int `mapstructure:"chat_port"`
	NotifyPort int `mapstructure:"notify_port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

// DispatcherConfig 出站消息调度配置
type DispatcherConfig struct {
	IntervalMs            int    `mapstructure:"interval_ms"`
	LockTTLSeconds        int    `mapstructure:"lock_ttl_seconds"`
	RetryDelayMinutes     int    `mapstructure:"retry_delay_minutes"`
	PublishChannel        string `mapstructure:"publish_channel"`
	PublishTimeoutSeconds int    `mapstructure:"publish_timeout_seconds"`
}

// FanoutConfig 实时推送配置
type FanoutConfig struct {
	BufferSize       int `mapstructure:"buffer_size"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

// RetentionConfig 出站消息清理配置
type RetentionConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	MaxAgeHours     int `mapstructure:"max_age_hours"`
	BatchLimit      int `mapstructure:"batch_limit"`
}

func (c *DispatcherConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func (c *DispatcherConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *DispatcherConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMinutes) * time.Minute
}

func (c *DispatcherConfig) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutSeconds) * time.Second
}

func (c *FanoutConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c *RetentionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}

// setDefaults 设置默认值（调度每秒一次，锁30秒，发送失败5分钟后重试）
func setDefaults() {
	viper.SetDefault("server.chat_port", 8888)
	viper.SetDefault("server.notify_port", 8889)

	viper.SetDefault("mysql.max_open_conns", 100)
	viper.SetDefault("mysql.max_idle_conns", 10)

	viper.SetDefault("auth.token_ttl_hours", 24)

	viper.SetDefault("dispatcher.interval_ms", 1000)
	viper.SetDefault("dispatcher.lock_ttl_seconds", 30)
	viper.SetDefault("dispatcher.retry_delay_minutes", 5)
	viper.SetDefault("dispatcher.publish_channel", "chat")
	viper.SetDefault("dispatcher.publish_timeout_seconds", 5)

	viper.SetDefault("fanout.buffer_size", 256)
	viper.SetDefault("fanout.heartbeat_seconds", 1)

	viper.SetDefault("retention.interval_minutes", 60)
	viper.SetDefault("retention.max_age_hours", 72)
	viper.SetDefault("retention.batch_limit", 1000)
}
