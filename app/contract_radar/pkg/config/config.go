package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Chunk       ChunkConfig       `yaml:"chunk"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Log         LogConfig         `yaml:"log"`
	DB          DBConfig          `yaml:"db"`
	Redis       RedisConfig       `yaml:"redis"`
	S3          S3Config          `yaml:"s3"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Email       EmailConfig       `yaml:"email"`
	Server      ServerConfig      `yaml:"server"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai | gemini | mock
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ChunkConfig 分段参数
type ChunkConfig struct {
	MaxSize       int  `yaml:"max_size"`
	MinSize       int  `yaml:"min_size"`
	DropShortTail bool `yaml:"drop_short_tail"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS        int `yaml:"qps"`
	RPM        int `yaml:"rpm"`
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Driver   string `yaml:"driver"` // postgres | sqlite，留空表示不持久化
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite 文件路径
}

// DSN 返回 database/sql 连接串
func (c DBConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// RedisConfig 分段结果缓存
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"` // 秒
}

// S3Config 对象存储
type S3Config struct {
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// KafkaConfig 分析任务队列
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// EmailConfig 报告邮件
type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	SMTPUser string   `yaml:"smtp_user"`
	SMTPPass string   `yaml:"smtp_pass"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout int    `yaml:"timeout"` // 秒
}

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML 配置，补齐默认值，应用环境变量覆盖并校验。
// 0 是合法取值的字段先预置默认值再解析，显式写 0 会覆盖默认值。
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Chunk:       ChunkConfig{MinSize: 1000},
		Concurrency: ConcurrencyConfig{MaxRetries: 3},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// 敏感字段允许通过环境变量覆盖，便于配合 .env 使用
func (c *Config) applyEnv() {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.Email.SMTPPass = v
	}
}

// ApplyDefaults 补齐未配置项。chunk.min_size 和 concurrency.max_retries
// 允许为 0，其默认值由 Parse 预置
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4000
	}
	if c.Chunk.MaxSize == 0 {
		c.Chunk.MaxSize = 3000
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.Workers == 0 {
		c.Concurrency.Workers = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Driver == "postgres" && c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 7 * 24 * 3600
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "contract_radar"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 300
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	var problems []string

	switch c.LLM.Provider {
	case "openai", "gemini":
		if c.LLM.APIKey == "" {
			problems = append(problems, "llm.api_key is required")
		}
		if c.LLM.Model == "" {
			problems = append(problems, "llm.model is required")
		}
	case "mock":
	default:
		problems = append(problems, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider))
	}

	if c.Chunk.MinSize < 0 || c.Chunk.MaxSize <= 0 || c.Chunk.MinSize > c.Chunk.MaxSize {
		problems = append(problems, "chunk.min_size must be within [0, chunk.max_size]")
	}
	if c.Concurrency.Workers < 0 || c.Concurrency.MaxRetries < 0 {
		problems = append(problems, "concurrency values must not be negative")
	}

	switch c.DB.Driver {
	case "":
	case "postgres":
		if c.DB.Host == "" || c.DB.Name == "" {
			problems = append(problems, "db.host and db.name are required for postgres")
		}
	case "sqlite":
		if c.DB.Path == "" {
			problems = append(problems, "db.path is required for sqlite")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown db.driver %q", c.DB.Driver))
	}

	if c.Kafka.Topic != "" && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is required when kafka.topic is set")
	}
	if len(c.Email.To) > 0 && (c.Email.SMTPHost == "" || c.Email.From == "") {
		problems = append(problems, "email.smtp_host and email.from are required when email.to is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
