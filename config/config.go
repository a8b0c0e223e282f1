package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	FreightBox FreightBoxConfig `yaml:"freightbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString is the pgx connection URL.
func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	WaybillRoutedTopicName string `yaml:"waybill_routed_topic_name"`
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type FreightBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	Storage            string `yaml:"storage"` // "postgres" | "memory"
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	WaybillCacheTTLSeconds  int `yaml:"waybill_cache_ttl_seconds"`
	UserCacheTTLSeconds     int `yaml:"user_cache_ttl_seconds"`
	SettingsCacheTTLSeconds int `yaml:"settings_cache_ttl_seconds"`

	SessionCookieName        string `yaml:"session_cookie_name"`
	ActionRateLimitPerMinute int    `yaml:"action_rate_limit_per_minute"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	// Statements are addressed to this department, usually the head office.
	SettlementDepartmentID uint64 `yaml:"settlement_department_id"`
}

// LoadDotEnv loads .env into the process environment when the file exists.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		slog.Debug(".env not loaded, using process environment", "error", err.Error())
	}
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
