package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	DHL       DHLConfig       `yaml:"dhl"`
	TrackDesk TrackDeskConfig `yaml:"trackdesk"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	TrackingCheckedTopicName string `yaml:"tracking_checked_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DHLConfig struct {
	APIURL             string `yaml:"api_url"`
	APIKey             string `yaml:"api_key"`
	DailyLimit         int    `yaml:"daily_limit"`
	BatchSize          int    `yaml:"batch_size"`
	BatchDelaySeconds  int    `yaml:"batch_delay_seconds"`
	MaxRetries         int    `yaml:"max_retries"`
	RetryDelaySeconds  int    `yaml:"retry_delay_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type TrackDeskConfig struct {
	ServerHTTPAddr  string `yaml:"server_http_addr"`
	ConsoleHTTPAddr string `yaml:"console_http_addr"`
	WatcherHTTPAddr string `yaml:"watcher_http_addr"`

	// Base URL the console uses to reach the tracking API,
	// including the /api/v1 prefix.
	APIBaseURL string `yaml:"api_base_url"`

	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	ExportDir      string `yaml:"export_dir"`
	UploadDir      string `yaml:"upload_dir"`
	DropDir        string `yaml:"drop_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	ResultTTLSeconds    int `yaml:"result_ttl_seconds"`
	ScanIntervalSeconds int `yaml:"scan_interval_seconds"`
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
