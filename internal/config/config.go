package config

import (
	"fmt"
	"os"
	"strconv"

	"email-ingest/pkg/awsclient"
	"email-ingest/pkg/config"
)

const (
	DefaultPollIntervalSeconds = 1
	DefaultServerPort          = ":8000"
	DefaultPoisonKey           = "email-ingest:poison"
	DefaultPoisonMaxLen        = 1000
)

// WorkerConfig worker 轮询配置
type WorkerConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MetricsPort         string `yaml:"metrics_port"`
}

// PoisonConfig 毒消息记录配置（需要 redis.addr）
type PoisonConfig struct {
	RedisKey string `yaml:"redis_key"`
	MaxLen   int64  `yaml:"max_len"`
}

type Config struct {
	AWS     config.AWSConfig     `yaml:"aws"`
	Queue   config.QueueConfig   `yaml:"queue"`
	MQ      config.MQConfig      `yaml:"mq"`
	Secret  config.SecretConfig  `yaml:"secret"`
	Storage config.StorageConfig `yaml:"storage"`
	Redis   config.RedisConfig   `yaml:"redis"`
	Server  config.ServerConfig  `yaml:"server"`
	OTel    config.OTelConfig    `yaml:"otel"`
	Worker  WorkerConfig         `yaml:"worker"`
	Poison  PoisonConfig         `yaml:"poison"`
}

// Load 使用统一配置中心加载，环境变量优先级最高
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	config.OverrideAWSFromEnv(&cfg.AWS)
	config.OverrideQueueFromEnv(&cfg.Queue)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideSecretFromEnv(&cfg.Secret)
	config.OverrideStorageFromEnv(&cfg.Storage)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOTelFromEnv(&cfg.OTel)
	overrideWorkerFromEnv(&cfg.Worker)

	applyDefaults(&cfg)
	return &cfg, nil
}

func overrideWorkerFromEnv(cfg *WorkerConfig) {
	if interval := os.Getenv("POLL_INTERVAL_SECONDS"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil {
			cfg.PollIntervalSeconds = n
		}
	}
	if port := os.Getenv("METRICS_PORT"); port != "" {
		cfg.MetricsPort = port
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = awsclient.DefaultRegion
	}
	if cfg.AWS.MaxAttempts <= 0 {
		cfg.AWS.MaxAttempts = awsclient.DefaultMaxAttempts
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = BackendSQS
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Worker.PollIntervalSeconds <= 0 {
		cfg.Worker.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if cfg.Poison.RedisKey == "" {
		cfg.Poison.RedisKey = DefaultPoisonKey
	}
	if cfg.Poison.MaxLen <= 0 {
		cfg.Poison.MaxLen = DefaultPoisonMaxLen
	}
}

// Queue backends.
const (
	BackendSQS      = "sqs"
	BackendRabbitMQ = "rabbitmq"
)

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case BackendSQS:
		if c.Queue.URL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required")
		}
	case BackendRabbitMQ:
		if c.MQ.URL == "" {
			return fmt.Errorf("MQ_URL is required when QUEUE_BACKEND=rabbitmq")
		}
		if c.MQ.Queue == "" {
			return fmt.Errorf("MQ_QUEUE is required when QUEUE_BACKEND=rabbitmq")
		}
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	return nil
}

// ValidateGateway checks the references the intake gateway needs at startup.
func (c *Config) ValidateGateway() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if c.Secret.TokenParamName == "" {
		return fmt.Errorf("SSM_TOKEN_PARAM_NAME is required")
	}
	return nil
}

// ValidateWorker checks the references the ingestion worker needs at startup.
func (c *Config) ValidateWorker() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	return nil
}
