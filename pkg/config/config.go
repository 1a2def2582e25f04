package config

import (
	"os"
	"strconv"
	"time"
)

// AWSConfig AWS 客户端配置（SQS / SSM / S3 共用）
type AWSConfig struct {
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"` // LocalStack / MinIO 等兼容端点
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	Backend string `yaml:"backend"` // sqs | rabbitmq
	URL     string `yaml:"url"`     // SQS queue URL
}

// MQConfig RabbitMQ 配置（queue.backend = rabbitmq 时使用）
type MQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// SecretConfig 令牌参数配置
type SecretConfig struct {
	TokenParamName string        `yaml:"token_param_name"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Bucket       string `yaml:"bucket"`
	EnsureBucket bool   `yaml:"ensure_bucket"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// OTelConfig 链路追踪配置
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// OverrideAWSFromEnv 从环境变量覆盖AWS配置
func OverrideAWSFromEnv(cfg *AWSConfig) {
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Region = region
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		cfg.AccessKey = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		cfg.SecretKey = secret
	}
	if attempts := os.Getenv("AWS_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			cfg.MaxAttempts = n
		}
	}
}

// OverrideQueueFromEnv 从环境变量覆盖队列配置
func OverrideQueueFromEnv(cfg *QueueConfig) {
	if backend := os.Getenv("QUEUE_BACKEND"); backend != "" {
		cfg.Backend = backend
	}
	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
	if queue := os.Getenv("MQ_QUEUE"); queue != "" {
		cfg.Queue = queue
	}
}

// OverrideSecretFromEnv 从环境变量覆盖令牌参数配置
func OverrideSecretFromEnv(cfg *SecretConfig) {
	if name := os.Getenv("SSM_TOKEN_PARAM_NAME"); name != "" {
		cfg.TokenParamName = name
	}
	if ttl := os.Getenv("TOKEN_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.CacheTTL = d
		}
	}
}

// OverrideStorageFromEnv 从环境变量覆盖对象存储配置
func OverrideStorageFromEnv(cfg *StorageConfig) {
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.Bucket = bucket
	}
	if ensure := os.Getenv("S3_ENSURE_BUCKET"); ensure != "" {
		if b, err := strconv.ParseBool(ensure); err == nil {
			cfg.EnsureBucket = b
		}
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideOTelFromEnv 从环境变量覆盖链路追踪配置
func OverrideOTelFromEnv(cfg *OTelConfig) {
	if enabled := os.Getenv("OTEL_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = b
		}
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
}
