package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfig_MergesEnvironmentOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
aws:
  region: us-east-1
  max_attempts: 10
queue:
  url: base-url
`)
	writeFile(t, dir, "staging.yaml", `
queue:
  url: staging-url
`)

	cfgMap, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	var out struct {
		AWS   AWSConfig   `yaml:"aws"`
		Queue QueueConfig `yaml:"queue"`
	}
	require.NoError(t, Decode(cfgMap, &out))

	assert.Equal(t, "us-east-1", out.AWS.Region)
	assert.Equal(t, 10, out.AWS.MaxAttempts)
	assert.Equal(t, "staging-url", out.Queue.URL)
}

func TestLoadConfig_SubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
redis:
  addr: localhost:6379
  password: ${REDIS_PASSWORD}
`)
	writeFile(t, dir, "secrets.env", `
# local secrets
REDIS_PASSWORD="s3cret"
`)

	cfgMap, err := LoadConfig("local", dir)
	require.NoError(t, err)

	var out struct {
		Redis RedisConfig `yaml:"redis"`
	}
	require.NoError(t, Decode(cfgMap, &out))
	assert.Equal(t, "s3cret", out.Redis.Password)
}

func TestLoadConfig_MissingBaseIsEmpty(t *testing.T) {
	cfgMap, err := LoadConfig("local", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfgMap)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "aws: [unterminated")

	_, err := LoadConfig("local", dir)
	assert.Error(t, err)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_MAX_ATTEMPTS", "3")
	t.Setenv("SQS_QUEUE_URL", "https://sqs.local/queue")
	t.Setenv("TOKEN_CACHE_TTL", "30s")

	aws := AWSConfig{Region: "us-east-1", MaxAttempts: 10}
	OverrideAWSFromEnv(&aws)
	assert.Equal(t, "eu-west-1", aws.Region)
	assert.Equal(t, 3, aws.MaxAttempts)

	q := QueueConfig{}
	OverrideQueueFromEnv(&q)
	assert.Equal(t, "https://sqs.local/queue", q.URL)

	s := SecretConfig{}
	OverrideSecretFromEnv(&s)
	assert.Equal(t, "30s", s.CacheTTL.String())
}
