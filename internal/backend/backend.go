// Package backend opens the queue implementation selected by configuration.
package backend

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"email-ingest/internal/config"
	"email-ingest/pkg/awsclient"
	"email-ingest/pkg/mq"
	"email-ingest/pkg/queue"
)

// OpenQueue returns the configured queue and a close function. The second
// return value is non-nil when the backend can report connectivity.
func OpenQueue(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (queue.Queue, queue.Pinger, func(), error) {
	switch cfg.Queue.Backend {
	case config.BackendSQS:
		client := queue.NewSQSClient(awsCfg, awsclient.EndpointOverride(cfg.AWS))
		return queue.NewSQSQueue(client, cfg.Queue.URL), nil, func() {}, nil
	case config.BackendRabbitMQ:
		q, err := mq.NewQueue(cfg.MQ.URL, cfg.MQ.Queue, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		return q, q, q.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
