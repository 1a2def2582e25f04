package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"email-ingest/pkg/metrics"
	"email-ingest/pkg/otel"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue implements Queue on Amazon SQS.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSClient builds an SQS client from a shared aws.Config, optionally
// pointed at a custom endpoint (LocalStack, ElasticMQ).
func NewSQSClient(awsCfg aws.Config, endpoint *string) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL}
}

// Enqueue sends body as-is: no attributes, no deduplication id, no delay.
func (q *SQSQueue) Enqueue(ctx context.Context, body string) (err error) {
	ctx, span := otel.QueueSpan(ctx, "aws_sqs", "send", q.queueURL)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordQueueOperation("send", err, time.Since(start)) }()

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

func (q *SQSQueue) ReceiveBatch(ctx context.Context, opts ReceiveOptions) (msgs []Message, err error) {
	ctx, span := otel.QueueSpan(ctx, "aws_sqs", "receive", q.queueURL)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordQueueOperation("receive", err, time.Since(start)) }()

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(opts.MaxMessages),
		WaitTimeSeconds:     int32(opts.WaitTime / time.Second),
		VisibilityTimeout:   int32(opts.Visibility / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	msgs = make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) (err error) {
	ctx, span := otel.QueueSpan(ctx, "aws_sqs", "delete", q.queueURL)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordQueueOperation("delete", err, time.Since(start)) }()

	_, err = q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}
