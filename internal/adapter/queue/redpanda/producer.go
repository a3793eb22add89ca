// Package redpanda carries resume processing jobs over Redpanda/Kafka.
//
// Producing is transactional (exactly-once on the enqueue side) and
// consuming is read-committed with per-record offset commits, so a job
// record is either settled by the pipeline or redelivered. Delivery
// attempts ride in record headers and are bounded by the retry manager,
// which dead-letters jobs whose budget is exhausted.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// jobTypeProcess labels queue metrics for the resume processing job
// family.
const jobTypeProcess = "process"

// Producer wraps a transactional Kafka producer and implements
// domain.Queue.
type Producer struct {
	client *kgo.Client
	// txn serializes transactions; franz-go permits one open
	// transaction per transactional client.
	txn chan struct{}
}

// NewProducer constructs a Producer with exactly-once semantics.
func NewProducer(brokers []string) (*Producer, error) {
	return NewProducerWithTransactionalID(brokers, "resume-analyzer-producer")
}

// NewProducerWithTransactionalID constructs a Producer with a custom
// transactional ID so tests can run several producers side by side.
func NewProducerWithTransactionalID(brokers []string, transactionalID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	slog.Info("creating redpanda producer",
		slog.Any("brokers", brokers),
		slog.String("transactional_id", transactionalID))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	ensureTopics(context.Background(), client)

	return &Producer{
		client: client,
		txn:    make(chan struct{}, 1),
	}, nil
}

// EnqueueProcess enqueues a processing job. The record carries attempt 1;
// redeliveries bump the header through the retry manager.
func (p *Producer) EnqueueProcess(ctx domain.Context, payload domain.ProcessTaskPayload) (string, error) {
	if err := p.produce(ctx, TopicProcess, payload, 1); err != nil {
		return "", err
	}
	observability.EnqueueJob(jobTypeProcess)
	slog.Info("job enqueued",
		slog.String("job_id", payload.JobID),
		slog.String("topic", TopicProcess))
	return payload.JobID, nil
}

// Requeue re-publishes a job for the given delivery attempt.
func (p *Producer) Requeue(ctx domain.Context, payload domain.ProcessTaskPayload, attempt int) error {
	if err := p.produce(ctx, TopicProcess, payload, attempt); err != nil {
		return err
	}
	slog.Info("job requeued",
		slog.String("job_id", payload.JobID),
		slog.Int("attempt", attempt))
	return nil
}

// EnqueueDLQ publishes a dead-lettered job to the DLQ topic.
func (p *Producer) EnqueueDLQ(ctx domain.Context, rec DLQRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dlq record: %w", err)
	}
	if err := p.publish(ctx, TopicProcessDLQ, payloadHeaders(rec.Payload, rec.Attempt), rec.Payload.JobID, b); err != nil {
		return err
	}
	observability.JobsDLQTotal.WithLabelValues(jobTypeProcess).Inc()
	slog.Warn("job dead-lettered",
		slog.String("job_id", rec.Payload.JobID),
		slog.Int("attempt", rec.Attempt),
		slog.String("reason", rec.Reason))
	return nil
}

func (p *Producer) produce(ctx domain.Context, topic string, payload domain.ProcessTaskPayload, attempt int) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.publish(ctx, topic, payloadHeaders(payload, attempt), payload.JobID, b)
}

// publish produces one record inside its own transaction. The job id
// keys the record so all deliveries of a job land on one partition.
func (p *Producer) publish(ctx domain.Context, topic string, headers []kgo.RecordHeader, key string, value []byte) error {
	select {
	case p.txn <- struct{}{}:
		defer func() { <-p.txn }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	record := &kgo.Record{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
	}

	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}

	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping reports broker reachability; readiness checks use it.
func (p *Producer) Ping(ctx domain.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

func payloadHeaders(payload domain.ProcessTaskPayload, attempt int) []kgo.RecordHeader {
	return []kgo.RecordHeader{
		{Key: "job_id", Value: []byte(payload.JobID)},
		{Key: "tenant_id", Value: []byte(payload.TenantID)},
		{Key: "attempt", Value: []byte(strconv.Itoa(attempt))},
	}
}
