package redpanda

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Handler runs one delivered job. A nil return acks the record; an error
// nacks it into the retry flow. *pipeline.Pipeline is the production
// handler.
type Handler interface {
	Run(ctx domain.Context, payload domain.ProcessTaskPayload) error
}

// minWorkers is the floor of the worker pool; the pool grows toward
// CONSUMER_MAX_CONCURRENCY under backlog and shrinks back when idle.
const minWorkers = 1

// Consumer polls the processing topic and fans records out to a worker
// pool. Offsets are committed per record after the handler (or the retry
// manager) has taken ownership, so an unsettled record is redelivered.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	retry   *RetryManager
	cfg     config.Config

	groupID string
	topic   string

	maxWorkers int
	active     atomic.Int32
	jobQueue   chan *kgo.Record

	poller   *AdaptivePoller
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewConsumer constructs a Consumer on the resume processing topic.
func NewConsumer(brokers []string, groupID string, handler Handler, retry *RetryManager, cfg config.Config) (*Consumer, error) {
	return NewConsumerWithTopic(brokers, groupID, handler, retry, cfg, TopicProcess)
}

// NewConsumerWithTopic constructs a Consumer on a custom topic so tests
// can isolate themselves.
func NewConsumerWithTopic(brokers []string, groupID string, handler Handler, retry *RetryManager, cfg config.Config, topic string) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	if groupID == "" {
		return nil, errNoGroupID
	}

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(
			kotel.TracerProvider(otel.GetTracerProvider()),
		)),
	)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		// Commits are explicit per record once the handler settles it.
		kgo.DisableAutoCommit(),
		kgo.WithHooks(kotelService.Hooks()...),

		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.RebalanceTimeout(10*time.Second),

		kgo.FetchMaxBytes(10*1024*1024),
		kgo.FetchMaxWait(5*time.Second),
		kgo.FetchMaxPartitionBytes(2*1024*1024),
	)
	if err != nil {
		return nil, err
	}

	if err := createTopicIfNotExists(context.Background(), client, topic, processPartitions, 1); err != nil {
		slog.Warn("ensure consume topic", slog.String("topic", topic), slog.Any("error", err))
	}

	maxWorkers := cfg.ConsumerMaxConcurrency
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}

	slog.Info("redpanda consumer created",
		slog.String("group_id", groupID),
		slog.String("topic", topic),
		slog.Int("max_workers", maxWorkers))

	return &Consumer{
		client:     client,
		handler:    handler,
		retry:      retry,
		cfg:        cfg,
		groupID:    groupID,
		topic:      topic,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *kgo.Record, maxWorkers*2),
		poller:     NewAdaptivePoller(100 * time.Millisecond),
		shutdown:   make(chan struct{}),
	}, nil
}

// Start runs the fetch loop and worker pool until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("starting redpanda consumer",
		slog.String("group_id", c.groupID),
		slog.String("topic", c.topic))

	for i := 0; i < minWorkers; i++ {
		c.active.Add(1)
		go c.worker(ctx, i, true)
	}
	go c.fetchLoop(ctx)
	go c.scaleLoop(ctx)

	<-ctx.Done()
	c.stop()
	slog.Info("redpanda consumer shutting down")
	return ctx.Err()
}

func (c *Consumer) stop() {
	c.stopOnce.Do(func() { close(c.shutdown) })
}

// fetchLoop polls the broker and queues records for the workers. Poll
// cadence follows the adaptive poller: fast while healthy, backed off
// after failures.
func (c *Consumer) fetchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if ctx.Err() != nil {
					return
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			c.poller.RecordFailure()
			c.sleep(ctx, c.poller.GetNextInterval())
			continue
		}

		c.poller.RecordSuccess()
		if fetches.NumRecords() == 0 {
			c.sleep(ctx, c.poller.GetNextInterval())
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			select {
			case c.jobQueue <- record:
			case <-ctx.Done():
			case <-c.shutdown:
			}
		})
	}
}

// scaleLoop grows the worker pool while a backlog exists. Transient
// workers retire themselves after WORKER_IDLE_TIMEOUT without work.
func (c *Consumer) scaleLoop(ctx context.Context) {
	interval := c.cfg.WorkerScalingInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			backlog := len(c.jobQueue)
			active := int(c.active.Load())
			if backlog == 0 || active >= c.maxWorkers {
				continue
			}
			add := min(backlog, c.maxWorkers-active)
			for i := 0; i < add; i++ {
				c.active.Add(1)
				go c.worker(ctx, active+i, false)
			}
			slog.Info("scaled up workers",
				slog.Int("added", add),
				slog.Int("backlog", backlog),
				slog.Int("active", active+add))
		}
	}
}

func (c *Consumer) worker(ctx context.Context, id int, persistent bool) {
	defer c.active.Add(-1)

	idle := c.cfg.WorkerIdleTimeout
	if idle <= 0 {
		idle = 30 * time.Second
	}

	for {
		if persistent {
			select {
			case <-ctx.Done():
				return
			case <-c.shutdown:
				return
			case record := <-c.jobQueue:
				c.handle(ctx, record)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case record := <-c.jobQueue:
			c.handle(ctx, record)
		case <-time.After(idle):
			slog.Debug("idle worker retiring", slog.Int("worker_id", id))
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	if record == nil {
		return
	}
	if c.processRecord(ctx, record) {
		c.commit(ctx, record)
	}
}

// processRecord settles one delivery and reports whether its offset may
// be committed. It never re-runs the handler itself: redelivery is the
// retry manager's job.
func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) bool {
	tracer := otel.Tracer("queue.consumer")
	ctx, span := tracer.Start(ctx, "ProcessResumeJob")
	defer span.End()

	attempt := attemptFromHeaders(record)

	var payload domain.ProcessTaskPayload
	if err := json.Unmarshal(record.Value, &payload); err != nil {
		return c.deadLetter(ctx, payloadFromHeaders(record), attempt, "malformed payload: "+err.Error(), record)
	}

	if attempt > c.cfg.JobMaxAttempts {
		slog.Warn("refusing delivery beyond attempt budget",
			slog.String("job_id", payload.JobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.JobMaxAttempts))
		return c.deadLetter(ctx, payload, attempt, "delivery beyond attempt budget", record)
	}

	slog.Info("processing job record",
		slog.String("job_id", payload.JobID),
		slog.Int("attempt", attempt),
		slog.Int64("offset", record.Offset),
		slog.Int("partition", int(record.Partition)))

	err := c.handler.Run(ctx, payload)
	if err == nil {
		return true
	}

	if c.retry == nil {
		slog.Error("job failed with no retry manager, leaving record uncommitted",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err))
		return false
	}
	if rErr := c.retry.HandleFailure(ctx, payload, attempt, err); rErr != nil {
		slog.Error("retry manager could not take over failed job",
			slog.String("job_id", payload.JobID),
			slog.Any("error", rErr))
		return false
	}
	return true
}

// deadLetter routes an unprocessable record to the DLQ. Records carrying
// no job id at all are dropped outright; nothing downstream could settle
// them anyway.
func (c *Consumer) deadLetter(ctx context.Context, payload domain.ProcessTaskPayload, attempt int, reason string, record *kgo.Record) bool {
	if payload.JobID == "" {
		slog.Error("dropping unattributable record",
			slog.String("reason", reason),
			slog.Int64("offset", record.Offset),
			slog.Int("partition", int(record.Partition)))
		return true
	}
	if c.retry == nil {
		return false
	}
	if err := c.retry.MoveToDLQ(ctx, payload, attempt, reason); err != nil {
		slog.Error("dead-lettering failed",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err))
		return false
	}
	return true
}

func (c *Consumer) commit(ctx context.Context, record *kgo.Record) {
	if err := c.client.CommitRecords(ctx, record); err != nil {
		// Uncommitted offsets replay after a rebalance; the pipeline's
		// terminal-state guard absorbs the duplicate.
		slog.Error("commit record",
			slog.Int64("offset", record.Offset),
			slog.Int("partition", int(record.Partition)),
			slog.Any("error", err))
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-c.shutdown:
	}
}

// Close closes the consumer client.
func (c *Consumer) Close() error {
	c.stop()
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// attemptFromHeaders reads the delivery attempt header; absent or
// unparsable headers count as the first delivery.
func attemptFromHeaders(record *kgo.Record) int {
	for _, h := range record.Headers {
		if h.Key != "attempt" {
			continue
		}
		if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// payloadFromHeaders recovers routing ids from headers when the record
// body is unusable.
func payloadFromHeaders(record *kgo.Record) domain.ProcessTaskPayload {
	var p domain.ProcessTaskPayload
	for _, h := range record.Headers {
		switch h.Key {
		case "job_id":
			p.JobID = string(h.Value)
		case "tenant_id":
			p.TenantID = string(h.Value)
		}
	}
	return p
}
