package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// dlqErrorCode is the stable error_code written on jobs settled through
// the dead letter topic.
const dlqErrorCode = "DLQ"

// DLQConsumer drains the dead letter topic and settles each job: the row
// goes to failed with error_code=DLQ, the candidate is marked failed and
// the terminal webhook fires. Replaying a dead-lettered job is an
// operator action through the admin surface.
type DLQConsumer struct {
	client     *kgo.Client
	jobs       domain.JobRepository
	candidates domain.CandidateRepository
	webhooks   domain.WebhookEmitter

	groupID  string
	poller   *AdaptivePoller
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewDLQConsumer constructs a DLQConsumer.
func NewDLQConsumer(brokers []string, groupID string, jobs domain.JobRepository, candidates domain.CandidateRepository, webhooks domain.WebhookEmitter) (*DLQConsumer, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	if groupID == "" {
		return nil, errNoGroupID
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicProcessDLQ),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		kgo.DisableAutoCommit(),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.FetchMaxWait(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("dlq consumer client: %w", err)
	}

	slog.Info("dlq consumer created", slog.String("group_id", groupID))
	return &DLQConsumer{
		client:     client,
		jobs:       jobs,
		candidates: candidates,
		webhooks:   webhooks,
		groupID:    groupID,
		poller:     NewAdaptivePoller(time.Second),
		shutdown:   make(chan struct{}),
	}, nil
}

// Start drains the DLQ until ctx is canceled.
func (dc *DLQConsumer) Start(ctx context.Context) error {
	slog.Info("starting dlq consumer", slog.String("group_id", dc.groupID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-dc.shutdown:
			return nil
		default:
		}

		fetches := dc.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("dlq fetch error",
					slog.String("topic", fe.Topic),
					slog.Any("error", fe.Err))
			}
			dc.poller.RecordFailure()
			dc.sleep(ctx, dc.poller.GetNextInterval())
			continue
		}

		dc.poller.RecordSuccess()
		if fetches.NumRecords() == 0 {
			dc.sleep(ctx, dc.poller.GetNextInterval())
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			if dc.settle(ctx, record) {
				if err := dc.client.CommitRecords(ctx, record); err != nil {
					slog.Error("dlq commit record",
						slog.Int64("offset", record.Offset),
						slog.Any("error", err))
				}
			}
		})
	}
}

// settle marks one dead-lettered job failed and reports whether the
// record may be committed.
func (dc *DLQConsumer) settle(ctx context.Context, record *kgo.Record) bool {
	var rec DLQRecord
	if err := json.Unmarshal(record.Value, &rec); err != nil {
		slog.Error("undecodable dlq record dropped",
			slog.Int64("offset", record.Offset),
			slog.Any("error", err))
		return true
	}

	jobID := rec.Payload.JobID
	job, err := dc.jobs.GetAny(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("dlq record for unknown job dropped", slog.String("job_id", jobID))
			return true
		}
		slog.Error("dlq job lookup failed, record stays for redelivery",
			slog.String("job_id", jobID),
			slog.Any("error", err))
		return false
	}
	if job.Status.Terminal() {
		slog.Info("dlq record for settled job dropped",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)))
		return true
	}

	code := dlqErrorCode
	msg := rec.Reason
	if msg == "" {
		msg = "delivery budget exhausted"
	}
	if err := dc.jobs.UpdateStatus(ctx, jobID, domain.JobFailed, &code, &msg); err != nil {
		slog.Error("dlq job settle failed, record stays for redelivery",
			slog.String("job_id", jobID),
			slog.Any("error", err))
		return false
	}
	if err := dc.candidates.MarkFailed(ctx, job.TenantID, job.CandidateID); err != nil {
		slog.Error("dlq candidate settle failed",
			slog.String("job_id", jobID),
			slog.String("candidate_id", job.CandidateID),
			slog.Any("error", err))
	}

	if dc.webhooks != nil {
		event := domain.WebhookEvent{
			JobID:    jobID,
			TenantID: job.TenantID,
			Status:   domain.WebhookFailed,
			Error:    msg,
			Result:   &domain.WebhookResult{CandidateID: job.CandidateID},
		}
		if err := dc.webhooks.Emit(ctx, event); err != nil {
			slog.Warn("dlq terminal webhook failed",
				slog.String("job_id", jobID),
				slog.Any("error", err))
		}
	}

	slog.Warn("job settled from dlq",
		slog.String("job_id", jobID),
		slog.Int("attempt", rec.Attempt),
		slog.String("reason", msg))
	return true
}

func (dc *DLQConsumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-dc.shutdown:
	}
}

// Stop shuts the DLQ consumer down.
func (dc *DLQConsumer) Stop() {
	dc.stopOnce.Do(func() { close(dc.shutdown) })
	dc.client.Close()
}
