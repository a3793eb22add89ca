package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

var (
	errNoBrokers = errors.New("no seed brokers provided")
	errNoGroupID = errors.New("missing required group id")
)

const (
	// TopicProcess carries resume processing jobs. Records are keyed by
	// job id so redeliveries of the same job stay on one partition.
	TopicProcess = "resume-process"
	// TopicProcessDLQ receives jobs whose delivery budget is exhausted.
	TopicProcessDLQ = "resume-process-dlq"
)

const (
	processPartitions = 8
	dlqPartitions     = 1
)

// kafkaErrTopicAlreadyExists is error code 36 in the Kafka protocol.
const kafkaErrTopicAlreadyExists = 36

// createTopicIfNotExists creates a topic through the admin API, treating
// "topic already exists" as success so that producer and consumer can
// both race on startup.
func createTopicIfNotExists(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if partitions <= 0 || replicationFactor <= 0 {
		return fmt.Errorf("partitions and replication factor must be positive")
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("create topics request: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}

	for _, t := range createResp.Topics {
		if t.ErrorCode == 0 {
			slog.Info("topic created",
				slog.String("topic", t.Topic),
				slog.Int("partitions", int(partitions)))
			continue
		}
		if t.ErrorCode == kafkaErrTopicAlreadyExists {
			continue
		}
		msg := ""
		if t.ErrorMessage != nil {
			msg = *t.ErrorMessage
		}
		return fmt.Errorf("create topic %s: %s (code %d)", t.Topic, msg, t.ErrorCode)
	}
	return nil
}

// ensureTopics creates the processing and DLQ topics if they are absent.
// Failures are logged, not returned: the broker may forbid topic
// auto-creation and still have both topics provisioned out of band.
func ensureTopics(ctx context.Context, client *kgo.Client) {
	if err := createTopicIfNotExists(ctx, client, TopicProcess, processPartitions, 1); err != nil {
		slog.Warn("ensure process topic", slog.String("topic", TopicProcess), slog.Any("error", err))
	}
	if err := createTopicIfNotExists(ctx, client, TopicProcessDLQ, dlqPartitions, 1); err != nil {
		slog.Warn("ensure dlq topic", slog.String("topic", TopicProcessDLQ), slog.Any("error", err))
	}
}
