package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConsumer reads delivery counter topics as part of a consumer group.
// Offsets are committed explicitly once the worker has applied a message.
type KafkaConsumer struct {
	mu     sync.Mutex
	cfg    kafka.ReaderConfig
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	cfg := kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	}
	return &KafkaConsumer{cfg: cfg, reader: kafka.NewReader(cfg)}, nil
}

// Poll fetches up to max messages without committing them, returning early
// once the topics go quiet for a short read window.
func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	reader := c.current()
	out := make([]Message, 0, max)
	for len(out) < max {
		readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
				return out, nil
			case ctx.Err() != nil:
				return out, ctx.Err()
			default:
				return out, fmt.Errorf("fetch delivery message: %w", err)
			}
		}
		out = append(out, Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       string(msg.Key),
			Payload:   msg.Value,
		})
	}
	return out, nil
}

func (c *KafkaConsumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	marks := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		marks = append(marks, kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset})
	}
	if err := c.current().CommitMessages(ctx, marks...); err != nil {
		return fmt.Errorf("commit delivery offsets: %w", err)
	}
	return nil
}

// Rewind replaces the group reader. The new member resumes from the group's
// committed offsets, which brings back every message fetched since.
func (c *KafkaConsumer) Rewind() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	closeErr := c.reader.Close()
	c.reader = kafka.NewReader(c.cfg)
	if closeErr != nil {
		return fmt.Errorf("close delivery reader: %w", closeErr)
	}
	return nil
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reader.Close()
}

func (c *KafkaConsumer) current() *kafka.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reader
}
