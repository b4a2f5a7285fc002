package bus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DocumentsStream is the Redis stream processed-document notifications go to.
const DocumentsStream = "stixkit:documents"

// RedisBus provides Redis Streams-based notifications
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
	stream string
	maxLen int64
}

// StreamMessage represents a message in a Redis Stream
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// DocumentMessage describes the outcome for one processed file
type DocumentMessage struct {
	RunID     string `json:"run_id"`
	Command   string `json:"command"`
	Path      string `json:"path"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Objects   int    `json:"objects"`
	Remapped  int    `json:"remapped"`
	Timestamp int64  `json:"timestamp"`
}

// StreamHandler is a function that processes stream messages
type StreamHandler func(ctx context.Context, message StreamMessage) error

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *zap.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisBus{
		client: client,
		logger: logger.With(zap.String("component", "redis-bus")),
		stream: DocumentsStream,
		maxLen: 100000,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishDocument publishes a notification to the documents stream
func (rb *RedisBus) PublishDocument(ctx context.Context, msg DocumentMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	fields := map[string]interface{}{
		"run_id":    msg.RunID,
		"command":   msg.Command,
		"path":      msg.Path,
		"status":    msg.Status,
		"error":     msg.Error,
		"objects":   msg.Objects,
		"remapped":  msg.Remapped,
		"timestamp": msg.Timestamp,
	}

	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rb.stream,
		MaxLen: rb.maxLen,
		Approx: true,
		Values: fields,
	})

	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish document: %w", err)
	}

	rb.logger.Debug("published document", zap.String("path", msg.Path), zap.String("id", result.Val()))
	return nil
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't exist
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	// Try to create the consumer group, ignore error if it already exists
	result := rb.client.XGroupCreateMkStream(ctx, stream, group, "0")
	if err := result.Err(); err != nil {
		if !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group %s for stream %s: %w", group, stream, err)
		}
	}

	rb.logger.Debug("consumer group ready", zap.String("stream", stream), zap.String("group", group))
	return nil
}

// ReadStream reads messages from a stream using consumer groups
func (rb *RedisBus) ReadStream(ctx context.Context, stream, group, consumer string, handler StreamHandler) error {
	// Ensure consumer group exists
	if err := rb.CreateConsumerGroup(ctx, stream, group); err != nil {
		return err
	}

	rb.logger.Info("starting stream reader",
		zap.String("stream", stream), zap.String("group", group), zap.String("consumer", consumer))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    1 * time.Second,
		})

		if err := result.Err(); err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.Warn("error reading stream", zap.String("stream", stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, s := range result.Val() {
			for _, message := range s.Messages {
				streamMsg := StreamMessage{
					ID:     message.ID,
					Fields: make(map[string]string),
				}
				for key, value := range message.Values {
					if strValue, ok := value.(string); ok {
						streamMsg.Fields[key] = strValue
					}
				}

				if err := handler(ctx, streamMsg); err != nil {
					rb.logger.Warn("error processing message", zap.String("id", message.ID), zap.Error(err))
					continue
				}

				if err := rb.client.XAck(ctx, s.Stream, group, message.ID).Err(); err != nil {
					rb.logger.Warn("error acknowledging message", zap.String("id", message.ID), zap.Error(err))
				}
			}
		}
	}
}

// ReadDocumentsStream reads from the documents stream
func (rb *RedisBus) ReadDocumentsStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg DocumentMessage) error) error {
	streamHandler := func(ctx context.Context, message StreamMessage) error {
		return handler(ctx, decodeDocumentMessage(message.Fields))
	}
	return rb.ReadStream(ctx, rb.stream, group, consumer, streamHandler)
}

func decodeDocumentMessage(fields map[string]string) DocumentMessage {
	msg := DocumentMessage{
		RunID:   fields["run_id"],
		Command: fields["command"],
		Path:    fields["path"],
		Status:  fields["status"],
		Error:   fields["error"],
	}
	msg.Objects, _ = strconv.Atoi(fields["objects"])
	msg.Remapped, _ = strconv.Atoi(fields["remapped"])
	msg.Timestamp, _ = strconv.ParseInt(fields["timestamp"], 10, 64)
	return msg
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// Clear deletes the documents stream
func (rb *RedisBus) Clear(ctx context.Context) error {
	if err := rb.client.Del(ctx, rb.stream).Err(); err != nil {
		return fmt.Errorf("failed to delete stream %s: %w", rb.stream, err)
	}
	return nil
}

// GetStats returns basic statistics about the documents stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"type":   "redis",
		"stream": rb.stream,
	}

	length, err := rb.client.XLen(ctx, rb.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get stream length for %s: %w", rb.stream, err)
	}
	stats["length"] = length

	if groups, err := rb.client.XInfoGroups(ctx, rb.stream).Result(); err == nil {
		stats["consumer_groups"] = len(groups)
	}

	return stats, nil
}
