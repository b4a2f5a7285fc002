package bus

import (
	"context"

	"go.uber.org/zap"
)

// Bus defines the interface for notification bus implementations
type Bus interface {
	// PublishDocument publishes a processed-document notification
	PublishDocument(ctx context.Context, msg DocumentMessage) error

	// ReadDocumentsStream consumes document notifications until ctx is done
	ReadDocumentsStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg DocumentMessage) error) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Clear removes all published notifications
	Clear(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or Redis is unreachable, returns a NullBus
func NewBus(redisURL string, logger *zap.Logger) Bus {
	if logger == nil {
		logger = zap.NewNop()
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	// Try to create Redis bus
	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}

	// Fall back to null bus if Redis fails
	logger.Debug("redis unavailable, notifications disabled", zap.Error(err))
	return NewNullBus(logger)
}
