package bus

import (
	"context"

	"go.uber.org/zap"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *zap.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *zap.Logger) *NullBus {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NullBus{
		logger: logger.With(zap.String("component", "null-bus")),
	}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishDocument logs the notification but doesn't actually publish it
func (nb *NullBus) PublishDocument(ctx context.Context, msg DocumentMessage) error {
	nb.logger.Debug("would publish document (redis disabled)",
		zap.String("path", msg.Path), zap.String("status", msg.Status))
	return nil
}

// ReadDocumentsStream blocks until the context is cancelled
func (nb *NullBus) ReadDocumentsStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg DocumentMessage) error) error {
	nb.logger.Debug("would read documents stream (redis disabled)",
		zap.String("group", group), zap.String("consumer", consumer))
	<-ctx.Done()
	return ctx.Err()
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}

// Clear is a no-op for null bus
func (nb *NullBus) Clear(ctx context.Context) error {
	return nil
}
