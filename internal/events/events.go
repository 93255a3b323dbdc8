// Package events delivers committed ledger events to downstream consumers.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/congo-pay/fundauth/internal/custody"
)

// LoggerPublisher writes events to the structured logger.
type LoggerPublisher struct {
	logger *slog.Logger
}

// NewLoggerPublisher constructs a logging publisher.
func NewLoggerPublisher(logger *slog.Logger) *LoggerPublisher {
	return &LoggerPublisher{logger: logger}
}

// Publish logs e at info level.
func (p *LoggerPublisher) Publish(_ context.Context, e custody.Event) error {
	if p == nil || p.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", e.Kind),
		slog.String("event_id", e.ID),
		slog.Int64("sequence", e.Sequence),
		slog.String("ledger", e.Ledger.Hex()),
		slog.String("counterparty", e.Counterparty.Hex()),
		slog.String("caller", e.Caller.Hex()),
		slog.String("amount", e.Amount.String()),
	}
	if e.Nonce != nil {
		attrs = append(attrs, slog.String("nonce", e.Nonce.Hex()))
	}
	p.logger.Info("ledger event", attrs...)
	return nil
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []custody.Publisher

// Publish implements custody.Publisher.
func (f Fanout) Publish(ctx context.Context, e custody.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
