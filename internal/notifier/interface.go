// Package notifier publishes consensus batches to external sinks.
package notifier

import (
	"context"

	"github.com/newthinker/vanguard/internal/core"
)

// Notifier defines the interface for consensus signal sinks.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Publish delivers one tick's consensus batch.
	Publish(ctx context.Context, signals []core.ConsensusSignal) error
}
