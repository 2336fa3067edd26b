// Package signal keeps a history of published consensus signals.
package signal

import (
	"context"
	"time"

	"github.com/newthinker/vanguard/internal/core"
)

// Store defines the interface for consensus history.
type Store interface {
	// SaveBatch appends one tick's consensus batch.
	SaveBatch(ctx context.Context, batch []core.ConsensusSignal) error

	// GetByID retrieves a signal by its ID.
	GetByID(ctx context.Context, id string) (*core.ConsensusSignal, error)

	// List retrieves signals matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.ConsensusSignal, error)

	// Count returns the number of signals matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing signals.
type ListFilter struct {
	Symbol string
	Action core.Action
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
