package ports

import (
	"context"

	"torrentsession/internal/domain"
)

// CreateResult carries what the engine learned about a transfer while
// accepting it. Both fields may be zero when metadata is not yet known.
type CreateResult struct {
	Name       string
	TotalBytes int64
}

// Engine is the transfer engine that runs the wire protocol. Every method
// except Alerts may block on network or disk I/O.
type Engine interface {
	Create(ctx context.Context, id domain.TransferID, src domain.TransferSource) (CreateResult, error)
	Pause(ctx context.Context, id domain.TransferID) error
	Resume(ctx context.Context, id domain.TransferID) error
	Remove(ctx context.Context, id domain.TransferID) error
	// Alerts returns the engine's progress stream. It must have exactly one
	// reader and is closed by Close.
	Alerts() <-chan domain.Alert
	Close() error
}
