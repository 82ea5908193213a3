package ports

import (
	"context"

	"torrentsession/internal/domain"
)

type Journal interface {
	Record(ctx context.Context, event domain.LifecycleEvent) error
	ListRecent(ctx context.Context, limit int) ([]domain.LifecycleEvent, error)
}
