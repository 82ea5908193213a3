package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/registry"
)

type RemoveTransfer struct {
	Engine   ports.Engine
	Registry *registry.Registry
	Journal  ports.Journal
	Logger   *slog.Logger
	Now      func() time.Time
}

// Execute stops and discards the transfer in the engine, then forgets it.
// Success means the engine acknowledged the request, not that teardown has
// finished. If the engine refuses, the registry entry is kept.
func (uc RemoveTransfer) Execute(ctx context.Context, id domain.TransferID) (err error) {
	defer func() { observeCommand("remove", err) }()

	unlock := uc.Registry.LockCommands(id)
	defer unlock()

	info, ok := uc.Registry.Get(id)
	if !ok {
		return notFound(id)
	}

	if err := uc.Engine.Remove(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return wrapEngine(id, err)
	}

	if !uc.Registry.Remove(id) {
		return notFound(id)
	}

	loggerOrDefault(uc.Logger).Info("transfer removed",
		slog.Uint64("transferId", uint64(id)),
		slog.String("name", info.Name),
	)
	recordEvent(ctx, uc.Journal, uc.Logger, domain.LifecycleEvent{
		TransferID: id,
		Name:       info.Name,
		Action:     domain.ActionRemoved,
		Status:     info.Status,
		At:         nowFunc(uc.Now)(),
	})
	return nil
}
