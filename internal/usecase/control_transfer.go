package usecase

import (
	"context"
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/registry"
)

type PauseTransfer struct {
	Engine   ports.Engine
	Registry *registry.Registry
	Journal  ports.Journal
	Logger   *slog.Logger
	Now      func() time.Time
}

func (uc PauseTransfer) Execute(ctx context.Context, id domain.TransferID) (info domain.TransferInfo, err error) {
	defer func() { observeCommand("pause", err) }()
	return setStatus(ctx, transferControl{
		registry: uc.Registry,
		journal:  uc.Journal,
		logger:   uc.Logger,
		now:      uc.Now,
		call:     uc.Engine.Pause,
		status:   domain.TransferPaused,
		action:   domain.ActionPaused,
	}, id)
}

type ResumeTransfer struct {
	Engine   ports.Engine
	Registry *registry.Registry
	Journal  ports.Journal
	Logger   *slog.Logger
	Now      func() time.Time
}

func (uc ResumeTransfer) Execute(ctx context.Context, id domain.TransferID) (info domain.TransferInfo, err error) {
	defer func() { observeCommand("resume", err) }()
	return setStatus(ctx, transferControl{
		registry: uc.Registry,
		journal:  uc.Journal,
		logger:   uc.Logger,
		now:      uc.Now,
		call:     uc.Engine.Resume,
		status:   domain.TransferDownloading,
		action:   domain.ActionResumed,
	}, id)
}

type transferControl struct {
	registry *registry.Registry
	journal  ports.Journal
	logger   *slog.Logger
	now      func() time.Time
	call     func(ctx context.Context, id domain.TransferID) error
	status   domain.TransferStatus
	action   domain.LifecycleAction
}

// setStatus checks membership, calls the engine with the registry guard
// released, then records the commanded status. A command touches only the
// status and clears the ETA; progress fields stay alert-driven. The per-id
// command lock spans the engine call and the write, so the stored status
// always follows the last engine call.
func setStatus(ctx context.Context, c transferControl, id domain.TransferID) (domain.TransferInfo, error) {
	unlock := c.registry.LockCommands(id)
	defer unlock()

	if !c.registry.Contains(id) {
		return domain.TransferInfo{}, notFound(id)
	}

	if err := c.call(ctx, id); err != nil {
		return domain.TransferInfo{}, wrapEngine(id, err)
	}

	now := nowFunc(c.now)()
	var updated domain.TransferInfo
	ok := c.registry.Update(id, func(info *domain.TransferInfo) {
		info.Status = c.status
		// Speeds predate the command; the next alert re-estimates.
		info.ETA = domain.ETAUnknown
		info.UpdatedAt = now
		updated = *info
	})
	if !ok {
		// Removed while the engine call was in flight.
		return domain.TransferInfo{}, notFound(id)
	}

	loggerOrDefault(c.logger).Info("transfer "+string(c.action),
		slog.Uint64("transferId", uint64(id)),
		slog.String("status", string(updated.Status)),
	)
	recordEvent(ctx, c.journal, c.logger, domain.LifecycleEvent{
		TransferID: id,
		Name:       updated.Name,
		Action:     c.action,
		Status:     updated.Status,
		At:         now,
	})
	return updated, nil
}
