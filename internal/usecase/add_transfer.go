package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/registry"
)

type AddTransfer struct {
	Engine   ports.Engine
	Registry *registry.Registry
	Journal  ports.Journal
	Logger   *slog.Logger
	Now      func() time.Time
}

type AddTransferInput struct {
	Name   string
	Source domain.TransferSource
}

func (uc AddTransfer) Execute(ctx context.Context, input AddTransferInput) (info domain.TransferInfo, err error) {
	defer func() { observeCommand("add", err) }()

	if err := validateSource(input.Source); err != nil {
		return domain.TransferInfo{}, err
	}

	id, err := uc.Registry.Reserve()
	if err != nil {
		return domain.TransferInfo{}, err
	}

	// The reserved id is burned if the engine rejects the transfer; ids only
	// need to be unique and increasing, not dense.
	result, err := uc.Engine.Create(ctx, id, input.Source)
	if err != nil {
		return domain.TransferInfo{}, wrapCreation(input.Source, err)
	}

	now := nowFunc(uc.Now)()
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.TrimSpace(result.Name)
	}
	if name == "" {
		name = deriveName(input.Source)
	}
	total := result.TotalBytes
	if total < 0 {
		total = 0
	}

	info = domain.TransferInfo{
		ID:        id,
		Name:      name,
		Status:    domain.TransferDownloading,
		Total:     total,
		ETA:       domain.ETAUnknown,
		AddedAt:   now,
		UpdatedAt: now,
	}

	if err := uc.Registry.Insert(info); err != nil {
		// Cannot happen with reserved ids; undo the engine side so it does
		// not keep running a transfer nobody can address.
		if rmErr := uc.Engine.Remove(context.WithoutCancel(ctx), id); rmErr != nil {
			loggerOrDefault(uc.Logger).Warn("engine cleanup after failed insert",
				slog.Uint64("transferId", uint64(id)),
				slog.String("error", rmErr.Error()),
			)
		}
		return domain.TransferInfo{}, fmt.Errorf("register transfer %d: %w", id, err)
	}

	loggerOrDefault(uc.Logger).Info("transfer added",
		slog.Uint64("transferId", uint64(id)),
		slog.String("name", name),
	)
	recordEvent(ctx, uc.Journal, uc.Logger, domain.LifecycleEvent{
		TransferID: id,
		Name:       name,
		Action:     domain.ActionAdded,
		Status:     info.Status,
		Source:     input.Source.String(),
		At:         now,
	})
	return info, nil
}

func validateSource(src domain.TransferSource) error {
	hasMagnet := strings.TrimSpace(src.Magnet) != ""
	hasTorrent := strings.TrimSpace(src.Torrent) != ""
	if hasMagnet == hasTorrent {
		return ErrInvalidSource
	}
	return nil
}

// deriveName falls back to the magnet display name or the metainfo file's
// base name when neither the caller nor the engine supplied one.
func deriveName(src domain.TransferSource) string {
	if magnet := strings.TrimSpace(src.Magnet); magnet != "" {
		if dn := magnetDisplayName(magnet); dn != "" {
			return dn
		}
		if ih := magnetInfoHash(magnet); ih != "" {
			return ih
		}
		return magnet
	}
	base := filepath.Base(strings.TrimSpace(src.Torrent))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func magnetDisplayName(magnet string) string {
	query := magnetQuery(magnet)
	if query == nil {
		return ""
	}
	return strings.TrimSpace(query.Get("dn"))
}

func magnetInfoHash(magnet string) string {
	query := magnetQuery(magnet)
	if query == nil {
		return ""
	}
	for _, xt := range query["xt"] {
		lower := strings.ToLower(xt)
		if strings.HasPrefix(lower, "urn:btih:") {
			return xt[len("urn:btih:"):]
		}
	}
	return ""
}

func magnetQuery(magnet string) url.Values {
	idx := strings.Index(magnet, "?")
	if idx == -1 {
		return nil
	}
	query, err := url.ParseQuery(magnet[idx+1:])
	if err != nil {
		return nil
	}
	return query
}
