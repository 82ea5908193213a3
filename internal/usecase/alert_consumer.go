package usecase

import (
	"context"
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
	"torrentsession/internal/registry"
)

// AlertConsumer is the single reader of the engine's alert stream. It is the
// only writer of progress, byte counters, peers and speeds.
type AlertConsumer struct {
	Alerts   <-chan domain.Alert
	Registry *registry.Registry
	Logger   *slog.Logger
	Now      func() time.Time
}

// Run blocks until the alert channel is closed or ctx is done. After it
// returns the registry keeps serving the last applied state.
func (c AlertConsumer) Run(ctx context.Context) {
	logger := loggerOrDefault(c.Logger)
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-c.Alerts:
			if !ok {
				logger.Info("alert stream closed")
				return
			}
			c.apply(alert)
		}
	}
}

func (c AlertConsumer) apply(alert domain.Alert) bool {
	if !alert.Valid() {
		metrics.AlertsDroppedTotal.WithLabelValues("malformed").Inc()
		loggerOrDefault(c.Logger).Debug("alert dropped: malformed",
			slog.Uint64("transferId", uint64(alert.ID)),
		)
		return false
	}

	now := nowFunc(c.Now)()
	found := c.Registry.Update(alert.ID, func(info *domain.TransferInfo) {
		applyStats(info, alert.Stats, now)
	})
	if !found {
		metrics.AlertsDroppedTotal.WithLabelValues("unknown_transfer").Inc()
		loggerOrDefault(c.Logger).Debug("alert dropped: unknown transfer",
			slog.Uint64("transferId", uint64(alert.ID)),
		)
		return false
	}
	metrics.AlertsAppliedTotal.Inc()
	return true
}

// applyStats folds one alert into a registry entry. A paused entry keeps its
// status: the pause command is newer than whatever activity the alert saw.
func applyStats(info *domain.TransferInfo, s domain.TransferStats, now time.Time) {
	total := s.Total
	if total == 0 {
		// Metadata may not have reached the engine's stats yet.
		total = info.Total
	}
	downloaded := s.Downloaded
	if downloaded > total {
		downloaded = total
	}

	progress := clampPercent(s.Progress * 100)
	if s.Seeding {
		progress = 100
		downloaded = total
	}
	if progress < info.Progress {
		progress = info.Progress
	}

	info.Progress = progress
	info.Downloaded = downloaded
	info.Total = total
	info.Peers = s.Peers
	info.DownloadSpeed = s.DownloadSpeed
	info.UploadSpeed = s.UploadSpeed
	info.UpdatedAt = now

	if info.Status != domain.TransferPaused {
		if s.Seeding {
			info.Status = domain.TransferSeeding
		} else {
			info.Status = domain.TransferDownloading
		}
	}
	info.ETA = estimateETA(*info)
}

// estimateETA returns whole seconds to completion at the current download
// speed, rounded up.
func estimateETA(info domain.TransferInfo) int64 {
	if info.Status != domain.TransferDownloading || info.Total <= 0 {
		return domain.ETAUnknown
	}
	remaining := info.Total - info.Downloaded
	if remaining <= 0 {
		return 0
	}
	speed := info.DownloadSpeed
	if speed <= 0 {
		return domain.ETAUnknown
	}
	eta := remaining / speed
	if remaining%speed != 0 {
		eta++
	}
	return eta
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
