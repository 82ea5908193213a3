package main

import (
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.raw); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestObserveTransfers(t *testing.T) {
	observeTransfers([]domain.TransferInfo{
		{ID: 1, Status: domain.TransferDownloading, DownloadSpeed: 100, UploadSpeed: 10, Peers: 3},
		{ID: 2, Status: domain.TransferDownloading, DownloadSpeed: 50, Peers: 1},
		{ID: 3, Status: domain.TransferSeeding, UploadSpeed: 5, Peers: 2},
	})

	if got := testutil.ToFloat64(metrics.TransfersTracked); got != 3 {
		t.Fatalf("tracked = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.TransfersByStatus.WithLabelValues("downloading")); got != 2 {
		t.Fatalf("downloading = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.TransfersByStatus.WithLabelValues("paused")); got != 0 {
		t.Fatalf("paused = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.DownloadSpeedBytes); got != 150 {
		t.Fatalf("download speed = %v, want 150", got)
	}
	if got := testutil.ToFloat64(metrics.UploadSpeedBytes); got != 15 {
		t.Fatalf("upload speed = %v, want 15", got)
	}
	if got := testutil.ToFloat64(metrics.PeersConnected); got != 6 {
		t.Fatalf("peers = %v, want 6", got)
	}

	observeTransfers(nil)
	if got := testutil.ToFloat64(metrics.TransfersByStatus.WithLabelValues("downloading")); got != 0 {
		t.Fatalf("downloading after reset = %v, want 0", got)
	}
}
