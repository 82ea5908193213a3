package domain

import "math"

// TransferStats is the engine's view of one transfer at the time an alert
// was emitted. Progress is a fraction in [0, 1].
type TransferStats struct {
	Progress      float64
	Downloaded    int64
	Total         int64
	Peers         int
	Seeding       bool
	DownloadSpeed int64
	UploadSpeed   int64
}

// Alert is a periodic progress event emitted by the transfer engine.
type Alert struct {
	ID    TransferID
	Stats TransferStats
}

// Valid reports whether the alert carries usable values. Invalid alerts are
// dropped by the consumer.
func (a Alert) Valid() bool {
	if a.ID == 0 {
		return false
	}
	s := a.Stats
	if math.IsNaN(s.Progress) || math.IsInf(s.Progress, 0) {
		return false
	}
	if s.Downloaded < 0 || s.Total < 0 || s.Peers < 0 {
		return false
	}
	if s.DownloadSpeed < 0 || s.UploadSpeed < 0 {
		return false
	}
	return true
}
