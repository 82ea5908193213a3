package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TransferID identifies a transfer for the lifetime of the process. Ids are
// allocated by the registry and are never handed out twice.
type TransferID uint64

func (id TransferID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func ParseTransferID(raw string) (TransferID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("transfer id is required")
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid transfer id: " + raw)
	}
	if parsed == 0 {
		return 0, errors.New("transfer id must be positive")
	}
	return TransferID(parsed), nil
}

type TransferStatus string

const (
	TransferDownloading TransferStatus = "downloading"
	TransferPaused      TransferStatus = "paused"
	TransferSeeding     TransferStatus = "seeding"
)

// TransferSource is either a magnet URI or a path to a metainfo file.
type TransferSource struct {
	Magnet  string `json:"magnet,omitempty"`
	Torrent string `json:"torrent,omitempty"`
}

func (s TransferSource) String() string {
	if m := strings.TrimSpace(s.Magnet); m != "" {
		return m
	}
	return strings.TrimSpace(s.Torrent)
}

// ETAUnknown is the TransferInfo.ETA of a transfer with no completion
// estimate. Otherwise ETA is whole seconds to completion.
const ETAUnknown int64 = -1

type TransferInfo struct {
	ID            TransferID     `json:"id"`
	Name          string         `json:"name"`
	Status        TransferStatus `json:"status"`
	Progress      float64        `json:"progress"`
	Downloaded    int64          `json:"downloaded"`
	Total         int64          `json:"total"`
	Peers         int            `json:"peers"`
	DownloadSpeed int64          `json:"downloadSpeed"`
	UploadSpeed   int64          `json:"uploadSpeed"`
	ETA           int64          `json:"eta"`
	AddedAt       time.Time      `json:"addedAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Validate checks domain invariants for TransferInfo.
func (t TransferInfo) Validate() error {
	if t.ID == 0 {
		return errors.New("transfer id is required")
	}
	if t.Progress < 0 || t.Progress > 100 {
		return errors.New("progress must be within [0, 100]")
	}
	if t.Downloaded < 0 || t.Total < 0 {
		return errors.New("byte counters must not be negative")
	}
	if t.Downloaded > t.Total {
		return errors.New("downloaded must not exceed total")
	}
	if t.Peers < 0 {
		return errors.New("peers must not be negative")
	}
	if t.ETA < ETAUnknown {
		return errors.New("eta must be non-negative or ETAUnknown")
	}
	switch t.Status {
	case TransferDownloading, TransferPaused, TransferSeeding:
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(t.Status))
	}
	return nil
}
