package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/registry"
)

func TestAddTransfer(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := newCoordinator()
	c.engine.createResult = ports.CreateResult{Name: "ubuntu-24.04.iso", TotalBytes: 4 << 30}
	c.add.Now = func() time.Time { return now }

	info, err := c.add.Execute(context.Background(), AddTransferInput{
		Name:   "Ubuntu ISO",
		Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if info.ID != 1 {
		t.Fatalf("id = %d, want 1", info.ID)
	}
	if info.Name != "Ubuntu ISO" {
		t.Fatalf("name = %q", info.Name)
	}
	if info.Status != domain.TransferDownloading || info.Progress != 0 || info.Peers != 0 {
		t.Fatalf("unexpected initial state: %+v", info)
	}
	if info.Total != 4<<30 || info.Downloaded != 0 {
		t.Fatalf("unexpected counters: %+v", info)
	}
	if info.AddedAt != now || info.UpdatedAt != now {
		t.Fatalf("timestamps not set: %+v", info)
	}

	stored, err := c.get.Execute(context.Background(), info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != info {
		t.Fatalf("stored = %+v, want %+v", stored, info)
	}
	if created, _, _, _ := c.engine.calls(); created != 1 {
		t.Fatalf("engine create calls = %d", created)
	}
	if c.engine.created[0] != info.ID {
		t.Fatalf("engine got id %d, want %d", c.engine.created[0], info.ID)
	}
	if got := c.journal.actions(); len(got) != 1 || got[0] != domain.ActionAdded {
		t.Fatalf("journal actions = %v", got)
	}
}

func TestAddTransferNameFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		input      AddTransferInput
		engineName string
		want       string
	}{
		{"engine name", AddTransferInput{Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc"}}, "Fedora Live", "Fedora Live"},
		{"magnet dn", AddTransferInput{Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc&dn=Sintel+2010"}}, "", "Sintel 2010"},
		{"magnet infohash", AddTransferInput{Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:ABC123"}}, "", "ABC123"},
		{"metainfo file", AddTransferInput{Source: domain.TransferSource{Torrent: "/tmp/uploads/debian-12.torrent"}}, "", "debian-12"},
		{"caller name wins", AddTransferInput{Name: "  mine  ", Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc&dn=x"}}, "engine", "mine"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCoordinator()
			c.engine.createResult = ports.CreateResult{Name: tc.engineName}
			info, err := c.add.Execute(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if info.Name != tc.want {
				t.Fatalf("name = %q, want %q", info.Name, tc.want)
			}
		})
	}
}

func TestAddTransferInvalidSource(t *testing.T) {
	tests := []struct {
		name string
		src  domain.TransferSource
	}{
		{"empty", domain.TransferSource{}},
		{"whitespace", domain.TransferSource{Magnet: "  "}},
		{"both", domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc", Torrent: "/tmp/a.torrent"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCoordinator()
			_, err := c.add.Execute(context.Background(), AddTransferInput{Source: tc.src})
			if !errors.Is(err, ErrInvalidSource) || !errors.Is(err, ErrCreation) {
				t.Fatalf("expected invalid source creation error, got %v", err)
			}
			if created, _, _, _ := c.engine.calls(); created != 0 {
				t.Fatalf("engine must not be called for invalid source")
			}
			if c.registry.Len() != 0 {
				t.Fatalf("registry mutated")
			}
		})
	}
}

func TestAddTransferEngineFailureLeavesRegistryUntouched(t *testing.T) {
	c := newCoordinator()
	engineErr := errors.New("malformed metainfo")
	c.engine.createErr = engineErr

	_, err := c.add.Execute(context.Background(), AddTransferInput{
		Source: domain.TransferSource{Torrent: "/tmp/broken.torrent"},
	})
	if !errors.Is(err, ErrCreation) {
		t.Fatalf("expected ErrCreation, got %v", err)
	}
	if !errors.Is(err, engineErr) {
		t.Fatalf("engine error not preserved: %v", err)
	}
	if c.registry.Len() != 0 {
		t.Fatalf("registry mutated on failed add")
	}
	if len(c.journal.actions()) != 0 {
		t.Fatalf("journal written on failed add")
	}

	// The failed attempt burns its id; the next success still gets a fresh one.
	c.engine.createErr = nil
	info := c.mustAdd("next")
	if info.ID != 2 {
		t.Fatalf("id after failed add = %d, want 2", info.ID)
	}
}

func TestAddTransferIdsStrictlyIncreasingAcrossRemoves(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()

	var last domain.TransferID
	for i := 0; i < 5; i++ {
		info := c.mustAdd("t")
		if info.ID <= last {
			t.Fatalf("id %d not greater than %d", info.ID, last)
		}
		last = info.ID
		if i%2 == 0 {
			if err := c.remove.Execute(ctx, info.ID); err != nil {
				t.Fatalf("remove: %v", err)
			}
		}
	}
}

func TestAddTransferIdentifierOverflow(t *testing.T) {
	reg := registry.New()
	if err := reg.Insert(domain.TransferInfo{ID: math.MaxUint64, Status: domain.TransferDownloading}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	engine := newFakeEngine()
	uc := AddTransfer{Engine: engine, Registry: reg, Logger: discardLogger()}

	_, err := uc.Execute(context.Background(), AddTransferInput{Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc"}})
	if !errors.Is(err, domain.ErrIdentifierOverflow) {
		t.Fatalf("expected ErrIdentifierOverflow, got %v", err)
	}
	if created, _, _, _ := engine.calls(); created != 0 {
		t.Fatalf("engine called despite overflow")
	}
	if reg.Len() != 1 {
		t.Fatalf("registry mutated on overflow")
	}
}

func TestAddTransferJournalFailureDoesNotFailCommand(t *testing.T) {
	c := newCoordinator()
	c.journal.recordErr = errors.New("mongo down")

	if _, err := c.add.Execute(context.Background(), AddTransferInput{
		Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc"},
	}); err != nil {
		t.Fatalf("journal failure leaked into command result: %v", err)
	}
	if c.registry.Len() != 1 {
		t.Fatalf("transfer not registered")
	}
}

func TestAddTransferNegativeTotalClamped(t *testing.T) {
	c := newCoordinator()
	c.engine.createResult = ports.CreateResult{TotalBytes: -5}
	info := c.mustAdd("x")
	if info.Total != 0 {
		t.Fatalf("total = %d, want 0", info.Total)
	}
}

func TestAddTransferInsertConflictCleansUpEngine(t *testing.T) {
	c := newCoordinator()
	var logs bytes.Buffer
	c.add.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	c.engine.removeErr = errors.New("engine gone")
	// Something else claims the reserved id while the engine is creating.
	c.engine.onCreate = func(id domain.TransferID) {
		_ = c.registry.Insert(domain.TransferInfo{ID: id, Name: "other", Status: domain.TransferDownloading})
	}

	_, err := c.add.Execute(context.Background(), AddTransferInput{
		Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc"},
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, _, _, removed := c.engine.calls(); removed != 1 {
		t.Fatalf("engine remove calls = %d, want 1", removed)
	}
	out := logs.String()
	if !strings.Contains(out, "engine cleanup after failed insert") ||
		!strings.Contains(out, "transferId=1") ||
		!strings.Contains(out, "engine gone") {
		t.Fatalf("cleanup failure not logged: %q", out)
	}
}
