package usecase

import (
	"context"
	"errors"
	"testing"

	"torrentsession/internal/domain"
)

func TestRemoveTransfer(t *testing.T) {
	c := newCoordinator()
	info := c.mustAdd("a")

	if err := c.remove.Execute(context.Background(), info.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := c.get.Execute(context.Background(), info.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after remove: expected not found, got %v", err)
	}
	if err := c.remove.Execute(context.Background(), info.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove: expected not found, got %v", err)
	}
	if _, _, _, removed := c.engine.calls(); removed != 1 {
		t.Fatalf("engine remove calls = %d, want 1", removed)
	}
	if got := c.journal.actions(); len(got) != 2 || got[1] != domain.ActionRemoved {
		t.Fatalf("journal actions = %v", got)
	}
}

func TestRemoveTransferNeverExisted(t *testing.T) {
	c := newCoordinator()
	if err := c.remove.Execute(context.Background(), 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, _, removed := c.engine.calls(); removed != 0 {
		t.Fatalf("engine called for unknown id")
	}
}

func TestRemoveTransferEngineErrorKeepsEntry(t *testing.T) {
	c := newCoordinator()
	info := c.mustAdd("a")
	c.engine.removeErr = errors.New("disk busy")

	err := c.remove.Execute(context.Background(), info.ID)
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if !c.registry.Contains(info.ID) {
		t.Fatalf("entry removed despite engine failure")
	}
}

func TestRemoveTransferToleratesEngineNotFound(t *testing.T) {
	c := newCoordinator()
	info := c.mustAdd("a")
	c.engine.removeErr = domain.ErrNotFound

	if err := c.remove.Execute(context.Background(), info.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if c.registry.Contains(info.ID) {
		t.Fatalf("entry still present")
	}
}

func TestGetAndListTransfers(t *testing.T) {
	c := newCoordinator()
	if list := c.list.Execute(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
	if _, err := c.get.Execute(context.Background(), 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	a := c.mustAdd("a")
	b := c.mustAdd("b")
	list := c.list.Execute(context.Background())
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
}
