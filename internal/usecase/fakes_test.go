package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/registry"
)

type fakeEngine struct {
	mu           sync.Mutex
	createResult ports.CreateResult
	createErr    error
	pauseErr     error
	resumeErr    error
	removeErr    error
	created      []domain.TransferID
	sources      []domain.TransferSource
	paused       []domain.TransferID
	resumed      []domain.TransferID
	removed      []domain.TransferID
	// beforeReturn runs inside pause/resume/remove after the call is
	// recorded, to simulate work racing the engine call.
	beforeReturn func(id domain.TransferID)
	// onCreate runs inside Create before it returns.
	onCreate func(id domain.TransferID)
	// When pauseGate is set, Pause signals pauseEntered after applying its
	// effect and then blocks until pauseGate is closed.
	pauseEntered chan struct{}
	pauseGate    chan struct{}
	enginePaused map[domain.TransferID]bool
	alerts       chan domain.Alert
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		alerts:       make(chan domain.Alert, 16),
		enginePaused: make(map[domain.TransferID]bool),
	}
}

func (f *fakeEngine) isPaused(id domain.TransferID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enginePaused[id]
}

func (f *fakeEngine) Create(ctx context.Context, id domain.TransferID, src domain.TransferSource) (ports.CreateResult, error) {
	f.mu.Lock()
	f.created = append(f.created, id)
	f.sources = append(f.sources, src)
	err, res, hook := f.createErr, f.createResult, f.onCreate
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	if err != nil {
		return ports.CreateResult{}, err
	}
	return res, nil
}

func (f *fakeEngine) Pause(ctx context.Context, id domain.TransferID) error {
	f.mu.Lock()
	f.paused = append(f.paused, id)
	err, hook := f.pauseErr, f.beforeReturn
	if err == nil {
		f.enginePaused[id] = true
	}
	entered, gate := f.pauseEntered, f.pauseGate
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if hook != nil {
		hook(id)
	}
	return err
}

func (f *fakeEngine) Resume(ctx context.Context, id domain.TransferID) error {
	f.mu.Lock()
	f.resumed = append(f.resumed, id)
	err, hook := f.resumeErr, f.beforeReturn
	if err == nil {
		f.enginePaused[id] = false
	}
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return err
}

func (f *fakeEngine) Remove(ctx context.Context, id domain.TransferID) error {
	f.mu.Lock()
	f.removed = append(f.removed, id)
	err, hook := f.removeErr, f.beforeReturn
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return err
}

func (f *fakeEngine) Alerts() <-chan domain.Alert { return f.alerts }

func (f *fakeEngine) Close() error {
	close(f.alerts)
	return nil
}

func (f *fakeEngine) calls() (created, paused, resumed, removed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created), len(f.paused), len(f.resumed), len(f.removed)
}

type fakeJournal struct {
	mu        sync.Mutex
	events    []domain.LifecycleEvent
	recordErr error
}

func (f *fakeJournal) Record(ctx context.Context, event domain.LifecycleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeJournal) ListRecent(ctx context.Context, limit int) ([]domain.LifecycleEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeJournal) actions() []domain.LifecycleAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LifecycleAction, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

// coordinator bundles the handlers the way cmd/server wires them.
type coordinator struct {
	engine   *fakeEngine
	registry *registry.Registry
	journal  *fakeJournal
	add      AddTransfer
	pause    PauseTransfer
	resume   ResumeTransfer
	remove   RemoveTransfer
	get      GetTransfer
	list     ListTransfers
	consumer AlertConsumer
}

func newCoordinator() *coordinator {
	engine := newFakeEngine()
	reg := registry.New()
	journal := &fakeJournal{}
	logger := discardLogger()
	return &coordinator{
		engine:   engine,
		registry: reg,
		journal:  journal,
		add:      AddTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: logger},
		pause:    PauseTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: logger},
		resume:   ResumeTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: logger},
		remove:   RemoveTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: logger},
		get:      GetTransfer{Registry: reg},
		list:     ListTransfers{Registry: reg},
		consumer: AlertConsumer{Alerts: engine.alerts, Registry: reg, Logger: logger},
	}
}

func (c *coordinator) mustAdd(name string) domain.TransferInfo {
	info, err := c.add.Execute(context.Background(), AddTransferInput{
		Name:   name,
		Source: domain.TransferSource{Magnet: "magnet:?xt=urn:btih:" + name},
	})
	if err != nil {
		panic(err)
	}
	return info
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
