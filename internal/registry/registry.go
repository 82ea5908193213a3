package registry

import (
	"fmt"
	"math"
	"sync"

	"torrentsession/internal/domain"
)

// Registry is the authoritative in-memory snapshot of every known transfer.
// A single mutex guards the whole collection; callers never receive a live
// reference to an entry.
type Registry struct {
	mu        sync.Mutex
	entries   map[domain.TransferID]*domain.TransferInfo
	order     []domain.TransferID
	highWater domain.TransferID

	cmdMu    sync.Mutex
	cmdLocks map[domain.TransferID]*commandLock
}

type commandLock struct {
	mu   sync.Mutex
	refs int
}

func New() *Registry {
	return &Registry{
		entries:  make(map[domain.TransferID]*domain.TransferInfo),
		cmdLocks: make(map[domain.TransferID]*commandLock),
	}
}

// LockCommands serializes commands on one transfer so the engine call and
// the status write of one command never interleave with another's. It is
// independent of the registry guard: engine calls may block while holding
// it, and every other registry method stays available. The returned func
// releases the lock.
func (r *Registry) LockCommands(id domain.TransferID) (unlock func()) {
	r.cmdMu.Lock()
	l, ok := r.cmdLocks[id]
	if !ok {
		l = &commandLock{}
		r.cmdLocks[id] = l
	}
	l.refs++
	r.cmdMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.cmdMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.cmdLocks, id)
		}
		r.cmdMu.Unlock()
	}
}

// Reserve allocates the next transfer id. The id is one past the largest id
// ever reserved or inserted, so removed ids are never handed out again.
// Allocation saturates: once the space is exhausted every call fails with
// domain.ErrIdentifierOverflow.
func (r *Registry) Reserve() (domain.TransferID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.highWater == math.MaxUint64 {
		return 0, fmt.Errorf("%w: last id %d", domain.ErrIdentifierOverflow, r.highWater)
	}
	r.highWater++
	return r.highWater, nil
}

// Insert adds a new entry. It fails if the id is already present.
func (r *Registry) Insert(info domain.TransferInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ID]; exists {
		return fmt.Errorf("%w: transfer %d", domain.ErrAlreadyExists, info.ID)
	}
	stored := info
	r.entries[info.ID] = &stored
	r.order = append(r.order, info.ID)
	if info.ID > r.highWater {
		r.highWater = info.ID
	}
	return nil
}

func (r *Registry) Get(id domain.TransferID) (domain.TransferInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.entries[id]
	if !ok {
		return domain.TransferInfo{}, false
	}
	return *info, true
}

// List returns a point-in-time copy of all entries in insertion order.
func (r *Registry) List() []domain.TransferInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TransferInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Update applies mutate to the entry while holding the guard and reports
// whether the entry existed. An absent id is not an error: a remove may race
// an in-flight alert for the same transfer.
func (r *Registry) Update(id domain.TransferID, mutate func(info *domain.TransferInfo)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.entries[id]
	if !ok {
		return false
	}
	mutate(info)
	info.ID = id
	return true
}

func (r *Registry) Remove(id domain.TransferID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Contains(id domain.TransferID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
