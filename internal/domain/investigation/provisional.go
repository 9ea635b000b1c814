package investigation

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry is the indirection table for requests the store has not accepted
// yet. A held request is addressed by its temporary id until Reconcile maps
// that id onto the durable one; afterwards the temporary id keeps resolving
// to the durable id.
type Registry struct {
	mu       sync.Mutex
	held     map[uuid.UUID]*Request
	resolved map[uuid.UUID]uuid.UUID
	locks    map[uuid.UUID]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func NewRegistry() *Registry {
	return &Registry{
		held:     make(map[uuid.UUID]*Request),
		resolved: make(map[uuid.UUID]uuid.UUID),
		locks:    make(map[uuid.UUID]*idLock),
	}
}

// Hold registers req under its current id and marks it provisional.
func (r *Registry) Hold(req *Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.Provisional = true
	r.held[req.ID] = req
}

// Resolve maps id to the id the store knows. When id names a held request,
// that request is returned with provisional=true.
func (r *Registry) Resolve(id uuid.UUID) (durable uuid.UUID, held *Request, provisional bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.resolved[id]; ok {
		return d, nil, false
	}
	if req, ok := r.held[id]; ok {
		return id, req, true
	}
	return id, nil, false
}

// Reconcile drops the held request and records tempID → durableID.
func (r *Registry) Reconcile(tempID, durableID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, tempID)
	r.resolved[tempID] = durableID
}

// ListHeld returns copies of the held requests of an encounter, oldest first.
func (r *Registry) ListHeld(encounterID uuid.UUID) []*Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Request
	for _, req := range r.held {
		if req.EncounterID == encounterID {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// SetStatus updates a held request in place. It reports false when id is not
// held.
func (r *Registry) SetStatus(id uuid.UUID, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.held[id]
	if ok {
		req.Status = status
	}
	return ok
}

// Lock serializes work on id. The returned func releases it.
func (r *Registry) Lock(id uuid.UUID) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &idLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

// HeldCount reports how many requests are still waiting for the store.
func (r *Registry) HeldCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
