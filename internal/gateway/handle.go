package gateway

import (
	"fmt"
	"sync"

	golibvirt "github.com/digitalocean/go-libvirt"
)

// DomainHandle is the opaque, owning reference to a live domain described
// in spec §3. It must be moved, not copied, into a scheduler datum; call
// Release exactly once when it is no longer needed.
type DomainHandle struct {
	dom      golibvirt.Domain
	uuid     string
	registry *handleRegistry
	released bool
}

// UUID is the handle's cached domain UUID, if already known.
func (h *DomainHandle) UUID() string { return h.uuid }

// Release returns the handle's ownership to the gateway. Safe to call more
// than once; subsequent calls are no-ops.
func (h *DomainHandle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	if h.registry != nil {
		h.registry.untrack(h.uuid)
	}
}

// handleRegistry enforces "at most one live handle per UUID" (spec §3).
// It is an in-process bookkeeping aid, not a libvirt concept: go-libvirt's
// Domain value carries no reference count of its own, so the invariant has
// to be checked here instead of relying on a destructor.
type handleRegistry struct {
	mu   sync.Mutex
	live map[string]struct{}
}

func newHandleRegistry() *handleRegistry {
	return &handleRegistry{live: make(map[string]struct{})}
}

func (r *handleRegistry) track(uuid string) error {
	if uuid == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[uuid]; ok {
		return fmt.Errorf("domain %s already has a live handle", uuid)
	}
	r.live[uuid] = struct{}{}
	return nil
}

func (r *handleRegistry) untrack(uuid string) {
	if uuid == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, uuid)
}
