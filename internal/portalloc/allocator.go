// Package portalloc hands out currently-unbound TCP ports within a
// configured range, advisory-leased in process so two concurrent
// registrations never race for the same port (spec §4.2).
package portalloc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"integrationhub/internal/hub"
	"integrationhub/pkg/logging"
)

// lease records who holds a port and since when.
type lease struct {
	owner      string
	acquiredAt time.Time
}

// Allocator is the process-wide singleton that tracks port leases and
// probes bindability. Safe for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	leased map[int]lease
	min    int
	max    int
}

// New creates an Allocator bound to [min, max] (spec §6 portRange,
// default 3000-9999).
func New(min, max int) *Allocator {
	if max < min {
		min, max = max, min
	}
	return &Allocator{
		leased: make(map[int]lease),
		min:    min,
		max:    max,
	}
}

// bindable reports whether port can currently be bound on 0.0.0.0/tcp.
// This is the "external collision" half of the allocator's two checks
// (spec §4.2 rationale).
func bindable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Bindable exposes the bind-and-close probe to callers outside this
// package (the Registry uses it to decide whether a caller-supplied
// port needs reassignment).
func Bindable(port int) bool { return bindable(port) }

// FindAvailable sequentially probes startPort, startPort+1, ... for a
// port that is both unleased and bind-and-close-able, stopping at the
// first hit or after maxAttempts probes or upon leaving the configured
// range. A startPort below the range starts the probe at the range's
// minimum instead. It does NOT lease the port, so a port it returns can race with
// another FindAvailable/FindAndAcquire call; callers that mean to use
// the result should call FindAndAcquire instead. Kept for callers that
// only need an existence probe (e.g. diagnostics).
func (a *Allocator) FindAvailable(startPort, maxAttempts int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findAvailableLocked(startPort, maxAttempts)
}

// FindAndAcquire probes for a port exactly as FindAvailable does and
// leases it to owner before releasing the allocator's lock, so the
// probe and the lease happen as one atomic step (spec §3 invariant 1,
// §4.2 rationale, §8 "allocatedPort values are a set"). This is the
// allocation path every caller that intends to hold the port must use;
// a separate FindAvailable-then-Acquire pair lets two concurrent
// registrations both find the same unleased port before either leases
// it.
func (a *Allocator) FindAndAcquire(startPort, maxAttempts int, owner string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	port, err := a.findAvailableLocked(startPort, maxAttempts)
	if err != nil {
		return 0, err
	}
	a.leased[port] = lease{owner: owner, acquiredAt: time.Now()}
	logging.Debug("PortAllocator", "leased port %d to %s", port, owner)
	return port, nil
}

// findAvailableLocked is FindAvailable's probe loop; callers must hold
// a.mu.
func (a *Allocator) findAvailableLocked(startPort, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = 100
	}

	port := startPort
	if port < a.min {
		port = a.min
	}
	for attempts := 0; attempts < maxAttempts; attempts++ {
		if port > a.max || port < a.min {
			break
		}
		if _, leased := a.leased[port]; !leased && bindable(port) {
			return port, nil
		}
		port++
	}
	return 0, hub.NewPortExhaustedError(startPort, maxAttempts)
}

// TryAcquire leases port to owner if it is currently unleased and
// bind-and-close-able, checking and leasing under a single lock so a
// concurrent caller can never observe the port as free after this one
// has already claimed it. Returns (port, true) on success, (0, false)
// if the port is taken.
func (a *Allocator) TryAcquire(port int, owner string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, leased := a.leased[port]; leased || !bindable(port) {
		return 0, false
	}
	a.leased[port] = lease{owner: owner, acquiredAt: time.Now()}
	logging.Debug("PortAllocator", "leased port %d to %s", port, owner)
	return port, true
}

// Acquire adds port to the lease set, attributing it to owner. Must be
// paired with Release once the owning integration is torn down.
func (a *Allocator) Acquire(port int, owner string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leased[port] = lease{owner: owner, acquiredAt: time.Now()}
	logging.Debug("PortAllocator", "leased port %d to %s", port, owner)
}

// Release frees port for reallocation by the next FindAvailable.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.leased, port)
	logging.Debug("PortAllocator", "released port %d", port)
}

// IsLeased reports whether port is currently held by some owner.
func (a *Allocator) IsLeased(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.leased[port]
	return ok
}

// LeasedPorts returns the current set of leased ports (for tests and
// diagnostics); order is unspecified.
func (a *Allocator) LeasedPorts() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, 0, len(a.leased))
	for p := range a.leased {
		out = append(out, p)
	}
	return out
}
