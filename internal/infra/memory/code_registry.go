package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"livequiz/internal/domain"
)

// CodeRegistry is a process-local session code table. Entries expire after ttl unless ttl is 0.
type CodeRegistry struct {
	ttl   time.Duration
	clock func() time.Time

	mu    sync.Mutex
	codes map[string]registeredCode
}

type registeredCode struct {
	addr      string
	expiresAt time.Time
}

func NewCodeRegistry(ttl time.Duration) *CodeRegistry {
	return &CodeRegistry{
		ttl:   ttl,
		clock: time.Now,
		codes: make(map[string]registeredCode),
	}
}

func (r *CodeRegistry) Claim(_ context.Context, code, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.codes[code]; ok && r.live(entry) {
		return fmt.Errorf("%w: %s", domain.ErrCodeTaken, code)
	}
	entry := registeredCode{addr: addr}
	if r.ttl > 0 {
		entry.expiresAt = r.clock().Add(r.ttl)
	}
	r.codes[code] = entry
	return nil
}

func (r *CodeRegistry) Resolve(_ context.Context, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.codes[code]
	if !ok || !r.live(entry) {
		delete(r.codes, code)
		return "", fmt.Errorf("%w: %s", domain.ErrCodeNotFound, code)
	}
	return entry.addr, nil
}

func (r *CodeRegistry) Release(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, code)
	return nil
}

func (r *CodeRegistry) live(entry registeredCode) bool {
	return entry.expiresAt.IsZero() || entry.expiresAt.After(r.clock())
}
