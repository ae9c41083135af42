package resource

import (
	"sync"
	"time"
)

// Shared guards one handle for use from several goroutines. Reads take a
// read lock; Reload and ReloadIfStale hold the write lock for the whole
// check-and-reload so concurrent callers never see content and fingerprint
// out of step, and a stale handle is reloaded once.
type Shared[C Content] struct {
	mu sync.RWMutex
	r  *Resource[C]
}

func Share[C Content](r *Resource[C]) *Shared[C] {
	return &Shared[C]{r: r}
}

func (s *Shared[C]) Content() C {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.content
}

// Snapshot returns content and fingerprint from the same load.
func (s *Shared[C]) Snapshot() (C, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.content, s.r.ModTime()
}

func (s *Shared[C]) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.Path()
}

func (s *Shared[C]) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.Mode()
}

func (s *Shared[C]) IsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.IsStale()
}

func (s *Shared[C]) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Reload()
}

func (s *Shared[C]) ReloadIfStale() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.ReloadIfStale()
}
