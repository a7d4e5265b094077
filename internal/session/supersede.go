// Package session holds the per-caller coordination helpers: last query
// wins, debounced recomputation and idle expiry.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by a call that was replaced by a newer call
// with the same key.
var ErrSuperseded = errors.New("superseded by a newer request")

// Supersede runs at most one live call per key. Starting a call cancels the
// context of the previous one, and the older call's result is discarded.
type Supersede struct {
	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	cancel context.CancelFunc
}

func NewSupersede() *Supersede {
	return &Supersede{inflight: make(map[string]*call)}
}

// Do runs fn under a context derived from ctx. If another Do with the same
// key starts before fn returns, this call returns ErrSuperseded.
func Do[T any](s *Supersede, ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	runCtx, cancel := context.WithCancel(ctx)
	c := &call{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel()
	}
	s.inflight[key] = c
	s.mu.Unlock()

	v, err := fn(runCtx)

	s.mu.Lock()
	current := s.inflight[key] == c
	if current {
		delete(s.inflight, key)
	}
	s.mu.Unlock()
	cancel()

	if !current {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Cancel aborts the live call for key, if any. The aborted call returns
// ErrSuperseded.
func (s *Supersede) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.inflight[key]; ok {
		c.cancel()
		delete(s.inflight, key)
	}
}
