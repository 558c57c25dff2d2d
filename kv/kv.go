// Package kv is the small key-value persistence used for the cached
// exchange rate and the manual override.
//
// Three stores are provided: SQLite (durable), Memory (tests and
// ephemeral runs) and Nop (persistence disabled). Callers treat every error
// as "degrade and continue".
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is returned by stores that cannot persist.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is a string key-value store.
type Store interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

// Nop stores nothing. Get always misses; writes report ErrUnavailable.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Nop) Set(context.Context, string, string) error         { return ErrUnavailable }
func (Nop) Delete(context.Context, string) error              { return ErrUnavailable }
