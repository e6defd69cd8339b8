package downloader

import (
	"sync"
)

// Claims is the set of item ids taken by a worker during this run.
type Claims struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewClaims() *Claims {
	return &Claims{ids: make(map[string]struct{})}
}

// Claim adds id and reports whether the caller is the first to do so.
func (c *Claims) Claim(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

// StopFlag is set once when the run must not start any more downloads.
type StopFlag struct {
	mu      sync.Mutex
	stopped bool
	reason  string
}

// Stop sets the flag; the first reason is kept.
func (s *StopFlag) Stop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		s.reason = reason
	}
}

func (s *StopFlag) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *StopFlag) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Summary counts published files.
type Summary struct {
	Files int
	Bytes int64
}

type summary struct {
	mu sync.Mutex
	s  Summary
}

func (s *summary) add(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.Files++
	s.s.Bytes += size
}

func (s *summary) get() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}
