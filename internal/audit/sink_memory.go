package audit

import (
	"context"
	"maps"
	"sync"
)

// MemorySink keeps records in process memory. Used for development and tests.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, r Record) error {
	r.Details = maps.Clone(r.Details)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Records returns a snapshot in append order.
func (s *MemorySink) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Matching returns the records for sessionID with the given action.
func (s *MemorySink) Matching(sessionID string, action Action) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.SessionID == sessionID && r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemorySink) Close() error { return nil }
