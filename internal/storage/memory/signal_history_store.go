package memory

import (
	"context"
	"sync"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// SignalHistoryStore is an in-memory implementation of
// storage.SignalHistoryStore. Storage order is slice order.
type SignalHistoryStore struct {
	mu   sync.RWMutex
	rows []*domain.SignalRecord
}

// NewSignalHistoryStore creates an empty in-memory signal history.
func NewSignalHistoryStore() *SignalHistoryStore {
	return &SignalHistoryStore{}
}

// Compile-time interface check.
var _ storage.SignalHistoryStore = (*SignalHistoryStore)(nil)

// Append adds records at the end of the history.
func (s *SignalHistoryStore) Append(_ context.Context, records []*domain.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil || r.Strategy == "" {
			return storage.ErrInvalidInput
		}
		cp := *r
		s.rows = append(s.rows, &cp)
	}
	return nil
}

// ReadAll returns every retained record in storage order.
func (s *SignalHistoryStore) ReadAll(_ context.Context) ([]*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SignalRecord, 0, len(s.rows))
	for _, r := range s.rows {
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

// Trim drops the oldest records in storage order until at most max remain.
func (s *SignalHistoryStore) Trim(_ context.Context, max int) (int, error) {
	if max < 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := len(s.rows) - max
	if drop <= 0 {
		return 0, nil
	}
	s.rows = append([]*domain.SignalRecord(nil), s.rows[drop:]...)
	return drop, nil
}
