package memory

import (
	"context"
	"sync"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// SnapshotHistoryStore is an in-memory implementation of
// storage.SnapshotHistoryStore. Storage order is slice order.
type SnapshotHistoryStore struct {
	mu   sync.RWMutex
	rows []*domain.LeaderSnapshot
}

// NewSnapshotHistoryStore creates an empty in-memory snapshot history.
func NewSnapshotHistoryStore() *SnapshotHistoryStore {
	return &SnapshotHistoryStore{}
}

// Compile-time interface check.
var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)

// Append adds rows at the end of the history.
func (s *SnapshotHistoryStore) Append(_ context.Context, rows []*domain.LeaderSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if r == nil || r.Leader == "" {
			return storage.ErrInvalidInput
		}
		cp := *r
		s.rows = append(s.rows, &cp)
	}
	return nil
}

// Latest returns the rows sharing the newest data timestamp, in storage order.
func (s *SnapshotHistoryStore) Latest(_ context.Context) ([]*domain.LeaderSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxTS int64
	for _, r := range s.rows {
		if r.Timestamp > maxTS {
			maxTS = r.Timestamp
		}
	}

	result := make([]*domain.LeaderSnapshot, 0)
	for _, r := range s.rows {
		if r.Timestamp == maxTS {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ReadAll returns every retained row in storage order.
func (s *SnapshotHistoryStore) ReadAll(_ context.Context) ([]*domain.LeaderSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LeaderSnapshot, 0, len(s.rows))
	for _, r := range s.rows {
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

// Trim drops the oldest rows in storage order until at most max remain.
func (s *SnapshotHistoryStore) Trim(_ context.Context, max int) (int, error) {
	if max < 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := len(s.rows) - max
	if drop <= 0 {
		return 0, nil
	}
	s.rows = append([]*domain.LeaderSnapshot(nil), s.rows[drop:]...)
	return drop, nil
}
