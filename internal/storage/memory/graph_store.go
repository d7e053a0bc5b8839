package memory

import (
	"context"
	"sort"
	"sync"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// GraphStore is an in-memory implementation of storage.GraphStore.
// It also serves as the cycle-local degraded-mode graph when the durable
// store is unreachable.
type GraphStore struct {
	mu     sync.RWMutex
	assets map[string]*domain.Asset
	// edges is keyed leader -> follower -> edge, so the ordered-pair
	// single-edge invariant holds by construction.
	edges map[string]map[string]*domain.LeadsRelationship
}

// NewGraphStore creates an empty in-memory graph.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		assets: make(map[string]*domain.Asset),
		edges:  make(map[string]map[string]*domain.LeadsRelationship),
	}
}

// Compile-time interface check.
var _ storage.GraphStore = (*GraphStore)(nil)

// UpsertAsset creates or fully overwrites an asset vertex.
func (s *GraphStore) UpsertAsset(_ context.Context, a *domain.Asset) error {
	if a == nil || a.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.assets[a.Symbol] = &cp
	return nil
}

// UpsertRelationship creates or replaces the single directed edge for the
// ordered (leader, follower) pair. Both endpoints are created as bare
// vertices on first appearance, without touching existing attributes.
func (s *GraphStore) UpsertRelationship(_ context.Context, r *domain.LeadsRelationship) error {
	if r == nil || r.Leader == "" || r.Follower == "" {
		return storage.ErrInvalidInput
	}
	if r.Leader == r.Follower {
		return storage.ErrSelfLoop
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureVertex(r.Leader, r.UpdatedAt)
	s.ensureVertex(r.Follower, r.UpdatedAt)

	out := s.edges[r.Leader]
	if out == nil {
		out = make(map[string]*domain.LeadsRelationship)
		s.edges[r.Leader] = out
	}
	cp := *r
	out[r.Follower] = &cp
	return nil
}

// ensureVertex creates a bare vertex if symbol is unknown. Caller holds mu.
func (s *GraphStore) ensureVertex(symbol string, seenAt int64) {
	if _, exists := s.assets[symbol]; !exists {
		s.assets[symbol] = &domain.Asset{Symbol: symbol, LastSeen: seenAt}
	}
}

// OutgoingEdges returns the edges led by symbol, ordered by follower.
func (s *GraphStore) OutgoingEdges(_ context.Context, symbol string) ([]*domain.LeadsRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.edges[symbol]
	result := make([]*domain.LeadsRelationship, 0, len(out))
	for _, e := range out {
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Follower < result[j].Follower })
	return result, nil
}

// IncomingDegree returns how many assets lead symbol.
func (s *GraphStore) IncomingDegree(_ context.Context, symbol string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	degree := 0
	for _, out := range s.edges {
		if _, exists := out[symbol]; exists {
			degree++
		}
	}
	return degree, nil
}

// AllLeaders returns symbols with out-degree >= 1, sorted ascending.
func (s *GraphStore) AllLeaders(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leaders := make([]string, 0, len(s.edges))
	for symbol, out := range s.edges {
		if len(out) > 0 {
			leaders = append(leaders, symbol)
		}
	}
	sort.Strings(leaders)
	return leaders, nil
}

// GetAsset returns the vertex for symbol.
func (s *GraphStore) GetAsset(_ context.Context, symbol string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.assets[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
