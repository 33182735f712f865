package detect

import (
	"context"
	"sync"
)

// maxMemoryRecords caps the in-memory audit trail.
const maxMemoryRecords = 1000

// MemoryStore is an in-memory analysis audit store for demo/development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*AnalysisRecord // newest last
}

// NewMemoryStore creates a new in-memory analysis store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Record(ctx context.Context, rec *AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.records = append(m.records, &cp)
	if len(m.records) > maxMemoryRecords {
		m.records = m.records[len(m.records)-maxMemoryRecords:]
	}
	return nil
}

func (m *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	result := make([]*AnalysisRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *m.records[i]
		result = append(result, &cp)
	}
	return result, nil
}
