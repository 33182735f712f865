package shield

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	txns map[string]*FrozenTransaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txns: make(map[string]*FrozenTransaction)}
}

func (m *MemoryStore) Put(_ context.Context, txn *FrozenTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[txn.TransactionID] = copyTxn(txn)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, transactionID string) (*FrozenTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.txns[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return copyTxn(txn), nil
}

func (m *MemoryStore) Update(_ context.Context, txn *FrozenTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[txn.TransactionID]; !ok {
		return ErrTransactionNotFound
	}
	m.txns[txn.TransactionID] = copyTxn(txn)
	return nil
}

func (m *MemoryStore) ListFrozenBefore(_ context.Context, frozenBefore time.Time, limit int) ([]*FrozenTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*FrozenTransaction
	for _, txn := range m.txns {
		if txn.Status != StatusFrozen {
			continue
		}
		if !txn.FrozenAt.Before(frozenBefore) {
			continue
		}
		out = append(out, copyTxn(txn))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func copyTxn(txn *FrozenTransaction) *FrozenTransaction {
	cp := *txn
	cp.Reasons = append([]string(nil), txn.Reasons...)
	return &cp
}
