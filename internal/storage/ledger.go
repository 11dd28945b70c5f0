package storage

import (
	"context"
	"sync"
)

// Ledger records which bookings already had their confirmation mail
// dispatched. Claim returns true only for the first caller per booking.
// Release drops a claim whose mail never went out so a reload can retry.
type Ledger interface {
	Claim(ctx context.Context, uuid string) (bool, error)
	Release(ctx context.Context, uuid string) error
}

type MemoryLedger struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{claimed: make(map[string]struct{})}
}

func (m *MemoryLedger) Claim(_ context.Context, uuid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claimed[uuid]; ok {
		return false, nil
	}
	m.claimed[uuid] = struct{}{}
	return true, nil
}

func (m *MemoryLedger) Release(_ context.Context, uuid string) error {
	m.mu.Lock()
	delete(m.claimed, uuid)
	m.mu.Unlock()
	return nil
}
