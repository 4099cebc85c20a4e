package session

import (
	"context"
	"sync"

	goVerify "github.com/MrEthical07/goVerify"
)

// MemoryFacts is a process-local SessionFacts for tests and single-node
// development. Entries live until Delete.
type MemoryFacts struct {
	mu         sync.RWMutex
	identities map[string]string
	marks      map[string]goVerify.VerifiedMark
}

func NewMemoryFacts() *MemoryFacts {
	return &MemoryFacts{
		identities: make(map[string]string),
		marks:      make(map[string]goVerify.VerifiedMark),
	}
}

var _ goVerify.SessionFacts = (*MemoryFacts)(nil)

func (m *MemoryFacts) SetIdentity(_ context.Context, sessionKey, identity string) error {
	m.mu.Lock()
	m.identities[sessionKey] = identity
	m.mu.Unlock()
	return nil
}

func (m *MemoryFacts) Identity(_ context.Context, sessionKey string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.identities[sessionKey]
	return id, ok && id != "", nil
}

func (m *MemoryFacts) SetVerified(_ context.Context, sessionKey string, mark goVerify.VerifiedMark) error {
	m.mu.Lock()
	m.marks[sessionKey] = mark
	m.mu.Unlock()
	return nil
}

func (m *MemoryFacts) Verified(_ context.Context, sessionKey string) (goVerify.VerifiedMark, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mark, ok := m.marks[sessionKey]
	return mark, ok, nil
}

func (m *MemoryFacts) Delete(_ context.Context, sessionKey string) error {
	m.mu.Lock()
	delete(m.identities, sessionKey)
	delete(m.marks, sessionKey)
	m.mu.Unlock()
	return nil
}
