package store

import (
	"context"
	"sort"
	"sync"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/models"
)

// Memory is an in-process Store. Update calls are serialized; writes are
// staged and applied only when the callback returns nil.
type Memory struct {
	mu sync.RWMutex

	organizations map[address.Pubkey]*models.Organization
	proposals     map[address.Pubkey]*models.Proposal
	credits       map[address.Pubkey]uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		organizations: make(map[address.Pubkey]*models.Organization),
		proposals:     make(map[address.Pubkey]*models.Proposal),
		credits:       make(map[address.Pubkey]uint64),
	}
}

func (m *Memory) Organization(_ context.Context, addr address.Pubkey) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.organizations[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return org.Clone(), nil
}

func (m *Memory) Proposal(_ context.Context, addr address.Pubkey) (*models.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) Proposals(_ context.Context, org address.Pubkey) ([]*models.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := []*models.Proposal{}
	for _, p := range m.proposals {
		if p.Organization == org {
			list = append(list, p.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SequenceID < list[j].SequenceID })
	return list, nil
}

func (m *Memory) Credits(_ context.Context, owner address.Pubkey) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credits[owner], nil
}

// Update runs fn with exclusive access to the whole store.
func (m *Memory) Update(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:             m,
		organizations: make(map[address.Pubkey]*models.Organization),
		proposals:     make(map[address.Pubkey]*models.Proposal),
		deleted:       make(map[address.Pubkey]bool),
		credits:       make(map[address.Pubkey]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, org := range tx.organizations {
		m.organizations[addr] = org
	}
	for addr, p := range tx.proposals {
		m.proposals[addr] = p
	}
	for addr := range tx.deleted {
		delete(m.proposals, addr)
	}
	for owner, amount := range tx.credits {
		m.credits[owner] += amount
	}
	return nil
}

type memoryTx struct {
	m *Memory

	organizations map[address.Pubkey]*models.Organization
	proposals     map[address.Pubkey]*models.Proposal
	deleted       map[address.Pubkey]bool
	credits       map[address.Pubkey]uint64
}

func (tx *memoryTx) organization(addr address.Pubkey) (*models.Organization, bool) {
	if org, ok := tx.organizations[addr]; ok {
		return org, true
	}
	org, ok := tx.m.organizations[addr]
	return org, ok
}

func (tx *memoryTx) proposal(addr address.Pubkey) (*models.Proposal, bool) {
	if tx.deleted[addr] {
		return nil, false
	}
	if p, ok := tx.proposals[addr]; ok {
		return p, true
	}
	p, ok := tx.m.proposals[addr]
	return p, ok
}

func (tx *memoryTx) Organization(_ context.Context, addr address.Pubkey) (*models.Organization, error) {
	org, ok := tx.organization(addr)
	if !ok {
		return nil, ErrNotFound
	}
	return org.Clone(), nil
}

func (tx *memoryTx) Proposal(_ context.Context, addr address.Pubkey) (*models.Proposal, error) {
	p, ok := tx.proposal(addr)
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (tx *memoryTx) InsertOrganization(_ context.Context, org *models.Organization) error {
	if _, ok := tx.organization(org.Address); ok {
		return ErrConflict
	}
	tx.organizations[org.Address] = org.Clone()
	return nil
}

func (tx *memoryTx) UpdateOrganization(_ context.Context, org *models.Organization) error {
	if _, ok := tx.organization(org.Address); !ok {
		return ErrNotFound
	}
	tx.organizations[org.Address] = org.Clone()
	return nil
}

func (tx *memoryTx) InsertProposal(_ context.Context, p *models.Proposal) error {
	if _, ok := tx.proposal(p.Address); ok {
		return ErrConflict
	}
	delete(tx.deleted, p.Address)
	tx.proposals[p.Address] = p.Clone()
	return nil
}

func (tx *memoryTx) UpdateProposal(_ context.Context, p *models.Proposal) error {
	if _, ok := tx.proposal(p.Address); !ok {
		return ErrNotFound
	}
	tx.proposals[p.Address] = p.Clone()
	return nil
}

func (tx *memoryTx) DeleteProposal(_ context.Context, addr address.Pubkey) error {
	if _, ok := tx.proposal(addr); !ok {
		return ErrNotFound
	}
	delete(tx.proposals, addr)
	tx.deleted[addr] = true
	return nil
}

func (tx *memoryTx) Credit(_ context.Context, owner address.Pubkey, lamports uint64) error {
	tx.credits[owner] += lamports
	return nil
}

var _ Store = (*Memory)(nil)
