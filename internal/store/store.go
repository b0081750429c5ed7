// Package store persists organization and proposal records keyed by their
// derived address. Every mutation runs inside Update, which gives the callback
// exclusive access to the records it reads and commits all of its writes or none.
package store

import (
	"context"
	"errors"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by an insert when a record already exists at the address.
	ErrConflict = errors.New("record already exists")
)

// Reader is the read-only view of the ledger.
type Reader interface {
	Organization(ctx context.Context, addr address.Pubkey) (*models.Organization, error)
	Proposal(ctx context.Context, addr address.Pubkey) (*models.Proposal, error)
	// Proposals returns the live proposals of an organization ordered by sequence id.
	Proposals(ctx context.Context, org address.Pubkey) ([]*models.Proposal, error)
	// Credits returns the reclaimed deposits credited to owner.
	Credits(ctx context.Context, owner address.Pubkey) (uint64, error)
}

// Tx is the read-write view inside Update. Reads lock the record until commit.
type Tx interface {
	Organization(ctx context.Context, addr address.Pubkey) (*models.Organization, error)
	Proposal(ctx context.Context, addr address.Pubkey) (*models.Proposal, error)
	InsertOrganization(ctx context.Context, org *models.Organization) error
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	InsertProposal(ctx context.Context, p *models.Proposal) error
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	DeleteProposal(ctx context.Context, addr address.Pubkey) error
	Credit(ctx context.Context, owner address.Pubkey, lamports uint64) error
}

// Store is a Reader that can apply transactional updates.
type Store interface {
	Reader
	Update(ctx context.Context, fn func(tx Tx) error) error
}
