package governance

import (
	"fmt"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/layout"
	"github.com/xendao/governance/internal/models"
)

// OrganizationAddress derives the organization record address.
func (e *Engine) OrganizationAddress() (address.Derived, error) {
	return address.Organization(e.program)
}

// Initialize creates the organization record unless one already exists.
// An existing record is returned unchanged with created set to false.
func (e *Engine) Initialize(existing *models.Organization, caller address.Pubkey, name string) (org *models.Organization, created bool, err error) {
	if len(name) > layout.MaxNameLength {
		return nil, false, ErrNameTooLong
	}
	if existing != nil {
		return existing, false, nil
	}
	derived, err := e.OrganizationAddress()
	if err != nil {
		return nil, false, fmt.Errorf("initialize: %w", err)
	}
	now := e.now()
	return &models.Organization{
		Address:       derived.Address,
		Bump:          derived.Bump,
		Name:          name,
		Administrator: caller,
		Lamports:      layout.MinimumBalance(layout.OrganizationSpace),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, true, nil
}
