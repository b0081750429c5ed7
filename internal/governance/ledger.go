package governance

import (
	"fmt"
	"math"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/layout"
	"github.com/xendao/governance/internal/models"
)

// ProposalAddress derives the record address of the proposal with the given
// sequence id under org.
func (e *Engine) ProposalAddress(org address.Pubkey, sequence uint8) (address.Derived, error) {
	return address.Proposal(e.program, org, sequence)
}

// CreateProposal allocates the next proposal of org and advances its counter.
func (e *Engine) CreateProposal(org *models.Organization, caller address.Pubkey, description string) (*models.Proposal, error) {
	if org == nil {
		return nil, ErrOrganizationNotFound
	}
	if caller != org.Administrator {
		return nil, ErrUnauthorized
	}
	if len(description) > layout.MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if org.ProposalCount >= MaxProposals {
		return nil, ErrProposalLimitReached
	}
	derived, err := e.ProposalAddress(org.Address, org.ProposalCount)
	if err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	now := e.now()
	p := &models.Proposal{
		Address:      derived.Address,
		Bump:         derived.Bump,
		Organization: org.Address,
		SequenceID:   org.ProposalCount,
		Description:  description,
		IsActive:     true,
		Creator:      caller,
		Voters:       []address.Pubkey{},
		Lamports:     layout.MinimumBalance(e.ProposalSpace()),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	org.ProposalCount++
	org.UpdatedAt = now
	return p, nil
}

// Vote records caller's choice on p and counts the participation on org.
func (e *Engine) Vote(org *models.Organization, p *models.Proposal, caller address.Pubkey, choice bool) error {
	if org == nil {
		return ErrOrganizationNotFound
	}
	if p == nil {
		return ErrProposalNotFound
	}
	if !p.IsActive {
		return ErrProposalNotActive
	}
	if p.HasVoted(caller) {
		return ErrAlreadyVoted
	}
	if p.Organization != org.Address || p.SequenceID >= org.ProposalCount {
		return ErrUnauthorized
	}
	if e.policy.MaxVoters > 0 && len(p.Voters) >= e.policy.MaxVoters {
		return ErrVoterLimitReached
	}
	if org.TotalParticipation == math.MaxUint64 ||
		(choice && p.YesVotes == math.MaxUint64) ||
		(!choice && p.NoVotes == math.MaxUint64) {
		return ErrCounterOverflow
	}

	now := e.now()
	if choice {
		p.YesVotes++
	} else {
		p.NoVotes++
	}
	p.Voters = append(p.Voters, caller)
	p.UpdatedAt = now
	org.TotalParticipation++
	org.UpdatedAt = now
	return nil
}

// CloseProposal deactivates p and returns the receipt describing the
// destroyed record. The caller is credited with the record's deposit.
func (e *Engine) CloseProposal(org *models.Organization, p *models.Proposal, caller address.Pubkey) (*models.CloseReceipt, error) {
	if p == nil {
		return nil, ErrProposalNotFound
	}
	if !p.IsActive {
		return nil, ErrProposalAlreadyClosed
	}
	if e.policy.RestrictClose {
		if org == nil {
			return nil, ErrOrganizationNotFound
		}
		if caller != org.Administrator {
			return nil, ErrUnauthorized
		}
	}

	now := e.now()
	p.IsActive = false
	p.UpdatedAt = now
	return &models.CloseReceipt{
		Organization: p.Organization,
		Proposal:     p.Address,
		SequenceID:   p.SequenceID,
		Description:  p.Description,
		YesVotes:     p.YesVotes,
		NoVotes:      p.NoVotes,
		Voters:       append([]address.Pubkey(nil), p.Voters...),
		Refund:       p.Lamports,
		RefundedTo:   caller,
		ClosedAt:     now,
	}, nil
}
