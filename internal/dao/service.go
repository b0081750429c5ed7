// Package dao runs ledger transitions: it loads the records a request
// touches inside one store transaction, lets the governance engine accept or
// reject the change, persists the result and then announces it.
package dao

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/governance"
	"github.com/xendao/governance/internal/metrics"
	"github.com/xendao/governance/internal/models"
	"github.com/xendao/governance/internal/store"
)

// Event names published after a committed transition.
const (
	EventOrganizationInitialized = "organization_initialized"
	EventProposalCreated         = "proposal_created"
	EventVoteCast                = "vote_cast"
	EventProposalClosed          = "proposal_closed"
)

// Publisher announces committed transitions to subscribers of an organization.
type Publisher interface {
	Publish(ctx context.Context, organization address.Pubkey, event string, payload interface{}) error
}

// Archiver keeps the final state of a destroyed proposal.
type Archiver interface {
	EnqueueArchive(ctx context.Context, receipt *models.CloseReceipt) error
}

// VoteResult is the proposal after a vote and the organization participation counter.
type VoteResult struct {
	Proposal           *models.Proposal `json:"proposal"`
	TotalParticipation uint64           `json:"total_participation"`
}

// Service applies transitions against a store.
type Service struct {
	engine  *governance.Engine
	store   store.Store
	events  Publisher
	archive Archiver
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a ledger service. events, archive and m may be nil.
func NewService(engine *governance.Engine, st store.Store, events Publisher, archive Archiver, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, store: st, events: events, archive: archive, metrics: m, logger: logger}
}

// Engine returns the governance engine.
func (s *Service) Engine() *governance.Engine { return s.engine }

// Initialize creates the organization if absent. created is false when the
// record already existed; it is then returned unchanged.
func (s *Service) Initialize(ctx context.Context, caller address.Pubkey, name string) (org *models.Organization, created bool, err error) {
	defer func() { s.observe("initialize", err, zap.String("caller", caller.String())) }()

	derived, err := s.engine.OrganizationAddress()
	if err != nil {
		return nil, false, err
	}
	err = s.store.Update(ctx, func(tx store.Tx) error {
		existing, err := tx.Organization(ctx, derived.Address)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		org, created, err = s.engine.Initialize(existing, caller, name)
		if err != nil || !created {
			return err
		}
		return tx.InsertOrganization(ctx, org)
	})
	if errors.Is(err, store.ErrConflict) {
		// a concurrent initialize committed first
		org, err = s.store.Organization(ctx, derived.Address)
		created = false
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		s.publish(ctx, org.Address, EventOrganizationInitialized, org)
	}
	return org, created, nil
}

// Organization returns the organization stored at addr.
func (s *Service) Organization(ctx context.Context, addr address.Pubkey) (*models.Organization, error) {
	org, err := s.store.Organization(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, governance.ErrOrganizationNotFound
	}
	return org, err
}

// CreateProposal creates the next proposal of the organization at orgAddr.
func (s *Service) CreateProposal(ctx context.Context, caller, orgAddr address.Pubkey, description string) (p *models.Proposal, err error) {
	defer func() {
		s.observe("create_proposal", err, zap.String("caller", caller.String()), zap.String("organization", orgAddr.String()))
	}()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		org, err := lockOrganization(ctx, tx, orgAddr)
		if err != nil {
			return err
		}
		if p, err = s.engine.CreateProposal(org, caller, description); err != nil {
			return err
		}
		if err := tx.InsertProposal(ctx, p); err != nil {
			return err
		}
		return tx.UpdateOrganization(ctx, org)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orgAddr, EventProposalCreated, p)
	return p, nil
}

// Vote records caller's choice on proposal sequence of the organization at orgAddr.
func (s *Service) Vote(ctx context.Context, caller, orgAddr address.Pubkey, sequence uint8, choice bool) (res *VoteResult, err error) {
	defer func() {
		s.observe("vote", err, zap.String("caller", caller.String()), zap.String("organization", orgAddr.String()),
			zap.Uint8("sequence_id", sequence))
	}()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		org, p, err := s.lockProposal(ctx, tx, orgAddr, sequence, governance.ErrProposalNotActive)
		if err != nil {
			return err
		}
		if err := s.engine.Vote(org, p, caller, choice); err != nil {
			return err
		}
		if err := tx.UpdateProposal(ctx, p); err != nil {
			return err
		}
		if err := tx.UpdateOrganization(ctx, org); err != nil {
			return err
		}
		res = &VoteResult{Proposal: p, TotalParticipation: org.TotalParticipation}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Vote(choice)
	s.publish(ctx, orgAddr, EventVoteCast, map[string]interface{}{
		"organization":        orgAddr,
		"sequence_id":         sequence,
		"voter":               caller,
		"choice":              choice,
		"yes_votes":           res.Proposal.YesVotes,
		"no_votes":            res.Proposal.NoVotes,
		"total_participation": res.TotalParticipation,
	})
	return res, nil
}

// CloseProposal deactivates and destroys the proposal, crediting its deposit to caller.
func (s *Service) CloseProposal(ctx context.Context, caller, orgAddr address.Pubkey, sequence uint8) (receipt *models.CloseReceipt, err error) {
	defer func() {
		s.observe("close_proposal", err, zap.String("caller", caller.String()), zap.String("organization", orgAddr.String()),
			zap.Uint8("sequence_id", sequence))
	}()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		org, p, err := s.lockProposal(ctx, tx, orgAddr, sequence, governance.ErrProposalAlreadyClosed)
		if err != nil {
			return err
		}
		if receipt, err = s.engine.CloseProposal(org, p, caller); err != nil {
			return err
		}
		if err := tx.DeleteProposal(ctx, p.Address); err != nil {
			return err
		}
		return tx.Credit(ctx, caller, receipt.Refund)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orgAddr, EventProposalClosed, receipt)
	if s.archive != nil {
		if err := s.archive.EnqueueArchive(ctx, receipt); err != nil {
			s.logger.Warn("enqueue proposal archive failed", zap.Error(err),
				zap.String("proposal", receipt.Proposal.String()))
		}
	}
	return receipt, nil
}

// Proposal returns a live proposal by sequence id.
func (s *Service) Proposal(ctx context.Context, orgAddr address.Pubkey, sequence uint8) (*models.Proposal, error) {
	if _, err := s.Organization(ctx, orgAddr); err != nil {
		return nil, err
	}
	derived, err := s.engine.ProposalAddress(orgAddr, sequence)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Proposal(ctx, derived.Address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, governance.ErrProposalNotFound
	}
	return p, err
}

// Proposals lists the live proposals of an organization.
func (s *Service) Proposals(ctx context.Context, orgAddr address.Pubkey) ([]*models.Proposal, error) {
	if _, err := s.Organization(ctx, orgAddr); err != nil {
		return nil, err
	}
	return s.store.Proposals(ctx, orgAddr)
}

// Credits returns the deposits reclaimed by owner.
func (s *Service) Credits(ctx context.Context, owner address.Pubkey) (uint64, error) {
	return s.store.Credits(ctx, owner)
}

func lockOrganization(ctx context.Context, tx store.Tx, addr address.Pubkey) (*models.Organization, error) {
	org, err := tx.Organization(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, governance.ErrOrganizationNotFound
	}
	return org, err
}

// lockProposal loads the organization and the proposal with the given
// sequence id. Sequence ids are dense, so a missing record below the
// organization counter was closed: closedErr is returned for it.
func (s *Service) lockProposal(ctx context.Context, tx store.Tx, orgAddr address.Pubkey, sequence uint8, closedErr error) (*models.Organization, *models.Proposal, error) {
	org, err := lockOrganization(ctx, tx, orgAddr)
	if err != nil {
		return nil, nil, err
	}
	derived, err := s.engine.ProposalAddress(org.Address, sequence)
	if err != nil {
		return nil, nil, fmt.Errorf("derive proposal: %w", err)
	}
	p, err := tx.Proposal(ctx, derived.Address)
	if errors.Is(err, store.ErrNotFound) {
		if sequence < org.ProposalCount {
			return nil, nil, closedErr
		}
		return nil, nil, governance.ErrProposalNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return org, p, nil
}

func (s *Service) observe(op string, err error, fields ...zap.Field) {
	if err == nil {
		s.metrics.Transition(op, "ok")
		s.logger.Info("transition accepted", append(fields, zap.String("operation", op))...)
		return
	}
	code := governance.CodeOf(err)
	if code == "" {
		s.metrics.Transition(op, "error")
		s.logger.Error("transition failed", append(fields, zap.String("operation", op), zap.Error(err))...)
		return
	}
	s.metrics.Transition(op, code)
	s.logger.Info("transition rejected", append(fields, zap.String("operation", op), zap.String("code", code))...)
}

func (s *Service) publish(ctx context.Context, org address.Pubkey, event string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, org, event, payload); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", event), zap.String("organization", org.String()), zap.Error(err))
	}
}
