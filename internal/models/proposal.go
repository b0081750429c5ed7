package models

import (
	"time"

	"github.com/xendao/governance/internal/address"
)

// Proposal is a votable item stored at an address derived from its organization and sequence id.
type Proposal struct {
	Address      address.Pubkey   `json:"address"`
	Bump         uint8            `json:"bump"`
	Organization address.Pubkey   `json:"organization"`
	SequenceID   uint8            `json:"sequence_id"`
	Description  string           `json:"description"`
	YesVotes     uint64           `json:"yes_votes"`
	NoVotes      uint64           `json:"no_votes"`
	IsActive     bool             `json:"is_active"`
	Creator      address.Pubkey   `json:"creator"`
	Voters       []address.Pubkey `json:"voters"`
	Lamports     uint64           `json:"lamports"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HasVoted reports whether voter is already in the voter set.
func (p *Proposal) HasVoted(voter address.Pubkey) bool {
	for _, v := range p.Voters {
		if v == voter {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of p.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	c := *p
	c.Voters = append([]address.Pubkey(nil), p.Voters...)
	return &c
}

// CloseReceipt is returned when a proposal is closed and its record destroyed.
type CloseReceipt struct {
	Organization address.Pubkey   `json:"organization"`
	Proposal     address.Pubkey   `json:"proposal"`
	SequenceID   uint8            `json:"sequence_id"`
	Description  string           `json:"description"`
	YesVotes     uint64           `json:"yes_votes"`
	NoVotes      uint64           `json:"no_votes"`
	Voters       []address.Pubkey `json:"voters"`
	Refund       uint64           `json:"refund"`
	RefundedTo   address.Pubkey   `json:"refunded_to"`
	ClosedAt     time.Time        `json:"closed_at"`
}
