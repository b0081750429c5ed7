package models

import (
	"time"

	"github.com/xendao/governance/internal/address"
)

// Organization is the single governed entity stored at the "dao" derived address.
type Organization struct {
	Address            address.Pubkey `json:"address"`
	Bump               uint8          `json:"bump"`
	Name               string         `json:"name"`
	ProposalCount      uint8          `json:"proposal_count"`
	TotalParticipation uint64         `json:"total_participation"`
	Administrator      address.Pubkey `json:"administrator"`
	Lamports           uint64         `json:"lamports"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Clone returns a copy that shares no memory with o.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
