// Package governance is the state-transition and access-control core: it
// validates a requested transition against the current records and, when it
// is accepted, applies it to the in-memory values. It performs no I/O; the
// caller persists the mutated records atomically.
package governance

import (
	"time"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/layout"
)

// MaxProposals is the number of proposals an organization can ever create.
const MaxProposals = 255

// Policy holds the tunable rules of the ledger.
type Policy struct {
	// MaxVoters caps distinct voters per proposal; 0 removes the cap.
	MaxVoters int
	// RestrictClose limits close to the organization administrator.
	// Off by default: any caller may close an active proposal.
	RestrictClose bool
}

// DefaultPolicy matches the fixed-size record layout.
func DefaultPolicy() Policy {
	return Policy{MaxVoters: layout.DefaultVoterCapacity}
}

// Engine applies transitions for the records owned by one program id.
type Engine struct {
	program address.Pubkey
	policy  Policy
	now     func() time.Time
}

// NewEngine creates an engine for program.
func NewEngine(program address.Pubkey, policy Policy) *Engine {
	return &Engine{program: program, policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// Program returns the program id used in address derivation.
func (e *Engine) Program() address.Pubkey { return e.program }

// Policy returns the engine policy.
func (e *Engine) Policy() Policy { return e.policy }

// ProposalSpace returns the reserved record size for a proposal under the policy.
func (e *Engine) ProposalSpace() int {
	return layout.ProposalSpace(e.policy.MaxVoters)
}
