package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds is the maximum number of seeds (bump included) accepted by a derivation.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

// Seed tags for the two record kinds.
var (
	OrganizationSeed = []byte("dao")
	ProposalSeed     = []byte("proposal")
)

var (
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
	ErrTooManySeeds  = errors.New("too many seeds")
	// ErrOnCurve means the candidate hash is a valid Ed25519 point and could have a private key.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")
	// ErrNoViableBump is returned when every bump from 255 down to 0 lands on the curve.
	ErrNoViableBump = errors.New("unable to find a viable bump")
)

// Derived is an address together with the bump that made it valid.
type Derived struct {
	Address Pubkey `json:"address"`
	Bump    uint8  `json:"bump"`
}

// CreateProgramAddress hashes seeds with the program id and rejects results
// that decode as an Ed25519 point. Seeds must already include the bump.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, ErrTooManySeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return Pubkey{}, ErrMaxSeedLength
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out[:]) {
		return Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address. The same inputs always yield the same address and bump.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Derived, error) {
	if len(seeds) >= MaxSeeds {
		return Derived{}, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return Derived{Address: addr, Bump: uint8(bump)}, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Derived{}, err
		}
	}
	return Derived{}, ErrNoViableBump
}

// IsOnCurve reports whether b is a valid compressed Edwards25519 point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// Organization derives the organization record address for a program.
func Organization(program Pubkey) (Derived, error) {
	d, err := FindProgramAddress([][]byte{OrganizationSeed}, program)
	if err != nil {
		return Derived{}, fmt.Errorf("derive organization: %w", err)
	}
	return d, nil
}

// Proposal derives the address of the proposal with the given sequence id
// under an organization.
func Proposal(program, organization Pubkey, sequence uint8) (Derived, error) {
	d, err := FindProgramAddress([][]byte{ProposalSeed, organization[:], {sequence}}, program)
	if err != nil {
		return Derived{}, fmt.Errorf("derive proposal %d: %w", sequence, err)
	}
	return d, nil
}

// VerifyProposal checks that addr is the proposal address for (organization, sequence).
func VerifyProposal(program, organization Pubkey, sequence uint8, addr Pubkey) bool {
	d, err := Proposal(program, organization, sequence)
	return err == nil && d.Address == addr
}
