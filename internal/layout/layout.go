// Package layout encodes organization and proposal records into the fixed-size
// account format: an 8-byte discriminator followed by little-endian fields,
// zero-padded to the reserved space.
package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/models"
)

const (
	DiscriminatorLength = 8

	MaxNameLength        = 32
	MaxDescriptionLength = 256
	// DefaultVoterCapacity is the voter list size reserved by the fixed layout.
	DefaultVoterCapacity = 10

	// OrganizationSpace is discriminator + name + proposal_count + total_participation + administrator.
	OrganizationSpace = DiscriminatorLength + 4 + MaxNameLength + 1 + 8 + address.PubkeyLength
)

var (
	OrganizationDiscriminator = discriminator("Dao")
	ProposalDiscriminator     = discriminator("Proposal")
)

var (
	ErrDiscriminator = errors.New("account discriminator mismatch")
	ErrShortBuffer   = errors.New("account data too short")
	ErrSpaceExceeded = errors.New("record exceeds reserved space")
)

func discriminator(name string) [DiscriminatorLength]byte {
	var d [DiscriminatorLength]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// ProposalSpace returns the reserved size of a proposal record holding up to
// voterCap voters. A voterCap of zero gives the size without any voter slots.
func ProposalSpace(voterCap int) int {
	return DiscriminatorLength + 1 + 4 + MaxDescriptionLength + 8 + 8 + 1 + address.PubkeyLength + 4 + address.PubkeyLength*voterCap
}

// EncodeOrganization writes o into an OrganizationSpace-sized buffer.
func EncodeOrganization(o *models.Organization) ([]byte, error) {
	if len(o.Name) > MaxNameLength {
		return nil, fmt.Errorf("name %d bytes: %w", len(o.Name), ErrSpaceExceeded)
	}
	buf := make([]byte, OrganizationSpace)
	w := writer{buf: buf}
	w.bytes(OrganizationDiscriminator[:])
	w.string(o.Name)
	w.u8(o.ProposalCount)
	w.u64(o.TotalParticipation)
	w.bytes(o.Administrator[:])
	return buf, nil
}

// DecodeOrganization parses account data produced by EncodeOrganization.
// Address, bump and deposit are not part of the record and stay zero.
func DecodeOrganization(data []byte) (*models.Organization, error) {
	r := reader{buf: data}
	if err := r.discriminator(OrganizationDiscriminator); err != nil {
		return nil, err
	}
	o := &models.Organization{}
	o.Name = r.string(MaxNameLength)
	o.ProposalCount = r.u8()
	o.TotalParticipation = r.u64()
	o.Administrator = r.pubkey()
	if r.err != nil {
		return nil, fmt.Errorf("decode organization: %w", r.err)
	}
	return o, nil
}

// EncodeProposal writes p into a buffer sized for voterCap voters. With a
// voterCap of zero the buffer is sized to fit exactly the current voters.
func EncodeProposal(p *models.Proposal, voterCap int) ([]byte, error) {
	if len(p.Description) > MaxDescriptionLength {
		return nil, fmt.Errorf("description %d bytes: %w", len(p.Description), ErrSpaceExceeded)
	}
	size := ProposalSpace(voterCap)
	if voterCap == 0 {
		size = ProposalSpace(len(p.Voters))
	} else if len(p.Voters) > voterCap {
		return nil, fmt.Errorf("%d voters, capacity %d: %w", len(p.Voters), voterCap, ErrSpaceExceeded)
	}
	buf := make([]byte, size)
	w := writer{buf: buf}
	w.bytes(ProposalDiscriminator[:])
	w.u8(p.SequenceID)
	w.string(p.Description)
	w.u64(p.YesVotes)
	w.u64(p.NoVotes)
	w.bool(p.IsActive)
	w.bytes(p.Creator[:])
	w.u32(uint32(len(p.Voters)))
	for _, v := range p.Voters {
		w.bytes(v[:])
	}
	return buf, nil
}

// DecodeProposal parses account data produced by EncodeProposal.
func DecodeProposal(data []byte) (*models.Proposal, error) {
	r := reader{buf: data}
	if err := r.discriminator(ProposalDiscriminator); err != nil {
		return nil, err
	}
	p := &models.Proposal{}
	p.SequenceID = r.u8()
	p.Description = r.string(MaxDescriptionLength)
	p.YesVotes = r.u64()
	p.NoVotes = r.u64()
	p.IsActive = r.u8() != 0
	p.Creator = r.pubkey()
	n := r.u32()
	if r.err == nil && int(n) > (len(data)-r.off)/address.PubkeyLength {
		r.err = ErrShortBuffer
	}
	if r.err == nil {
		p.Voters = make([]address.Pubkey, 0, n)
		for i := uint32(0); i < n; i++ {
			p.Voters = append(p.Voters, r.pubkey())
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode proposal: %w", r.err)
	}
	return p, nil
}

type writer struct {
	buf []byte
	off int
}

func (w *writer) bytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) string(s string) {
	w.u32(uint32(len(s)))
	w.bytes([]byte(s))
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) discriminator(want [DiscriminatorLength]byte) error {
	b := r.take(DiscriminatorLength)
	if r.err != nil {
		return r.err
	}
	if [DiscriminatorLength]byte(b) != want {
		return ErrDiscriminator
	}
	return nil
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) string(limit int) string {
	n := r.u32()
	if r.err == nil && int(n) > limit {
		r.err = ErrSpaceExceeded
	}
	return string(r.take(int(n)))
}

func (r *reader) pubkey() address.Pubkey {
	var pk address.Pubkey
	copy(pk[:], r.take(address.PubkeyLength))
	return pk
}
