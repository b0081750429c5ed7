package layout

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/models"
)

func key(b byte) address.Pubkey {
	var pk address.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func TestSpace(t *testing.T) {
	assert.Equal(t, 85, OrganizationSpace)
	assert.Equal(t, 642, ProposalSpace(DefaultVoterCapacity))
	assert.Equal(t, 322, ProposalSpace(0))
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, "a3092f1f3455c531", hex.EncodeToString(OrganizationDiscriminator[:]))
	assert.Equal(t, "1a5ebdbb74883521", hex.EncodeToString(ProposalDiscriminator[:]))
}

func TestEncodeOrganization(t *testing.T) {
	org := &models.Organization{
		Name:               "Alpha",
		ProposalCount:      3,
		TotalParticipation: 258,
		Administrator:      key(7),
	}
	data, err := EncodeOrganization(org)
	require.NoError(t, err)
	require.Len(t, data, OrganizationSpace)

	assert.Equal(t, OrganizationDiscriminator[:], data[:8])
	assert.Equal(t, []byte{5, 0, 0, 0}, data[8:12])
	assert.Equal(t, "Alpha", string(data[12:17]))
	assert.Equal(t, byte(3), data[17])
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0}, data[18:26])
	assert.Equal(t, org.Administrator[:], data[26:58])
	assert.Equal(t, make([]byte, OrganizationSpace-58), data[58:], "tail is zero padded")

	back, err := DecodeOrganization(data)
	require.NoError(t, err)
	assert.Equal(t, org.Name, back.Name)
	assert.Equal(t, org.ProposalCount, back.ProposalCount)
	assert.Equal(t, org.TotalParticipation, back.TotalParticipation)
	assert.Equal(t, org.Administrator, back.Administrator)
}

func TestEncodeOrganization_NameTooLong(t *testing.T) {
	_, err := EncodeOrganization(&models.Organization{Name: string(make([]byte, MaxNameLength+1))})
	assert.ErrorIs(t, err, ErrSpaceExceeded)
}

func TestEncodeProposal(t *testing.T) {
	p := &models.Proposal{
		SequenceID:  4,
		Description: "Fund X",
		YesVotes:    1,
		NoVotes:     1,
		IsActive:    true,
		Creator:     key(1),
		Voters:      []address.Pubkey{key(2), key(3)},
	}

	t.Run("fixed capacity", func(t *testing.T) {
		data, err := EncodeProposal(p, DefaultVoterCapacity)
		require.NoError(t, err)
		require.Len(t, data, ProposalSpace(DefaultVoterCapacity))
		assert.Equal(t, byte(4), data[8])

		back, err := DecodeProposal(data)
		require.NoError(t, err)
		assert.Equal(t, p.SequenceID, back.SequenceID)
		assert.Equal(t, p.Description, back.Description)
		assert.Equal(t, p.YesVotes, back.YesVotes)
		assert.Equal(t, p.NoVotes, back.NoVotes)
		assert.True(t, back.IsActive)
		assert.Equal(t, p.Creator, back.Creator)
		assert.Equal(t, p.Voters, back.Voters)
	})

	t.Run("variable size", func(t *testing.T) {
		data, err := EncodeProposal(p, 0)
		require.NoError(t, err)
		assert.Len(t, data, ProposalSpace(2))
	})

	t.Run("over capacity", func(t *testing.T) {
		full := p.Clone()
		for i := 0; i < DefaultVoterCapacity; i++ {
			full.Voters = append(full.Voters, key(byte(10+i)))
		}
		_, err := EncodeProposal(full, DefaultVoterCapacity)
		assert.ErrorIs(t, err, ErrSpaceExceeded)
	})
}

func TestDecode_Errors(t *testing.T) {
	org, err := EncodeOrganization(&models.Organization{Name: "Alpha"})
	require.NoError(t, err)

	_, err = DecodeProposal(org)
	assert.ErrorIs(t, err, ErrDiscriminator)

	_, err = DecodeOrganization(org[:20])
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodeOrganization(nil)
	assert.ErrorIs(t, err, ErrShortBuffer)

	// name length prefix claims 33 bytes
	long := append([]byte{}, org...)
	binary.LittleEndian.PutUint32(long[8:12], MaxNameLength+1)
	_, err = DecodeOrganization(long)
	assert.ErrorIs(t, err, ErrSpaceExceeded)
}

func TestMinimumBalance(t *testing.T) {
	assert.Equal(t, uint64(1482480), MinimumBalance(OrganizationSpace))
	assert.Equal(t, uint64(5359200), MinimumBalance(ProposalSpace(DefaultVoterCapacity)))
}
