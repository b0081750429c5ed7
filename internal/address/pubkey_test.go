package address

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePubkey(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		pk, err := ParsePubkey("7XcNV2hAtWFBb6y4YfSngsDyCLGes8LbFeVhUJNrxGt7")
		require.NoError(t, err)
		assert.Equal(t, "7XcNV2hAtWFBb6y4YfSngsDyCLGes8LbFeVhUJNrxGt7", pk.String())
	})

	t.Run("zero key", func(t *testing.T) {
		pk, err := ParsePubkey("11111111111111111111111111111111")
		require.NoError(t, err)
		assert.True(t, pk.IsZero())
	})

	t.Run("bad alphabet", func(t *testing.T) {
		_, err := ParsePubkey("0OIl")
		assert.ErrorIs(t, err, ErrInvalidPubkey)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParsePubkey("3mJr7AoUXx2Wqd")
		assert.ErrorIs(t, err, ErrInvalidPubkey)
	})
}

func TestPubkey_JSON(t *testing.T) {
	pk := MustParsePubkey("3Dwva5gFLytc4QvtVWRAXR7YhE6oA1CsFcHWxGQnJJR4")
	raw, err := json.Marshal(struct {
		Key Pubkey `json:"key"`
	}{pk})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"3Dwva5gFLytc4QvtVWRAXR7YhE6oA1CsFcHWxGQnJJR4"}`, string(raw))

	var out struct {
		Key Pubkey `json:"key"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, pk, out.Key)
}

func TestPubkeyFromBytes(t *testing.T) {
	_, err := PubkeyFromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPubkey)

	pk := MustParsePubkey("3Dwva5gFLytc4QvtVWRAXR7YhE6oA1CsFcHWxGQnJJR4")
	back, err := PubkeyFromBytes(pk[:])
	require.NoError(t, err)
	assert.Equal(t, pk, back)
}
