package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"

	"github.com/xendao/governance/internal/address"
)

const (
	noncePrefix = "nonce:"
	// NonceTTL is how long a login challenge stays valid.
	NonceTTL = 5 * time.Minute
	// LoginMessagePrefix is prepended to the nonce to form the signed message.
	LoginMessagePrefix = "xen-dao-voting login: "
)

var (
	ErrChallengeExpired = errors.New("challenge expired")
	ErrBadSignature     = errors.New("bad signature")
)

// ChallengeStore keeps one outstanding nonce per address.
type ChallengeStore interface {
	SetNonce(ctx context.Context, addr address.Pubkey, nonce string) error
	// TakeNonce returns and deletes the nonce; ErrChallengeExpired if none.
	TakeNonce(ctx context.Context, addr address.Pubkey) (string, error)
}

// RedisChallenges stores nonces under nonce:<address> with a TTL.
type RedisChallenges struct {
	rdb redis.Cmdable
}

// NewRedisChallenges creates a Redis-backed challenge store.
func NewRedisChallenges(rdb redis.Cmdable) *RedisChallenges {
	return &RedisChallenges{rdb: rdb}
}

func (r *RedisChallenges) SetNonce(ctx context.Context, addr address.Pubkey, nonce string) error {
	return r.rdb.Set(ctx, noncePrefix+addr.String(), nonce, NonceTTL).Err()
}

func (r *RedisChallenges) TakeNonce(ctx context.Context, addr address.Pubkey) (string, error) {
	nonce, err := r.rdb.GetDel(ctx, noncePrefix+addr.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrChallengeExpired
	}
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	return nonce, nil
}

// LoginMessage is the exact byte string a wallet signs for nonce.
func LoginMessage(nonce string) []byte {
	return []byte(LoginMessagePrefix + nonce)
}

// VerifySignature checks an Ed25519 signature by addr over the login message.
// The signature may be base58 or hex (optionally 0x-prefixed).
func VerifySignature(addr address.Pubkey, signature, nonce string) error {
	sig, err := decodeSignature(signature)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(addr[:]), LoginMessage(nonce), sig) {
		return ErrBadSignature
	}
	return nil
}

func decodeSignature(s string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if strings.HasPrefix(s, "0x") || len(s) == 2*ed25519.SignatureSize {
		raw, err = hex.DecodeString(strings.TrimPrefix(s, "0x"))
	} else {
		raw, err = base58.Decode(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: length %d", ErrBadSignature, len(raw))
	}
	return raw, nil
}
