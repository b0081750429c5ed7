package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/xendao/governance/internal/address"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims holds JWT claims identifying the caller by public key.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// Caller returns the identity carried by the token.
func (c *Claims) Caller() (address.Pubkey, error) {
	return address.ParsePubkey(c.Address)
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// Generate creates a new JWT for the caller identity.
func (s *JWTService) Generate(caller address.Pubkey) (string, error) {
	now := time.Now()
	claims := Claims{
		Address: caller.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.Caller(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateCaller validates a token and returns the caller identity.
func (s *JWTService) ValidateCaller(tokenString string) (address.Pubkey, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return address.Pubkey{}, err
	}
	return claims.Caller()
}
