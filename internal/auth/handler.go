package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/pkg/response"
)

// ChallengeRequest is the body for POST /auth/challenge.
type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

// ChallengeResponse carries the nonce and the exact message to sign.
type ChallengeResponse struct {
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// VerifyRequest is the body for POST /auth/verify.
type VerifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token   string         `json:"token"`
	Address address.Pubkey `json:"address"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	challenges ChallengeStore
	jwt        *JWTService
	logger     *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(challenges ChallengeStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{challenges: challenges, jwt: jwt, logger: logger}
}

// Challenge handles POST /auth/challenge.
func (h *Handler) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	addr, err := address.ParsePubkey(req.Address)
	if err != nil {
		response.BadRequest(c, "invalid address")
		return
	}

	nonce := uuid.NewString()
	if err := h.challenges.SetNonce(c.Request.Context(), addr, nonce); err != nil {
		h.logger.Error("store login nonce failed", zap.Error(err))
		response.Internal(c, "failed to create challenge")
		return
	}
	response.OK(c, ChallengeResponse{
		Nonce:     nonce,
		Message:   string(LoginMessage(nonce)),
		ExpiresIn: int(NonceTTL.Seconds()),
	})
}

// Verify handles POST /auth/verify.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	addr, err := address.ParsePubkey(req.Address)
	if err != nil {
		response.BadRequest(c, "invalid address")
		return
	}

	nonce, err := h.challenges.TakeNonce(c.Request.Context(), addr)
	if errors.Is(err, ErrChallengeExpired) {
		response.Unauthorized(c, "challenge expired")
		return
	}
	if err != nil {
		h.logger.Error("load login nonce failed", zap.Error(err))
		response.Internal(c, "failed to verify challenge")
		return
	}
	if err := VerifySignature(addr, req.Signature, nonce); err != nil {
		response.Unauthorized(c, "bad signature")
		return
	}

	token, err := h.jwt.Generate(addr)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("caller authenticated", zap.String("address", addr.String()))
	response.OK(c, TokenResponse{Token: token, Address: addr})
}
