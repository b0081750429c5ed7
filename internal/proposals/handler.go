package proposals

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/dao"
	"github.com/xendao/governance/internal/httperr"
	"github.com/xendao/governance/internal/middleware"
	"github.com/xendao/governance/internal/organizations"
	"github.com/xendao/governance/pkg/response"
)

// Handler handles proposal HTTP endpoints under /organizations/:address/proposals.
type Handler struct {
	svc *dao.Service
}

// NewHandler creates a proposals handler.
func NewHandler(svc *dao.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body for POST /organizations/:address/proposals.
type CreateRequest struct {
	Description string `json:"description"`
}

// VoteRequest is the body for POST .../proposals/:sequence/votes.
type VoteRequest struct {
	Choice *bool `json:"choice" binding:"required"`
}

// Create handles POST /organizations/:address/proposals.
func (h *Handler) Create(c *gin.Context) {
	caller, org, ok := callerAndOrganization(c)
	if !ok {
		return
	}
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.CreateProposal(c.Request.Context(), caller, org, body.Description)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.Created(c, p)
}

// List handles GET /organizations/:address/proposals.
func (h *Handler) List(c *gin.Context) {
	org, ok := organizations.ParseAddressParam(c, "address")
	if !ok {
		return
	}
	list, err := h.svc.Proposals(c.Request.Context(), org)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /organizations/:address/proposals/:sequence.
func (h *Handler) Get(c *gin.Context) {
	org, ok := organizations.ParseAddressParam(c, "address")
	if !ok {
		return
	}
	seq, ok := parseSequence(c)
	if !ok {
		return
	}
	p, err := h.svc.Proposal(c.Request.Context(), org, seq)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, p)
}

// Vote handles POST /organizations/:address/proposals/:sequence/votes.
func (h *Handler) Vote(c *gin.Context) {
	caller, org, ok := callerAndOrganization(c)
	if !ok {
		return
	}
	seq, ok := parseSequence(c)
	if !ok {
		return
	}
	var body VoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "choice (true for yes, false for no) required")
		return
	}
	res, err := h.svc.Vote(c.Request.Context(), caller, org, seq, *body.Choice)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, res)
}

// Close handles POST /organizations/:address/proposals/:sequence/close.
func (h *Handler) Close(c *gin.Context) {
	caller, org, ok := callerAndOrganization(c)
	if !ok {
		return
	}
	seq, ok := parseSequence(c)
	if !ok {
		return
	}
	receipt, err := h.svc.CloseProposal(c.Request.Context(), caller, org, seq)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, receipt)
}

func callerAndOrganization(c *gin.Context) (address.Pubkey, address.Pubkey, bool) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Unauthorized(c, "missing caller")
		return address.Pubkey{}, address.Pubkey{}, false
	}
	org, ok := organizations.ParseAddressParam(c, "address")
	return caller, org, ok
}

func parseSequence(c *gin.Context) (uint8, bool) {
	seq, err := strconv.ParseUint(c.Param("sequence"), 10, 8)
	if err != nil {
		response.BadRequest(c, "sequence must be an integer in 0..255")
		return 0, false
	}
	return uint8(seq), true
}
