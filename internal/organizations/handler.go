package organizations

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/dao"
	"github.com/xendao/governance/internal/httperr"
	"github.com/xendao/governance/internal/middleware"
	"github.com/xendao/governance/pkg/response"
)

// Handler handles organization and addressing HTTP endpoints.
type Handler struct {
	svc *dao.Service
}

// NewHandler creates an organizations handler.
func NewHandler(svc *dao.Service) *Handler {
	return &Handler{svc: svc}
}

// InitializeRequest is the body for POST /organizations.
type InitializeRequest struct {
	Name string `json:"name"`
}

// CreditsResponse is the body of GET /accounts/:address/credits.
type CreditsResponse struct {
	Address  address.Pubkey `json:"address"`
	Lamports uint64         `json:"lamports"`
}

// Initialize handles POST /organizations. Returns 201 when the record was
// created and 200 with the existing record otherwise.
func (h *Handler) Initialize(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Unauthorized(c, "missing caller")
		return
	}
	var body InitializeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	org, created, err := h.svc.Initialize(c.Request.Context(), caller, body.Name)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if created {
		response.Created(c, org)
		return
	}
	response.OK(c, org)
}

// Get handles GET /organizations/:address.
func (h *Handler) Get(c *gin.Context) {
	addr, ok := ParseAddressParam(c, "address")
	if !ok {
		return
	}
	org, err := h.svc.Organization(c.Request.Context(), addr)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, org)
}

// DeriveOrganization handles GET /derive/organization.
func (h *Handler) DeriveOrganization(c *gin.Context) {
	d, err := h.svc.Engine().OrganizationAddress()
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, d)
}

// DeriveProposal handles GET /derive/proposal?organization=&sequence=.
func (h *Handler) DeriveProposal(c *gin.Context) {
	org, err := address.ParsePubkey(c.Query("organization"))
	if err != nil {
		response.BadRequest(c, "invalid organization")
		return
	}
	seq, err := strconv.ParseUint(c.Query("sequence"), 10, 8)
	if err != nil {
		response.BadRequest(c, "sequence must be an integer in 0..255")
		return
	}
	d, err := h.svc.Engine().ProposalAddress(org, uint8(seq))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	response.OK(c, d)
}

// Credits handles GET /accounts/:address/credits.
func (h *Handler) Credits(c *gin.Context) {
	addr, ok := ParseAddressParam(c, "address")
	if !ok {
		return
	}
	lamports, err := h.svc.Credits(c.Request.Context(), addr)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Body{Success: true, Data: CreditsResponse{Address: addr, Lamports: lamports}})
}

// ParseAddressParam reads a base58 path parameter, writing 400 on failure.
func ParseAddressParam(c *gin.Context, name string) (address.Pubkey, bool) {
	addr, err := address.ParsePubkey(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return address.Pubkey{}, false
	}
	return addr, true
}
