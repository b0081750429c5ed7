package proposals

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/auth"
	"github.com/xendao/governance/internal/dao"
	"github.com/xendao/governance/internal/governance"
	"github.com/xendao/governance/internal/middleware"
	"github.com/xendao/governance/internal/models"
	"github.com/xendao/governance/internal/organizations"
	"github.com/xendao/governance/internal/store"
)

const orgAddress = "3Dwva5gFLytc4QvtVWRAXR7YhE6oA1CsFcHWxGQnJJR4"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
	svc    *dao.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	program := address.MustParsePubkey("7XcNV2hAtWFBb6y4YfSngsDyCLGes8LbFeVhUJNrxGt7")
	svc := dao.NewService(governance.NewEngine(program, governance.DefaultPolicy()), store.NewMemory(), nil, nil, nil, nil)
	jwtSvc := auth.NewJWTService("secret", 1)
	orgs := organizations.NewHandler(svc)
	h := NewHandler(svc)

	r := gin.New()
	r.GET("/organizations/:address/proposals", h.List)
	r.GET("/organizations/:address/proposals/:sequence", h.Get)
	api := r.Group("", middleware.JWT(jwtSvc))
	api.POST("/organizations", orgs.Initialize)
	api.POST("/organizations/:address/proposals", h.Create)
	api.POST("/organizations/:address/proposals/:sequence/votes", h.Vote)
	api.POST("/organizations/:address/proposals/:sequence/close", h.Close)
	return &harness{t: t, router: r, jwt: jwtSvc, svc: svc}
}

func (h *harness) identity(b byte) (address.Pubkey, string) {
	var pk address.Pubkey
	pk[0] = b
	pk[31] = b
	tok, err := h.jwt.Generate(pk)
	require.NoError(h.t, err)
	return pk, tok
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()
	raw := []byte{}
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(h.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func vote(choice bool) map[string]bool { return map[string]bool{"choice": choice} }

func TestProposalLifecycle(t *testing.T) {
	h := newHarness(t)
	_, admin := h.identity(1)
	_, alice := h.identity(2)
	closer, bob := h.identity(3)
	base := "/organizations/" + orgAddress + "/proposals"

	status, _ := h.do(http.MethodPost, "/organizations", admin, map[string]string{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, status)

	status, env := h.do(http.MethodPost, base, admin, CreateRequest{Description: "Fund X"})
	require.Equal(t, http.StatusCreated, status)
	var p models.Proposal
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, uint8(0), p.SequenceID)
	assert.True(t, p.IsActive)

	status, env = h.do(http.MethodPost, base+"/0/votes", alice, vote(true))
	require.Equal(t, http.StatusOK, status)
	var res dao.VoteResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, uint64(1), res.Proposal.YesVotes)
	assert.Equal(t, uint64(1), res.TotalParticipation)

	status, env = h.do(http.MethodPost, base+"/0/votes", alice, vote(false))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AlreadyVoted", env.Code)

	status, env = h.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, status)
	var list []models.Proposal
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	status, env = h.do(http.MethodPost, base+"/0/close", bob, nil)
	require.Equal(t, http.StatusOK, status)
	var receipt models.CloseReceipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, closer, receipt.RefundedTo)
	assert.Equal(t, uint64(1), receipt.YesVotes)

	status, env = h.do(http.MethodPost, base+"/0/close", admin, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ProposalAlreadyClosed", env.Code)

	status, env = h.do(http.MethodPost, base+"/0/votes", bob, vote(true))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ProposalNotActive", env.Code)

	status, env = h.do(http.MethodGet, base+"/0", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ProposalNotFound", env.Code)

	status, env = h.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestProposalErrors(t *testing.T) {
	h := newHarness(t)
	_, admin := h.identity(1)
	_, alice := h.identity(2)
	base := "/organizations/" + orgAddress + "/proposals"

	status, env := h.do(http.MethodPost, base, admin, CreateRequest{Description: "Fund X"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "OrganizationNotFound", env.Code)

	status, _ = h.do(http.MethodPost, "/organizations", admin, map[string]string{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name   string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"non-admin create", base, alice, CreateRequest{Description: "x"}, http.StatusForbidden, "Unauthorized"},
		{"description too long", base, admin, CreateRequest{Description: strings.Repeat("d", 257)}, http.StatusBadRequest, "DescriptionTooLong"},
		{"unknown sequence", base + "/9/votes", alice, vote(true), http.StatusNotFound, "ProposalNotFound"},
		{"bad sequence", base + "/abc/votes", alice, vote(true), http.StatusBadRequest, ""},
		{"missing choice", base + "/0/votes", alice, map[string]string{}, http.StatusBadRequest, ""},
		{"no token", base, "", CreateRequest{Description: "x"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := h.do(http.MethodPost, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestProposalLimit(t *testing.T) {
	h := newHarness(t)
	_, admin := h.identity(1)
	base := "/organizations/" + orgAddress + "/proposals"

	status, _ := h.do(http.MethodPost, "/organizations", admin, map[string]string{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, status)
	for i := 0; i < governance.MaxProposals; i++ {
		status, _ = h.do(http.MethodPost, base, admin, CreateRequest{Description: "p"})
		require.Equal(t, http.StatusCreated, status, "proposal %d", i)
	}

	status, env := h.do(http.MethodPost, base, admin, CreateRequest{Description: "one too many"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ProposalLimitReached", env.Code)
}
