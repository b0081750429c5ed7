// Package httperr turns ledger errors into HTTP responses.
package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xendao/governance/internal/governance"
	"github.com/xendao/governance/pkg/response"
)

// Status maps a ledger error kind to its HTTP status.
func Status(kind governance.Kind) int {
	switch kind {
	case governance.KindValidation:
		return http.StatusBadRequest
	case governance.KindAuthorization:
		return http.StatusForbidden
	case governance.KindNotFound:
		return http.StatusNotFound
	case governance.KindState:
		return http.StatusConflict
	case governance.KindResource:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Respond sends a rejected transition with its code, or a generic 500 for
// infrastructure failures so internals are not leaked.
func Respond(c *gin.Context, err error) {
	kind := governance.KindOf(err)
	if kind == governance.KindInternal {
		_ = c.Error(err)
		response.Internal(c, "internal error")
		return
	}
	response.Fail(c, Status(kind), governance.CodeOf(err), err.Error())
}
