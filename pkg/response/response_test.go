package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		send    func(c *gin.Context)
		status  int
		success bool
		code    string
	}{
		{"ok", func(c *gin.Context) { OK(c, map[string]int{"n": 1}) }, http.StatusOK, true, ""},
		{"created", func(c *gin.Context) { Created(c, "x") }, http.StatusCreated, true, ""},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest, false, ""},
		{"fail", func(c *gin.Context) { Fail(c, http.StatusConflict, "AlreadyVoted", "already voted") }, http.StatusConflict, false, "AlreadyVoted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.send(c)

			assert.Equal(t, tt.status, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.success, body.Success)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}
