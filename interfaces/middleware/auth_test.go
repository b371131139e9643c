package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/dto"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/utils"
)

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin", AdminAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("admin_subject")})
	})
	return r
}

func call(r *gin.Engine, header string) (*httptest.ResponseRecorder, dto.Res) {
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var res dto.Res
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func TestAdminAuth(t *testing.T) {
	r := newRouter("secret")
	valid, err := utils.GenerateAdminToken("ops", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateAdminToken("ops", "secret", -time.Hour)
	require.NoError(t, err)

	w, _ := call(r, "Bearer "+valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"ops"}`, w.Body.String())

	w, res := call(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", res.ResponseMessage)

	w, res = call(r, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "That's not even a token", res.ResponseMessage)

	w, res = call(r, "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Timing is everything", res.ResponseMessage)

	w, _ = call(r, "Basic "+valid)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_DisabledWithoutSecret(t *testing.T) {
	w, _ := call(newRouter(""), "Bearer x")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
