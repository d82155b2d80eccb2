package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/internal/middleware"
	"github.com/uh2c-dev/memoire-api/internal/models"
)

func TestThemeHandlerSubmitRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewThemeHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/themes", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestThemeHandlerSubmitRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewThemeHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/themes", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActorFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := actorFromContext(c)
	require.False(t, ok)

	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:     "head-1",
		Role:       models.RoleDepartmentHead,
		Department: "Informatique",
	})
	actor, ok := actorFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "head-1", actor.ID)
	assert.Equal(t, models.RoleDepartmentHead, actor.Role)
	assert.Equal(t, "Informatique", actor.Department)
}

func TestQueryHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, _ := http.NewRequest(http.MethodGet, "/themes?limit=50&offset=abc&status=pending,%20approved", nil)
	c.Request = req

	assert.Equal(t, 50, queryInt(c, "limit", 20))
	assert.Equal(t, 0, queryInt(c, "offset", 0))
	assert.Equal(t, []string{"PENDING", "APPROVED"}, splitQuery(c.Query("status")))
	assert.Nil(t, splitQuery(""))
}
