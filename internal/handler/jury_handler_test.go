package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/pkg/storage"
)

func TestDownloadMinutesRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	handler := NewJuryHandler(nil, signer, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/minutes/download", nil)
	c.Request = req

	handler.DownloadMinutes(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadMinutesRejectsTamperedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	handler := NewJuryHandler(nil, signer, nil)

	token, _, err := storage.NewSignedURLSigner("other-secret", time.Minute).Generate("decision-1", "pv-decision-1.pdf")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/minutes/download?token="+token, nil)
	c.Request = req

	handler.DownloadMinutes(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
