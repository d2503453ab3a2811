package openapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	for _, path := range []string{
		"/registrations", "/history", "/active", "/current",
		"/users/unique", "/users/online", "/users/offline", "/users/count",
		"/users/{reg_user}/history", "/users/{reg_user}/details",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "нет пути %s", path)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, Document(), rec.Body.Bytes())
}
