package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"integrationhub/internal/deintegration"
	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/portalloc"
	"integrationhub/internal/registry"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	bus := eventbus.New(eventbus.Config{})
	reg := registry.New(portalloc.New(24000, 24100), healthprobe.New(), bus, true)
	deint, err := deintegration.New(reg, bus, nil, filepath.Join(t.TempDir(), "deint"))
	require.NoError(t, err)
	return NewRouter(reg, deint)
}

func doJSON(t *testing.T, router *Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(context.Background())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterThenGetRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/integrations/", map[string]interface{}{
		"name": "billing-api",
		"type": "api-service",
		"config": map[string]interface{}{
			"apiUrl": "http://localhost:5000",
		},
		"options": map[string]interface{}{"skipHealthCheck": true},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	getRec := doJSON(t, router, http.MethodGet, "/integrations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetUnknownIDReturnsNotFoundKind(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/integrations/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "NotFound", body["error"])
}

func TestDeleteReturnsDeintegrationID(t *testing.T) {
	router := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/integrations/", map[string]interface{}{
		"name": "cache",
		"type": "database",
		"config": map[string]interface{}{
			"connectionString": "redis://localhost",
		},
		"options": map[string]interface{}{"skipHealthCheck": true},
	})
	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	delRec := doJSON(t, router, http.MethodDelete, "/integrations/"+created.ID, map[string]interface{}{
		"policy": "immediate",
	})
	require.Equal(t, http.StatusAccepted, delRec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(delRec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["deintegrationId"])
}
