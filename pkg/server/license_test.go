package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
)

func TestLicenseEndpoints(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Smith", map[string]storage.Role{
		"admin":  storage.RoleAdmin,
		"viewer": storage.RoleViewer,
	})

	status, body := env.do(http.MethodGet, "/api/license/status/"+familyID, "viewer", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.False(t, body.Get("data.allowed").Bool())
	require.Equal(t, "no_license", body.Get("data.reason").String())
	require.True(t, body.Get("data.trial_available").Bool())

	status, body = env.do(http.MethodGet, "/api/license/status/"+familyID, "stranger", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")

	status, body = env.do(http.MethodPost, "/api/license/trial/"+familyID, "viewer", nil)
	requireError(t, status, body, http.StatusForbidden, "forbidden")

	status, body = env.do(http.MethodPost, "/api/license/trial/"+familyID, "admin", nil)
	require.Equal(t, http.StatusCreated, status, body.Raw)
	require.Equal(t, "trial", body.Get("data.status").String())

	_, body = env.do(http.MethodGet, "/api/license/status/"+familyID, "viewer", nil)
	require.True(t, body.Get("data.allowed").Bool())
	require.Equal(t, "trial", body.Get("data.reason").String())

	status, body = env.do(http.MethodPost, "/api/license/trial/"+familyID, "admin", nil)
	requireError(t, status, body, http.StatusConflict, "conflict")

	status, body = env.do(http.MethodPost, "/api/license/activate/"+familyID, "admin", map[string]any{"plan": "yearly", "duration_days": 365})
	requireError(t, status, body, http.StatusForbidden, "forbidden")

	status, body = env.do(http.MethodPost, "/api/license/activate/"+familyID, "owner", map[string]any{"plan": " ", "duration_days": 365})
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	status, body = env.do(http.MethodPost, "/api/license/activate/"+familyID, "owner", map[string]any{"plan": "yearly", "duration_days": -1})
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	status, body = env.do(http.MethodPost, "/api/license/activate/"+familyID, "owner", map[string]any{"plan": "yearly", "duration_days": 365})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	require.Equal(t, "active", body.Get("data.status").String())
	require.Equal(t, "yearly", body.Get("data.plan").String())

	status, body = env.do(http.MethodPost, "/api/license/cancel/"+familyID, "admin", nil)
	requireError(t, status, body, http.StatusForbidden, "forbidden")

	status, body = env.do(http.MethodPost, "/api/license/cancel/"+familyID, "owner", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.Equal(t, "cancelled", body.Get("data.status").String())

	_, body = env.do(http.MethodGet, "/api/license/status/"+familyID, "viewer", nil)
	require.False(t, body.Get("data.allowed").Bool())
	require.Equal(t, "cancelled", body.Get("data.reason").String())
}

func TestFreeFamilies(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/api/license/free-families", "anyone", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []any{"genea", "rossi", "fernandez", "bianchi"}, body.Get("data.surnames").Value())

	familyID := env.seedFamily("Los Fernández de Salta", nil)
	_, body = env.do(http.MethodGet, "/api/license/status/"+familyID, "owner", nil)
	require.True(t, body.Get("data.allowed").Bool())
	require.True(t, body.Get("data.free_family").Bool())

	status, body = env.do(http.MethodPost, "/api/license/trial/"+familyID, "owner", nil)
	requireError(t, status, body, http.StatusConflict, "conflict")
}
