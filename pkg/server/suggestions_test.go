package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
)

func TestSuggestionsAreGated(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Smith", nil)

	for _, path := range []string{"relationships", "duplicates"} {
		status, body := env.do(http.MethodGet, "/api/families/"+familyID+"/suggestions/"+path, "owner", nil)
		requireError(t, status, body, http.StatusForbidden, "license_required")
	}
}

func TestSuggestions(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Rossi", map[string]storage.Role{"viewer": storage.RoleViewer})

	env.seedPerson(familyID, storage.Person{FirstName: "Giuseppe", LastName: "Rossi", BirthDate: "1920", BirthPlace: "Rosario, Santa Fe"})
	env.seedPerson(familyID, storage.Person{FirstName: "Marco", LastName: "Rossi", BirthDate: "1950", BirthPlace: "Rosario"})
	env.seedPerson(familyID, storage.Person{FirstName: "Maria", LastName: "Gonzalez", BirthDate: "1931-04-02", BirthPlace: "Córdoba"})
	env.seedPerson(familyID, storage.Person{FirstName: "María", LastName: "González", BirthDate: "1931-04-02", BirthPlace: "Córdoba"})

	status, body := env.do(http.MethodGet, "/api/families/"+familyID+"/suggestions/relationships", "viewer", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.NotEmpty(t, body.Get("data").Array())

	status, body = env.do(http.MethodGet, "/api/families/"+familyID+"/suggestions/duplicates", "viewer", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.Len(t, body.Get("data").Array(), 1)

	status, body = env.do(http.MethodGet, "/api/families/"+familyID+"/suggestions/relationships?min_score=500", "viewer", nil)
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	status, body = env.do(http.MethodGet, "/api/families/"+familyID+"/suggestions/relationships?min_score=200", "viewer", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.True(t, body.Get("data").IsArray())
	require.Empty(t, body.Get("data").Array())
}
