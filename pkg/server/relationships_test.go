package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
)

func TestRelationships(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Romero", map[string]storage.Role{
		"editor": storage.RoleEditor,
		"viewer": storage.RoleViewer,
	})
	otherFamilyID := env.seedFamily("Acosta", nil)

	mother := env.seedPerson(familyID, storage.Person{FirstName: "Lucía", LastName: "Romero", BirthDate: "1960"})
	daughter := env.seedPerson(familyID, storage.Person{FirstName: "Sofía", LastName: "Romero", BirthDate: "1955"})
	outsider := env.seedPerson(otherFamilyID, storage.Person{FirstName: "Pablo", LastName: "Acosta"})

	create := func(subject string, body map[string]any) (int, string, []string) {
		t.Helper()
		body["family_id"] = familyID
		status, resp := env.do(http.MethodPost, "/api/relationships", subject, body)
		var warnings []string
		for _, w := range resp.Get("data.warnings").Array() {
			warnings = append(warnings, w.Get("code").String())
		}
		if status != http.StatusCreated {
			return status, resp.Get("error").String(), nil
		}
		return status, resp.Get("data.id").String(), warnings
	}

	status, relID, warnings := create("editor", map[string]any{
		"person1_id": mother, "person2_id": daughter, "relationship_type": "parent",
	})
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, relID)
	require.Equal(t, []string{"parent_not_older"}, warnings)

	tests := []struct {
		name       string
		subject    string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{"inverse_duplicate", "editor", map[string]any{"person1_id": daughter, "person2_id": mother, "relationship_type": "child"}, http.StatusConflict, "conflict"},
		{"same_duplicate", "editor", map[string]any{"person1_id": mother, "person2_id": daughter, "relationship_type": "parent"}, http.StatusConflict, "conflict"},
		{"self", "editor", map[string]any{"person1_id": mother, "person2_id": mother, "relationship_type": "sibling"}, http.StatusBadRequest, "validation_error"},
		{"other_family", "editor", map[string]any{"person1_id": mother, "person2_id": outsider, "relationship_type": "sibling"}, http.StatusBadRequest, "validation_error"},
		{"unknown_type", "editor", map[string]any{"person1_id": mother, "person2_id": daughter, "relationship_type": "cousin"}, http.StatusBadRequest, "validation_error"},
		{"viewer", "viewer", map[string]any{"person1_id": mother, "person2_id": daughter, "relationship_type": "sibling"}, http.StatusForbidden, "forbidden"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status, code, _ := create(test.subject, test.body)
			require.Equal(t, test.wantStatus, status)
			require.Equal(t, test.wantCode, code)
		})
	}

	status, body := env.do(http.MethodGet, "/api/families/"+familyID+"/relationships?person_id="+daughter, "viewer", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Get("data").Array(), 1)
	require.Equal(t, "parent", body.Get("data.0.relationship_type").String())

	status, body = env.do(http.MethodGet, "/api/relationships/"+relID, "stranger", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")

	status, body = env.do(http.MethodPut, "/api/relationships/"+relID, "editor", map[string]any{
		"relationship_type": "child",
		"notes":             "adopted",
	})
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.Equal(t, "child", body.Get("data.relationship_type").String())
	require.Equal(t, "adopted", body.Get("data.notes").String())
	require.Equal(t, "parent_too_young", body.Get("data.warnings.0.code").String())

	status, body = env.do(http.MethodPut, "/api/relationships/"+relID, "editor", map[string]any{
		"start_date": "2000", "end_date": "1990",
	})
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	status, _ = env.do(http.MethodDelete, "/api/relationships/"+relID, "editor", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = env.do(http.MethodGet, "/api/relationships/"+relID, "editor", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")
}
