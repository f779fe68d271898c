package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
)

func TestCreatePerson(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("López", map[string]storage.Role{
		"editor": storage.RoleEditor,
		"viewer": storage.RoleViewer,
	})
	persons := "/api/families/" + familyID + "/persons"

	tests := []struct {
		name     string
		subject  string
		body     map[string]any
		wantCode string
	}{
		{"missing_first_name", "editor", map[string]any{"last_name": "López"}, "validation_error"},
		{"invalid_gender", "editor", map[string]any{"first_name": "Ana", "gender": "robot"}, "validation_error"},
		{"invalid_birth_date", "editor", map[string]any{"first_name": "Ana", "birth_date": "12/03/1950"}, "validation_error"},
		{"death_before_birth", "editor", map[string]any{"first_name": "Ana", "birth_date": "1950", "death_date": "1940-01-01"}, "validation_error"},
		{"viewer_cannot_create", "viewer", map[string]any{"first_name": "Ana"}, "forbidden"},
		{"stranger_cannot_create", "stranger", map[string]any{"first_name": "Ana"}, "not_found"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, body := env.do(http.MethodPost, persons, test.subject, test.body)
			require.False(t, body.Get("success").Bool())
			require.Equal(t, test.wantCode, body.Get("error").String(), body.Raw)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		status, body := env.do(http.MethodPost, persons, "editor", map[string]any{"first_name": " Ana ", "last_name": "López"})
		require.Equal(t, http.StatusCreated, status, body.Raw)
		require.Equal(t, "Ana", body.Get("data.first_name").String())
		require.Equal(t, "unknown", body.Get("data.gender").String())
		require.True(t, body.Get("data.is_living").Bool())
		require.Equal(t, "editor", body.Get("data.created_by").String())
	})

	t.Run("death_date_marks_deceased", func(t *testing.T) {
		status, body := env.do(http.MethodPost, persons, "editor", map[string]any{
			"first_name": "José",
			"birth_date": "1901-02",
			"death_date": "1980",
			"is_living":  true,
		})
		require.Equal(t, http.StatusCreated, status, body.Raw)
		require.False(t, body.Get("data.is_living").Bool())
	})

	env.close()

	ctx := context.Background()
	forOwner, _, err := env.ds.ListNotifications(ctx, "owner", storage.NotificationFilter{}, storage.PaginationOptions{})
	require.NoError(t, err)
	require.Len(t, forOwner, 2)
	require.Equal(t, storage.NotificationPersonAdded, forOwner[0].Type)
	require.Equal(t, "José was added to the family tree", forOwner[0].Message)

	forEditor, _, err := env.ds.ListNotifications(ctx, "editor", storage.NotificationFilter{}, storage.PaginationOptions{})
	require.NoError(t, err)
	require.Empty(t, forEditor)
}

func TestListPersons(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Díaz", nil)
	env.seedPerson(familyID, storage.Person{FirstName: "María", LastName: "Díaz", IsLiving: true})
	env.seedPerson(familyID, storage.Person{FirstName: "Juan", LastName: "Díaz"})
	env.seedPerson(familyID, storage.Person{FirstName: "Rosa", LastName: "Gómez", MaidenName: "Díaz", IsLiving: true})
	persons := "/api/families/" + familyID + "/persons"

	status, body := env.do(http.MethodGet, persons, "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Get("data").Array(), 3)
	require.Empty(t, body.Get("continuation_token").String())

	_, body = env.do(http.MethodGet, persons+"?living=true", "owner", nil)
	require.Len(t, body.Get("data").Array(), 2)

	_, body = env.do(http.MethodGet, persons+"?search=gom", "owner", nil)
	require.Len(t, body.Get("data").Array(), 1)
	require.Equal(t, "Rosa", body.Get("data.0.first_name").String())

	status, body = env.do(http.MethodGet, persons+"?living=maybe", "owner", nil)
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	_, body = env.do(http.MethodGet, persons+"?page_size=2", "owner", nil)
	require.Len(t, body.Get("data").Array(), 2)
	token := body.Get("continuation_token").String()
	require.NotEmpty(t, token)

	_, body = env.do(http.MethodGet, persons+"?page_size=2&continuation_token="+token, "owner", nil)
	require.Len(t, body.Get("data").Array(), 1)
	require.Empty(t, body.Get("continuation_token").String())
}

func TestPersonAccess(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Torres", map[string]storage.Role{
		"admin":  storage.RoleAdmin,
		"editor": storage.RoleEditor,
	})
	personID := env.seedPerson(familyID, storage.Person{FirstName: "Elena", LastName: "Torres", IsLiving: true})
	path := "/api/persons/" + personID

	status, body := env.do(http.MethodGet, path, "stranger", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")
	require.Equal(t, "person not found", body.Get("message").String())

	status, body = env.do(http.MethodGet, "/api/persons/01JNKQ6M2N2XWV6V8Y2VJ0X3QZ", "owner", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")

	status, body = env.do(http.MethodPut, path, "editor", map[string]any{"occupation": "Teacher", "death_date": "2020-07-14"})
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.Equal(t, "Teacher", body.Get("data.occupation").String())
	require.Equal(t, "Elena", body.Get("data.first_name").String())
	require.False(t, body.Get("data.is_living").Bool())

	status, body = env.do(http.MethodPut, path, "editor", map[string]any{"first_name": ""})
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	status, body = env.do(http.MethodDelete, path, "editor", nil)
	requireError(t, status, body, http.StatusForbidden, "forbidden")

	status, _ = env.do(http.MethodDelete, path, "admin", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = env.do(http.MethodGet, path, "owner", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")
}
