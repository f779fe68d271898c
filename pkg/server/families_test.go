package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
)

func TestFamilyLifecycle(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodPost, "/api/families", "alice", map[string]any{
		"name":        "  Smith  ",
		"description": "The Smiths of Córdoba",
	})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	require.True(t, body.Get("success").Bool())
	require.Equal(t, "Smith", body.Get("data.name").String())
	require.Equal(t, "owner", body.Get("data.role").String())
	require.Equal(t, "alice", body.Get("data.created_by").String())
	familyID := body.Get("data.id").String()
	require.NotEmpty(t, familyID)

	member, err := env.ds.GetMember(context.Background(), familyID, "alice")
	require.NoError(t, err)
	require.Equal(t, storage.RoleOwner, member.Role)
	require.Equal(t, "alice@example.com", member.Email)

	status, body = env.do(http.MethodGet, "/api/families", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Get("data").Array(), 1)
	require.True(t, body.Get("continuation_token").Exists())

	status, body = env.do(http.MethodGet, "/api/families", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body.Get("data").Array())

	status, body = env.do(http.MethodGet, "/api/families/"+familyID, "bob", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")
	require.Equal(t, "family not found", body.Get("message").String())

	status, body = env.do(http.MethodPut, "/api/families/"+familyID, "alice", map[string]any{"name": "Smith-Jones"})
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.Equal(t, "Smith-Jones", body.Get("data.name").String())
	require.Equal(t, "The Smiths of Córdoba", body.Get("data.description").String())

	status, body = env.do(http.MethodPut, "/api/families/"+familyID, "alice", map[string]any{"name": " "})
	requireError(t, status, body, http.StatusBadRequest, "validation_error")

	status, _ = env.do(http.MethodDelete, "/api/families/"+familyID, "alice", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = env.do(http.MethodGet, "/api/families/"+familyID, "alice", nil)
	requireError(t, status, body, http.StatusNotFound, "not_found")
}

func TestCreateFamilyValidation(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodPost, "/api/families", "alice", map[string]any{"name": ""})
	requireError(t, status, body, http.StatusBadRequest, "validation_error")
	require.Contains(t, body.Get("message").String(), "name")
}

func TestFamilyRoles(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("García", map[string]storage.Role{
		"admin":  storage.RoleAdmin,
		"editor": storage.RoleEditor,
		"viewer": storage.RoleViewer,
	})

	tests := []struct {
		name       string
		method     string
		path       string
		subject    string
		body       any
		wantStatus int
	}{
		{"viewer_reads_family", http.MethodGet, "/api/families/" + familyID, "viewer", nil, http.StatusOK},
		{"viewer_reads_members", http.MethodGet, "/api/families/" + familyID + "/members", "viewer", nil, http.StatusOK},
		{"viewer_reads_tree", http.MethodGet, "/api/families/" + familyID + "/tree", "viewer", nil, http.StatusOK},
		{"viewer_reads_stats", http.MethodGet, "/api/families/" + familyID + "/stats", "viewer", nil, http.StatusOK},
		{"editor_cannot_update_family", http.MethodPut, "/api/families/" + familyID, "editor", map[string]any{"name": "X"}, http.StatusForbidden},
		{"admin_updates_family", http.MethodPut, "/api/families/" + familyID, "admin", map[string]any{"description": "updated"}, http.StatusOK},
		{"admin_cannot_delete_family", http.MethodDelete, "/api/families/" + familyID, "admin", nil, http.StatusForbidden},
		{"stranger_cannot_read_tree", http.MethodGet, "/api/families/" + familyID + "/tree", "stranger", nil, http.StatusNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status, body := env.do(test.method, test.path, test.subject, test.body)
			require.Equal(t, test.wantStatus, status, body.Raw)
		})
	}

	_, body := env.do(http.MethodGet, "/api/families/"+familyID, "editor", nil)
	require.Equal(t, "editor", body.Get("data.role").String())
}

func TestMemberManagement(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Pérez", map[string]storage.Role{
		"admin":  storage.RoleAdmin,
		"admin2": storage.RoleAdmin,
		"editor": storage.RoleEditor,
		"viewer": storage.RoleViewer,
	})
	members := "/api/families/" + familyID + "/members/"

	t.Run("admin_cannot_promote_to_admin", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"editor", "admin", map[string]any{"role": "admin"})
		requireError(t, status, body, http.StatusForbidden, "forbidden")
	})

	t.Run("admin_cannot_manage_admin", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"admin2", "admin", map[string]any{"role": "viewer"})
		requireError(t, status, body, http.StatusForbidden, "forbidden")
	})

	t.Run("admin_demotes_editor", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"editor", "admin", map[string]any{"role": "viewer"})
		require.Equal(t, http.StatusOK, status, body.Raw)
		require.Equal(t, "viewer", body.Get("data.role").String())
	})

	t.Run("editor_cannot_manage_members", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"viewer", "editor", map[string]any{"role": "editor"})
		requireError(t, status, body, http.StatusForbidden, "forbidden")
	})

	t.Run("invalid_role", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"viewer", "owner", map[string]any{"role": "emperor"})
		requireError(t, status, body, http.StatusBadRequest, "validation_error")
	})

	t.Run("unknown_member", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"ghost", "owner", map[string]any{"role": "viewer"})
		requireError(t, status, body, http.StatusNotFound, "not_found")
	})

	t.Run("last_owner_cannot_be_demoted", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"owner", "owner", map[string]any{"role": "admin"})
		requireError(t, status, body, http.StatusConflict, "conflict")
	})

	t.Run("last_owner_cannot_leave", func(t *testing.T) {
		status, body := env.do(http.MethodDelete, members+"owner", "owner", nil)
		requireError(t, status, body, http.StatusConflict, "conflict")
	})

	t.Run("owner_promotes_admin_to_owner", func(t *testing.T) {
		status, body := env.do(http.MethodPut, members+"admin2", "owner", map[string]any{"role": "owner"})
		require.Equal(t, http.StatusOK, status, body.Raw)
	})

	t.Run("second_owner_lets_first_leave", func(t *testing.T) {
		status, _ := env.do(http.MethodDelete, members+"owner", "owner", nil)
		require.Equal(t, http.StatusNoContent, status)
	})

	t.Run("viewer_leaves", func(t *testing.T) {
		status, _ := env.do(http.MethodDelete, members+"viewer", "viewer", nil)
		require.Equal(t, http.StatusNoContent, status)
	})

	t.Run("admin_cannot_remove_owner", func(t *testing.T) {
		status, body := env.do(http.MethodDelete, members+"admin2", "admin", nil)
		requireError(t, status, body, http.StatusForbidden, "forbidden")
	})

	status, body := env.do(http.MethodGet, "/api/families/"+familyID+"/members", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	roles := map[string]string{}
	for _, m := range body.Get("data").Array() {
		roles[m.Get("user_id").String()] = m.Get("role").String()
	}
	require.Equal(t, map[string]string{"admin": "admin", "admin2": "owner", "editor": "viewer"}, roles)

	env.close()

	notifications, _, err := env.ds.ListNotifications(context.Background(), "editor", storage.NotificationFilter{}, storage.PaginationOptions{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, storage.NotificationRoleChanged, notifications[0].Type)
}

func TestDeleteFamilyRemovesMediaContent(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Rossi", nil)

	mediaID := env.upload(familyID, "owner", "photo.png", "image/png", pngBytes, nil)
	media, err := env.ds.GetMedia(context.Background(), mediaID)
	require.NoError(t, err)

	status, _ := env.do(http.MethodDelete, "/api/families/"+familyID, "owner", nil)
	require.Equal(t, http.StatusNoContent, status)

	_, _, err = env.server.blobStore.Get(context.Background(), media.StorageKey)
	require.Error(t, err)
}

func TestFamilyTreeAndStats(t *testing.T) {
	env := newTestEnv(t)
	familyID := env.seedFamily("Bianchi", nil)
	father := env.seedPerson(familyID, storage.Person{FirstName: "Mario", LastName: "Bianchi", Gender: storage.GenderMale, BirthDate: "1950"})
	son := env.seedPerson(familyID, storage.Person{FirstName: "Luca", LastName: "Bianchi", Gender: storage.GenderMale, BirthDate: "1980-05", IsLiving: true})

	status, body := env.do(http.MethodPost, "/api/relationships", "owner", map[string]any{
		"family_id":         familyID,
		"person1_id":        father,
		"person2_id":        son,
		"relationship_type": "parent",
	})
	require.Equal(t, http.StatusCreated, status, body.Raw)

	status, body = env.do(http.MethodGet, "/api/families/"+familyID+"/tree", "owner", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.Equal(t, "Bianchi", body.Get("data.family.name").String())
	require.Len(t, body.Get("data.persons").Array(), 2)
	require.Len(t, body.Get("data.relationships").Array(), 1)

	status, body = env.do(http.MethodGet, "/api/families/"+familyID+"/stats", "owner", nil)
	require.Equal(t, http.StatusOK, status, body.Raw)
	require.EqualValues(t, 2, body.Get("data.total_persons").Int())
	require.EqualValues(t, 1, body.Get("data.living_persons").Int())
	require.EqualValues(t, 1950, body.Get("data.earliest_birth_year").Int())
}
