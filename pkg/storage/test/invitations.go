package test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func InvitationTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	owner := "user-" + id.Must()
	f := newFamily(t, ds, "Sosa", owner)

	newInvitation := func(email string) *storage.Invitation {
		inv := &storage.Invitation{
			ID:        id.Must(),
			FamilyID:  f.ID,
			Email:     email,
			Role:      storage.RoleEditor,
			Token:     uuid.NewString(),
			Status:    storage.InvitationPending,
			InvitedBy: owner,
			ExpiresAt: time.Now().Add(7 * 24 * time.Hour).UTC(),
		}
		created, err := ds.CreateInvitation(ctx, inv)
		require.NoError(t, err)
		requireEqual(t, inv, created)
		require.WithinDuration(t, inv.ExpiresAt, created.ExpiresAt, time.Second)
		return created
	}

	first := newInvitation("prima@example.com")
	second := newInvitation("tio@example.com")

	t.Run("duplicate_token_fails", func(t *testing.T) {
		dup := *first
		dup.ID = id.Must()
		_, err := ds.CreateInvitation(ctx, &dup)
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("get_by_id_and_token", func(t *testing.T) {
		byID, err := ds.GetInvitation(ctx, first.ID)
		require.NoError(t, err)
		requireEqual(t, first, byID)

		byToken, err := ds.GetInvitationByToken(ctx, first.Token)
		require.NoError(t, err)
		requireEqual(t, first, byToken)

		_, err = ds.GetInvitationByToken(ctx, uuid.NewString())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		invs, err := ds.ListInvitations(ctx, f.ID)
		require.NoError(t, err)
		require.Len(t, invs, 2)
		require.Equal(t, first.ID, invs[0].ID)
		require.Equal(t, second.ID, invs[1].ID)
	})

	t.Run("accept_adds_member", func(t *testing.T) {
		invitee := "user-" + id.Must()
		now := time.Now().UTC()
		err := ds.AcceptInvitation(ctx, first.ID, &storage.FamilyMember{FamilyID: f.ID, UserID: invitee, Email: first.Email, Role: first.Role}, now)
		require.NoError(t, err)

		m, err := ds.GetMember(ctx, f.ID, invitee)
		require.NoError(t, err)
		require.Equal(t, storage.RoleEditor, m.Role)

		got, err := ds.GetInvitation(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, storage.InvitationAccepted, got.Status)
		require.NotNil(t, got.RespondedAt)

		err = ds.AcceptInvitation(ctx, first.ID, &storage.FamilyMember{FamilyID: f.ID, UserID: "user-" + id.Must(), Role: storage.RoleViewer}, now)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("accept_existing_member_rolls_back", func(t *testing.T) {
		inv := newInvitation("owner@example.com")
		err := ds.AcceptInvitation(ctx, inv.ID, &storage.FamilyMember{FamilyID: f.ID, UserID: owner, Role: storage.RoleViewer}, time.Now().UTC())
		require.ErrorIs(t, err, storage.ErrCollision)

		got, err := ds.GetInvitation(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, storage.InvitationPending, got.Status)

		m, err := ds.GetMember(ctx, f.ID, owner)
		require.NoError(t, err)
		require.Equal(t, storage.RoleOwner, m.Role)
	})

	t.Run("update_status_only_from_pending", func(t *testing.T) {
		require.NoError(t, ds.UpdateInvitationStatus(ctx, second.ID, storage.InvitationDeclined, time.Now().UTC()))

		got, err := ds.GetInvitation(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, storage.InvitationDeclined, got.Status)

		err = ds.UpdateInvitationStatus(ctx, second.ID, storage.InvitationRevoked, time.Now().UTC())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
