package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/authclaims"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func seedInvitation(t *testing.T, ds *memory.MemoryBackend, familyID, email string, expiresAt time.Time) *storage.Invitation {
	t.Helper()
	inv, err := ds.CreateInvitation(context.Background(), &storage.Invitation{
		ID:        newID(t),
		FamilyID:  familyID,
		Email:     email,
		Role:      storage.RoleEditor,
		Token:     newID(t),
		Status:    storage.InvitationPending,
		InvitedBy: "owner",
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return inv
}

func TestAcceptInvitation(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	family := seedFamily(t, ds, "Rossi", nil)
	inv := seedInvitation(t, ds, family.ID, "ana@example.com", time.Now().Add(time.Hour))

	notifier := &recordingNotifier{}
	cmd := NewRespondInvitationCommand(ds, WithRespondInvitationNotifier(notifier))

	member, err := cmd.Accept(ctx, inv.Token, &authclaims.AuthClaims{Subject: "ana", Email: "Ana@Example.com"})
	require.NoError(t, err)
	require.Equal(t, storage.RoleEditor, member.Role)
	require.Equal(t, "ana@example.com", member.Email)

	stored, err := ds.GetMember(ctx, family.ID, "ana")
	require.NoError(t, err)
	require.Equal(t, storage.RoleEditor, stored.Role)

	accepted, err := ds.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, storage.InvitationAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	require.Len(t, notifier.events, 1)
	require.Equal(t, storage.NotificationInvitationAccepted, notifier.events[0].Type)
	require.Equal(t, storage.RoleAdmin, notifier.events[0].MinRole)
	require.Equal(t, "ana", notifier.events[0].ActorID)

	t.Run("second_answer_is_rejected", func(t *testing.T) {
		_, err := cmd.Accept(ctx, inv.Token, &authclaims.AuthClaims{Subject: "ana"})
		require.ErrorIs(t, err, serverErrors.InvitationNotPending)
	})
}

func TestAcceptInvitationErrors(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	family := seedFamily(t, ds, "Rossi", map[string]storage.Role{"luca": storage.RoleViewer})

	now := time.Now().UTC()
	cmd := NewRespondInvitationCommand(ds, WithRespondInvitationClock(func() time.Time { return now }))

	t.Run("unknown_token", func(t *testing.T) {
		_, err := cmd.Accept(ctx, "nope", &authclaims.AuthClaims{Subject: "ana"})
		require.ErrorIs(t, err, ErrInvitationNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		inv := seedInvitation(t, ds, family.ID, "ana@example.com", now.Add(-time.Minute))
		_, err := cmd.Accept(ctx, inv.Token, &authclaims.AuthClaims{Subject: "ana"})
		require.ErrorIs(t, err, serverErrors.InvitationExpired)
	})

	t.Run("email_mismatch", func(t *testing.T) {
		inv := seedInvitation(t, ds, family.ID, "ana@example.com", now.Add(time.Hour))
		_, err := cmd.Accept(ctx, inv.Token, &authclaims.AuthClaims{Subject: "eve", Email: "eve@example.com"})
		require.ErrorIs(t, err, serverErrors.InvitationEmailMismatch)
	})

	t.Run("already_member", func(t *testing.T) {
		inv := seedInvitation(t, ds, family.ID, "luca@example.com", now.Add(time.Hour))
		_, err := cmd.Accept(ctx, inv.Token, &authclaims.AuthClaims{Subject: "luca", Email: "luca@example.com"})
		require.Equal(t, serverErrors.Conflict, serverErrors.Encode(err).Code())
	})
}

func TestDeclineInvitation(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	family := seedFamily(t, ds, "Rossi", nil)
	inv := seedInvitation(t, ds, family.ID, "ana@example.com", time.Now().Add(time.Hour))

	cmd := NewRespondInvitationCommand(ds)

	declined, err := cmd.Decline(ctx, inv.Token, &authclaims.AuthClaims{Subject: "ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, storage.InvitationDeclined, declined.Status)

	_, err = ds.GetMember(ctx, family.ID, "ana")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = cmd.Accept(ctx, inv.Token, &authclaims.AuthClaims{Subject: "ana"})
	require.ErrorIs(t, err, serverErrors.InvitationNotPending)
}
