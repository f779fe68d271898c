package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoleAtLeast(t *testing.T) {
	require.True(t, RoleOwner.AtLeast(RoleAdmin))
	require.True(t, RoleEditor.AtLeast(RoleEditor))
	require.False(t, RoleViewer.AtLeast(RoleEditor))
	require.False(t, Role("guest").AtLeast(RoleViewer))
	require.False(t, Role("guest").Valid())
}

func TestRelationshipEquivalent(t *testing.T) {
	parent := &Relationship{Person1ID: "a", Person2ID: "b", Type: RelationshipParent}

	require.True(t, parent.Equivalent(&Relationship{Person1ID: "b", Person2ID: "a", Type: RelationshipChild}))
	require.True(t, parent.Equivalent(&Relationship{Person1ID: "a", Person2ID: "b", Type: RelationshipParent}))
	require.False(t, parent.Equivalent(&Relationship{Person1ID: "b", Person2ID: "a", Type: RelationshipParent}))

	spouse := &Relationship{Person1ID: "a", Person2ID: "b", Type: RelationshipSpouse}
	require.True(t, spouse.Equivalent(&Relationship{Person1ID: "b", Person2ID: "a", Type: RelationshipSpouse}))
	require.False(t, spouse.Equivalent(parent))
}

func TestParsePartialDate(t *testing.T) {
	for _, tc := range []struct {
		in      string
		year    int
		wantErr bool
	}{
		{in: "", year: 0},
		{in: "1921", year: 1921},
		{in: "1921-04", year: 1921},
		{in: "1921-04-30", year: 1921},
		{in: "1921-02-30", wantErr: true},
		{in: "21-04-1921", wantErr: true},
		{in: "abcd", wantErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			year, err := ParsePartialDate(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				require.Equal(t, 0, YearOf(tc.in))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.year, year)
		})
	}
}

func TestInvitationEffectiveStatus(t *testing.T) {
	now := time.Now()
	inv := &Invitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}
	require.Equal(t, InvitationPending, inv.EffectiveStatus(now))
	require.Equal(t, InvitationExpired, inv.EffectiveStatus(now.Add(2*time.Hour)))

	inv.Status = InvitationAccepted
	require.Equal(t, InvitationAccepted, inv.EffectiveStatus(now.Add(2*time.Hour)))
}

func TestLicenseGrants(t *testing.T) {
	now := time.Now()
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-24 * time.Hour)

	require.True(t, (&License{Status: LicenseActive, StartsAt: earlier}).Grants(now))
	require.True(t, (&License{Status: LicenseTrial, StartsAt: earlier, ExpiresAt: &later}).Grants(now))
	require.False(t, (&License{Status: LicenseTrial, StartsAt: earlier, ExpiresAt: &earlier}).Grants(now))
	require.False(t, (&License{Status: LicenseCancelled, StartsAt: earlier}).Grants(now))
	require.False(t, (&License{Status: LicenseActive, StartsAt: later}).Grants(now))
}

func TestValidationError(t *testing.T) {
	err := InvalidField("birth_date", "must not be after %s", "death_date")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.EqualError(t, err, "birth_date: must not be after death_date")

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "birth_date", verr.Field)
}
