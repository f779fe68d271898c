// Package test holds the conformance suite every storage.GeneaDatastore
// implementation runs from its own tests.
package test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

var cmpOpts = []cmp.Option{
	cmpopts.IgnoreFields(storage.Family{}, "CreatedAt", "UpdatedAt"),
	cmpopts.IgnoreFields(storage.FamilyMember{}, "JoinedAt"),
	cmpopts.IgnoreFields(storage.Person{}, "CreatedAt", "UpdatedAt"),
	cmpopts.IgnoreFields(storage.Relationship{}, "CreatedAt"),
	cmpopts.IgnoreFields(storage.Media{}, "CreatedAt"),
	cmpopts.IgnoreFields(storage.Invitation{}, "CreatedAt", "ExpiresAt", "RespondedAt"),
	cmpopts.IgnoreFields(storage.Notification{}, "CreatedAt"),
	cmpopts.IgnoreFields(storage.License{}, "CreatedAt", "StartsAt", "ExpiresAt"),
}

func RunAllTests(t *testing.T, ds storage.GeneaDatastore) {
	t.Run("TestDatastoreIsReady", func(t *testing.T) {
		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.True(t, status.IsReady)
	})

	t.Run("TestFamilies", func(t *testing.T) { FamilyTest(t, ds) })
	t.Run("TestMembers", func(t *testing.T) { MemberTest(t, ds) })
	t.Run("TestLastOwner", func(t *testing.T) { LastOwnerTest(t, ds) })
	t.Run("TestPersons", func(t *testing.T) { PersonTest(t, ds) })
	t.Run("TestPersonPagination", func(t *testing.T) { PersonPaginationTest(t, ds) })
	t.Run("TestRelationships", func(t *testing.T) { RelationshipTest(t, ds) })
	t.Run("TestMedia", func(t *testing.T) { MediaTest(t, ds) })
	t.Run("TestInvitations", func(t *testing.T) { InvitationTest(t, ds) })
	t.Run("TestNotifications", func(t *testing.T) { NotificationTest(t, ds) })
	t.Run("TestLicenses", func(t *testing.T) { LicenseTest(t, ds) })
	t.Run("TestDeleteFamilyCascades", func(t *testing.T) { DeleteFamilyCascadeTest(t, ds) })
}

func requireEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, cmpOpts...); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func newFamily(t *testing.T, ds storage.GeneaDatastore, name, owner string) *storage.Family {
	t.Helper()

	f, err := ds.CreateFamily(context.Background(),
		&storage.Family{ID: id.Must(), Name: name, CreatedBy: owner},
		&storage.FamilyMember{UserID: owner, Email: owner + "@example.com", Role: storage.RoleOwner},
	)
	require.NoError(t, err)
	return f
}

func newPerson(t *testing.T, ds storage.GeneaDatastore, familyID, first, last string) *storage.Person {
	t.Helper()

	p, err := ds.CreatePerson(context.Background(), &storage.Person{
		ID:        id.Must(),
		FamilyID:  familyID,
		FirstName: first,
		LastName:  last,
		Gender:    storage.GenderUnknown,
		IsLiving:  true,
		CreatedBy: "creator",
	})
	require.NoError(t, err)
	return p
}
