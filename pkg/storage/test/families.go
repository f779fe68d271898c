package test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func FamilyTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	owner := "user-" + id.Must()

	created := newFamily(t, ds, "Gómez", owner)
	require.False(t, created.CreatedAt.IsZero())
	require.False(t, created.UpdatedAt.IsZero())

	t.Run("create_twice_fails", func(t *testing.T) {
		_, err := ds.CreateFamily(ctx, &storage.Family{ID: created.ID, Name: "dup", CreatedBy: owner},
			&storage.FamilyMember{UserID: owner, Role: storage.RoleOwner})
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("get", func(t *testing.T) {
		got, err := ds.GetFamily(ctx, created.ID)
		require.NoError(t, err)
		requireEqual(t, &storage.Family{ID: created.ID, Name: "Gómez", CreatedBy: owner}, got)
	})

	t.Run("get_missing", func(t *testing.T) {
		_, err := ds.GetFamily(ctx, id.Must())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("owner_membership_created", func(t *testing.T) {
		m, err := ds.GetMember(ctx, created.ID, owner)
		require.NoError(t, err)
		require.Equal(t, storage.RoleOwner, m.Role)
		require.Equal(t, owner+"@example.com", m.Email)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := ds.UpdateFamily(ctx, &storage.Family{ID: created.ID, Name: "Gómez Pérez", Description: "rama materna"})
		require.NoError(t, err)
		require.Equal(t, "Gómez Pérez", updated.Name)
		require.Equal(t, "rama materna", updated.Description)
		require.Equal(t, owner, updated.CreatedBy)

		_, err = ds.UpdateFamily(ctx, &storage.Family{ID: id.Must(), Name: "x"})
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list_for_user_paginates", func(t *testing.T) {
		second := newFamily(t, ds, "Fernández", owner)
		third := newFamily(t, ds, "López", owner)
		newFamily(t, ds, "Other", "user-"+id.Must())

		page, token, err := ds.ListFamiliesForUser(ctx, owner, storage.PaginationOptions{PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, created.ID, page[0].ID)
		require.Equal(t, second.ID, page[1].ID)
		require.Equal(t, second.ID, token)

		page, token, err = ds.ListFamiliesForUser(ctx, owner, storage.PaginationOptions{PageSize: 2, From: token})
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, third.ID, page[0].ID)
		require.Empty(t, token)

		_, _, err = ds.ListFamiliesForUser(ctx, owner, storage.PaginationOptions{PageSize: 2, From: "bogus"})
		require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)
	})

	t.Run("delete", func(t *testing.T) {
		f := newFamily(t, ds, "Temporary", owner)
		require.NoError(t, ds.DeleteFamily(ctx, f.ID))

		_, err := ds.GetFamily(ctx, f.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.ErrorIs(t, ds.DeleteFamily(ctx, f.ID), storage.ErrNotFound)
	})
}

func MemberTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	owner := "user-" + id.Must()
	editor := "user-" + id.Must()
	f := newFamily(t, ds, "Rodríguez", owner)

	require.NoError(t, ds.AddMember(ctx, &storage.FamilyMember{FamilyID: f.ID, UserID: editor, Role: storage.RoleEditor}))
	require.ErrorIs(t, ds.AddMember(ctx, &storage.FamilyMember{FamilyID: f.ID, UserID: editor, Role: storage.RoleViewer}), storage.ErrCollision)
	require.ErrorIs(t, ds.AddMember(ctx, &storage.FamilyMember{FamilyID: id.Must(), UserID: editor, Role: storage.RoleViewer}), storage.ErrInvalidReference)

	members, err := ds.ListMembers(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, owner, members[0].UserID)
	require.Equal(t, editor, members[1].UserID)

	require.NoError(t, ds.UpdateMemberRole(ctx, f.ID, editor, storage.RoleAdmin))
	m, err := ds.GetMember(ctx, f.ID, editor)
	require.NoError(t, err)
	require.Equal(t, storage.RoleAdmin, m.Role)
	require.ErrorIs(t, ds.UpdateMemberRole(ctx, f.ID, "nobody", storage.RoleAdmin), storage.ErrNotFound)

	require.NoError(t, ds.RemoveMember(ctx, f.ID, editor))
	_, err = ds.GetMember(ctx, f.ID, editor)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, ds.RemoveMember(ctx, f.ID, editor), storage.ErrNotFound)
}

func LastOwnerTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()

	t.Run("sole_owner_is_kept", func(t *testing.T) {
		owner := "user-" + id.Must()
		f := newFamily(t, ds, "Sosa", owner)

		require.ErrorIs(t, ds.RemoveMember(ctx, f.ID, owner), storage.ErrLastOwner)
		require.ErrorIs(t, ds.UpdateMemberRole(ctx, f.ID, owner, storage.RoleAdmin), storage.ErrLastOwner)
		require.NoError(t, ds.UpdateMemberRole(ctx, f.ID, owner, storage.RoleOwner))

		coOwner := "user-" + id.Must()
		require.NoError(t, ds.AddMember(ctx, &storage.FamilyMember{FamilyID: f.ID, UserID: coOwner, Role: storage.RoleOwner}))
		require.NoError(t, ds.UpdateMemberRole(ctx, f.ID, owner, storage.RoleAdmin))
		require.ErrorIs(t, ds.RemoveMember(ctx, f.ID, coOwner), storage.ErrLastOwner)
		require.NoError(t, ds.RemoveMember(ctx, f.ID, owner))
	})

	concurrently := func(t *testing.T, name string, op func(f *storage.Family, self, other string) error) {
		t.Run(name, func(t *testing.T) {
			for round := 0; round < 5; round++ {
				a := "user-" + id.Must()
				b := "user-" + id.Must()
				f := newFamily(t, ds, "Acosta", a)
				require.NoError(t, ds.AddMember(ctx, &storage.FamilyMember{FamilyID: f.ID, UserID: b, Role: storage.RoleOwner}))

				start := make(chan struct{})
				errs := make([]error, 2)
				var wg sync.WaitGroup
				for i, pair := range [][2]string{{a, b}, {b, a}} {
					wg.Add(1)
					go func() {
						defer wg.Done()
						<-start
						errs[i] = op(f, pair[0], pair[1])
					}()
				}
				close(start)
				wg.Wait()

				failed := 0
				for _, err := range errs {
					if err != nil {
						require.ErrorIs(t, err, storage.ErrLastOwner)
						failed++
					}
				}
				require.Equal(t, 1, failed)

				members, err := ds.ListMembers(ctx, f.ID)
				require.NoError(t, err)
				owners := 0
				for _, m := range members {
					if m.Role == storage.RoleOwner {
						owners++
					}
				}
				require.Equal(t, 1, owners)
			}
		})
	}

	concurrently(t, "owners_removing_each_other", func(f *storage.Family, _, other string) error {
		return ds.RemoveMember(ctx, f.ID, other)
	})
	concurrently(t, "owners_demoting_each_other", func(f *storage.Family, _, other string) error {
		return ds.UpdateMemberRole(ctx, f.ID, other, storage.RoleViewer)
	})
}

func DeleteFamilyCascadeTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	owner := "user-" + id.Must()
	f := newFamily(t, ds, "Cascade", owner)

	a := newPerson(t, ds, f.ID, "Ana", "Cascade")
	b := newPerson(t, ds, f.ID, "Beto", "Cascade")
	rel, err := ds.CreateRelationship(ctx, &storage.Relationship{ID: id.Must(), FamilyID: f.ID, Person1ID: a.ID, Person2ID: b.ID, Type: storage.RelationshipSibling})
	require.NoError(t, err)
	media, err := ds.CreateMedia(ctx, &storage.Media{ID: id.Must(), FamilyID: f.ID, PersonID: a.ID, FileName: "a.jpg", ContentType: "image/jpeg", StorageKey: "k", UploadedBy: owner})
	require.NoError(t, err)
	_, err = ds.CreateLicense(ctx, &storage.License{ID: id.Must(), FamilyID: f.ID, Status: storage.LicenseTrial, Plan: "trial"})
	require.NoError(t, err)

	require.NoError(t, ds.DeleteFamily(ctx, f.ID))

	_, err = ds.GetPerson(ctx, a.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = ds.GetRelationship(ctx, rel.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = ds.GetMedia(ctx, media.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = ds.GetMember(ctx, f.ID, owner)
	require.ErrorIs(t, err, storage.ErrNotFound)
	licenses, err := ds.ListLicenses(ctx, f.ID)
	require.NoError(t, err)
	require.Empty(t, licenses)
}
