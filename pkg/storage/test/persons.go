package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func PersonTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	f := newFamily(t, ds, "Pereyra", "user-"+id.Must())

	p := &storage.Person{
		ID:         id.Must(),
		FamilyID:   f.ID,
		FirstName:  "Rosa",
		LastName:   "Pereyra",
		MaidenName: "Ibáñez",
		Gender:     storage.GenderFemale,
		BirthDate:  "1921-04",
		BirthPlace: "Córdoba",
		DeathDate:  "1999",
		IsLiving:   false,
		Occupation: "maestra",
		Biography:  "Llegó a Rosario en 1940.",
		CreatedBy:  "creator",
	}

	created, err := ds.CreatePerson(ctx, p)
	require.NoError(t, err)
	require.False(t, created.CreatedAt.IsZero())
	requireEqual(t, p, created)

	t.Run("create_twice_fails", func(t *testing.T) {
		_, err := ds.CreatePerson(ctx, p)
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("create_in_missing_family_fails", func(t *testing.T) {
		_, err := ds.CreatePerson(ctx, &storage.Person{ID: id.Must(), FamilyID: id.Must(), FirstName: "x", Gender: storage.GenderUnknown})
		require.ErrorIs(t, err, storage.ErrInvalidReference)
	})

	t.Run("get", func(t *testing.T) {
		got, err := ds.GetPerson(ctx, p.ID)
		require.NoError(t, err)
		requireEqual(t, p, got)

		_, err = ds.GetPerson(ctx, id.Must())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("update_keeps_ownership_fields", func(t *testing.T) {
		changed := *p
		changed.Occupation = "directora"
		changed.FamilyID = id.Must()
		changed.CreatedBy = "someone-else"

		updated, err := ds.UpdatePerson(ctx, &changed)
		require.NoError(t, err)
		require.Equal(t, "directora", updated.Occupation)
		require.Equal(t, f.ID, updated.FamilyID)
		require.Equal(t, "creator", updated.CreatedBy)

		missing := changed
		missing.ID = id.Must()
		_, err = ds.UpdatePerson(ctx, &missing)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("search_and_living_filters", func(t *testing.T) {
		newPerson(t, ds, f.ID, "Juan", "Pereyra")
		newPerson(t, ds, f.ID, "Marta", "Suárez")

		found, _, err := ds.ListPersons(ctx, f.ID, storage.PersonFilter{Search: "pereyra"}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, found, 2)

		found, _, err = ds.ListPersons(ctx, f.ID, storage.PersonFilter{Search: "IBÁ"}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, p.ID, found[0].ID)

		living := true
		found, _, err = ds.ListPersons(ctx, f.ID, storage.PersonFilter{Living: &living}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, found, 2)
	})

	t.Run("search_folds_accents_and_matches_wildcards_literally", func(t *testing.T) {
		g := newFamily(t, ds, "Search", "user-"+id.Must())
		jose := newPerson(t, ds, g.ID, "JOSÉ", "Núñez")
		newPerson(t, ds, g.ID, "Ana", "Lopez")

		for _, tc := range []struct {
			search string
			want   int
		}{
			{"josé", 1},
			{"jose", 1},
			{"NUNEZ", 1},
			{"_", 0},
			{"%", 0},
			{"!", 0},
			{"j_se", 0},
			{"a", 1},
			{"é n", 0},
		} {
			found, _, err := ds.ListPersons(ctx, g.ID, storage.PersonFilter{Search: tc.search}, storage.PaginationOptions{})
			require.NoError(t, err)
			require.Len(t, found, tc.want, tc.search)
			if tc.want == 1 && tc.search != "a" {
				require.Equal(t, jose.ID, found[0].ID)
			}
		}

		renamed := *jose
		renamed.FirstName = "Pep_e"
		_, err := ds.UpdatePerson(ctx, &renamed)
		require.NoError(t, err)

		found, _, err := ds.ListPersons(ctx, g.ID, storage.PersonFilter{Search: "p_e"}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		found, _, err = ds.ListPersons(ctx, g.ID, storage.PersonFilter{Search: "josé"}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Empty(t, found)
	})

	t.Run("delete_removes_relationships_and_detaches_media", func(t *testing.T) {
		a := newPerson(t, ds, f.ID, "A", "Pereyra")
		b := newPerson(t, ds, f.ID, "B", "Pereyra")

		rel, err := ds.CreateRelationship(ctx, &storage.Relationship{ID: id.Must(), FamilyID: f.ID, Person1ID: a.ID, Person2ID: b.ID, Type: storage.RelationshipParent})
		require.NoError(t, err)
		media, err := ds.CreateMedia(ctx, &storage.Media{ID: id.Must(), FamilyID: f.ID, PersonID: a.ID, FileName: "a.png", ContentType: "image/png", StorageKey: "key", UploadedBy: "u"})
		require.NoError(t, err)

		require.NoError(t, ds.DeletePerson(ctx, a.ID))

		_, err = ds.GetPerson(ctx, a.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = ds.GetRelationship(ctx, rel.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)

		got, err := ds.GetMedia(ctx, media.ID)
		require.NoError(t, err)
		require.Empty(t, got.PersonID)

		require.ErrorIs(t, ds.DeletePerson(ctx, a.ID), storage.ErrNotFound)
	})
}

func PersonPaginationTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	f := newFamily(t, ds, "Pages", "user-"+id.Must())

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, newPerson(t, ds, f.ID, "P", "Pages").ID)
	}

	var seen []string
	token := ""
	for {
		page, next, err := ds.ListPersons(ctx, f.ID, storage.PersonFilter{}, storage.PaginationOptions{PageSize: 2, From: token})
		require.NoError(t, err)
		require.LessOrEqual(t, len(page), 2)
		for _, p := range page {
			seen = append(seen, p.ID)
		}
		if next == "" {
			break
		}
		token = next
	}
	require.Equal(t, ids, seen)

	_, _, err := ds.ListPersons(ctx, f.ID, storage.PersonFilter{}, storage.PaginationOptions{PageSize: 2, From: "??"})
	require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)
}
