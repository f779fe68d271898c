package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func RelationshipTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	f := newFamily(t, ds, "Acosta", "user-"+id.Must())
	father := newPerson(t, ds, f.ID, "Héctor", "Acosta")
	son := newPerson(t, ds, f.ID, "Diego", "Acosta")
	wife := newPerson(t, ds, f.ID, "Nélida", "Ruiz")

	rel := &storage.Relationship{
		ID:        id.Must(),
		FamilyID:  f.ID,
		Person1ID: father.ID,
		Person2ID: son.ID,
		Type:      storage.RelationshipParent,
		Notes:     "bautismo en San Telmo",
	}
	created, err := ds.CreateRelationship(ctx, rel)
	require.NoError(t, err)
	require.False(t, created.CreatedAt.IsZero())
	requireEqual(t, rel, created)

	marriage, err := ds.CreateRelationship(ctx, &storage.Relationship{
		ID: id.Must(), FamilyID: f.ID, Person1ID: father.ID, Person2ID: wife.ID,
		Type: storage.RelationshipSpouse, StartDate: "1950-06-12",
	})
	require.NoError(t, err)

	t.Run("duplicate_triple_fails", func(t *testing.T) {
		dup := *rel
		dup.ID = id.Must()
		_, err := ds.CreateRelationship(ctx, &dup)
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("missing_person_fails", func(t *testing.T) {
		_, err := ds.CreateRelationship(ctx, &storage.Relationship{
			ID: id.Must(), FamilyID: f.ID, Person1ID: father.ID, Person2ID: id.Must(), Type: storage.RelationshipSibling,
		})
		require.ErrorIs(t, err, storage.ErrInvalidReference)
	})

	t.Run("list_by_family_and_person", func(t *testing.T) {
		all, err := ds.ListRelationships(ctx, f.ID, storage.RelationshipFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, rel.ID, all[0].ID)
		require.Equal(t, marriage.ID, all[1].ID)

		forSon, err := ds.ListRelationships(ctx, f.ID, storage.RelationshipFilter{PersonID: son.ID})
		require.NoError(t, err)
		require.Len(t, forSon, 1)
		require.Equal(t, rel.ID, forSon[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		changed := *marriage
		changed.Type = storage.RelationshipExSpouse
		changed.EndDate = "1975"

		updated, err := ds.UpdateRelationship(ctx, &changed)
		require.NoError(t, err)
		require.Equal(t, storage.RelationshipExSpouse, updated.Type)
		require.Equal(t, "1975", updated.EndDate)
		require.Equal(t, father.ID, updated.Person1ID)

		changed.ID = id.Must()
		_, err = ds.UpdateRelationship(ctx, &changed)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, ds.DeleteRelationship(ctx, marriage.ID))
		_, err := ds.GetRelationship(ctx, marriage.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.ErrorIs(t, ds.DeleteRelationship(ctx, marriage.ID), storage.ErrNotFound)
	})
}
