package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func MediaTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	owner := "user-" + id.Must()
	f := newFamily(t, ds, "Molina", owner)
	p := newPerson(t, ds, f.ID, "Elsa", "Molina")

	m := &storage.Media{
		ID:          id.Must(),
		FamilyID:    f.ID,
		PersonID:    p.ID,
		Title:       "Casamiento",
		FileName:    "boda.jpg",
		ContentType: "image/jpeg",
		Size:        2048,
		StorageKey:  f.ID + "/boda.jpg",
		ETag:        "9f86d081884c7d65",
		UploadedBy:  owner,
	}
	created, err := ds.CreateMedia(ctx, m)
	require.NoError(t, err)
	requireEqual(t, m, created)

	unattached, err := ds.CreateMedia(ctx, &storage.Media{
		ID: id.Must(), FamilyID: f.ID, FileName: "acta.pdf", ContentType: "application/pdf", Size: 10, StorageKey: "acta", UploadedBy: owner,
	})
	require.NoError(t, err)

	t.Run("missing_person_fails", func(t *testing.T) {
		_, err := ds.CreateMedia(ctx, &storage.Media{ID: id.Must(), FamilyID: f.ID, PersonID: id.Must(), FileName: "x", StorageKey: "x", UploadedBy: owner})
		require.ErrorIs(t, err, storage.ErrInvalidReference)
	})

	t.Run("get", func(t *testing.T) {
		got, err := ds.GetMedia(ctx, m.ID)
		require.NoError(t, err)
		requireEqual(t, m, got)
	})

	t.Run("list_with_person_filter", func(t *testing.T) {
		all, token, err := ds.ListMedia(ctx, f.ID, storage.MediaFilter{}, storage.PaginationOptions{PageSize: 10})
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Empty(t, token)

		first, token, err := ds.ListMedia(ctx, f.ID, storage.MediaFilter{}, storage.PaginationOptions{PageSize: 1})
		require.NoError(t, err)
		require.Len(t, first, 1)
		require.Equal(t, m.ID, token)

		forPerson, _, err := ds.ListMedia(ctx, f.ID, storage.MediaFilter{PersonID: p.ID}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, forPerson, 1)
		require.Equal(t, m.ID, forPerson[0].ID)
	})

	t.Run("update_metadata", func(t *testing.T) {
		changed := *unattached
		changed.Title = "Acta de nacimiento"
		changed.PersonID = p.ID
		changed.StorageKey = "ignored"

		updated, err := ds.UpdateMedia(ctx, &changed)
		require.NoError(t, err)
		require.Equal(t, "Acta de nacimiento", updated.Title)
		require.Equal(t, p.ID, updated.PersonID)
		require.Equal(t, "acta", updated.StorageKey)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, ds.DeleteMedia(ctx, unattached.ID))
		_, err := ds.GetMedia(ctx, unattached.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.ErrorIs(t, ds.DeleteMedia(ctx, unattached.ID), storage.ErrNotFound)
	})
}
