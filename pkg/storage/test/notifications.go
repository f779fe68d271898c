package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func NotificationTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	user := "user-" + id.Must()
	other := "user-" + id.Must()
	f := newFamily(t, ds, "Vega", user)

	var batch []*storage.Notification
	for i := 0; i < 3; i++ {
		batch = append(batch, &storage.Notification{
			ID:       id.Must(),
			UserID:   user,
			FamilyID: f.ID,
			Type:     storage.NotificationPersonAdded,
			Title:    "Nueva persona",
			Message:  "Se agregó una persona al árbol",
		})
	}
	batch = append(batch, &storage.Notification{ID: id.Must(), UserID: other, FamilyID: f.ID, Type: storage.NotificationRoleChanged, Title: "t", Message: "m"})
	require.NoError(t, ds.CreateNotifications(ctx, batch))

	t.Run("list_newest_first_with_pagination", func(t *testing.T) {
		page, token, err := ds.ListNotifications(ctx, user, storage.NotificationFilter{}, storage.PaginationOptions{PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, batch[2].ID, page[0].ID)
		require.Equal(t, batch[1].ID, page[1].ID)
		require.Equal(t, batch[1].ID, token)

		page, token, err = ds.ListNotifications(ctx, user, storage.NotificationFilter{}, storage.PaginationOptions{PageSize: 2, From: token})
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, batch[0].ID, page[0].ID)
		require.Empty(t, token)
	})

	t.Run("mark_read_requires_owner", func(t *testing.T) {
		require.ErrorIs(t, ds.MarkNotificationRead(ctx, other, batch[0].ID), storage.ErrNotFound)
		require.NoError(t, ds.MarkNotificationRead(ctx, user, batch[0].ID))

		count, err := ds.CountUnreadNotifications(ctx, user)
		require.NoError(t, err)
		require.Equal(t, 2, count)

		unread, _, err := ds.ListNotifications(ctx, user, storage.NotificationFilter{UnreadOnly: true}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, unread, 2)
	})

	t.Run("mark_all_read", func(t *testing.T) {
		updated, err := ds.MarkAllNotificationsRead(ctx, user)
		require.NoError(t, err)
		require.Equal(t, int64(2), updated)

		count, err := ds.CountUnreadNotifications(ctx, user)
		require.NoError(t, err)
		require.Zero(t, count)

		count, err = ds.CountUnreadNotifications(ctx, other)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("delete_requires_owner", func(t *testing.T) {
		require.ErrorIs(t, ds.DeleteNotification(ctx, other, batch[1].ID), storage.ErrNotFound)
		require.NoError(t, ds.DeleteNotification(ctx, user, batch[1].ID))

		all, _, err := ds.ListNotifications(ctx, user, storage.NotificationFilter{}, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, all, 2)
	})
}
