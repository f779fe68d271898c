package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreateNotifications see [storage.NotificationBackend].CreateNotifications.
func (s *Datastore) CreateNotifications(ctx context.Context, notifications []*storage.Notification) error {
	ctx, span := s.startTrace(ctx, "CreateNotifications")
	defer span.End()

	if len(notifications) == 0 {
		return nil
	}

	now := s.now()
	ib := s.dbInfo.stbl.
		Insert("notifications").
		Columns(notificationColumns...)
	for _, n := range notifications {
		ib = ib.Values(n.ID, n.UserID, nullString(n.FamilyID), string(n.Type), n.Title, n.Message, n.Read, now)
	}

	if _, err := ib.ExecContext(ctx); err != nil {
		return s.dbInfo.HandleSQLError(err)
	}
	return nil
}

// ListNotifications see [storage.NotificationBackend].ListNotifications. Newest first.
func (s *Datastore) ListNotifications(ctx context.Context, userID string, filter storage.NotificationFilter, opts storage.PaginationOptions) ([]*storage.Notification, string, error) {
	ctx, span := s.startTrace(ctx, "ListNotifications")
	defer span.End()

	sb := s.dbInfo.stbl.
		Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"user_id": userID})
	if filter.UnreadOnly {
		sb = sb.Where(sq.Eq{"is_read": false})
	}

	sb, err := AddFromUlid(sb, opts, true)
	if err != nil {
		return nil, "", err
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}
	items, err := collect(rows, scanNotification)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}

	page, token := trimPage(items, func(n *storage.Notification) string { return n.ID }, opts)
	return page, token, nil
}

// MarkNotificationRead see [storage.NotificationBackend].MarkNotificationRead.
func (s *Datastore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ctx, span := s.startTrace(ctx, "MarkNotificationRead")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"id": id, "user_id": userID}))
	return err
}

// MarkAllNotificationsRead see [storage.NotificationBackend].MarkAllNotificationsRead.
func (s *Datastore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	ctx, span := s.startTrace(ctx, "MarkAllNotificationsRead")
	defer span.End()

	res, err := s.dbInfo.stbl.
		Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"user_id": userID, "is_read": false}).
		ExecContext(ctx)
	if err != nil {
		return 0, s.dbInfo.HandleSQLError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.dbInfo.HandleSQLError(err)
	}
	return n, nil
}

// DeleteNotification see [storage.NotificationBackend].DeleteNotification.
func (s *Datastore) DeleteNotification(ctx context.Context, userID, id string) error {
	ctx, span := s.startTrace(ctx, "DeleteNotification")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Delete("notifications").
		Where(sq.Eq{"id": id, "user_id": userID}))
	return err
}

// CountUnreadNotifications see [storage.NotificationBackend].CountUnreadNotifications.
func (s *Datastore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	ctx, span := s.startTrace(ctx, "CountUnreadNotifications")
	defer span.End()

	var count int
	err := s.dbInfo.stbl.
		Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{"user_id": userID, "is_read": false}).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, s.dbInfo.HandleSQLError(err)
	}
	return count, nil
}
