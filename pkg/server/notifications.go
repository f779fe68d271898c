package server

import (
	"context"
	"net/http"

	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListNotifications lists the caller's notifications, newest first.
func (s *Server) ListNotifications(ctx context.Context, filter storage.NotificationFilter, opts storage.PaginationOptions) ([]*storage.Notification, string, error) {
	ctx, span := tracer.Start(ctx, "ListNotifications")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, "", err
	}

	notifications, token, err := s.datastore.ListNotifications(ctx, claims.Subject, filter, opts)
	if err != nil {
		return nil, "", serverErrors.HandleError("", err)
	}
	if notifications == nil {
		notifications = []*storage.Notification{}
	}
	return notifications, token, nil
}

func (s *Server) UnreadCount(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "UnreadCount")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}

	count, err := s.datastore.CountUnreadNotifications(ctx, claims.Subject)
	if err != nil {
		return 0, serverErrors.HandleError("", err)
	}
	return count, nil
}

func (s *Server) MarkNotificationRead(ctx context.Context, notificationID string) error {
	ctx, span := tracer.Start(ctx, "MarkNotificationRead")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return err
	}
	return notFound("notification", s.datastore.MarkNotificationRead(ctx, claims.Subject, notificationID))
}

func (s *Server) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "MarkAllNotificationsRead")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}

	updated, err := s.datastore.MarkAllNotificationsRead(ctx, claims.Subject)
	if err != nil {
		return 0, serverErrors.HandleError("", err)
	}
	return updated, nil
}

func (s *Server) DeleteNotification(ctx context.Context, notificationID string) error {
	ctx, span := tracer.Start(ctx, "DeleteNotification")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return err
	}
	return notFound("notification", s.datastore.DeleteNotification(ctx, claims.Subject, notificationID))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	opts, err := paginationFromQuery(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	unread, err := boolFromQuery(r, "unread")
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	filter := storage.NotificationFilter{UnreadOnly: unread != nil && *unread}
	notifications, token, err := s.ListNotifications(r.Context(), filter, opts)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteList(w, notifications, token)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.UnreadCount(r.Context())
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, UnreadCountResponse{Count: count})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.MarkAllNotificationsRead(r.Context())
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, MarkAllReadResponse{Updated: updated})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.MarkNotificationRead(r.Context(), r.PathValue("notificationID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteNotification(r.Context(), r.PathValue("notificationID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}
