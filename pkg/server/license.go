package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/genea-app/genea/pkg/license"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

const maxLicenseDays = 3660

type ActivateLicenseRequest struct {
	Plan string `json:"plan"`
	// DurationDays of zero grants a license that never expires.
	DurationDays int `json:"duration_days"`
}

type FreeFamiliesResponse struct {
	Surnames []string `json:"surnames"`
}

func (s *Server) LicenseStatus(ctx context.Context, familyID string) (*license.Status, error) {
	ctx, span := tracer.Start(ctx, "LicenseStatus")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, err
	}

	status, err := s.licenses.Status(ctx, familyID)
	if err != nil {
		return nil, notFound("family", err)
	}
	return status, nil
}

func (s *Server) notifyLicense(ctx context.Context, actorID string, l *storage.License, what string) {
	s.notifier.Notify(ctx, commands.Event{
		FamilyID: l.FamilyID,
		Type:     storage.NotificationLicenseChanged,
		Title:    "License updated",
		Message:  fmt.Sprintf("The family license (%s) was %s", l.Plan, what),
		ActorID:  actorID,
	})
}

func (s *Server) StartTrial(ctx context.Context, familyID string) (*storage.License, error) {
	ctx, span := tracer.Start(ctx, "StartTrial")
	defer span.End()

	member, err := s.authorize(ctx, familyID, storage.RoleAdmin)
	if err != nil {
		return nil, err
	}

	l, err := s.licenses.StartTrial(ctx, familyID)
	if err != nil {
		return nil, serverErrors.HandleError("failed to start trial", err)
	}
	s.notifyLicense(ctx, member.UserID, l, "started as a trial")
	return l, nil
}

func (s *Server) ActivateLicense(ctx context.Context, familyID string, req *ActivateLicenseRequest) (*storage.License, error) {
	ctx, span := tracer.Start(ctx, "ActivateLicense")
	defer span.End()

	member, err := s.authorize(ctx, familyID, storage.RoleOwner)
	if err != nil {
		return nil, err
	}

	if req.DurationDays < 0 || req.DurationDays > maxLicenseDays {
		return nil, serverErrors.ValidationFailed("duration_days must be between 0 and %d", maxLicenseDays)
	}

	l, err := s.licenses.Activate(ctx, familyID, req.Plan, time.Duration(req.DurationDays)*24*time.Hour)
	if err != nil {
		return nil, serverErrors.HandleError("failed to activate license", err)
	}
	s.notifyLicense(ctx, member.UserID, l, "activated")
	return l, nil
}

func (s *Server) CancelLicense(ctx context.Context, familyID string) (*storage.License, error) {
	ctx, span := tracer.Start(ctx, "CancelLicense")
	defer span.End()

	member, err := s.authorize(ctx, familyID, storage.RoleOwner)
	if err != nil {
		return nil, err
	}

	l, err := s.licenses.Cancel(ctx, familyID)
	if err != nil {
		return nil, serverErrors.HandleError("failed to cancel license", err)
	}
	s.notifyLicense(ctx, member.UserID, l, "cancelled")
	return l, nil
}

func (s *Server) handleLicenseStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.LicenseStatus(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, status)
}

func (s *Server) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	l, err := s.StartTrial(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, l)
}

func (s *Server) handleActivateLicense(w http.ResponseWriter, r *http.Request) {
	var req ActivateLicenseRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	l, err := s.ActivateLicense(r.Context(), r.PathValue("familyID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, l)
}

func (s *Server) handleCancelLicense(w http.ResponseWriter, r *http.Request) {
	l, err := s.CancelLicense(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, l)
}

func (s *Server) handleFreeFamilies(w http.ResponseWriter, r *http.Request) {
	httpmiddleware.WriteData(w, http.StatusOK, FreeFamiliesResponse{Surnames: s.licenses.FreeFamilies()})
}
