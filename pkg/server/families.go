package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/id"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

const (
	maxFamilyNameLength        = 100
	maxFamilyDescriptionLength = 2000
)

type CreateFamilyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateFamilyRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// FamilyResponse is a family together with the caller's role in it.
type FamilyResponse struct {
	*storage.Family
	Role storage.Role `json:"role"`
}

func validateFamily(name, description string) error {
	if name == "" {
		return storage.InvalidField("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxFamilyNameLength {
		return storage.InvalidField("name", "must be at most %d characters", maxFamilyNameLength)
	}
	if utf8.RuneCountInString(description) > maxFamilyDescriptionLength {
		return storage.InvalidField("description", "must be at most %d characters", maxFamilyDescriptionLength)
	}
	return nil
}

func (s *Server) CreateFamily(ctx context.Context, req *CreateFamilyRequest) (*FamilyResponse, error) {
	ctx, span := tracer.Start(ctx, "CreateFamily")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if err := validateFamily(name, description); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	familyID, err := id.NewStringFromTime(s.now())
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	family, err := s.datastore.CreateFamily(ctx,
		&storage.Family{ID: familyID, Name: name, Description: description, CreatedBy: claims.Subject},
		&storage.FamilyMember{FamilyID: familyID, UserID: claims.Subject, Email: claims.Email, Role: storage.RoleOwner},
	)
	if err != nil {
		return nil, serverErrors.HandleError("failed to create family", err)
	}

	return &FamilyResponse{Family: family, Role: storage.RoleOwner}, nil
}

func (s *Server) ListFamilies(ctx context.Context, opts storage.PaginationOptions) ([]*storage.Family, string, error) {
	ctx, span := tracer.Start(ctx, "ListFamilies")
	defer span.End()

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, "", err
	}

	families, token, err := s.datastore.ListFamiliesForUser(ctx, claims.Subject, opts)
	if err != nil {
		return nil, "", serverErrors.HandleError("", err)
	}
	if families == nil {
		families = []*storage.Family{}
	}
	return families, token, nil
}

func (s *Server) GetFamily(ctx context.Context, familyID string) (*FamilyResponse, error) {
	ctx, span := tracer.Start(ctx, "GetFamily")
	defer span.End()

	member, err := s.authorize(ctx, familyID, storage.RoleViewer)
	if err != nil {
		return nil, err
	}

	family, err := s.datastore.GetFamily(ctx, familyID)
	if err != nil {
		return nil, notFound("family", err)
	}
	return &FamilyResponse{Family: family, Role: member.Role}, nil
}

func (s *Server) UpdateFamily(ctx context.Context, familyID string, req *UpdateFamilyRequest) (*FamilyResponse, error) {
	ctx, span := tracer.Start(ctx, "UpdateFamily")
	defer span.End()

	member, err := s.authorize(ctx, familyID, storage.RoleAdmin)
	if err != nil {
		return nil, err
	}

	family, err := s.datastore.GetFamily(ctx, familyID)
	if err != nil {
		return nil, notFound("family", err)
	}

	if req.Name != nil {
		family.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		family.Description = strings.TrimSpace(*req.Description)
	}
	if err := validateFamily(family.Name, family.Description); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	updated, err := s.datastore.UpdateFamily(ctx, family)
	if err != nil {
		return nil, notFound("family", err)
	}

	// the name decides free family membership
	s.licenses.Invalidate(familyID)

	return &FamilyResponse{Family: updated, Role: member.Role}, nil
}

// DeleteFamily removes the family with everything in it. Stored media content
// is deleted afterwards; failures there are only logged.
func (s *Server) DeleteFamily(ctx context.Context, familyID string) error {
	ctx, span := tracer.Start(ctx, "DeleteFamily")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleOwner); err != nil {
		return err
	}

	media, _, err := s.datastore.ListMedia(ctx, familyID, storage.MediaFilter{}, storage.PaginationOptions{})
	if err != nil {
		return serverErrors.HandleError("", err)
	}

	if err := s.datastore.DeleteFamily(ctx, familyID); err != nil {
		return notFound("family", err)
	}
	s.licenses.Invalidate(familyID)

	for _, m := range media {
		if err := s.blobStore.Delete(ctx, m.StorageKey); err != nil {
			s.logger.WarnWithContext(ctx, "failed to delete media content of deleted family",
				zap.String("family_id", familyID),
				zap.String("key", m.StorageKey),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Server) FamilyTree(ctx context.Context, familyID string) (*commands.FamilyTree, error) {
	ctx, span := tracer.Start(ctx, "FamilyTree")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, err
	}
	return commands.NewFamilyTreeQuery(s.datastore).Tree(ctx, familyID)
}

func (s *Server) FamilyStats(ctx context.Context, familyID string) (*commands.FamilyStats, error) {
	ctx, span := tracer.Start(ctx, "FamilyStats")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, err
	}
	return commands.NewFamilyTreeQuery(s.datastore).Stats(ctx, familyID)
}

type UpdateMemberRequest struct {
	Role storage.Role `json:"role"`
}

func (s *Server) ListMembers(ctx context.Context, familyID string) ([]*storage.FamilyMember, error) {
	ctx, span := tracer.Start(ctx, "ListMembers")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, err
	}

	members, err := s.datastore.ListMembers(ctx, familyID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	return members, nil
}

// canManage reports whether actor may change or remove target. Owners manage
// everyone; admins manage members below admin.
func canManage(actor, target *storage.FamilyMember) bool {
	if actor.Role == storage.RoleOwner {
		return true
	}
	return actor.Role == storage.RoleAdmin && !target.Role.AtLeast(storage.RoleAdmin)
}

func (s *Server) UpdateMemberRole(ctx context.Context, familyID, userID string, req *UpdateMemberRequest) (*storage.FamilyMember, error) {
	ctx, span := tracer.Start(ctx, "UpdateMemberRole")
	defer span.End()

	actor, err := s.authorize(ctx, familyID, storage.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if !req.Role.Valid() {
		return nil, serverErrors.HandleError("", storage.InvalidField("role", "must be one of owner, admin, editor, viewer"))
	}

	target, err := s.datastore.GetMember(ctx, familyID, userID)
	if err != nil {
		return nil, notFound("member", err)
	}

	if !canManage(actor, target) || (actor.Role != storage.RoleOwner && req.Role.AtLeast(storage.RoleAdmin)) {
		return nil, serverErrors.AuthzNotAllowed
	}

	if target.Role == req.Role {
		return target, nil
	}

	if err := s.datastore.UpdateMemberRole(ctx, familyID, userID, req.Role); err != nil {
		return nil, notFound("member", err)
	}
	target.Role = req.Role

	s.notifier.Notify(ctx, commands.Event{
		FamilyID: familyID,
		Type:     storage.NotificationRoleChanged,
		Title:    "Your role changed",
		Message:  fmt.Sprintf("You are now %s of this family", req.Role),
		ActorID:  actor.UserID,
		UserIDs:  []string{userID},
	})

	return target, nil
}

// RemoveMember removes userID from the family. Members may always remove themselves.
func (s *Server) RemoveMember(ctx context.Context, familyID, userID string) error {
	ctx, span := tracer.Start(ctx, "RemoveMember")
	defer span.End()

	actor, err := s.authorize(ctx, familyID, storage.RoleViewer)
	if err != nil {
		return err
	}

	if userID != actor.UserID {
		target, err := s.datastore.GetMember(ctx, familyID, userID)
		if err != nil {
			return notFound("member", err)
		}
		if !canManage(actor, target) {
			return serverErrors.AuthzNotAllowed
		}
	}

	if err := s.datastore.RemoveMember(ctx, familyID, userID); err != nil {
		return notFound("member", err)
	}
	return nil
}

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request) {
	var req CreateFamilyRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	family, err := s.CreateFamily(r.Context(), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, family)
}

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	opts, err := paginationFromQuery(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	families, token, err := s.ListFamilies(r.Context(), opts)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteList(w, families, token)
}

func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request) {
	family, err := s.GetFamily(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, family)
}

func (s *Server) handleUpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req UpdateFamilyRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	family, err := s.UpdateFamily(r.Context(), r.PathValue("familyID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, family)
}

func (s *Server) handleDeleteFamily(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteFamily(r.Context(), r.PathValue("familyID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}

func (s *Server) handleFamilyTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.FamilyTree(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, tree)
}

func (s *Server) handleFamilyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.FamilyStats(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, stats)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.ListMembers(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, members)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	member, err := s.UpdateMemberRole(r.Context(), r.PathValue("familyID"), r.PathValue("userID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.RemoveMember(r.Context(), r.PathValue("familyID"), r.PathValue("userID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}

