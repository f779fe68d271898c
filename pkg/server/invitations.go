package server

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/genea-app/genea/pkg/id"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

var (
	errAlreadyMember  = serverErrors.NewEncodedError(serverErrors.Conflict, "the user is already a member of this family")
	errAlreadyInvited = serverErrors.NewEncodedError(serverErrors.Conflict, "a pending invitation for this email already exists")
)

type CreateInvitationRequest struct {
	Email string       `json:"email"`
	Role  storage.Role `json:"role"`
}

// InvitationResponse is an invitation as shown to the family and to the invitee.
type InvitationResponse struct {
	*storage.Invitation
	FamilyName string `json:"family_name,omitempty"`
	InviteURL  string `json:"invite_url,omitempty"`
}

func (s *Server) inviteURL(token string) string {
	return strings.TrimSuffix(s.baseURL, "/") + invitationPathPrefix + token
}

// view reports the effective status and hides the token unless withToken is set.
func (s *Server) view(inv *storage.Invitation, familyName string, withToken bool) *InvitationResponse {
	out := *inv
	out.Status = inv.EffectiveStatus(s.now())

	resp := &InvitationResponse{Invitation: &out, FamilyName: familyName}
	if withToken {
		resp.InviteURL = s.inviteURL(inv.Token)
	} else {
		out.Token = ""
	}
	return resp
}

func (s *Server) CreateInvitation(ctx context.Context, familyID string, req *CreateInvitationRequest) (*InvitationResponse, error) {
	ctx, span := tracer.Start(ctx, "CreateInvitation")
	defer span.End()

	actor, err := s.authorize(ctx, familyID, storage.RoleAdmin)
	if err != nil {
		return nil, err
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, serverErrors.HandleError("", storage.InvalidField("email", "must be a valid email address"))
	}
	email := strings.ToLower(addr.Address)

	if !req.Role.Valid() || req.Role == storage.RoleOwner {
		return nil, serverErrors.HandleError("", storage.InvalidField("role", "must be one of admin, editor, viewer"))
	}
	if actor.Role != storage.RoleOwner && req.Role.AtLeast(storage.RoleAdmin) {
		return nil, serverErrors.AuthzNotAllowed
	}

	members, err := s.datastore.ListMembers(ctx, familyID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	for _, m := range members {
		if strings.EqualFold(m.Email, email) {
			return nil, errAlreadyMember
		}
	}

	invitations, err := s.datastore.ListInvitations(ctx, familyID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	now := s.now()
	for _, inv := range invitations {
		if strings.EqualFold(inv.Email, email) && inv.EffectiveStatus(now) == storage.InvitationPending {
			return nil, errAlreadyInvited
		}
	}

	invitationID, err := id.NewStringFromTime(now)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	created, err := s.datastore.CreateInvitation(ctx, &storage.Invitation{
		ID:        invitationID,
		FamilyID:  familyID,
		Email:     email,
		Role:      req.Role,
		Token:     uuid.NewString(),
		Status:    storage.InvitationPending,
		InvitedBy: actor.UserID,
		ExpiresAt: now.Add(s.invitationTTL),
	})
	if err != nil {
		return nil, serverErrors.HandleError("failed to create invitation", err)
	}
	return s.view(created, "", true), nil
}

func (s *Server) ListInvitations(ctx context.Context, familyID string) ([]*InvitationResponse, error) {
	ctx, span := tracer.Start(ctx, "ListInvitations")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleAdmin); err != nil {
		return nil, err
	}

	invitations, err := s.datastore.ListInvitations(ctx, familyID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	out := make([]*InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, s.view(inv, "", inv.EffectiveStatus(s.now()) == storage.InvitationPending))
	}
	return out, nil
}

// GetInvitation returns the invitation behind token to anyone holding it,
// together with the name of the family it leads to.
func (s *Server) GetInvitation(ctx context.Context, token string) (*InvitationResponse, error) {
	ctx, span := tracer.Start(ctx, "GetInvitation")
	defer span.End()

	if _, err := claimsFromContext(ctx); err != nil {
		return nil, err
	}

	inv, err := s.datastore.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, commands.ErrInvitationNotFound
		}
		return nil, serverErrors.HandleError("", err)
	}

	familyName := ""
	if family, err := s.datastore.GetFamily(ctx, inv.FamilyID); err == nil {
		familyName = family.Name
	}
	return s.view(inv, familyName, false), nil
}

func (s *Server) respondInvitation() *commands.RespondInvitationCommand {
	return commands.NewRespondInvitationCommand(s.datastore,
		commands.WithRespondInvitationNotifier(s.notifier),
		commands.WithRespondInvitationClock(s.now),
	)
}

func (s *Server) AcceptInvitation(ctx context.Context, token string) (*storage.FamilyMember, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	member, err := s.respondInvitation().Accept(ctx, token, claims)
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *Server) DeclineInvitation(ctx context.Context, token string) (*InvitationResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := s.respondInvitation().Decline(ctx, token, claims)
	if err != nil {
		return nil, err
	}
	return s.view(inv, "", false), nil
}

// RevokeInvitation withdraws a pending invitation.
func (s *Server) RevokeInvitation(ctx context.Context, invitationID string) (*InvitationResponse, error) {
	ctx, span := tracer.Start(ctx, "RevokeInvitation")
	defer span.End()

	inv, err := s.datastore.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, notFound("invitation", err)
	}

	if _, err := s.authorize(ctx, inv.FamilyID, storage.RoleAdmin); err != nil {
		if errors.Is(err, serverErrors.NotAFamilyMember) {
			return nil, commands.ErrInvitationNotFound
		}
		return nil, err
	}

	now := s.now()
	if inv.EffectiveStatus(now) != storage.InvitationPending {
		return nil, serverErrors.InvitationNotPending
	}

	if err := s.datastore.UpdateInvitationStatus(ctx, inv.ID, storage.InvitationRevoked, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, serverErrors.InvitationNotPending
		}
		return nil, serverErrors.HandleError("", err)
	}

	inv.Status = storage.InvitationRevoked
	inv.RespondedAt = &now
	return s.view(inv, "", false), nil
}

func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	inv, err := s.CreateInvitation(r.Context(), r.PathValue("familyID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, inv)
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := s.ListInvitations(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, invitations)
}

func (s *Server) handleGetInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.GetInvitation(r.Context(), r.PathValue("token"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, inv)
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	member, err := s.AcceptInvitation(r.Context(), r.PathValue("token"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, member)
}

func (s *Server) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.DeclineInvitation(r.Context(), r.PathValue("token"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, inv)
}

func (s *Server) handleRevokeInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.RevokeInvitation(r.Context(), r.PathValue("invitationID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, inv)
}

