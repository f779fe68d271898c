package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/genea-app/genea/pkg/id"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/suggest"
)

const maxNotesLength = 2000

var errRelationshipExists = serverErrors.NewEncodedError(serverErrors.Conflict, "relationship already exists")

type CreateRelationshipRequest struct {
	FamilyID  string                   `json:"family_id"`
	Person1ID string                   `json:"person1_id"`
	Person2ID string                   `json:"person2_id"`
	Type      storage.RelationshipType `json:"relationship_type"`
	StartDate string                   `json:"start_date"`
	EndDate   string                   `json:"end_date"`
	Notes     string                   `json:"notes"`
}

type UpdateRelationshipRequest struct {
	Type      *storage.RelationshipType `json:"relationship_type"`
	StartDate *string                   `json:"start_date"`
	EndDate   *string                   `json:"end_date"`
	Notes     *string                   `json:"notes"`
}

// RelationshipResponse is a relationship with the consistency warnings
// raised by its endpoints' dates.
type RelationshipResponse struct {
	*storage.Relationship
	Warnings []suggest.Warning `json:"warnings,omitempty"`
}

func validateRelationship(rel *storage.Relationship) error {
	if !rel.Type.Valid() {
		return storage.InvalidField("relationship_type", "must be one of parent, child, spouse, ex_spouse, sibling")
	}
	if rel.Person1ID == "" {
		return storage.InvalidField("person1_id", "is required")
	}
	if rel.Person2ID == "" {
		return storage.InvalidField("person2_id", "is required")
	}
	if rel.Person1ID == rel.Person2ID {
		return storage.InvalidField("person2_id", "a person cannot be related to themselves")
	}

	start, err := storage.ParsePartialDate(rel.StartDate)
	if err != nil {
		return storage.InvalidField("start_date", "%s", err)
	}
	end, err := storage.ParsePartialDate(rel.EndDate)
	if err != nil {
		return storage.InvalidField("end_date", "%s", err)
	}
	if start != 0 && end != 0 && end < start {
		return storage.InvalidField("end_date", "must not be before start_date")
	}

	if utf8.RuneCountInString(rel.Notes) > maxNotesLength {
		return storage.InvalidField("notes", "must be at most %d characters", maxNotesLength)
	}
	return nil
}

// familyPerson loads personID and checks that it belongs to familyID.
func (s *Server) familyPerson(ctx context.Context, familyID, personID, field string) (*storage.Person, error) {
	person, err := s.datastore.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, serverErrors.ValidationFailed("%s: person does not exist", field)
		}
		return nil, serverErrors.HandleError("", err)
	}
	if person.FamilyID != familyID {
		return nil, serverErrors.ValidationFailed("%s: person does not belong to this family", field)
	}
	return person, nil
}

// checkUnique rejects rel when an equivalent edge already exists, seen from
// either side.
func (s *Server) checkUnique(ctx context.Context, rel *storage.Relationship) error {
	existing, err := s.datastore.ListRelationships(ctx, rel.FamilyID, storage.RelationshipFilter{PersonID: rel.Person1ID})
	if err != nil {
		return serverErrors.HandleError("", err)
	}
	for _, other := range existing {
		if other.ID != rel.ID && rel.Equivalent(other) {
			return errRelationshipExists
		}
	}
	return nil
}

// relationshipWarnings checks rel against the dates of both endpoints.
func (s *Server) relationshipWarnings(ctx context.Context, rel *storage.Relationship) ([]suggest.Warning, error) {
	p1, err := s.familyPerson(ctx, rel.FamilyID, rel.Person1ID, "person1_id")
	if err != nil {
		return nil, err
	}
	p2, err := s.familyPerson(ctx, rel.FamilyID, rel.Person2ID, "person2_id")
	if err != nil {
		return nil, err
	}
	return suggest.CheckRelationship(p1, p2, rel.Type), nil
}

func (s *Server) authorizeRelationship(ctx context.Context, relationshipID string, minRole storage.Role) (*storage.Relationship, error) {
	rel, err := s.datastore.GetRelationship(ctx, relationshipID)
	if err != nil {
		return nil, notFound("relationship", err)
	}

	if _, err := s.authorize(ctx, rel.FamilyID, minRole); err != nil {
		if errors.Is(err, serverErrors.NotAFamilyMember) {
			return nil, serverErrors.ResourceNotFound("relationship")
		}
		return nil, err
	}
	return rel, nil
}

func (s *Server) CreateRelationship(ctx context.Context, req *CreateRelationshipRequest) (*RelationshipResponse, error) {
	ctx, span := tracer.Start(ctx, "CreateRelationship")
	defer span.End()

	if req.FamilyID == "" {
		return nil, serverErrors.HandleError("", storage.InvalidField("family_id", "is required"))
	}
	if _, err := s.authorize(ctx, req.FamilyID, storage.RoleEditor); err != nil {
		return nil, err
	}

	rel := &storage.Relationship{
		FamilyID:  req.FamilyID,
		Person1ID: strings.TrimSpace(req.Person1ID),
		Person2ID: strings.TrimSpace(req.Person2ID),
		Type:      req.Type,
		StartDate: strings.TrimSpace(req.StartDate),
		EndDate:   strings.TrimSpace(req.EndDate),
		Notes:     strings.TrimSpace(req.Notes),
	}
	if err := validateRelationship(rel); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	warnings, err := s.relationshipWarnings(ctx, rel)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, rel); err != nil {
		return nil, err
	}

	rel.ID, err = id.NewStringFromTime(s.now())
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	created, err := s.datastore.CreateRelationship(ctx, rel)
	if err != nil {
		if errors.Is(err, storage.ErrCollision) {
			return nil, errRelationshipExists
		}
		return nil, serverErrors.HandleError("failed to create relationship", err)
	}
	return &RelationshipResponse{Relationship: created, Warnings: warnings}, nil
}

func (s *Server) ListRelationships(ctx context.Context, familyID string, filter storage.RelationshipFilter) ([]*storage.Relationship, error) {
	ctx, span := tracer.Start(ctx, "ListRelationships")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, err
	}

	rels, err := s.datastore.ListRelationships(ctx, familyID, filter)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	if rels == nil {
		rels = []*storage.Relationship{}
	}
	return rels, nil
}

func (s *Server) GetRelationship(ctx context.Context, relationshipID string) (*storage.Relationship, error) {
	ctx, span := tracer.Start(ctx, "GetRelationship")
	defer span.End()

	return s.authorizeRelationship(ctx, relationshipID, storage.RoleViewer)
}

func (s *Server) UpdateRelationship(ctx context.Context, relationshipID string, req *UpdateRelationshipRequest) (*RelationshipResponse, error) {
	ctx, span := tracer.Start(ctx, "UpdateRelationship")
	defer span.End()

	rel, err := s.authorizeRelationship(ctx, relationshipID, storage.RoleEditor)
	if err != nil {
		return nil, err
	}

	typeChanged := req.Type != nil && *req.Type != rel.Type
	if req.Type != nil {
		rel.Type = *req.Type
	}
	if req.StartDate != nil {
		rel.StartDate = strings.TrimSpace(*req.StartDate)
	}
	if req.EndDate != nil {
		rel.EndDate = strings.TrimSpace(*req.EndDate)
	}
	if req.Notes != nil {
		rel.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := validateRelationship(rel); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	warnings, err := s.relationshipWarnings(ctx, rel)
	if err != nil {
		return nil, err
	}
	if typeChanged {
		if err := s.checkUnique(ctx, rel); err != nil {
			return nil, err
		}
	}

	updated, err := s.datastore.UpdateRelationship(ctx, rel)
	if err != nil {
		if errors.Is(err, storage.ErrCollision) {
			return nil, errRelationshipExists
		}
		return nil, notFound("relationship", err)
	}
	return &RelationshipResponse{Relationship: updated, Warnings: warnings}, nil
}

func (s *Server) DeleteRelationship(ctx context.Context, relationshipID string) error {
	ctx, span := tracer.Start(ctx, "DeleteRelationship")
	defer span.End()

	if _, err := s.authorizeRelationship(ctx, relationshipID, storage.RoleEditor); err != nil {
		return err
	}

	if err := s.datastore.DeleteRelationship(ctx, relationshipID); err != nil {
		return notFound("relationship", err)
	}
	return nil
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationshipRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	rel, err := s.CreateRelationship(r.Context(), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, rel)
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	filter := storage.RelationshipFilter{PersonID: r.URL.Query().Get("person_id")}

	rels, err := s.ListRelationships(r.Context(), r.PathValue("familyID"), filter)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, rels)
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.GetRelationship(r.Context(), r.PathValue("relationshipID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, rel)
}

func (s *Server) handleUpdateRelationship(w http.ResponseWriter, r *http.Request) {
	var req UpdateRelationshipRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	rel, err := s.UpdateRelationship(r.Context(), r.PathValue("relationshipID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, rel)
}

func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteRelationship(r.Context(), r.PathValue("relationshipID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}
