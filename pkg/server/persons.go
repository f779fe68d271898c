package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/genea-app/genea/pkg/id"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

const (
	maxNameLength      = 100
	maxPlaceLength     = 200
	maxBiographyLength = 10000
)

// PersonRequest carries the writable fields of a person. Nil fields are left
// untouched on update.
type PersonRequest struct {
	FirstName  *string         `json:"first_name"`
	LastName   *string         `json:"last_name"`
	MaidenName *string         `json:"maiden_name"`
	Gender     *storage.Gender `json:"gender"`
	BirthDate  *string         `json:"birth_date"`
	BirthPlace *string         `json:"birth_place"`
	DeathDate  *string         `json:"death_date"`
	DeathPlace *string         `json:"death_place"`
	IsLiving   *bool           `json:"is_living"`
	Occupation *string         `json:"occupation"`
	Biography  *string         `json:"biography"`
}

func (req *PersonRequest) apply(p *storage.Person) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.FirstName, req.FirstName)
	set(&p.LastName, req.LastName)
	set(&p.MaidenName, req.MaidenName)
	set(&p.BirthDate, req.BirthDate)
	set(&p.BirthPlace, req.BirthPlace)
	set(&p.DeathDate, req.DeathDate)
	set(&p.DeathPlace, req.DeathPlace)
	set(&p.Occupation, req.Occupation)
	set(&p.Biography, req.Biography)
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.IsLiving != nil {
		p.IsLiving = *req.IsLiving
	}
	if p.DeathDate != "" || p.DeathPlace != "" {
		p.IsLiving = false
	}
}

func validatePerson(p *storage.Person) error {
	if p.FirstName == "" {
		return storage.InvalidField("first_name", "is required")
	}
	for _, f := range []struct{ name, value string }{
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"maiden_name", p.MaidenName},
		{"occupation", p.Occupation},
	} {
		if utf8.RuneCountInString(f.value) > maxNameLength {
			return storage.InvalidField(f.name, "must be at most %d characters", maxNameLength)
		}
	}
	if utf8.RuneCountInString(p.BirthPlace) > maxPlaceLength {
		return storage.InvalidField("birth_place", "must be at most %d characters", maxPlaceLength)
	}
	if utf8.RuneCountInString(p.DeathPlace) > maxPlaceLength {
		return storage.InvalidField("death_place", "must be at most %d characters", maxPlaceLength)
	}
	if utf8.RuneCountInString(p.Biography) > maxBiographyLength {
		return storage.InvalidField("biography", "must be at most %d characters", maxBiographyLength)
	}
	if !p.Gender.Valid() {
		return storage.InvalidField("gender", "must be one of male, female, other, unknown")
	}

	birthYear, err := storage.ParsePartialDate(p.BirthDate)
	if err != nil {
		return storage.InvalidField("birth_date", "%s", err)
	}
	deathYear, err := storage.ParsePartialDate(p.DeathDate)
	if err != nil {
		return storage.InvalidField("death_date", "%s", err)
	}
	if birthYear != 0 && deathYear != 0 && deathYear < birthYear {
		return storage.InvalidField("death_date", "must not be before birth_date")
	}
	return nil
}

// authorizePerson loads a person and checks the caller's role in its family.
// Persons of families the caller does not belong to are reported missing.
func (s *Server) authorizePerson(ctx context.Context, personID string, minRole storage.Role) (*storage.Person, *storage.FamilyMember, error) {
	person, err := s.datastore.GetPerson(ctx, personID)
	if err != nil {
		return nil, nil, notFound("person", err)
	}

	member, err := s.authorize(ctx, person.FamilyID, minRole)
	if err != nil {
		if errors.Is(err, serverErrors.NotAFamilyMember) {
			return nil, nil, serverErrors.ResourceNotFound("person")
		}
		return nil, nil, err
	}
	return person, member, nil
}

func (s *Server) CreatePerson(ctx context.Context, familyID string, req *PersonRequest) (*storage.Person, error) {
	ctx, span := tracer.Start(ctx, "CreatePerson")
	defer span.End()

	member, err := s.authorize(ctx, familyID, storage.RoleEditor)
	if err != nil {
		return nil, err
	}

	person := &storage.Person{
		FamilyID:  familyID,
		Gender:    storage.GenderUnknown,
		IsLiving:  true,
		CreatedBy: member.UserID,
	}
	req.apply(person)
	if err := validatePerson(person); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	person.ID, err = id.NewStringFromTime(s.now())
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	created, err := s.datastore.CreatePerson(ctx, person)
	if err != nil {
		return nil, serverErrors.HandleError("failed to create person", err)
	}

	s.notifier.Notify(ctx, commands.Event{
		FamilyID: familyID,
		Type:     storage.NotificationPersonAdded,
		Title:    "New person in the family tree",
		Message:  fmt.Sprintf("%s was added to the family tree", created.FullName()),
		ActorID:  member.UserID,
	})

	return created, nil
}

func (s *Server) ListPersons(ctx context.Context, familyID string, filter storage.PersonFilter, opts storage.PaginationOptions) ([]*storage.Person, string, error) {
	ctx, span := tracer.Start(ctx, "ListPersons")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, "", err
	}

	persons, token, err := s.datastore.ListPersons(ctx, familyID, filter, opts)
	if err != nil {
		return nil, "", serverErrors.HandleError("", err)
	}
	if persons == nil {
		persons = []*storage.Person{}
	}
	return persons, token, nil
}

func (s *Server) GetPerson(ctx context.Context, personID string) (*storage.Person, error) {
	ctx, span := tracer.Start(ctx, "GetPerson")
	defer span.End()

	person, _, err := s.authorizePerson(ctx, personID, storage.RoleViewer)
	return person, err
}

func (s *Server) UpdatePerson(ctx context.Context, personID string, req *PersonRequest) (*storage.Person, error) {
	ctx, span := tracer.Start(ctx, "UpdatePerson")
	defer span.End()

	person, _, err := s.authorizePerson(ctx, personID, storage.RoleEditor)
	if err != nil {
		return nil, err
	}

	req.apply(person)
	if err := validatePerson(person); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	updated, err := s.datastore.UpdatePerson(ctx, person)
	if err != nil {
		return nil, notFound("person", err)
	}
	return updated, nil
}

// DeletePerson removes a person with its relationships. Media of the person
// stays in the family, detached.
func (s *Server) DeletePerson(ctx context.Context, personID string) error {
	ctx, span := tracer.Start(ctx, "DeletePerson")
	defer span.End()

	if _, _, err := s.authorizePerson(ctx, personID, storage.RoleAdmin); err != nil {
		return err
	}

	if err := s.datastore.DeletePerson(ctx, personID); err != nil {
		return notFound("person", err)
	}
	return nil
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	person, err := s.CreatePerson(r.Context(), r.PathValue("familyID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, person)
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	opts, err := paginationFromQuery(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	living, err := boolFromQuery(r, "living")
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	filter := storage.PersonFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Living: living,
	}

	persons, token, err := s.ListPersons(r.Context(), r.PathValue("familyID"), filter, opts)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteList(w, persons, token)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := s.GetPerson(r.Context(), r.PathValue("personID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, person)
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	person, err := s.UpdatePerson(r.Context(), r.PathValue("personID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, person)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := s.DeletePerson(r.Context(), r.PathValue("personID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}
