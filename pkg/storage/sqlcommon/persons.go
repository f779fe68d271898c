package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreatePerson see [storage.PersonBackend].CreatePerson.
func (s *Datastore) CreatePerson(ctx context.Context, person *storage.Person) (*storage.Person, error) {
	ctx, span := s.startTrace(ctx, "CreatePerson")
	defer span.End()

	now := s.now()
	created := *person
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := s.dbInfo.stbl.
		Insert("persons").
		Columns(personColumns...).
		Columns("search_text").
		Values(
			created.ID, created.FamilyID, created.FirstName, created.LastName, created.MaidenName, string(created.Gender),
			created.BirthDate, created.BirthPlace, created.DeathDate, created.DeathPlace, created.IsLiving,
			created.Occupation, created.Biography, created.CreatedBy, now, now,
			storage.PersonSearchText(&created),
		).
		ExecContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	return &created, nil
}

// GetPerson see [storage.PersonBackend].GetPerson.
func (s *Datastore) GetPerson(ctx context.Context, id string) (*storage.Person, error) {
	ctx, span := s.startTrace(ctx, "GetPerson")
	defer span.End()

	row := s.dbInfo.stbl.
		Select(personColumns...).
		From("persons").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	p, err := scanPerson(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return p, nil
}

// ListPersons see [storage.PersonBackend].ListPersons.
func (s *Datastore) ListPersons(ctx context.Context, familyID string, filter storage.PersonFilter, opts storage.PaginationOptions) ([]*storage.Person, string, error) {
	ctx, span := s.startTrace(ctx, "ListPersons")
	defer span.End()

	sb := s.dbInfo.stbl.
		Select(personColumns...).
		From("persons").
		Where(sq.Eq{"family_id": familyID})

	if filter.Living != nil {
		sb = sb.Where(sq.Eq{"is_living": *filter.Living})
	}
	if filter.Search != "" {
		sb = sb.Where(sq.Expr("search_text LIKE ? ESCAPE '!'", storage.SearchPattern(filter.Search)))
	}

	sb, err := AddFromUlid(sb, opts, false)
	if err != nil {
		return nil, "", err
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}
	persons, err := collect(rows, scanPerson)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}

	page, token := trimPage(persons, func(p *storage.Person) string { return p.ID }, opts)
	return page, token, nil
}

// UpdatePerson see [storage.PersonBackend].UpdatePerson.
func (s *Datastore) UpdatePerson(ctx context.Context, person *storage.Person) (*storage.Person, error) {
	ctx, span := s.startTrace(ctx, "UpdatePerson")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Update("persons").
		SetMap(map[string]interface{}{
			"first_name":  person.FirstName,
			"last_name":   person.LastName,
			"maiden_name": person.MaidenName,
			"gender":      string(person.Gender),
			"birth_date":  person.BirthDate,
			"birth_place": person.BirthPlace,
			"death_date":  person.DeathDate,
			"death_place": person.DeathPlace,
			"is_living":   person.IsLiving,
			"occupation":  person.Occupation,
			"biography":   person.Biography,
			"search_text": storage.PersonSearchText(person),
			"updated_at":  s.now(),
		}).
		Where(sq.Eq{"id": person.ID}))
	if err != nil {
		return nil, err
	}

	return s.GetPerson(ctx, person.ID)
}

// DeletePerson see [storage.PersonBackend].DeletePerson.
func (s *Datastore) DeletePerson(ctx context.Context, id string) error {
	ctx, span := s.startTrace(ctx, "DeletePerson")
	defer span.End()

	return s.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		_, err := stbl.
			Delete("relationships").
			Where(sq.Or{sq.Eq{"person1_id": id}, sq.Eq{"person2_id": id}}).
			ExecContext(ctx)
		if err != nil {
			return s.dbInfo.HandleSQLError(err)
		}

		_, err = stbl.
			Update("media").
			Set("person_id", nil).
			Where(sq.Eq{"person_id": id}).
			ExecContext(ctx)
		if err != nil {
			return s.dbInfo.HandleSQLError(err)
		}

		_, err = s.execAffecting(ctx, stbl.Delete("persons").Where(sq.Eq{"id": id}))
		return err
	})
}
