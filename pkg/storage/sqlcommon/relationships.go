package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreateRelationship see [storage.RelationshipBackend].CreateRelationship.
func (s *Datastore) CreateRelationship(ctx context.Context, rel *storage.Relationship) (*storage.Relationship, error) {
	ctx, span := s.startTrace(ctx, "CreateRelationship")
	defer span.End()

	created := *rel
	created.CreatedAt = s.now()

	_, err := s.dbInfo.stbl.
		Insert("relationships").
		Columns(relationshipColumns...).
		Values(created.ID, created.FamilyID, created.Person1ID, created.Person2ID, string(created.Type),
			created.StartDate, created.EndDate, created.Notes, created.CreatedAt).
		ExecContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	return &created, nil
}

// GetRelationship see [storage.RelationshipBackend].GetRelationship.
func (s *Datastore) GetRelationship(ctx context.Context, id string) (*storage.Relationship, error) {
	ctx, span := s.startTrace(ctx, "GetRelationship")
	defer span.End()

	row := s.dbInfo.stbl.
		Select(relationshipColumns...).
		From("relationships").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	r, err := scanRelationship(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return r, nil
}

// ListRelationships see [storage.RelationshipBackend].ListRelationships.
func (s *Datastore) ListRelationships(ctx context.Context, familyID string, filter storage.RelationshipFilter) ([]*storage.Relationship, error) {
	ctx, span := s.startTrace(ctx, "ListRelationships")
	defer span.End()

	sb := s.dbInfo.stbl.
		Select(relationshipColumns...).
		From("relationships").
		Where(sq.Eq{"family_id": familyID}).
		OrderBy("id")

	if filter.PersonID != "" {
		sb = sb.Where(sq.Or{sq.Eq{"person1_id": filter.PersonID}, sq.Eq{"person2_id": filter.PersonID}})
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	rels, err := collect(rows, scanRelationship)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return rels, nil
}

// UpdateRelationship see [storage.RelationshipBackend].UpdateRelationship.
func (s *Datastore) UpdateRelationship(ctx context.Context, rel *storage.Relationship) (*storage.Relationship, error) {
	ctx, span := s.startTrace(ctx, "UpdateRelationship")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Update("relationships").
		Set("relationship_type", string(rel.Type)).
		Set("start_date", rel.StartDate).
		Set("end_date", rel.EndDate).
		Set("notes", rel.Notes).
		Where(sq.Eq{"id": rel.ID}))
	if err != nil {
		return nil, err
	}

	return s.GetRelationship(ctx, rel.ID)
}

// DeleteRelationship see [storage.RelationshipBackend].DeleteRelationship.
func (s *Datastore) DeleteRelationship(ctx context.Context, id string) error {
	ctx, span := s.startTrace(ctx, "DeleteRelationship")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.Delete("relationships").Where(sq.Eq{"id": id}))
	return err
}
