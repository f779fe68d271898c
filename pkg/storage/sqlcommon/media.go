package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreateMedia see [storage.MediaBackend].CreateMedia.
func (s *Datastore) CreateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error) {
	ctx, span := s.startTrace(ctx, "CreateMedia")
	defer span.End()

	created := *media
	created.CreatedAt = s.now()

	_, err := s.dbInfo.stbl.
		Insert("media").
		Columns(mediaColumns...).
		Values(created.ID, created.FamilyID, nullString(created.PersonID), created.Title, created.Description,
			created.FileName, created.ContentType, created.Size, created.StorageKey, created.ETag, created.UploadedBy, created.CreatedAt).
		ExecContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	return &created, nil
}

// GetMedia see [storage.MediaBackend].GetMedia.
func (s *Datastore) GetMedia(ctx context.Context, id string) (*storage.Media, error) {
	ctx, span := s.startTrace(ctx, "GetMedia")
	defer span.End()

	row := s.dbInfo.stbl.
		Select(mediaColumns...).
		From("media").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	m, err := scanMedia(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return m, nil
}

// ListMedia see [storage.MediaBackend].ListMedia.
func (s *Datastore) ListMedia(ctx context.Context, familyID string, filter storage.MediaFilter, opts storage.PaginationOptions) ([]*storage.Media, string, error) {
	ctx, span := s.startTrace(ctx, "ListMedia")
	defer span.End()

	sb := s.dbInfo.stbl.
		Select(mediaColumns...).
		From("media").
		Where(sq.Eq{"family_id": familyID})
	if filter.PersonID != "" {
		sb = sb.Where(sq.Eq{"person_id": filter.PersonID})
	}

	sb, err := AddFromUlid(sb, opts, false)
	if err != nil {
		return nil, "", err
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}
	items, err := collect(rows, scanMedia)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}

	page, token := trimPage(items, func(m *storage.Media) string { return m.ID }, opts)
	return page, token, nil
}

// UpdateMedia see [storage.MediaBackend].UpdateMedia. Only descriptive fields and the person link change.
func (s *Datastore) UpdateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error) {
	ctx, span := s.startTrace(ctx, "UpdateMedia")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Update("media").
		Set("title", media.Title).
		Set("description", media.Description).
		Set("person_id", nullString(media.PersonID)).
		Where(sq.Eq{"id": media.ID}))
	if err != nil {
		return nil, err
	}

	return s.GetMedia(ctx, media.ID)
}

// DeleteMedia see [storage.MediaBackend].DeleteMedia.
func (s *Datastore) DeleteMedia(ctx context.Context, id string) error {
	ctx, span := s.startTrace(ctx, "DeleteMedia")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.Delete("media").Where(sq.Eq{"id": id}))
	return err
}
