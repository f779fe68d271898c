package sqlcommon

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreateLicense see [storage.LicenseBackend].CreateLicense.
func (s *Datastore) CreateLicense(ctx context.Context, license *storage.License) (*storage.License, error) {
	ctx, span := s.startTrace(ctx, "CreateLicense")
	defer span.End()

	created := *license
	created.CreatedAt = s.now()
	created.StartsAt = created.StartsAt.UTC().Truncate(time.Microsecond)
	if created.ExpiresAt != nil {
		exp := created.ExpiresAt.UTC().Truncate(time.Microsecond)
		created.ExpiresAt = &exp
	}

	_, err := s.dbInfo.stbl.
		Insert("licenses").
		Columns(licenseColumns...).
		Values(created.ID, created.FamilyID, string(created.Status), created.Plan,
			created.StartsAt, nullTime(created.ExpiresAt), created.CreatedAt).
		ExecContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	return &created, nil
}

// GetLatestLicense see [storage.LicenseBackend].GetLatestLicense.
func (s *Datastore) GetLatestLicense(ctx context.Context, familyID string) (*storage.License, error) {
	ctx, span := s.startTrace(ctx, "GetLatestLicense")
	defer span.End()

	row := s.dbInfo.stbl.
		Select(licenseColumns...).
		From("licenses").
		Where(sq.Eq{"family_id": familyID}).
		OrderBy("id DESC").
		Limit(1).
		QueryRowContext(ctx)

	l, err := scanLicense(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return l, nil
}

// ListLicenses see [storage.LicenseBackend].ListLicenses.
func (s *Datastore) ListLicenses(ctx context.Context, familyID string) ([]*storage.License, error) {
	ctx, span := s.startTrace(ctx, "ListLicenses")
	defer span.End()

	rows, err := s.dbInfo.stbl.
		Select(licenseColumns...).
		From("licenses").
		Where(sq.Eq{"family_id": familyID}).
		OrderBy("id").
		QueryContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	licenses, err := collect(rows, scanLicense)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return licenses, nil
}

// UpdateLicenseStatus see [storage.LicenseBackend].UpdateLicenseStatus.
func (s *Datastore) UpdateLicenseStatus(ctx context.Context, id string, status storage.LicenseStatus) error {
	ctx, span := s.startTrace(ctx, "UpdateLicenseStatus")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Update("licenses").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}))
	return err
}
