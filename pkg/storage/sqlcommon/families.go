package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreateFamily see [storage.FamilyBackend].CreateFamily.
func (s *Datastore) CreateFamily(ctx context.Context, family *storage.Family, owner *storage.FamilyMember) (*storage.Family, error) {
	ctx, span := s.startTrace(ctx, "CreateFamily")
	defer span.End()

	now := s.now()
	created := *family
	created.CreatedAt = now
	created.UpdatedAt = now

	err := s.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		_, err := stbl.
			Insert("families").
			Columns(familyColumns...).
			Values(created.ID, created.Name, created.Description, created.CreatedBy, now, now).
			ExecContext(ctx)
		if err != nil {
			return s.dbInfo.HandleSQLError(err)
		}

		_, err = stbl.
			Insert("family_members").
			Columns(memberColumns...).
			Values(created.ID, owner.UserID, owner.Email, string(owner.Role), now).
			ExecContext(ctx)
		if err != nil {
			return s.dbInfo.HandleSQLError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// GetFamily see [storage.FamilyBackend].GetFamily.
func (s *Datastore) GetFamily(ctx context.Context, id string) (*storage.Family, error) {
	ctx, span := s.startTrace(ctx, "GetFamily")
	defer span.End()

	row := s.dbInfo.stbl.
		Select(familyColumns...).
		From("families").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	f, err := scanFamily(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return f, nil
}

// ListFamiliesForUser see [storage.FamilyBackend].ListFamiliesForUser.
func (s *Datastore) ListFamiliesForUser(ctx context.Context, userID string, opts storage.PaginationOptions) ([]*storage.Family, string, error) {
	ctx, span := s.startTrace(ctx, "ListFamiliesForUser")
	defer span.End()

	sb := s.dbInfo.stbl.
		Select(familyColumns...).
		From("families").
		Where(sq.Expr("id IN (SELECT family_id FROM family_members WHERE user_id = ?)", userID))

	sb, err := AddFromUlid(sb, opts, false)
	if err != nil {
		return nil, "", err
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}
	families, err := collect(rows, scanFamily)
	if err != nil {
		return nil, "", s.dbInfo.HandleSQLError(err)
	}

	page, token := trimPage(families, func(f *storage.Family) string { return f.ID }, opts)
	return page, token, nil
}

// UpdateFamily see [storage.FamilyBackend].UpdateFamily.
func (s *Datastore) UpdateFamily(ctx context.Context, family *storage.Family) (*storage.Family, error) {
	ctx, span := s.startTrace(ctx, "UpdateFamily")
	defer span.End()

	_, err := s.execAffecting(ctx, s.dbInfo.stbl.
		Update("families").
		Set("name", family.Name).
		Set("description", family.Description).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": family.ID}))
	if err != nil {
		return nil, err
	}

	return s.GetFamily(ctx, family.ID)
}

// DeleteFamily see [storage.FamilyBackend].DeleteFamily.
func (s *Datastore) DeleteFamily(ctx context.Context, id string) error {
	ctx, span := s.startTrace(ctx, "DeleteFamily")
	defer span.End()

	return s.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		// children first so engines without cascading foreign keys behave the same
		for _, table := range []string{
			"relationships", "media", "invitations", "notifications", "licenses", "persons", "family_members",
		} {
			if _, err := stbl.Delete(table).Where(sq.Eq{"family_id": id}).ExecContext(ctx); err != nil {
				return s.dbInfo.HandleSQLError(err)
			}
		}

		_, err := s.execAffecting(ctx, stbl.Delete("families").Where(sq.Eq{"id": id}))
		return err
	})
}

// AddMember see [storage.MemberBackend].AddMember.
func (s *Datastore) AddMember(ctx context.Context, member *storage.FamilyMember) error {
	ctx, span := s.startTrace(ctx, "AddMember")
	defer span.End()

	return s.insertMember(ctx, s.dbInfo.stbl, member)
}

func (s *Datastore) insertMember(ctx context.Context, stbl sq.StatementBuilderType, member *storage.FamilyMember) error {
	_, err := stbl.
		Insert("family_members").
		Columns(memberColumns...).
		Values(member.FamilyID, member.UserID, member.Email, string(member.Role), s.now()).
		ExecContext(ctx)
	if err != nil {
		return s.dbInfo.HandleSQLError(err)
	}
	return nil
}

// GetMember see [storage.MemberBackend].GetMember.
func (s *Datastore) GetMember(ctx context.Context, familyID, userID string) (*storage.FamilyMember, error) {
	ctx, span := s.startTrace(ctx, "GetMember")
	defer span.End()

	row := s.dbInfo.stbl.
		Select(memberColumns...).
		From("family_members").
		Where(sq.Eq{"family_id": familyID, "user_id": userID}).
		QueryRowContext(ctx)

	m, err := scanMember(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return m, nil
}

// ListMembers see [storage.MemberBackend].ListMembers.
func (s *Datastore) ListMembers(ctx context.Context, familyID string) ([]*storage.FamilyMember, error) {
	ctx, span := s.startTrace(ctx, "ListMembers")
	defer span.End()

	rows, err := s.dbInfo.stbl.
		Select(memberColumns...).
		From("family_members").
		Where(sq.Eq{"family_id": familyID}).
		OrderBy("joined_at", "user_id").
		QueryContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	members, err := collect(rows, scanMember)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return members, nil
}

// lockMembers reads the family's membership rows and locks them until the
// transaction ends. SQLite transactions are opened immediate and already hold
// the database write lock.
func (s *Datastore) lockMembers(ctx context.Context, stbl sq.StatementBuilderType, familyID string) ([]*storage.FamilyMember, error) {
	sb := stbl.
		Select(memberColumns...).
		From("family_members").
		Where(sq.Eq{"family_id": familyID})
	if s.dbInfo.engine != "sqlite" {
		sb = sb.Suffix("FOR UPDATE")
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	members, err := collect(rows, scanMember)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return members, nil
}

// guardLastOwner locks the membership of familyID and returns
// storage.ErrLastOwner if userID is its only owner.
func (s *Datastore) guardLastOwner(ctx context.Context, stbl sq.StatementBuilderType, familyID, userID string) error {
	members, err := s.lockMembers(ctx, stbl, familyID)
	if err != nil {
		return err
	}

	var target *storage.FamilyMember
	owners := 0
	for _, m := range members {
		if m.UserID == userID {
			target = m
		}
		if m.Role == storage.RoleOwner {
			owners++
		}
	}

	switch {
	case target == nil:
		return storage.ErrNotFound
	case target.Role == storage.RoleOwner && owners <= 1:
		return storage.ErrLastOwner
	}
	return nil
}

// UpdateMemberRole see [storage.MemberBackend].UpdateMemberRole.
func (s *Datastore) UpdateMemberRole(ctx context.Context, familyID, userID string, role storage.Role) error {
	ctx, span := s.startTrace(ctx, "UpdateMemberRole")
	defer span.End()

	return s.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		if role != storage.RoleOwner {
			if err := s.guardLastOwner(ctx, stbl, familyID, userID); err != nil {
				return err
			}
		}

		_, err := s.execAffecting(ctx, stbl.
			Update("family_members").
			Set("role", string(role)).
			Where(sq.Eq{"family_id": familyID, "user_id": userID}))
		return err
	})
}

// RemoveMember see [storage.MemberBackend].RemoveMember.
func (s *Datastore) RemoveMember(ctx context.Context, familyID, userID string) error {
	ctx, span := s.startTrace(ctx, "RemoveMember")
	defer span.End()

	return s.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		if err := s.guardLastOwner(ctx, stbl, familyID, userID); err != nil {
			return err
		}

		_, err := s.execAffecting(ctx, stbl.
			Delete("family_members").
			Where(sq.Eq{"family_id": familyID, "user_id": userID}))
		return err
	})
}
