package sqlcommon

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

// CreateInvitation see [storage.InvitationBackend].CreateInvitation.
func (s *Datastore) CreateInvitation(ctx context.Context, inv *storage.Invitation) (*storage.Invitation, error) {
	ctx, span := s.startTrace(ctx, "CreateInvitation")
	defer span.End()

	created := *inv
	created.CreatedAt = s.now()
	created.ExpiresAt = created.ExpiresAt.UTC().Truncate(time.Microsecond)

	_, err := s.dbInfo.stbl.
		Insert("invitations").
		Columns(invitationColumns...).
		Values(created.ID, created.FamilyID, created.Email, string(created.Role), created.Token, string(created.Status),
			created.InvitedBy, created.ExpiresAt, created.CreatedAt, nullTime(created.RespondedAt)).
		ExecContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	return &created, nil
}

func (s *Datastore) getInvitationWhere(ctx context.Context, pred sq.Eq) (*storage.Invitation, error) {
	row := s.dbInfo.stbl.
		Select(invitationColumns...).
		From("invitations").
		Where(pred).
		QueryRowContext(ctx)

	inv, err := scanInvitation(row)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return inv, nil
}

// GetInvitation see [storage.InvitationBackend].GetInvitation.
func (s *Datastore) GetInvitation(ctx context.Context, id string) (*storage.Invitation, error) {
	ctx, span := s.startTrace(ctx, "GetInvitation")
	defer span.End()

	return s.getInvitationWhere(ctx, sq.Eq{"id": id})
}

// GetInvitationByToken see [storage.InvitationBackend].GetInvitationByToken.
func (s *Datastore) GetInvitationByToken(ctx context.Context, token string) (*storage.Invitation, error) {
	ctx, span := s.startTrace(ctx, "GetInvitationByToken")
	defer span.End()

	return s.getInvitationWhere(ctx, sq.Eq{"token": token})
}

// ListInvitations see [storage.InvitationBackend].ListInvitations.
func (s *Datastore) ListInvitations(ctx context.Context, familyID string) ([]*storage.Invitation, error) {
	ctx, span := s.startTrace(ctx, "ListInvitations")
	defer span.End()

	rows, err := s.dbInfo.stbl.
		Select(invitationColumns...).
		From("invitations").
		Where(sq.Eq{"family_id": familyID}).
		OrderBy("id").
		QueryContext(ctx)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}

	invs, err := collect(rows, scanInvitation)
	if err != nil {
		return nil, s.dbInfo.HandleSQLError(err)
	}
	return invs, nil
}

func (s *Datastore) respondToInvitation(ctx context.Context, stbl sq.StatementBuilderType, id string, status storage.InvitationStatus, at time.Time) error {
	_, err := s.execAffecting(ctx, stbl.
		Update("invitations").
		Set("status", string(status)).
		Set("responded_at", at.UTC().Truncate(time.Microsecond)).
		Where(sq.Eq{"id": id, "status": string(storage.InvitationPending)}))
	return err
}

// UpdateInvitationStatus see [storage.InvitationBackend].UpdateInvitationStatus.
func (s *Datastore) UpdateInvitationStatus(ctx context.Context, id string, status storage.InvitationStatus, at time.Time) error {
	ctx, span := s.startTrace(ctx, "UpdateInvitationStatus")
	defer span.End()

	return s.respondToInvitation(ctx, s.dbInfo.stbl, id, status, at)
}

// AcceptInvitation see [storage.InvitationBackend].AcceptInvitation.
func (s *Datastore) AcceptInvitation(ctx context.Context, id string, member *storage.FamilyMember, at time.Time) error {
	ctx, span := s.startTrace(ctx, "AcceptInvitation")
	defer span.End()

	return s.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		if err := s.respondToInvitation(ctx, stbl, id, storage.InvitationAccepted, at); err != nil {
			return err
		}
		return s.insertMember(ctx, stbl, member)
	})
}
