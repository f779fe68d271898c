package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/genea-app/genea/pkg/authclaims"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

// InvitationDatastore is the part of the datastore used to answer invitations.
type InvitationDatastore interface {
	GetFamily(ctx context.Context, id string) (*storage.Family, error)
	GetMember(ctx context.Context, familyID, userID string) (*storage.FamilyMember, error)
	GetInvitationByToken(ctx context.Context, token string) (*storage.Invitation, error)
	UpdateInvitationStatus(ctx context.Context, id string, status storage.InvitationStatus, at time.Time) error
	AcceptInvitation(ctx context.Context, id string, member *storage.FamilyMember, at time.Time) error
}

// EventNotifier schedules notifications about family events.
type EventNotifier interface {
	Notify(ctx context.Context, event Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) {}

var ErrInvitationNotFound = serverErrors.ResourceNotFound("invitation")

// RespondInvitationCommand accepts or declines a pending invitation on behalf
// of the authenticated user.
type RespondInvitationCommand struct {
	datastore InvitationDatastore
	notifier  EventNotifier
	now       func() time.Time
}

type RespondInvitationCommandOption func(*RespondInvitationCommand)

func WithRespondInvitationNotifier(n EventNotifier) RespondInvitationCommandOption {
	return func(c *RespondInvitationCommand) {
		c.notifier = n
	}
}

func WithRespondInvitationClock(now func() time.Time) RespondInvitationCommandOption {
	return func(c *RespondInvitationCommand) {
		c.now = now
	}
}

func NewRespondInvitationCommand(datastore InvitationDatastore, opts ...RespondInvitationCommandOption) *RespondInvitationCommand {
	c := &RespondInvitationCommand{
		datastore: datastore,
		notifier:  noopNotifier{},
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pending loads the invitation behind token and checks that claims may still answer it.
func (c *RespondInvitationCommand) pending(ctx context.Context, token string, claims *authclaims.AuthClaims) (*storage.Invitation, error) {
	inv, err := c.datastore.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, serverErrors.HandleError("", err)
	}

	switch inv.EffectiveStatus(c.now()) {
	case storage.InvitationPending:
	case storage.InvitationExpired:
		return nil, serverErrors.InvitationExpired
	default:
		return nil, serverErrors.InvitationNotPending
	}

	// callers without an email claim (preshared keys, development) are not matched
	if claims.Email != "" && !strings.EqualFold(claims.Email, inv.Email) {
		return nil, serverErrors.InvitationEmailMismatch
	}
	return inv, nil
}

// Accept adds the caller to the family with the invited role and tells the
// family's admins and owners.
func (c *RespondInvitationCommand) Accept(ctx context.Context, token string, claims *authclaims.AuthClaims) (*storage.FamilyMember, error) {
	ctx, span := tracer.Start(ctx, "AcceptInvitation")
	defer span.End()

	inv, err := c.pending(ctx, token, claims)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("family_id", inv.FamilyID))

	if _, err := c.datastore.GetMember(ctx, inv.FamilyID, claims.Subject); err == nil {
		return nil, serverErrors.NewEncodedError(serverErrors.Conflict, "you are already a member of this family")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, serverErrors.HandleError("", err)
	}

	now := c.now()
	member := &storage.FamilyMember{
		FamilyID: inv.FamilyID,
		UserID:   claims.Subject,
		Email:    strings.ToLower(firstNonEmpty(claims.Email, inv.Email)),
		Role:     inv.Role,
		JoinedAt: now,
	}

	if err := c.datastore.AcceptInvitation(ctx, inv.ID, member, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// answered concurrently
			return nil, serverErrors.InvitationNotPending
		}
		return nil, serverErrors.HandleError("", err)
	}

	familyName := ""
	if family, err := c.datastore.GetFamily(ctx, inv.FamilyID); err == nil {
		familyName = family.Name
	}

	c.notifier.Notify(ctx, Event{
		FamilyID: inv.FamilyID,
		Type:     storage.NotificationInvitationAccepted,
		Title:    "Invitation accepted",
		Message:  fmt.Sprintf("%s joined %s as %s", member.Email, familyName, member.Role),
		ActorID:  claims.Subject,
		MinRole:  storage.RoleAdmin,
	})

	return member, nil
}

// Decline marks the invitation declined.
func (c *RespondInvitationCommand) Decline(ctx context.Context, token string, claims *authclaims.AuthClaims) (*storage.Invitation, error) {
	ctx, span := tracer.Start(ctx, "DeclineInvitation")
	defer span.End()

	inv, err := c.pending(ctx, token, claims)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if err := c.datastore.UpdateInvitationStatus(ctx, inv.ID, storage.InvitationDeclined, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, serverErrors.InvitationNotPending
		}
		return nil, serverErrors.HandleError("", err)
	}

	inv.Status = storage.InvitationDeclined
	inv.RespondedAt = &now
	return inv, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
