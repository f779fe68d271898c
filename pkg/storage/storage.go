// Package storage defines the persistence contract of the service and the
// domain records it stores.
package storage

import (
	"context"
	"time"
)

const DefaultPageSize = 50

// PaginationOptions selects one page of an ULID-ordered listing. A PageSize of
// zero or less returns every remaining row.
type PaginationOptions struct {
	PageSize int
	From     string
}

func NewPaginationOptions(ps int, contToken string) PaginationOptions {
	pageSize := DefaultPageSize
	if ps != 0 {
		pageSize = ps
	}

	return PaginationOptions{
		PageSize: pageSize,
		From:     contToken,
	}
}

// ReadinessStatus represents the readiness status of the datastore.
type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}

type PersonFilter struct {
	// Search matches a substring of first, last or maiden name, ignoring case
	// and accents. '%' and '_' match literally.
	Search string
	Living *bool
}

type RelationshipFilter struct {
	PersonID string
}

type MediaFilter struct {
	PersonID string
}

type NotificationFilter struct {
	UnreadOnly bool
}

type FamilyBackend interface {
	// CreateFamily stores the family together with its owner membership.
	CreateFamily(ctx context.Context, family *Family, owner *FamilyMember) (*Family, error)

	// GetFamily returns ErrNotFound if the family does not exist.
	GetFamily(ctx context.Context, id string) (*Family, error)

	// ListFamiliesForUser returns the families userID is a member of.
	ListFamiliesForUser(ctx context.Context, userID string, opts PaginationOptions) ([]*Family, string, error)

	UpdateFamily(ctx context.Context, family *Family) (*Family, error)

	// DeleteFamily removes the family and every row owned by it.
	DeleteFamily(ctx context.Context, id string) error
}

type MemberBackend interface {
	AddMember(ctx context.Context, member *FamilyMember) error

	// GetMember returns ErrNotFound if userID is not a member of familyID.
	GetMember(ctx context.Context, familyID, userID string) (*FamilyMember, error)

	ListMembers(ctx context.Context, familyID string) ([]*FamilyMember, error)

	// UpdateMemberRole and RemoveMember return ErrLastOwner when the write
	// would leave the family without an owner. The check and the write are
	// one atomic step.
	UpdateMemberRole(ctx context.Context, familyID, userID string, role Role) error
	RemoveMember(ctx context.Context, familyID, userID string) error
}

type PersonBackend interface {
	CreatePerson(ctx context.Context, person *Person) (*Person, error)
	GetPerson(ctx context.Context, id string) (*Person, error)
	ListPersons(ctx context.Context, familyID string, filter PersonFilter, opts PaginationOptions) ([]*Person, string, error)
	UpdatePerson(ctx context.Context, person *Person) (*Person, error)

	// DeletePerson removes the person and its relationships, and detaches its media.
	DeletePerson(ctx context.Context, id string) error
}

type RelationshipBackend interface {
	// CreateRelationship returns ErrCollision if the same (person1, person2, type) exists.
	CreateRelationship(ctx context.Context, rel *Relationship) (*Relationship, error)
	GetRelationship(ctx context.Context, id string) (*Relationship, error)
	ListRelationships(ctx context.Context, familyID string, filter RelationshipFilter) ([]*Relationship, error)
	UpdateRelationship(ctx context.Context, rel *Relationship) (*Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error
}

type MediaBackend interface {
	CreateMedia(ctx context.Context, media *Media) (*Media, error)
	GetMedia(ctx context.Context, id string) (*Media, error)
	ListMedia(ctx context.Context, familyID string, filter MediaFilter, opts PaginationOptions) ([]*Media, string, error)
	UpdateMedia(ctx context.Context, media *Media) (*Media, error)
	DeleteMedia(ctx context.Context, id string) error
}

type InvitationBackend interface {
	// CreateInvitation returns ErrCollision if the token is already in use.
	CreateInvitation(ctx context.Context, inv *Invitation) (*Invitation, error)
	GetInvitation(ctx context.Context, id string) (*Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, familyID string) ([]*Invitation, error)

	// UpdateInvitationStatus only transitions pending invitations; otherwise it returns ErrNotFound.
	UpdateInvitationStatus(ctx context.Context, id string, status InvitationStatus, at time.Time) error

	// AcceptInvitation adds member and marks the pending invitation accepted in one transaction.
	AcceptInvitation(ctx context.Context, id string, member *FamilyMember, at time.Time) error
}

type NotificationBackend interface {
	CreateNotifications(ctx context.Context, notifications []*Notification) error
	ListNotifications(ctx context.Context, userID string, filter NotificationFilter, opts PaginationOptions) ([]*Notification, string, error)

	// MarkNotificationRead returns ErrNotFound unless the notification belongs to userID.
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

type LicenseBackend interface {
	// CreateLicense returns ErrCollision for a second TrialPlan license of a family.
	CreateLicense(ctx context.Context, license *License) (*License, error)

	// GetLatestLicense returns the most recently created license, or ErrNotFound.
	GetLatestLicense(ctx context.Context, familyID string) (*License, error)
	ListLicenses(ctx context.Context, familyID string) ([]*License, error)
	UpdateLicenseStatus(ctx context.Context, id string, status LicenseStatus) error
}

// GeneaDatastore is the full persistence contract implemented by every engine.
type GeneaDatastore interface {
	FamilyBackend
	MemberBackend
	PersonBackend
	RelationshipBackend
	MediaBackend
	InvitationBackend
	NotificationBackend
	LicenseBackend

	// IsReady reports whether the datastore is ready to accept traffic.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}
