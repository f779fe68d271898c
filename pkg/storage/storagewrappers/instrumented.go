// Package storagewrappers contains decorators around a storage.GeneaDatastore.
package storagewrappers

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/genea-app/genea/internal/build"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/telemetry"
)

var tracer = otel.Tracer("genea/pkg/storage/storagewrappers")

var datastoreQueryDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace:                       build.ProjectName,
	Name:                            "datastore_query_duration_ms",
	Help:                            "The latency (in ms) of datastore calls, by engine, method and outcome.",
	Buckets:                         []float64{1, 5, 10, 25, 50, 100, 200, 300, 500, 1000, 2000, 5000},
	NativeHistogramBucketFactor:     1.1,
	NativeHistogramMaxBucketNumber:  100,
	NativeHistogramMinResetDuration: time.Hour,
}, []string{"engine", "method", "outcome"})

var _ storage.GeneaDatastore = (*InstrumentedDatastore)(nil)

// InstrumentedDatastore traces every call into the wrapped datastore and
// records its latency.
type InstrumentedDatastore struct {
	storage.GeneaDatastore
	engine string
}

// NewInstrumentedDatastore wraps ds; engine labels its spans and metrics.
func NewInstrumentedDatastore(ds storage.GeneaDatastore, engine string) *InstrumentedDatastore {
	return &InstrumentedDatastore{GeneaDatastore: ds, engine: engine}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrCollision):
		return "collision"
	default:
		return "error"
	}
}

func (d *InstrumentedDatastore) start(ctx context.Context, method string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "datastore."+method)
	span.SetAttributes(attribute.String("db.system", d.engine))
	begin := time.Now()

	return ctx, func(err error) {
		result := outcome(err)
		if result == "error" {
			telemetry.TraceError(span, err)
		}
		span.End()
		datastoreQueryDurationHistogram.
			WithLabelValues(d.engine, method, result).
			Observe(float64(time.Since(begin).Milliseconds()))
	}
}

func call[T any](ctx context.Context, d *InstrumentedDatastore, method string, fn func(context.Context) (T, error)) (T, error) {
	ctx, done := d.start(ctx, method)
	res, err := fn(ctx)
	done(err)
	return res, err
}

func exec(ctx context.Context, d *InstrumentedDatastore, method string, fn func(context.Context) error) error {
	ctx, done := d.start(ctx, method)
	err := fn(ctx)
	done(err)
	return err
}

type page[T any] struct {
	items []T
	token string
}

func paged[T any](ctx context.Context, d *InstrumentedDatastore, method string, fn func(context.Context) ([]T, string, error)) ([]T, string, error) {
	res, err := call(ctx, d, method, func(ctx context.Context) (page[T], error) {
		items, token, err := fn(ctx)
		return page[T]{items: items, token: token}, err
	})
	return res.items, res.token, err
}

func (d *InstrumentedDatastore) CreateFamily(ctx context.Context, family *storage.Family, owner *storage.FamilyMember) (*storage.Family, error) {
	return call(ctx, d, "CreateFamily", func(ctx context.Context) (*storage.Family, error) {
		return d.GeneaDatastore.CreateFamily(ctx, family, owner)
	})
}

func (d *InstrumentedDatastore) GetFamily(ctx context.Context, id string) (*storage.Family, error) {
	return call(ctx, d, "GetFamily", func(ctx context.Context) (*storage.Family, error) {
		return d.GeneaDatastore.GetFamily(ctx, id)
	})
}

func (d *InstrumentedDatastore) ListFamiliesForUser(ctx context.Context, userID string, opts storage.PaginationOptions) ([]*storage.Family, string, error) {
	return paged(ctx, d, "ListFamiliesForUser", func(ctx context.Context) ([]*storage.Family, string, error) {
		return d.GeneaDatastore.ListFamiliesForUser(ctx, userID, opts)
	})
}

func (d *InstrumentedDatastore) UpdateFamily(ctx context.Context, family *storage.Family) (*storage.Family, error) {
	return call(ctx, d, "UpdateFamily", func(ctx context.Context) (*storage.Family, error) {
		return d.GeneaDatastore.UpdateFamily(ctx, family)
	})
}

func (d *InstrumentedDatastore) DeleteFamily(ctx context.Context, id string) error {
	return exec(ctx, d, "DeleteFamily", func(ctx context.Context) error {
		return d.GeneaDatastore.DeleteFamily(ctx, id)
	})
}

func (d *InstrumentedDatastore) AddMember(ctx context.Context, member *storage.FamilyMember) error {
	return exec(ctx, d, "AddMember", func(ctx context.Context) error {
		return d.GeneaDatastore.AddMember(ctx, member)
	})
}

func (d *InstrumentedDatastore) GetMember(ctx context.Context, familyID, userID string) (*storage.FamilyMember, error) {
	return call(ctx, d, "GetMember", func(ctx context.Context) (*storage.FamilyMember, error) {
		return d.GeneaDatastore.GetMember(ctx, familyID, userID)
	})
}

func (d *InstrumentedDatastore) ListMembers(ctx context.Context, familyID string) ([]*storage.FamilyMember, error) {
	return call(ctx, d, "ListMembers", func(ctx context.Context) ([]*storage.FamilyMember, error) {
		return d.GeneaDatastore.ListMembers(ctx, familyID)
	})
}

func (d *InstrumentedDatastore) UpdateMemberRole(ctx context.Context, familyID, userID string, role storage.Role) error {
	return exec(ctx, d, "UpdateMemberRole", func(ctx context.Context) error {
		return d.GeneaDatastore.UpdateMemberRole(ctx, familyID, userID, role)
	})
}

func (d *InstrumentedDatastore) RemoveMember(ctx context.Context, familyID, userID string) error {
	return exec(ctx, d, "RemoveMember", func(ctx context.Context) error {
		return d.GeneaDatastore.RemoveMember(ctx, familyID, userID)
	})
}

func (d *InstrumentedDatastore) CreatePerson(ctx context.Context, person *storage.Person) (*storage.Person, error) {
	return call(ctx, d, "CreatePerson", func(ctx context.Context) (*storage.Person, error) {
		return d.GeneaDatastore.CreatePerson(ctx, person)
	})
}

func (d *InstrumentedDatastore) GetPerson(ctx context.Context, id string) (*storage.Person, error) {
	return call(ctx, d, "GetPerson", func(ctx context.Context) (*storage.Person, error) {
		return d.GeneaDatastore.GetPerson(ctx, id)
	})
}

func (d *InstrumentedDatastore) ListPersons(ctx context.Context, familyID string, filter storage.PersonFilter, opts storage.PaginationOptions) ([]*storage.Person, string, error) {
	return paged(ctx, d, "ListPersons", func(ctx context.Context) ([]*storage.Person, string, error) {
		return d.GeneaDatastore.ListPersons(ctx, familyID, filter, opts)
	})
}

func (d *InstrumentedDatastore) UpdatePerson(ctx context.Context, person *storage.Person) (*storage.Person, error) {
	return call(ctx, d, "UpdatePerson", func(ctx context.Context) (*storage.Person, error) {
		return d.GeneaDatastore.UpdatePerson(ctx, person)
	})
}

func (d *InstrumentedDatastore) DeletePerson(ctx context.Context, id string) error {
	return exec(ctx, d, "DeletePerson", func(ctx context.Context) error {
		return d.GeneaDatastore.DeletePerson(ctx, id)
	})
}

func (d *InstrumentedDatastore) CreateRelationship(ctx context.Context, rel *storage.Relationship) (*storage.Relationship, error) {
	return call(ctx, d, "CreateRelationship", func(ctx context.Context) (*storage.Relationship, error) {
		return d.GeneaDatastore.CreateRelationship(ctx, rel)
	})
}

func (d *InstrumentedDatastore) GetRelationship(ctx context.Context, id string) (*storage.Relationship, error) {
	return call(ctx, d, "GetRelationship", func(ctx context.Context) (*storage.Relationship, error) {
		return d.GeneaDatastore.GetRelationship(ctx, id)
	})
}

func (d *InstrumentedDatastore) ListRelationships(ctx context.Context, familyID string, filter storage.RelationshipFilter) ([]*storage.Relationship, error) {
	return call(ctx, d, "ListRelationships", func(ctx context.Context) ([]*storage.Relationship, error) {
		return d.GeneaDatastore.ListRelationships(ctx, familyID, filter)
	})
}

func (d *InstrumentedDatastore) UpdateRelationship(ctx context.Context, rel *storage.Relationship) (*storage.Relationship, error) {
	return call(ctx, d, "UpdateRelationship", func(ctx context.Context) (*storage.Relationship, error) {
		return d.GeneaDatastore.UpdateRelationship(ctx, rel)
	})
}

func (d *InstrumentedDatastore) DeleteRelationship(ctx context.Context, id string) error {
	return exec(ctx, d, "DeleteRelationship", func(ctx context.Context) error {
		return d.GeneaDatastore.DeleteRelationship(ctx, id)
	})
}

func (d *InstrumentedDatastore) CreateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error) {
	return call(ctx, d, "CreateMedia", func(ctx context.Context) (*storage.Media, error) {
		return d.GeneaDatastore.CreateMedia(ctx, media)
	})
}

func (d *InstrumentedDatastore) GetMedia(ctx context.Context, id string) (*storage.Media, error) {
	return call(ctx, d, "GetMedia", func(ctx context.Context) (*storage.Media, error) {
		return d.GeneaDatastore.GetMedia(ctx, id)
	})
}

func (d *InstrumentedDatastore) ListMedia(ctx context.Context, familyID string, filter storage.MediaFilter, opts storage.PaginationOptions) ([]*storage.Media, string, error) {
	return paged(ctx, d, "ListMedia", func(ctx context.Context) ([]*storage.Media, string, error) {
		return d.GeneaDatastore.ListMedia(ctx, familyID, filter, opts)
	})
}

func (d *InstrumentedDatastore) UpdateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error) {
	return call(ctx, d, "UpdateMedia", func(ctx context.Context) (*storage.Media, error) {
		return d.GeneaDatastore.UpdateMedia(ctx, media)
	})
}

func (d *InstrumentedDatastore) DeleteMedia(ctx context.Context, id string) error {
	return exec(ctx, d, "DeleteMedia", func(ctx context.Context) error {
		return d.GeneaDatastore.DeleteMedia(ctx, id)
	})
}

func (d *InstrumentedDatastore) CreateInvitation(ctx context.Context, inv *storage.Invitation) (*storage.Invitation, error) {
	return call(ctx, d, "CreateInvitation", func(ctx context.Context) (*storage.Invitation, error) {
		return d.GeneaDatastore.CreateInvitation(ctx, inv)
	})
}

func (d *InstrumentedDatastore) GetInvitation(ctx context.Context, id string) (*storage.Invitation, error) {
	return call(ctx, d, "GetInvitation", func(ctx context.Context) (*storage.Invitation, error) {
		return d.GeneaDatastore.GetInvitation(ctx, id)
	})
}

func (d *InstrumentedDatastore) GetInvitationByToken(ctx context.Context, token string) (*storage.Invitation, error) {
	return call(ctx, d, "GetInvitationByToken", func(ctx context.Context) (*storage.Invitation, error) {
		return d.GeneaDatastore.GetInvitationByToken(ctx, token)
	})
}

func (d *InstrumentedDatastore) ListInvitations(ctx context.Context, familyID string) ([]*storage.Invitation, error) {
	return call(ctx, d, "ListInvitations", func(ctx context.Context) ([]*storage.Invitation, error) {
		return d.GeneaDatastore.ListInvitations(ctx, familyID)
	})
}

func (d *InstrumentedDatastore) UpdateInvitationStatus(ctx context.Context, id string, status storage.InvitationStatus, at time.Time) error {
	return exec(ctx, d, "UpdateInvitationStatus", func(ctx context.Context) error {
		return d.GeneaDatastore.UpdateInvitationStatus(ctx, id, status, at)
	})
}

func (d *InstrumentedDatastore) AcceptInvitation(ctx context.Context, id string, member *storage.FamilyMember, at time.Time) error {
	return exec(ctx, d, "AcceptInvitation", func(ctx context.Context) error {
		return d.GeneaDatastore.AcceptInvitation(ctx, id, member, at)
	})
}

func (d *InstrumentedDatastore) CreateNotifications(ctx context.Context, notifications []*storage.Notification) error {
	return exec(ctx, d, "CreateNotifications", func(ctx context.Context) error {
		return d.GeneaDatastore.CreateNotifications(ctx, notifications)
	})
}

func (d *InstrumentedDatastore) ListNotifications(ctx context.Context, userID string, filter storage.NotificationFilter, opts storage.PaginationOptions) ([]*storage.Notification, string, error) {
	return paged(ctx, d, "ListNotifications", func(ctx context.Context) ([]*storage.Notification, string, error) {
		return d.GeneaDatastore.ListNotifications(ctx, userID, filter, opts)
	})
}

func (d *InstrumentedDatastore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return exec(ctx, d, "MarkNotificationRead", func(ctx context.Context) error {
		return d.GeneaDatastore.MarkNotificationRead(ctx, userID, id)
	})
}

func (d *InstrumentedDatastore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	return call(ctx, d, "MarkAllNotificationsRead", func(ctx context.Context) (int64, error) {
		return d.GeneaDatastore.MarkAllNotificationsRead(ctx, userID)
	})
}

func (d *InstrumentedDatastore) DeleteNotification(ctx context.Context, userID, id string) error {
	return exec(ctx, d, "DeleteNotification", func(ctx context.Context) error {
		return d.GeneaDatastore.DeleteNotification(ctx, userID, id)
	})
}

func (d *InstrumentedDatastore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	return call(ctx, d, "CountUnreadNotifications", func(ctx context.Context) (int, error) {
		return d.GeneaDatastore.CountUnreadNotifications(ctx, userID)
	})
}

func (d *InstrumentedDatastore) CreateLicense(ctx context.Context, license *storage.License) (*storage.License, error) {
	return call(ctx, d, "CreateLicense", func(ctx context.Context) (*storage.License, error) {
		return d.GeneaDatastore.CreateLicense(ctx, license)
	})
}

func (d *InstrumentedDatastore) GetLatestLicense(ctx context.Context, familyID string) (*storage.License, error) {
	return call(ctx, d, "GetLatestLicense", func(ctx context.Context) (*storage.License, error) {
		return d.GeneaDatastore.GetLatestLicense(ctx, familyID)
	})
}

func (d *InstrumentedDatastore) ListLicenses(ctx context.Context, familyID string) ([]*storage.License, error) {
	return call(ctx, d, "ListLicenses", func(ctx context.Context) ([]*storage.License, error) {
		return d.GeneaDatastore.ListLicenses(ctx, familyID)
	})
}

func (d *InstrumentedDatastore) UpdateLicenseStatus(ctx context.Context, id string, status storage.LicenseStatus) error {
	return exec(ctx, d, "UpdateLicenseStatus", func(ctx context.Context) error {
		return d.GeneaDatastore.UpdateLicenseStatus(ctx, id, status)
	})
}
