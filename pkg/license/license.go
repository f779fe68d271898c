// Package license decides whether a family may use the gated features.
//
// A family passes the gate when its name carries one of the free family
// surnames, or when its most recent license is active or in trial and has
// not expired. Decisions are cached per family and dropped on every license
// write made through the [Service].
package license

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/suggest"
)

const (
	DefaultTrialDuration = 30 * 24 * time.Hour
	DefaultCacheTTL      = time.Minute
	DefaultCacheSize     = 10000

	PlanTrial = storage.TrialPlan
)

// DefaultFreeFamilies are the surnames that never need a license.
var DefaultFreeFamilies = []string{"Genea", "Rossi", "Fernández", "Bianchi"}

var (
	ErrLicenseRequired  = errors.New("an active license is required for this family")
	ErrTrialAlreadyUsed = errors.New("the trial for this family has already been used")
	ErrAlreadyLicensed  = errors.New("the family already has an active license")
	ErrFreeFamily       = errors.New("free families do not need a license")
	ErrNoLicense        = errors.New("the family has no license to cancel")
	ErrInvalidPlan      = errors.New("plan must not be empty or the trial plan")
	ErrInvalidDuration  = errors.New("duration must not be negative")
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonFreeFamily Reason = "free_family"
	ReasonActive     Reason = "active"
	ReasonTrial      Reason = "trial"
	ReasonExpired    Reason = "expired"
	ReasonCancelled  Reason = "cancelled"
	ReasonNone       Reason = "no_license"
)

// Status is the gate decision for one family.
type Status struct {
	FamilyID       string           `json:"family_id"`
	Allowed        bool             `json:"allowed"`
	Reason         Reason           `json:"reason"`
	FreeFamily     bool             `json:"free_family"`
	TrialAvailable bool             `json:"trial_available"`
	License        *storage.License `json:"license,omitempty"`
}

// Datastore is the subset of [storage.GeneaDatastore] the service needs.
type Datastore interface {
	GetFamily(ctx context.Context, id string) (*storage.Family, error)
	storage.LicenseBackend
}

type Service struct {
	datastore     Datastore
	logger        logger.Logger
	freeFamilies  []string
	trialDuration time.Duration
	cacheTTL      time.Duration
	cacheSize     int64
	cache         storage.InMemoryCache[*Status]
	now           func() time.Time
}

type Option func(*Service)

// WithFreeFamilies replaces the free family surnames.
func WithFreeFamilies(surnames ...string) Option {
	return func(s *Service) {
		s.freeFamilies = nil
		for _, surname := range surnames {
			if folded := suggest.Normalize(surname); folded != "" {
				s.freeFamilies = append(s.freeFamilies, folded)
			}
		}
	}
}

func WithTrialDuration(d time.Duration) Option {
	return func(s *Service) {
		s.trialDuration = d
	}
}

// WithCache sets the decision cache size and TTL. A zero TTL disables caching.
func WithCache(size int64, ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New builds the service. Call [Service.Close] to release the cache.
func New(datastore Datastore, opts ...Option) (*Service, error) {
	s := &Service{
		datastore:     datastore,
		logger:        logger.NewNoopLogger(),
		trialDuration: DefaultTrialDuration,
		cacheTTL:      DefaultCacheTTL,
		cacheSize:     DefaultCacheSize,
		now:           time.Now,
	}
	WithFreeFamilies(DefaultFreeFamilies...)(s)

	for _, opt := range opts {
		opt(s)
	}

	if s.trialDuration <= 0 {
		return nil, fmt.Errorf("trial duration must be positive, got %s", s.trialDuration)
	}

	if s.cacheTTL > 0 {
		cache, err := storage.NewInMemoryLRUCache[*Status](storage.WithMaxCacheSize[*Status](s.cacheSize))
		if err != nil {
			return nil, fmt.Errorf("initialize license cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Stop()
	}
}

// FreeFamilies returns the folded free family surnames.
func (s *Service) FreeFamilies() []string {
	return append([]string(nil), s.freeFamilies...)
}

// IsFreeFamily reports whether familyName contains a free surname as a whole word,
// ignoring case and accents.
func (s *Service) IsFreeFamily(familyName string) bool {
	folded := " " + suggest.Normalize(familyName) + " "
	for _, surname := range s.freeFamilies {
		if strings.Contains(folded, " "+surname+" ") {
			return true
		}
	}
	return false
}

// Status returns the gate decision for familyID.
func (s *Service) Status(ctx context.Context, familyID string) (*Status, error) {
	if s.cache != nil {
		if status, ok := s.cache.Get(familyID); ok {
			return status, nil
		}
	}

	family, err := s.datastore.GetFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := &Status{FamilyID: familyID}
	ttl := s.cacheTTL

	if s.IsFreeFamily(family.Name) {
		status.Allowed = true
		status.FreeFamily = true
		status.Reason = ReasonFreeFamily
	} else {
		licenses, err := s.datastore.ListLicenses(ctx, familyID)
		if err != nil {
			return nil, err
		}
		status.TrialAvailable = !trialUsed(licenses)
		status.Reason = ReasonNone

		if len(licenses) > 0 {
			latest := latestLicense(licenses)
			status.License = latest
			status.Allowed = latest.Grants(now)
			status.Reason = reasonFor(latest, now)

			if status.Allowed && latest.ExpiresAt != nil {
				if untilExpiry := latest.ExpiresAt.Sub(now); untilExpiry < ttl {
					ttl = untilExpiry
				}
			}
		}
	}

	if s.cache != nil && ttl > 0 {
		s.cache.Set(familyID, status, ttl)
	}
	return status, nil
}

// Require returns ErrLicenseRequired unless familyID passes the gate.
func (s *Service) Require(ctx context.Context, familyID string) error {
	status, err := s.Status(ctx, familyID)
	if err != nil {
		return err
	}
	if !status.Allowed {
		return ErrLicenseRequired
	}
	return nil
}

// StartTrial grants a trial license. Each family gets at most one trial.
func (s *Service) StartTrial(ctx context.Context, familyID string) (*storage.License, error) {
	status, err := s.Status(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if status.FreeFamily {
		return nil, ErrFreeFamily
	}
	if status.Allowed {
		return nil, ErrAlreadyLicensed
	}
	if !status.TrialAvailable {
		return nil, ErrTrialAlreadyUsed
	}

	now := s.now()
	expires := now.Add(s.trialDuration)
	trial, err := s.create(ctx, &storage.License{
		FamilyID:  familyID,
		Status:    storage.LicenseTrial,
		Plan:      PlanTrial,
		StartsAt:  now,
		ExpiresAt: &expires,
	})
	if errors.Is(err, storage.ErrCollision) {
		// a concurrent request won the race for the family's only trial
		return nil, ErrTrialAlreadyUsed
	}
	return trial, err
}

// Activate records a paid or manually granted license. A zero duration never expires.
// A running trial or license is superseded by the new one.
func (s *Service) Activate(ctx context.Context, familyID, plan string, duration time.Duration) (*storage.License, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" || plan == PlanTrial {
		return nil, ErrInvalidPlan
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}

	if _, err := s.datastore.GetFamily(ctx, familyID); err != nil {
		return nil, err
	}

	now := s.now()
	license := &storage.License{
		FamilyID: familyID,
		Status:   storage.LicenseActive,
		Plan:     plan,
		StartsAt: now,
	}
	if duration > 0 {
		expires := now.Add(duration)
		license.ExpiresAt = &expires
	}
	return s.create(ctx, license)
}

// Cancel marks the latest license of familyID cancelled.
func (s *Service) Cancel(ctx context.Context, familyID string) (*storage.License, error) {
	latest, err := s.datastore.GetLatestLicense(ctx, familyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoLicense
		}
		return nil, err
	}
	if latest.Status == storage.LicenseCancelled {
		return latest, nil
	}

	if err := s.datastore.UpdateLicenseStatus(ctx, latest.ID, storage.LicenseCancelled); err != nil {
		return nil, err
	}
	s.Invalidate(familyID)

	s.logger.InfoWithContext(ctx, "license cancelled",
		zap.String("family_id", familyID),
		zap.String("license_id", latest.ID),
	)

	latest.Status = storage.LicenseCancelled
	return latest, nil
}

// Invalidate drops the cached decision for familyID.
func (s *Service) Invalidate(familyID string) {
	if s.cache != nil {
		s.cache.Delete(familyID)
	}
}

func (s *Service) create(ctx context.Context, license *storage.License) (*storage.License, error) {
	licenseID, err := id.NewStringFromTime(s.now())
	if err != nil {
		return nil, err
	}
	license.ID = licenseID

	created, err := s.datastore.CreateLicense(ctx, license)
	if err != nil {
		return nil, err
	}
	s.Invalidate(license.FamilyID)

	s.logger.InfoWithContext(ctx, "license created",
		zap.String("family_id", created.FamilyID),
		zap.String("license_id", created.ID),
		zap.String("status", string(created.Status)),
		zap.String("plan", created.Plan),
	)
	return created, nil
}

func trialUsed(licenses []*storage.License) bool {
	for _, l := range licenses {
		if l.Status == storage.LicenseTrial || l.Plan == PlanTrial {
			return true
		}
	}
	return false
}

// latestLicense picks the license with the greatest id, ids being time ordered.
func latestLicense(licenses []*storage.License) *storage.License {
	latest := licenses[0]
	for _, l := range licenses[1:] {
		if l.ID > latest.ID {
			latest = l
		}
	}
	return latest
}

func reasonFor(l *storage.License, now time.Time) Reason {
	switch l.Status {
	case storage.LicenseCancelled:
		return ReasonCancelled
	case storage.LicenseExpired:
		return ReasonExpired
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return ReasonExpired
	}
	if l.Status == storage.LicenseTrial {
		return ReasonTrial
	}
	return ReasonActive
}
