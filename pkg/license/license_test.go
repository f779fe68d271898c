package license

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// countingDatastore counts family lookups to observe cache hits.
type countingDatastore struct {
	Datastore
	lookups atomic.Int32
}

func (c *countingDatastore) GetFamily(ctx context.Context, familyID string) (*storage.Family, error) {
	c.lookups.Add(1)
	return c.Datastore.GetFamily(ctx, familyID)
}

func setup(t *testing.T, familyName string, opts ...Option) (*Service, *countingDatastore, *clock, string) {
	t.Helper()

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ds := &countingDatastore{Datastore: memory.New(memory.WithClock(clk.Now))}

	familyID := id.Must()
	_, err := ds.Datastore.(storage.GeneaDatastore).CreateFamily(context.Background(),
		&storage.Family{ID: familyID, Name: familyName, CreatedBy: "owner"},
		&storage.FamilyMember{UserID: "owner", Role: storage.RoleOwner},
	)
	require.NoError(t, err)

	svc, err := New(ds, append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return svc, ds, clk, familyID
}

func TestIsFreeFamily(t *testing.T) {
	svc, err := New(memory.New(), WithFreeFamilies("Fernández", "De la Torre"))
	require.NoError(t, err)
	defer svc.Close()

	require.True(t, svc.IsFreeFamily("Fernandez"))
	require.True(t, svc.IsFreeFamily("Familia FERNÁNDEZ"))
	require.True(t, svc.IsFreeFamily("Los de la Torre"))
	require.False(t, svc.IsFreeFamily("Fernandezz"))
	require.False(t, svc.IsFreeFamily("Rossi"))
	require.Equal(t, []string{"fernandez", "de la torre"}, svc.FreeFamilies())
}

func TestDefaultFreeFamilies(t *testing.T) {
	svc, _, _, familyID := setup(t, "Familia Rossi")

	status, err := svc.Status(context.Background(), familyID)
	require.NoError(t, err)
	require.True(t, status.Allowed)
	require.True(t, status.FreeFamily)
	require.Equal(t, ReasonFreeFamily, status.Reason)

	_, err = svc.StartTrial(context.Background(), familyID)
	require.ErrorIs(t, err, ErrFreeFamily)
}

func TestTrialLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, clk, familyID := setup(t, "Familia Pérez", WithCache(100, 0))

	status, err := svc.Status(ctx, familyID)
	require.NoError(t, err)
	require.False(t, status.Allowed)
	require.True(t, status.TrialAvailable)
	require.Equal(t, ReasonNone, status.Reason)
	require.ErrorIs(t, svc.Require(ctx, familyID), ErrLicenseRequired)

	trial, err := svc.StartTrial(ctx, familyID)
	require.NoError(t, err)
	require.Equal(t, storage.LicenseTrial, trial.Status)
	require.Equal(t, PlanTrial, trial.Plan)
	require.NotNil(t, trial.ExpiresAt)
	require.Equal(t, clk.now.Add(DefaultTrialDuration), *trial.ExpiresAt)

	require.NoError(t, svc.Require(ctx, familyID))
	status, err = svc.Status(ctx, familyID)
	require.NoError(t, err)
	require.Equal(t, ReasonTrial, status.Reason)
	require.False(t, status.TrialAvailable)

	_, err = svc.StartTrial(ctx, familyID)
	require.ErrorIs(t, err, ErrAlreadyLicensed)

	clk.Advance(DefaultTrialDuration)

	status, err = svc.Status(ctx, familyID)
	require.NoError(t, err)
	require.False(t, status.Allowed)
	require.Equal(t, ReasonExpired, status.Reason)

	_, err = svc.StartTrial(ctx, familyID)
	require.ErrorIs(t, err, ErrTrialAlreadyUsed)
}

// staleLicenses hides every license, as seen by a request that read before a
// concurrent trial was committed.
type staleLicenses struct {
	Datastore
}

func (staleLicenses) ListLicenses(context.Context, string) ([]*storage.License, error) {
	return nil, nil
}

func TestStartTrialLosingTheRace(t *testing.T) {
	ctx := context.Background()
	svc, ds, clk, familyID := setup(t, "Familia Ortiz")

	_, err := svc.StartTrial(ctx, familyID)
	require.NoError(t, err)

	stale, err := New(staleLicenses{ds.Datastore}, WithClock(clk.Now))
	require.NoError(t, err)
	defer stale.Close()

	_, err = stale.StartTrial(ctx, familyID)
	require.ErrorIs(t, err, ErrTrialAlreadyUsed)

	licenses, err := ds.ListLicenses(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, licenses, 1)
}

func TestActivateAndCancel(t *testing.T) {
	ctx := context.Background()
	svc, _, clk, familyID := setup(t, "Familia Gómez")

	_, err := svc.Cancel(ctx, familyID)
	require.ErrorIs(t, err, ErrNoLicense)

	_, err = svc.Activate(ctx, familyID, " ", time.Hour)
	require.ErrorIs(t, err, ErrInvalidPlan)
	_, err = svc.Activate(ctx, familyID, PlanTrial, time.Hour)
	require.ErrorIs(t, err, ErrInvalidPlan)
	_, err = svc.Activate(ctx, familyID, "yearly", -time.Hour)
	require.ErrorIs(t, err, ErrInvalidDuration)
	_, err = svc.Activate(ctx, id.Must(), "yearly", time.Hour)
	require.ErrorIs(t, err, storage.ErrNotFound)

	lic, err := svc.Activate(ctx, familyID, "yearly", 365*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, storage.LicenseActive, lic.Status)

	status, err := svc.Status(ctx, familyID)
	require.NoError(t, err)
	require.True(t, status.Allowed)
	require.Equal(t, ReasonActive, status.Reason)
	require.Equal(t, lic.ID, status.License.ID)

	clk.Advance(time.Hour)
	cancelled, err := svc.Cancel(ctx, familyID)
	require.NoError(t, err)
	require.Equal(t, storage.LicenseCancelled, cancelled.Status)

	status, err = svc.Status(ctx, familyID)
	require.NoError(t, err)
	require.False(t, status.Allowed)
	require.Equal(t, ReasonCancelled, status.Reason)

	again, err := svc.Cancel(ctx, familyID)
	require.NoError(t, err)
	require.Equal(t, cancelled.ID, again.ID)

	t.Run("lifetime_license", func(t *testing.T) {
		clk.Advance(time.Millisecond)
		lic, err := svc.Activate(ctx, familyID, "lifetime", 0)
		require.NoError(t, err)
		require.Nil(t, lic.ExpiresAt)

		clk.Advance(100 * 365 * 24 * time.Hour)
		require.NoError(t, svc.Require(ctx, familyID))
	})
}

func TestStatusIsCached(t *testing.T) {
	ctx := context.Background()
	svc, ds, _, familyID := setup(t, "Familia Díaz", WithCache(10, time.Hour))

	for i := 0; i < 3; i++ {
		_, err := svc.Status(ctx, familyID)
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), ds.lookups.Load())

	_, err := svc.StartTrial(ctx, familyID)
	require.NoError(t, err)

	status, err := svc.Status(ctx, familyID)
	require.NoError(t, err)
	require.True(t, status.Allowed)
}

func TestNewRejectsInvalidTrialDuration(t *testing.T) {
	_, err := New(memory.New(), WithTrialDuration(0))
	require.Error(t, err)
}

func TestLoadFreeFamiliesFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "free.yaml")
	require.NoError(t, os.WriteFile(path, []byte("freeFamilies:\n  - Rossi\n  - Fernández\n"), 0o600))

	surnames, err := LoadFreeFamiliesFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"Rossi", "Fernández"}, surnames)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("families: [Rossi]\n"), 0o600))
	_, err = LoadFreeFamiliesFile(bad)
	require.Error(t, err)

	_, err = LoadFreeFamiliesFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
