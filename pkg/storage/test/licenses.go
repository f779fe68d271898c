package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/storage"
)

func LicenseTest(t *testing.T, ds storage.GeneaDatastore) {
	ctx := context.Background()
	f := newFamily(t, ds, "Luna", "user-"+id.Must())

	_, err := ds.GetLatestLicense(ctx, f.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	now := time.Now().UTC()
	expires := now.Add(30 * 24 * time.Hour)
	trial, err := ds.CreateLicense(ctx, &storage.License{
		ID: id.Must(), FamilyID: f.ID, Status: storage.LicenseTrial, Plan: "trial", StartsAt: now, ExpiresAt: &expires,
	})
	require.NoError(t, err)
	require.NotNil(t, trial.ExpiresAt)
	require.WithinDuration(t, expires, *trial.ExpiresAt, time.Second)

	full, err := ds.CreateLicense(ctx, &storage.License{
		ID: id.Must(), FamilyID: f.ID, Status: storage.LicenseActive, Plan: "family", StartsAt: now,
	})
	require.NoError(t, err)
	require.Nil(t, full.ExpiresAt)

	latest, err := ds.GetLatestLicense(ctx, f.ID)
	require.NoError(t, err)
	requireEqual(t, full, latest)
	require.True(t, latest.Grants(now.Add(time.Minute)))

	require.NoError(t, ds.UpdateLicenseStatus(ctx, full.ID, storage.LicenseCancelled))
	latest, err = ds.GetLatestLicense(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, storage.LicenseCancelled, latest.Status)
	require.ErrorIs(t, ds.UpdateLicenseStatus(ctx, id.Must(), storage.LicenseActive), storage.ErrNotFound)

	all, err := ds.ListLicenses(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, trial.ID, all[0].ID)

	_, err = ds.CreateLicense(ctx, &storage.License{ID: id.Must(), FamilyID: id.Must(), Status: storage.LicenseActive, Plan: "family", StartsAt: now})
	require.ErrorIs(t, err, storage.ErrInvalidReference)

	t.Run("one_trial_per_family", func(t *testing.T) {
		_, err := ds.CreateLicense(ctx, &storage.License{
			ID: id.Must(), FamilyID: f.ID, Status: storage.LicenseTrial, Plan: storage.TrialPlan, StartsAt: now, ExpiresAt: &expires,
		})
		require.ErrorIs(t, err, storage.ErrCollision)

		other := newFamily(t, ds, "Sol", "user-"+id.Must())
		_, err = ds.CreateLicense(ctx, &storage.License{
			ID: id.Must(), FamilyID: other.ID, Status: storage.LicenseTrial, Plan: storage.TrialPlan, StartsAt: now, ExpiresAt: &expires,
		})
		require.NoError(t, err)

		all, err := ds.ListLicenses(ctx, f.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
	})
}
