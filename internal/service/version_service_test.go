package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func TestVersionServiceCreateActivates(t *testing.T) {
	store := newVersionStoreStub()
	svc := NewVersionService(store, zap.NewNop())

	first, err := svc.Create(context.Background(), "first", models.VersionSourceGenerated)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "second", models.VersionSourceManual)
	require.NoError(t, err)

	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID, "creating a version activates it")

	require.NoError(t, svc.Activate(context.Background(), first.ID))
	active, err = svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// Activation is idempotent.
	require.NoError(t, svc.Activate(context.Background(), first.ID))
	active, err = svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
}

func TestVersionServiceDeleteActiveLeavesNoneActive(t *testing.T) {
	store := newVersionStoreStub()
	svc := NewVersionService(store, zap.NewNop())

	version, err := svc.Create(context.Background(), "only", models.VersionSourceGenerated)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), version.ID))

	_, err = svc.GetActive(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveVersion.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceActivateUnknown(t *testing.T) {
	svc := NewVersionService(newVersionStoreStub(), zap.NewNop())

	err := svc.Activate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceCreateRequiresName(t *testing.T) {
	svc := NewVersionService(newVersionStoreStub(), zap.NewNop())

	_, err := svc.Create(context.Background(), "", models.VersionSourceGenerated)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
