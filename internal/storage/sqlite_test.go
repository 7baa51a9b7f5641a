package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleEntities() []model.Entity {
	return []model.Entity{
		{
			ID:             "bank-1",
			Name:           "Alpha Bank",
			Type:           model.TypeFinancialInstitution,
			Origin:         model.OriginNative,
			Status:         model.StatusConnected,
			SetupLoginType: model.LoginAutomated,
			Credentials: []model.CredentialField{
				{Name: "user", Type: model.CredentialUser},
				{Name: "password", Type: model.CredentialPassword},
				{Name: "session", Type: model.CredentialInternal},
			},
			Features: []model.Feature{model.FeaturePosition, model.FeatureTransactions},
			Pin:      &model.PinSpec{Positions: 6},
		},
		{
			ID:               "ext-1",
			Name:             "Zeta Provider",
			Type:             model.TypeFinancialInstitution,
			Origin:           model.OriginExternallyProvided,
			Status:           model.StatusDisconnected,
			SetupLoginType:   model.LoginManual,
			ExternalEntityID: "remote-9",
			Features:         []model.Feature{model.FeaturePosition},
		},
	}
}

func TestSaveAndGetEntities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEntities(ctx, sampleEntities()))

	entities, err := store.GetEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	// Ordered by name.
	assert.Equal(t, "bank-1", entities[0].ID)
	assert.Equal(t, "ext-1", entities[1].ID)

	bank := entities[0]
	assert.Equal(t, model.TypeFinancialInstitution, bank.Type)
	assert.Equal(t, model.StatusConnected, bank.Status)
	assert.Equal(t, model.LoginAutomated, bank.SetupLoginType)
	require.NotNil(t, bank.Pin)
	assert.Equal(t, 6, bank.Pin.Positions)
	require.Len(t, bank.Credentials, 3)
	assert.Equal(t, model.CredentialInternal, bank.Credentials[2].Type)
	assert.Equal(t, []model.Feature{model.FeaturePosition, model.FeatureTransactions}, bank.Features)

	ext := entities[1]
	assert.Equal(t, model.OriginExternallyProvided, ext.Origin)
	assert.Equal(t, "remote-9", ext.ExternalEntityID)
	assert.Nil(t, ext.Pin)
}

func TestGetEntityByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEntities(ctx, sampleEntities()))

	entity, err := store.GetEntityByID(ctx, "bank-1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Bank", entity.Name)

	_, err = store.GetEntityByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateEntityStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEntities(ctx, sampleEntities()))

	require.NoError(t, store.UpdateEntityStatus(ctx, "bank-1", model.StatusRequiresLogin))

	entity, err := store.GetEntityByID(ctx, "bank-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRequiresLogin, entity.Status)

	err = store.UpdateEntityStatus(ctx, "missing", model.StatusConnected)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecordFetch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEntities(ctx, sampleEntities()))

	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	features := []model.Feature{model.FeaturePosition, model.FeatureTransactions}
	require.NoError(t, store.RecordFetch(ctx, "bank-1", features, first))

	entity, err := store.GetEntityByID(ctx, "bank-1")
	require.NoError(t, err)
	assert.True(t, entity.LastFetch[model.FeaturePosition].Equal(first))
	assert.True(t, entity.LastFetch[model.FeatureTransactions].Equal(first))

	// A later fetch overwrites the timestamp.
	second := first.Add(24 * time.Hour)
	require.NoError(t, store.RecordFetch(ctx, "bank-1", []model.Feature{model.FeaturePosition}, second))

	entity, err = store.GetEntityByID(ctx, "bank-1")
	require.NoError(t, err)
	assert.True(t, entity.LastFetch[model.FeaturePosition].Equal(second))
	assert.True(t, entity.LastFetch[model.FeatureTransactions].Equal(first))
}

func TestSaveEntitiesKeepsFetchRecordsForSurvivors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	entities := sampleEntities()
	require.NoError(t, store.SaveEntities(ctx, entities))

	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordFetch(ctx, "bank-1", []model.Feature{model.FeaturePosition}, at))
	require.NoError(t, store.RecordFetch(ctx, "ext-1", []model.Feature{model.FeaturePosition}, at))

	// A refresh that drops ext-1 prunes its fetch records but keeps bank-1's.
	require.NoError(t, store.SaveEntities(ctx, entities[:1]))

	entity, err := store.GetEntityByID(ctx, "bank-1")
	require.NoError(t, err)
	assert.True(t, entity.LastFetch[model.FeaturePosition].Equal(at))

	var count int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(*) FROM fetch_records WHERE entity_id = 'ext-1'").Scan(&count))
	assert.Zero(t, count)
}

func TestNewSQLiteStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}
