//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/testutil"
	"github.com/graphilearn/engine/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openContainerDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("graphilearn"),
		tcpostgres.WithUsername("graphilearn"),
		tcpostgres.WithPassword("graphilearn"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.OpenPostgres(ctx, dsn, zap.NewNop(), database.Options{MaxRetries: 3})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestPostgresProfileAndProgress(t *testing.T) {
	ctx := context.Background()
	db := openContainerDB(t)
	profiles := NewProfileRepository(db)
	progress := NewProgressRepository(db)

	id := testutil.SeedAuthUser(t, ctx, db, "pg@example.com").ID
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := profiles.EnsureProfile(ctx, id, "pg@example.com")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, testutil.CountRows(t, db, &models.Profile{}, "id = ?", id))

	cat := testutil.SeedCategory(t, ctx, db, "Analyse")
	tut := testutil.SeedTutorial(t, ctx, db, cat.ID, "Intégrales")

	doneAt := time.Now().UTC().Truncate(time.Microsecond)
	first, err := progress.Upsert(ctx, &models.UserProgress{UserID: id, TutorialID: tut.ID, ProgressPercentage: 100, Completed: true, CompletedAt: &doneAt})
	require.NoError(t, err)

	later := doneAt.Add(time.Hour)
	second, err := progress.Upsert(ctx, &models.UserProgress{UserID: id, TutorialID: tut.ID, ProgressPercentage: 100, Completed: true, CompletedAt: &later})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.CompletedAt)
	assert.True(t, doneAt.Equal(*second.CompletedAt))
	assert.EqualValues(t, 1, testutil.CountRows(t, db, &models.UserProgress{}, "user_id = ?", id))
}
