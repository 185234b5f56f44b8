package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/internal/testutil"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type progressFixture struct {
	db       *gorm.DB
	svc      ProgressService
	notifier *notify.MemoryNotifier
	tutorial *models.Tutorial
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	cat := testutil.SeedCategory(t, ctx, db, "Design")
	tut := testutil.SeedTutorial(t, ctx, db, cat.ID, "Couleurs")
	n := notify.NewMemoryNotifier()
	return &progressFixture{
		db:       db,
		svc:      NewProgressService(repository.NewProgressRepository(db), repository.NewTutorialRepository(db), n),
		notifier: n,
		tutorial: tut,
	}
}

func (f *progressFixture) drain(t *testing.T, v session.Viewer) []notify.Notification {
	t.Helper()
	got, err := f.notifier.Drain(context.Background(), v.Audience)
	require.NoError(t, err)
	return got
}

func TestProgressSetIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)
	v := learner()

	first, err := f.svc.Set(ctx, v, f.tutorial.ID, 40, false)
	require.NoError(t, err)
	second, err := f.svc.Set(ctx, v, f.tutorial.ID, 40, false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 40, second.ProgressPercentage)
	assert.Equal(t, first.StartedAt.Unix(), second.StartedAt.Unix())
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.UserProgress{}, "user_id = ?", v.UserID))
	assert.Empty(t, f.drain(t, v))
}

func TestProgressSetClampsAndCompletedForcesHundred(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)
	v := learner()

	row, err := f.svc.Set(ctx, v, f.tutorial.ID, 150, false)
	require.NoError(t, err)
	assert.Equal(t, 100, row.ProgressPercentage)
	assert.False(t, row.Completed)

	row, err = f.svc.Set(ctx, v, f.tutorial.ID, -3, false)
	require.NoError(t, err)
	assert.Equal(t, 0, row.ProgressPercentage)

	row, err = f.svc.Set(ctx, v, f.tutorial.ID, 10, true)
	require.NoError(t, err)
	assert.True(t, row.Completed)
	assert.Equal(t, 100, row.ProgressPercentage)
	assert.NotNil(t, row.CompletedAt)
}

func TestMarkCompletedNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)
	v := learner()

	_, err := f.svc.Set(ctx, v, f.tutorial.ID, 50, false)
	require.NoError(t, err)

	first, err := f.svc.MarkCompleted(ctx, v, f.tutorial.ID)
	require.NoError(t, err)
	notes := f.drain(t, v)
	require.Len(t, notes, 1)
	assert.Equal(t, "Félicitations !", notes[0].Title)

	again, err := f.svc.MarkCompleted(ctx, v, f.tutorial.ID)
	require.NoError(t, err)
	assert.Empty(t, f.drain(t, v))
	assert.Equal(t, first.UpdatedAt, again.UpdatedAt)
	require.NotNil(t, again.CompletedAt)
	assert.Equal(t, first.CompletedAt.Unix(), again.CompletedAt.Unix())
}

func TestConcurrentMarkCompletedNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)
	v := learner()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row, err := f.svc.MarkCompleted(ctx, v, f.tutorial.ID)
			assert.NoError(t, err)
			if assert.NotNil(t, row) {
				assert.True(t, row.Completed)
			}
		}()
	}
	wg.Wait()

	notes := f.drain(t, v)
	require.Len(t, notes, 1)
	assert.Equal(t, "Félicitations !", notes[0].Title)
	assert.EqualValues(t, 1, testutil.CountRows(t, f.db, &models.UserProgress{}, "user_id = ?", v.UserID))
}

func TestMarkCompletedWithoutPriorRowNotifies(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)
	v := learner()

	row, err := f.svc.MarkCompleted(ctx, v, f.tutorial.ID)
	require.NoError(t, err)
	assert.True(t, row.Completed)
	assert.Len(t, f.drain(t, v), 1)

	got, err := f.svc.Get(ctx, v, f.tutorial.ID)
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
}

func TestProgressUncompleteClearsCompletedAt(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)
	v := learner()

	_, err := f.svc.MarkCompleted(ctx, v, f.tutorial.ID)
	require.NoError(t, err)
	row, err := f.svc.Set(ctx, v, f.tutorial.ID, 60, false)
	require.NoError(t, err)
	assert.False(t, row.Completed)
	assert.Nil(t, row.CompletedAt)
	assert.Equal(t, 60, row.ProgressPercentage)
}

func TestProgressRequiresUserAndPublishedTutorial(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(t)

	_, err := f.svc.Set(ctx, session.Viewer{}, f.tutorial.ID, 10, false)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))

	_, err = f.svc.Set(ctx, learner(), uuid.New(), 10, false)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	got, err := f.svc.Get(ctx, learner(), f.tutorial.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
