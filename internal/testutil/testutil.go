package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB opens a private in-memory SQLite database with every model migrated.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	// A single connection keeps the shared in-memory database alive for the test.
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

func SeedCategory(tb testing.TB, ctx context.Context, db *gorm.DB, name string) *models.Category {
	tb.Helper()
	c := &models.Category{Name: name, Description: name + " tutorials", Color: "#8b5cf6"}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed category: %v", err)
	}
	return c
}

// TutorialOption customises a seeded tutorial.
type TutorialOption func(*models.Tutorial)

func Draft() TutorialOption { return func(t *models.Tutorial) { t.IsPublished = false } }

func Level(d models.Difficulty) TutorialOption {
	return func(t *models.Tutorial) { t.DifficultyLevel = d }
}

func Described(desc string) TutorialOption {
	return func(t *models.Tutorial) { t.Description = desc }
}

func CreatedAt(at time.Time) TutorialOption {
	return func(t *models.Tutorial) { t.CreatedAt = at }
}

func Duration(minutes int) TutorialOption {
	return func(t *models.Tutorial) { t.DurationMinutes = minutes }
}

func SeedTutorial(tb testing.TB, ctx context.Context, db *gorm.DB, categoryID uuid.UUID, title string, opts ...TutorialOption) *models.Tutorial {
	tb.Helper()
	t := &models.Tutorial{
		Title:           title,
		Description:     title + " description",
		Content:         "# " + title,
		CategoryID:      categoryID,
		IsPublished:     true,
		DifficultyLevel: models.DifficultyBeginner,
		DurationMinutes: 30,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tutorial: %v", err)
	}
	return t
}

// SeedAuthUser inserts a confirmed identity; profiles can only exist on top of one.
func SeedAuthUser(tb testing.TB, ctx context.Context, db *gorm.DB, email string) *models.AuthUser {
	tb.Helper()
	now := time.Now().UTC()
	u := &models.AuthUser{ID: uuid.New(), Email: email, PasswordHash: "x", ConfirmedAt: &now}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed auth user: %v", err)
	}
	return u
}

func SeedProfile(tb testing.TB, ctx context.Context, db *gorm.DB, email string, role models.Role) *models.Profile {
	tb.Helper()
	u := SeedAuthUser(tb, ctx, db, email)
	p := &models.Profile{ID: u.ID, Email: email, Role: role}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

// CountRows returns the number of rows of model matching the optional where clause.
func CountRows(tb testing.TB, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	tb.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		tb.Fatalf("count rows: %v", err)
	}
	return n
}
