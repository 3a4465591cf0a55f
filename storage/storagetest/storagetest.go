// Package storagetest provides in-memory databases and seed data for tests.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quizgame/models"
)

// Open returns a migrated in-memory sqlite database closed at test cleanup.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// Pack is a seeded pack with its questions in pack order.
type Pack struct {
	Pack      models.Pack
	Questions []models.QuestionWithVariants
}

// Correct returns the correct variant of question i.
func (p Pack) Correct(i int) models.Variant {
	for _, v := range p.Questions[i].Variants {
		if v.IsCorrect {
			return v
		}
	}
	panic(fmt.Sprintf("question %d has no correct variant", i))
}

// Wrong returns an incorrect variant of question i.
func (p Pack) Wrong(i int) models.Variant {
	for _, v := range p.Questions[i].Variants {
		if !v.IsCorrect {
			return v
		}
	}
	panic(fmt.Sprintf("question %d has no incorrect variant", i))
}

// SeedPack inserts a pack with the given number of questions, each with
// variantsPer variants of which the first is correct.
func SeedPack(t testing.TB, db *gorm.DB, questions, variantsPer int) Pack {
	t.Helper()
	ctx := context.Background()

	seeded := Pack{Pack: models.Pack{ID: uuid.New(), Title: fmt.Sprintf("pack-%d", questions)}}
	require.NoError(t, db.WithContext(ctx).Create(&seeded.Pack).Error)

	for i := 0; i < questions; i++ {
		q := models.Question{
			PackID:   seeded.Pack.ID,
			Text:     fmt.Sprintf("question %d", i+1),
			Position: i,
		}
		require.NoError(t, db.WithContext(ctx).Create(&q).Error)

		entry := models.QuestionWithVariants{Question: q}
		for j := 0; j < variantsPer; j++ {
			v := models.Variant{
				QuestionID: q.ID,
				Text:       fmt.Sprintf("answer %d.%d", i+1, j+1),
				IsCorrect:  j == 0,
			}
			require.NoError(t, db.WithContext(ctx).Create(&v).Error)
			entry.Variants = append(entry.Variants, v)
		}
		seeded.Questions = append(seeded.Questions, entry)
	}
	return seeded
}
