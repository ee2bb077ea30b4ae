// Package practice implements the practice loop core: picking the next
// exercise for a learner (Selector) and grading a submitted answer while
// advancing its spaced-repetition state (Evaluator).
package practice

import (
	"context"
	"strings"
	"time"

	"github.com/dolva2000/yekolaap/internal/models"
)

// Mode is the exercise presentation mode requested by the client.
type Mode string

const (
	ModeTranslate Mode = "translate"
	ModeListen    Mode = "listen"
	ModeSpeak     Mode = "speak"
	ModeMCQ       Mode = "mcq"
)

// ParseMode lowercases the raw mode parameter. An empty or unrecognized
// value falls back to translate, like the original API.
func ParseMode(raw string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeListen, ModeSpeak, ModeMCQ, ModeTranslate:
		return m
	default:
		return ModeTranslate
	}
}

// LoadedExercise is an exercise together with its item and the item's level,
// fetched in one round trip so grading knows both answer sides and the
// course language.
type LoadedExercise struct {
	Exercise models.Exercise
	Item     models.Item
	Level    models.Level
}

// Store is the persistence the practice core needs. Implemented by
// database.Store; tests use in-memory fakes.
//
// Lookup methods return (nil, nil) when the row does not exist.
// ApplyProgress must be atomic against concurrent calls for the same
// (user, item): create-if-absent, then read-modify-write under a lock or
// equivalent, retrying once before giving up with ErrConflict.
type Store interface {
	GetLevel(ctx context.Context, courseSlug string, number int) (*models.Level, error)

	// DueItems returns items whose progress row for the user is due at or
	// before now, earliest due first, capped at limit.
	DueItems(ctx context.Context, userID, levelID int, now time.Time, limit int) ([]models.Item, error)
	// NewItems returns active items in the level with no progress row for
	// the user, in stable id order, capped at limit.
	NewItems(ctx context.Context, userID, levelID, limit int) ([]models.Item, error)
	// RandomReviewItem returns any item the user has progress on in the
	// level, picked at random.
	RandomReviewItem(ctx context.Context, userID, levelID int) (*models.Item, error)

	TranslateExercise(ctx context.Context, itemID int) (*models.Exercise, error)
	CreateExercise(ctx context.Context, ex *models.Exercise) error
	ExerciseWithItem(ctx context.Context, exerciseID int) (*LoadedExercise, error)

	// DistractorTargets returns the target texts of other active items in
	// the level, in stable id order.
	DistractorTargets(ctx context.Context, levelID, excludeItemID int) ([]string, error)

	CreateAttempt(ctx context.Context, attempt *models.Attempt) error
	ApplyProgress(ctx context.Context, userID, itemID int, apply func(p *models.ItemProgress)) (*models.ItemProgress, error)
}

// AudioProvider is the slice of the media cache the selector uses for listen
// exercises. Implemented by media.Cache.
type AudioProvider interface {
	Ensure(ctx context.Context, text, langCode, voice string, itemID int) (*models.MediaAsset, error)
}

// Transcriber converts a recorded answer to text, best-effort. Implemented
// by media.GoogleASR; an empty result means nothing was recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, langCode string) string
}
