package practice

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolva2000/yekolaap/internal/media"
	"github.com/dolva2000/yekolaap/internal/models"
	"github.com/dolva2000/yekolaap/internal/textutil"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func testLevel() models.Level {
	return models.Level{ID: 1, CourseID: 1, CourseSlug: "lingala-a1", LangCode: "ln", Number: 1}
}

func newTestSelector(store *fakeStore, audio *fakeAudio, seed int64) *Selector {
	return NewSelector(SelectorConfig{
		Store:    store,
		Audio:    audio,
		MediaURL: "/media/",
		Rand:     rand.New(rand.NewSource(seed)),
		Now:      func() time.Time { return testNow },
	})
}

func seedItems(store *fakeStore, n int) {
	store.addLevel(testLevel())
	for i := 1; i <= n; i++ {
		store.addItem(models.Item{
			ID:       i,
			LevelID:  1,
			Kind:     "phrase",
			FR:       fmt.Sprintf("phrase %d", i),
			Target:   fmt.Sprintf("liloba %d", i),
			IsActive: true,
		})
	}
}

func TestNextUnknownLevel(t *testing.T) {
	store := newFakeStore()
	sel := newTestSelector(store, &fakeAudio{}, 1)

	_, err := sel.Next(context.Background(), 1, "nope", 9, ModeTranslate)
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestNextEmptyLevel(t *testing.T) {
	store := newFakeStore()
	store.addLevel(testLevel())
	sel := newTestSelector(store, &fakeAudio{}, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeTranslate)
	require.NoError(t, err)
	assert.Nil(t, res.Exercise)
	assert.NotEmpty(t, res.Detail)
}

func TestNextNewPool(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 20)
	sel := newTestSelector(store, &fakeAudio{}, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeTranslate)
	require.NoError(t, err)
	require.NotNil(t, res.Exercise)

	assert.GreaterOrEqual(t, res.Exercise.Item.ID, 1)
	assert.LessOrEqual(t, res.Exercise.Item.ID, 20)
	assert.Equal(t, ModeTranslate, res.Exercise.Mode)
	require.NotNil(t, res.Exercise.Prompt)
	require.NotNil(t, res.Exercise.Prompt.Text)
	assert.Equal(t, res.Exercise.Item.FR, *res.Exercise.Prompt.Text)

	// A translate exercise was created lazily for the chosen item.
	ex, err := store.TranslateExercise(context.Background(), res.Exercise.Item.ID)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, ex.ID, res.Exercise.ID)
	assert.Equal(t, res.Exercise.Item.Target, ex.Answer.Text)
}

func TestNextReusesExistingExercise(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 1)
	fr := "phrase 1"
	store.exercises = append(store.exercises, &models.Exercise{
		ID: 42, ItemID: 1, ExType: models.ExTranslate,
		Prompt: &models.Prompt{From: "fr", Text: &fr},
		Answer: &models.Answer{To: "target", Text: "liloba 1"},
	})
	store.nextExerciseID = 42
	sel := newTestSelector(store, &fakeAudio{}, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeTranslate)
	require.NoError(t, err)
	assert.Equal(t, 42, res.Exercise.ID)
	assert.Len(t, store.exercises, 1)
}

func TestNextPrefersDueOverNew(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 20)
	// Item 7 is due; everything else is untouched.
	store.setProgress(1, 7, models.ItemProgress{
		Status: models.StatusLearning,
		Ease:   2.55,
		DueAt:  sql.NullTime{Time: testNow.Add(-time.Hour), Valid: true},
	})

	for seed := int64(0); seed < 20; seed++ {
		sel := newTestSelector(store, &fakeAudio{}, seed)
		res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeTranslate)
		require.NoError(t, err)
		assert.Equal(t, 7, res.Exercise.Item.ID, "seed %d", seed)
	}
}

func TestNextDuePoolCappedAtEarliestFive(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 8)
	// Eight due items with distinct due times; only the earliest five are
	// eligible.
	for i := 1; i <= 8; i++ {
		store.setProgress(1, i, models.ItemProgress{
			Status: models.StatusLearning,
			Ease:   2.50,
			DueAt:  sql.NullTime{Time: testNow.Add(time.Duration(i-9) * time.Hour), Valid: true},
		})
	}

	for seed := int64(0); seed < 30; seed++ {
		sel := newTestSelector(store, &fakeAudio{}, seed)
		res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeTranslate)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Exercise.Item.ID, 5, "seed %d", seed)
	}
}

func TestNextReviewFallback(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 3)
	// All items seen, none due yet: only the review pool remains.
	for i := 1; i <= 3; i++ {
		store.setProgress(1, i, models.ItemProgress{
			Status: models.StatusReview,
			Ease:   2.60,
			DueAt:  sql.NullTime{Time: testNow.Add(48 * time.Hour), Valid: true},
		})
	}
	sel := newTestSelector(store, &fakeAudio{}, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeTranslate)
	require.NoError(t, err)
	require.NotNil(t, res.Exercise)
	assert.Contains(t, []int{1, 2, 3}, res.Exercise.Item.ID)
}

func TestNextListenMode(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 1)
	audio := &fakeAudio{}
	sel := newTestSelector(store, audio, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeListen)
	require.NoError(t, err)

	ex := res.Exercise
	require.NotNil(t, ex.AudioURL)
	assert.Equal(t, "/media/audio/deadbeef.mp3", *ex.AudioURL)
	assert.Equal(t, "target", ex.Prompt.From)
	assert.Nil(t, ex.Prompt.Text, "listen prompts carry no readable text")
	assert.Equal(t, "liloba 1", audio.lastText)
	assert.Equal(t, "ln", audio.lastLang)
}

func TestNextListenModeDegradesWithoutEngine(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 1)
	audio := &fakeAudio{err: fmt.Errorf("%w: tts down", media.ErrEngineUnavailable)}
	sel := newTestSelector(store, audio, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeListen)
	require.NoError(t, err, "engine outage must not fail the request")

	ex := res.Exercise
	assert.Nil(t, ex.AudioURL)
	require.NotNil(t, ex.Prompt.Text)
	assert.Equal(t, "liloba 1", *ex.Prompt.Text)
}

func TestNextMCQChoices(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 10)

	for seed := int64(0); seed < 10; seed++ {
		sel := newTestSelector(store, &fakeAudio{}, seed)
		res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeMCQ)
		require.NoError(t, err)

		ex := res.Exercise
		require.Len(t, ex.Choices, 4, "seed %d", seed)

		correct := 0
		seen := map[string]bool{}
		for _, c := range ex.Choices {
			n := textutil.Normalize(c)
			assert.False(t, seen[n], "duplicate choice %q (seed %d)", c, seed)
			seen[n] = true
			if c == ex.Item.Target {
				correct++
			}
		}
		assert.Equal(t, 1, correct, "correct answer appears exactly once (seed %d)", seed)
	}
}

func TestNextMCQDedupesNormalizedTargets(t *testing.T) {
	store := newFakeStore()
	store.addLevel(testLevel())
	store.addItem(models.Item{ID: 1, LevelID: 1, FR: "bonjour", Target: "Mbote", IsActive: true})
	// Same target modulo case/whitespace: not a usable distractor.
	store.addItem(models.Item{ID: 2, LevelID: 1, FR: "salut", Target: "  MBOTE ", IsActive: true})
	store.addItem(models.Item{ID: 3, LevelID: 1, FR: "merci", Target: "Matondo", IsActive: true})
	store.setProgress(1, 1, models.ItemProgress{
		Status: models.StatusLearning,
		Ease:   2.50,
		DueAt:  sql.NullTime{Time: testNow.Add(-time.Minute), Valid: true},
	})
	sel := newTestSelector(store, &fakeAudio{}, 1)

	res, err := sel.Next(context.Background(), 1, "lingala-a1", 1, ModeMCQ)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Exercise.Item.ID)
	// Only one distinct distractor exists, so the set shrinks; never an error.
	assert.ElementsMatch(t, []string{"Mbote", "Matondo"}, res.Exercise.Choices)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeTranslate, ParseMode(""))
	assert.Equal(t, ModeTranslate, ParseMode("bogus"))
	assert.Equal(t, ModeListen, ParseMode(" LISTEN "))
	assert.Equal(t, ModeMCQ, ParseMode("mcq"))
	assert.Equal(t, ModeSpeak, ParseMode("speak"))
}
