package practice

import (
	"context"
	"sort"
	"time"

	"github.com/dolva2000/yekolaap/internal/models"
	"github.com/dolva2000/yekolaap/internal/srs"
)

// fakeStore is an in-memory Store for selector/evaluator tests.
type fakeStore struct {
	levels    []models.Level
	items     []models.Item
	exercises []*models.Exercise
	attempts  []*models.Attempt
	progress  map[[2]int]*models.ItemProgress // (userID, itemID)

	nextExerciseID int
	nextAttemptID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{progress: map[[2]int]*models.ItemProgress{}}
}

func (s *fakeStore) addLevel(l models.Level) { s.levels = append(s.levels, l) }
func (s *fakeStore) addItem(i models.Item)   { s.items = append(s.items, i) }

func (s *fakeStore) setProgress(userID, itemID int, p models.ItemProgress) {
	p.UserID, p.ItemID = userID, itemID
	s.progress[[2]int{userID, itemID}] = &p
}

func (s *fakeStore) itemByID(id int) *models.Item {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i]
		}
	}
	return nil
}

func (s *fakeStore) GetLevel(_ context.Context, courseSlug string, number int) (*models.Level, error) {
	for i := range s.levels {
		if s.levels[i].CourseSlug == courseSlug && s.levels[i].Number == number {
			return &s.levels[i], nil
		}
	}
	return nil, nil
}

func (s *fakeStore) DueItems(_ context.Context, userID, levelID int, now time.Time, limit int) ([]models.Item, error) {
	var due []*models.ItemProgress
	for _, p := range s.progress {
		if p.UserID != userID || !p.DueAt.Valid || p.DueAt.Time.After(now) {
			continue
		}
		if item := s.itemByID(p.ItemID); item != nil && item.LevelID == levelID {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Time.Before(due[j].DueAt.Time) })
	if len(due) > limit {
		due = due[:limit]
	}
	items := make([]models.Item, 0, len(due))
	for _, p := range due {
		items = append(items, *s.itemByID(p.ItemID))
	}
	return items, nil
}

func (s *fakeStore) NewItems(_ context.Context, userID, levelID, limit int) ([]models.Item, error) {
	var fresh []models.Item
	for _, item := range s.items {
		if item.LevelID != levelID || !item.IsActive {
			continue
		}
		if _, seen := s.progress[[2]int{userID, item.ID}]; seen {
			continue
		}
		fresh = append(fresh, item)
		if len(fresh) >= limit {
			break
		}
	}
	return fresh, nil
}

func (s *fakeStore) RandomReviewItem(_ context.Context, userID, levelID int) (*models.Item, error) {
	for _, p := range s.progress {
		if p.UserID != userID {
			continue
		}
		if item := s.itemByID(p.ItemID); item != nil && item.LevelID == levelID {
			return item, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) TranslateExercise(_ context.Context, itemID int) (*models.Exercise, error) {
	for _, ex := range s.exercises {
		if ex.ItemID == itemID && ex.ExType == models.ExTranslate {
			return ex, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateExercise(_ context.Context, ex *models.Exercise) error {
	s.nextExerciseID++
	ex.ID = s.nextExerciseID
	s.exercises = append(s.exercises, ex)
	return nil
}

func (s *fakeStore) ExerciseWithItem(_ context.Context, exerciseID int) (*LoadedExercise, error) {
	for _, ex := range s.exercises {
		if ex.ID != exerciseID {
			continue
		}
		item := s.itemByID(ex.ItemID)
		for i := range s.levels {
			if s.levels[i].ID == item.LevelID {
				return &LoadedExercise{Exercise: *ex, Item: *item, Level: s.levels[i]}, nil
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) DistractorTargets(_ context.Context, levelID, excludeItemID int) ([]string, error) {
	var targets []string
	for _, item := range s.items {
		if item.LevelID == levelID && item.IsActive && item.ID != excludeItemID {
			targets = append(targets, item.Target)
		}
	}
	return targets, nil
}

func (s *fakeStore) CreateAttempt(_ context.Context, attempt *models.Attempt) error {
	s.nextAttemptID++
	attempt.ID = s.nextAttemptID
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *fakeStore) ApplyProgress(_ context.Context, userID, itemID int, apply func(p *models.ItemProgress)) (*models.ItemProgress, error) {
	key := [2]int{userID, itemID}
	p, ok := s.progress[key]
	if !ok {
		p = &models.ItemProgress{
			UserID: userID,
			ItemID: itemID,
			Status: models.StatusNew,
			Ease:   srs.DefaultEase,
		}
		s.progress[key] = p
	}
	apply(p)
	return p, nil
}

// fakeAudio stands in for media.Cache.
type fakeAudio struct {
	err      error
	calls    int
	lastText string
	lastLang string
}

func (f *fakeAudio) Ensure(_ context.Context, text, langCode, _ string, itemID int) (*models.MediaAsset, error) {
	f.calls++
	f.lastText = text
	f.lastLang = langCode
	if f.err != nil {
		return nil, f.err
	}
	return &models.MediaAsset{
		ID:       1,
		Kind:     models.MediaTTS,
		LangCode: langCode,
		TextHash: "deadbeef",
		Text:     text,
		FilePath: "audio/deadbeef.mp3",
	}, nil
}

// fakeASR returns a canned transcription.
type fakeASR struct {
	text string
}

func (f *fakeASR) Transcribe(context.Context, []byte, string) string { return f.text }
