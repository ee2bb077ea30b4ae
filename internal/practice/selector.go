package practice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dolva2000/yekolaap/internal/media"
	"github.com/dolva2000/yekolaap/internal/models"
	"github.com/dolva2000/yekolaap/internal/textutil"
)

// Candidate pool caps: pick among the 5 earliest due items, or the first 20
// unseen items.
const (
	duePoolSize = 5
	newPoolSize = 20
	// MCQ sampling: collect up to 10 distinct distractor candidates, offer 3.
	distractorPool  = 10
	distractorCount = 3
)

// ItemRef is the item summary embedded in an exercise payload.
type ItemRef struct {
	ID     int    `json:"id"`
	FR     string `json:"fr"`
	Target string `json:"target"`
}

// ExercisePayload is one renderable exercise.
type ExercisePayload struct {
	ID       int            `json:"id"`
	Item     ItemRef        `json:"item"`
	Mode     Mode           `json:"mode"`
	Prompt   *models.Prompt `json:"prompt"`
	AudioURL *string        `json:"audio_url"`
	Choices  []string       `json:"choices"`
}

// NextResult is the outcome of a next-exercise request. Exactly one of
// Exercise and Detail is set: Detail reports the non-error "nothing to
// practice" case.
type NextResult struct {
	Exercise *ExercisePayload `json:"exercise,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

// SelectorConfig configures a Selector. Rand and Now default to the global
// time and a time-seeded source; tests inject both.
type SelectorConfig struct {
	Store    Store
	Audio    AudioProvider
	MediaURL string // URL prefix under which media files are served
	Rand     *rand.Rand
	Now      func() time.Time
}

// Selector picks the next exercise for a (user, level) from three ordered
// candidate pools: due, then new, then random review.
type Selector struct {
	store    Store
	audio    AudioProvider
	mediaURL string
	now      func() time.Time

	mu  sync.Mutex // guards rng; rand.Rand is not goroutine-safe
	rng *rand.Rand
}

func NewSelector(cfg SelectorConfig) *Selector {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Selector{
		store:    cfg.Store,
		audio:    cfg.Audio,
		mediaURL: strings.TrimSuffix(cfg.MediaURL, "/"),
		now:      now,
		rng:      rng,
	}
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Selector) shuffle(vals []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(vals), func(i, j int) {
		vals[i], vals[j] = vals[j], vals[i]
	})
}

// Next picks an item for the user in the given level and renders it as an
// exercise in the requested mode. Pool order is strict: due beats new beats
// review; empty pools all the way down yield a Detail result, not an error.
func (s *Selector) Next(ctx context.Context, userID int, courseSlug string, levelNumber int, mode Mode) (*NextResult, error) {
	level, err := s.store.GetLevel(ctx, courseSlug, levelNumber)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}

	item, err := s.pickItem(ctx, userID, level.ID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &NextResult{Detail: "no items to practice (empty level?)"}, nil
	}

	ex, err := s.resolveExercise(ctx, item)
	if err != nil {
		return nil, err
	}

	payload := &ExercisePayload{
		ID:   ex.ID,
		Item: ItemRef{ID: item.ID, FR: item.FR, Target: item.Target},
		Mode: mode,
	}
	if err := s.fillMode(ctx, payload, item, level, mode); err != nil {
		return nil, err
	}
	return &NextResult{Exercise: payload}, nil
}

// pickItem walks the candidate pools in order; nil means every pool is empty.
func (s *Selector) pickItem(ctx context.Context, userID, levelID int) (*models.Item, error) {
	now := s.now()

	due, err := s.store.DueItems(ctx, userID, levelID, now, duePoolSize)
	if err != nil {
		return nil, fmt.Errorf("due pool: %w", err)
	}
	if len(due) > 0 {
		return &due[s.intn(len(due))], nil
	}

	fresh, err := s.store.NewItems(ctx, userID, levelID, newPoolSize)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	if len(fresh) > 0 {
		return &fresh[s.intn(len(fresh))], nil
	}

	item, err := s.store.RandomReviewItem(ctx, userID, levelID)
	if err != nil {
		return nil, fmt.Errorf("review pool: %w", err)
	}
	return item, nil
}

// resolveExercise reuses the item's translate exercise or creates one.
func (s *Selector) resolveExercise(ctx context.Context, item *models.Item) (*models.Exercise, error) {
	ex, err := s.store.TranslateExercise(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		return ex, nil
	}

	fr := item.FR
	ex = &models.Exercise{
		ItemID:     item.ID,
		ExType:     models.ExTranslate,
		Prompt:     &models.Prompt{From: "fr", Text: &fr},
		Answer:     &models.Answer{To: "target", Text: item.Target},
		Difficulty: 1,
	}
	if err := s.store.CreateExercise(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *Selector) fillMode(ctx context.Context, payload *ExercisePayload, item *models.Item, level *models.Level, mode Mode) error {
	fr := item.FR
	switch mode {
	case ModeListen:
		asset, err := s.audio.Ensure(ctx, item.Target, level.LangCode, "", item.ID)
		if err != nil {
			if !errors.Is(err, media.ErrEngineUnavailable) {
				return err
			}
			// Degrade to a readable prompt instead of failing the request.
			log.Printf("TTS unavailable for item %d, serving listen exercise as text: %v", item.ID, err)
			target := item.Target
			payload.Prompt = &models.Prompt{From: "target", Text: &target}
			return nil
		}
		url := s.mediaURL + "/" + path.Clean(asset.FilePath)
		payload.Prompt = &models.Prompt{From: "target", Text: nil}
		payload.AudioURL = &url
	case ModeMCQ:
		payload.Prompt = &models.Prompt{From: "fr", Text: &fr}
		choices, err := s.buildChoices(ctx, level.ID, item)
		if err != nil {
			return err
		}
		payload.Choices = choices
	default: // translate and speak share the text prompt
		payload.Prompt = &models.Prompt{From: "fr", Text: &fr}
	}
	return nil
}

// buildChoices assembles the MCQ choice set: the correct target plus up to
// three distractors from the same level, unique under normalization, with
// the correct answer's position randomized. Small levels yield fewer than
// four choices.
func (s *Selector) buildChoices(ctx context.Context, levelID int, item *models.Item) ([]string, error) {
	correct := strings.TrimSpace(item.Target)
	others, err := s.store.DistractorTargets(ctx, levelID, item.ID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{textutil.Normalize(correct): true}
	var distractors []string
	for _, t := range others {
		t = strings.TrimSpace(t)
		if t == "" || seen[textutil.Normalize(t)] {
			continue
		}
		seen[textutil.Normalize(t)] = true
		distractors = append(distractors, t)
		if len(distractors) >= distractorPool {
			break
		}
	}

	s.shuffle(distractors)
	if len(distractors) > distractorCount {
		distractors = distractors[:distractorCount]
	}
	choices := append([]string{correct}, distractors...)
	s.shuffle(choices)
	return choices, nil
}
