package practice

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dolva2000/yekolaap/internal/models"
	"github.com/dolva2000/yekolaap/internal/srs"
	"github.com/dolva2000/yekolaap/internal/textutil"
)

// SimilarityThreshold is the minimum fuzzy-match ratio graded as correct
// when neither the expected text nor a synonym matches exactly.
const SimilarityThreshold = 0.85

// Streak of consecutive correct answers that promotes an item to review.
const reviewStreak = 3

// AnswerRequest is one submitted answer. Answer carries free text or the
// selected MCQ choice; Audio carries a recording to transcribe when Answer
// is empty.
type AnswerRequest struct {
	ExerciseID int
	Mode       Mode
	Answer     string
	Audio      []byte
	TimeMS     *int
}

// AnswerResult reports the grading outcome and the rescheduled state.
type AnswerResult struct {
	Correct   bool      `json:"correct"`
	Expected  string    `json:"expected"`
	YouSaid   string    `json:"you_said"`
	Streak    int       `json:"streak"`
	NextDueAt time.Time `json:"next_due_at"`
}

// EvaluatorConfig configures an Evaluator. ASR may be nil when no speech
// recognition backend is available; audio answers then grade as empty text.
type EvaluatorConfig struct {
	Store Store
	ASR   Transcriber
	Now   func() time.Time
}

// Evaluator grades answers and advances the item's scheduling state.
type Evaluator struct {
	store Store
	asr   Transcriber
	now   func() time.Time
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{store: cfg.Store, asr: cfg.ASR, now: now}
}

// Submit grades one answer, appends the attempt record and applies the
// scheduling update. Grading and scheduling always both happen: even a
// failed transcription produces an attempt and a (failed) review.
func (e *Evaluator) Submit(ctx context.Context, userID int, req AnswerRequest) (*AnswerResult, error) {
	if req.ExerciseID == 0 {
		return nil, fmt.Errorf("%w: exercise_id required", ErrValidation)
	}
	loaded, err := e.store.ExerciseWithItem(ctx, req.ExerciseID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, ErrExerciseNotFound
	}

	// Listen plays the target language, so the learner answers on the
	// source side; every other mode expects the target text.
	var expected string
	if req.Mode == ModeListen {
		expected = strings.TrimSpace(loaded.Item.FR)
	} else {
		expected = strings.TrimSpace(loaded.Item.Target)
	}

	answer := strings.TrimSpace(req.Answer)
	if answer == "" && len(req.Audio) > 0 && e.asr != nil {
		answer = strings.TrimSpace(e.asr.Transcribe(ctx, req.Audio, loaded.Level.LangCode))
	}

	correct := e.grade(answer, expected, loaded.Exercise.Answer)

	attempt := &models.Attempt{
		UserID:     userID,
		ExerciseID: loaded.Exercise.ID,
		IsCorrect:  correct,
	}
	if req.TimeMS != nil {
		attempt.TimeMS = sql.NullInt32{Int32: int32(*req.TimeMS), Valid: true}
	}
	if err := e.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	now := e.now()
	progress, err := e.store.ApplyProgress(ctx, userID, loaded.Item.ID, func(p *models.ItemProgress) {
		p.LastResult = sql.NullBool{Bool: correct, Valid: true}
		if correct {
			p.Streak++
			if p.Streak >= reviewStreak {
				p.Status = models.StatusReview
			} else {
				p.Status = models.StatusLearning
			}
		} else {
			p.Streak = 0
			p.Status = models.StatusLearning
		}
		res := srs.Advance(correct, p.Ease, p.IntervalDays)
		p.Ease = res.Ease
		p.IntervalDays = res.IntervalDays
		p.DueAt = sql.NullTime{Time: now.Add(res.DueDelta), Valid: true}
	})
	if err != nil {
		return nil, err
	}

	return &AnswerResult{
		Correct:   correct,
		Expected:  expected,
		YouSaid:   answer,
		Streak:    progress.Streak,
		NextDueAt: progress.DueAt.Time,
	}, nil
}

// grade checks exact normalized equality against the expected text and the
// declared synonyms, then falls back to the fuzzy similarity ratio.
func (e *Evaluator) grade(answer, expected string, declared *models.Answer) bool {
	na := textutil.Normalize(answer)
	ne := textutil.Normalize(expected)
	if na == ne {
		return true
	}
	if declared != nil {
		for _, syn := range declared.Synonyms {
			if na == textutil.Normalize(syn) {
				return true
			}
		}
	}
	return textutil.Similarity(na, ne) >= SimilarityThreshold
}
