package practice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Full loop: select an exercise for a fresh learner, answer it correctly,
// and check the audit and scheduling side effects end to end.
func TestPracticeLoopEndToEnd(t *testing.T) {
	store := newFakeStore()
	seedItems(store, 20)
	sel := newTestSelector(store, &fakeAudio{}, 3)
	ev := newTestEvaluator(store, nil)
	ctx := context.Background()

	next, err := sel.Next(ctx, 1, "lingala-a1", 1, ModeTranslate)
	require.NoError(t, err)
	require.NotNil(t, next.Exercise)
	assert.GreaterOrEqual(t, next.Exercise.Item.ID, 1)
	assert.LessOrEqual(t, next.Exercise.Item.ID, 20)

	res, err := ev.Submit(ctx, 1, AnswerRequest{
		ExerciseID: next.Exercise.ID,
		Mode:       ModeTranslate,
		Answer:     next.Exercise.Item.Target,
	})
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 1, res.Streak)

	require.Len(t, store.attempts, 1)
	assert.True(t, store.attempts[0].IsCorrect)

	p := store.progress[[2]int{1, next.Exercise.Item.ID}]
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Streak)
	assert.InDelta(t, 2.55, p.Ease, 1e-9)
	assert.Equal(t, 1, p.IntervalDays)
	assert.Equal(t, testNow.Add(24*time.Hour), p.DueAt.Time)

	// The failed item comes back shortly and leads the due pool.
	_, err = ev.Submit(ctx, 1, AnswerRequest{
		ExerciseID: next.Exercise.ID,
		Mode:       ModeTranslate,
		Answer:     "wrong answer entirely",
	})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(10*time.Minute), p.DueAt.Time)
}
