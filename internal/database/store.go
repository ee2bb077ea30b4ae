package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dolva2000/yekolaap/internal/models"
	"github.com/dolva2000/yekolaap/internal/practice"
)

// ErrEmailTaken reports a registration attempt with an email that already
// has an account.
var ErrEmailTaken = errors.New("database: email already registered")

// Store runs every SQL query in the service. It satisfies practice.Store and
// media.AssetStore.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- accounts ---

// CreateUser inserts the user and its profile in one transaction. The
// profile is created here, explicitly, not by a hidden hook on user writes.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, fullName, phone string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var userID int
	err = tx.QueryRowContext(ctx,
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		email, passwordHash,
	).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO profiles (user_id, full_name, phone) VALUES ($1, $2, $3)",
		userID, fullName, phone,
	)
	if err != nil {
		return 0, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

// GetUserByEmail returns (nil, nil) when no account exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = $1",
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- catalog ---

func (s *Store) ListCourses(ctx context.Context) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.slug, c.title, c.description, lg.id, lg.code, lg.name
		FROM courses c
		JOIN languages lg ON lg.id = c.language_id
		ORDER BY c.slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Description,
			&c.Language.ID, &c.Language.Code, &c.Language.Name); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (s *Store) ListLevels(ctx context.Context, courseSlug string) ([]models.Level, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.course_id, c.slug, lg.code, l.number, l.title
		FROM levels l
		JOIN courses c ON c.id = l.course_id
		JOIN languages lg ON lg.id = c.language_id
		WHERE c.slug = $1
		ORDER BY l.number`, courseSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := []models.Level{}
	for rows.Next() {
		var l models.Level
		if err := rows.Scan(&l.ID, &l.CourseID, &l.CourseSlug, &l.LangCode, &l.Number, &l.Title); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func (s *Store) GetLevel(ctx context.Context, courseSlug string, number int) (*models.Level, error) {
	var l models.Level
	err := s.db.QueryRowContext(ctx, `
		SELECT l.id, l.course_id, c.slug, lg.code, l.number, l.title
		FROM levels l
		JOIN courses c ON c.id = l.course_id
		JOIN languages lg ON lg.id = c.language_id
		WHERE c.slug = $1 AND l.number = $2`,
		courseSlug, number,
	).Scan(&l.ID, &l.CourseID, &l.CourseSlug, &l.LangCode, &l.Number, &l.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) CountActiveItems(ctx context.Context, levelID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM items WHERE level_id = $1 AND is_active",
		levelID,
	).Scan(&n)
	return n, err
}

func (s *Store) EnsureEnrollment(ctx context.Context, userID, courseID int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		userID, courseID)
	return err
}

// ProgressSummary aggregates a learner's standing in one level.
type ProgressSummary struct {
	Total    int `json:"total"`
	Learned  int `json:"learned"`
	Due      int `json:"due"`
	Mastered int `json:"mastered"`
}

func (s *Store) ProgressSummary(ctx context.Context, userID, levelID int, now time.Time) (*ProgressSummary, error) {
	var sum ProgressSummary
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM items WHERE level_id = $1 AND is_active",
		levelID,
	).Scan(&sum.Total); err != nil {
		return nil, err
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE ip.status <> 'new'),
			count(*) FILTER (WHERE ip.due_at IS NOT NULL AND ip.due_at <= $3),
			count(*) FILTER (WHERE ip.streak >= 5)
		FROM item_progress ip
		JOIN items i ON i.id = ip.item_id
		WHERE ip.user_id = $1 AND i.level_id = $2`,
		userID, levelID, now,
	).Scan(&sum.Learned, &sum.Due, &sum.Mastered)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// --- practice.Store: candidate pools ---

const itemColumns = "i.id, i.level_id, i.topic_id, i.kind, i.fr, i.target, i.translit, i.notes, i.audio_url, i.is_active, i.version"

func scanItem(sc interface{ Scan(...any) error }) (models.Item, error) {
	var i models.Item
	err := sc.Scan(&i.ID, &i.LevelID, &i.TopicID, &i.Kind, &i.FR, &i.Target,
		&i.Translit, &i.Notes, &i.AudioURL, &i.IsActive, &i.Version)
	return i, err
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) DueItems(ctx context.Context, userID, levelID int, now time.Time, limit int) ([]models.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM item_progress ip
		JOIN items i ON i.id = ip.item_id
		WHERE ip.user_id = $1 AND i.level_id = $2
		  AND ip.due_at IS NOT NULL AND ip.due_at <= $3
		ORDER BY ip.due_at
		LIMIT $4`,
		userID, levelID, now, limit)
}

func (s *Store) NewItems(ctx context.Context, userID, levelID, limit int) ([]models.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i
		WHERE i.level_id = $2 AND i.is_active
		  AND NOT EXISTS (
			SELECT 1 FROM item_progress ip
			WHERE ip.user_id = $1 AND ip.item_id = i.id
		  )
		ORDER BY i.id
		LIMIT $3`,
		userID, levelID, limit)
}

func (s *Store) RandomReviewItem(ctx context.Context, userID, levelID int) (*models.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM item_progress ip
		JOIN items i ON i.id = ip.item_id
		WHERE ip.user_id = $1 AND i.level_id = $2
		ORDER BY random()
		LIMIT 1`,
		userID, levelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) DistractorTargets(ctx context.Context, levelID, excludeItemID int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target FROM items
		WHERE level_id = $1 AND is_active AND id <> $2
		ORDER BY id`,
		levelID, excludeItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// --- practice.Store: exercises ---

func (s *Store) TranslateExercise(ctx context.Context, itemID int) (*models.Exercise, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, ex_type, prompt, answer, difficulty
		FROM exercises
		WHERE item_id = $1 AND ex_type = 'translate'
		ORDER BY id
		LIMIT 1`, itemID)
	ex, err := scanExercise(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func scanExercise(sc interface{ Scan(...any) error }) (*models.Exercise, error) {
	var ex models.Exercise
	var promptRaw, answerRaw []byte
	if err := sc.Scan(&ex.ID, &ex.ItemID, &ex.ExType, &promptRaw, &answerRaw, &ex.Difficulty); err != nil {
		return nil, err
	}
	if len(promptRaw) > 0 {
		if err := json.Unmarshal(promptRaw, &ex.Prompt); err != nil {
			return nil, fmt.Errorf("decode exercise prompt: %w", err)
		}
	}
	if len(answerRaw) > 0 {
		if err := json.Unmarshal(answerRaw, &ex.Answer); err != nil {
			return nil, fmt.Errorf("decode exercise answer: %w", err)
		}
	}
	return &ex, nil
}

func (s *Store) CreateExercise(ctx context.Context, ex *models.Exercise) error {
	promptRaw, err := json.Marshal(ex.Prompt)
	if err != nil {
		return err
	}
	answerRaw, err := json.Marshal(ex.Answer)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO exercises (item_id, ex_type, prompt, answer, difficulty)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		ex.ItemID, ex.ExType, promptRaw, answerRaw, ex.Difficulty,
	).Scan(&ex.ID)
}

func (s *Store) ExerciseWithItem(ctx context.Context, exerciseID int) (*practice.LoadedExercise, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.item_id, e.ex_type, e.prompt, e.answer, e.difficulty,
		       `+itemColumns+`,
		       l.id, l.course_id, c.slug, lg.code, l.number, l.title
		FROM exercises e
		JOIN items i ON i.id = e.item_id
		JOIN levels l ON l.id = i.level_id
		JOIN courses c ON c.id = l.course_id
		JOIN languages lg ON lg.id = c.language_id
		WHERE e.id = $1`, exerciseID)

	var loaded practice.LoadedExercise
	var promptRaw, answerRaw []byte
	ex := &loaded.Exercise
	i := &loaded.Item
	l := &loaded.Level
	err := row.Scan(
		&ex.ID, &ex.ItemID, &ex.ExType, &promptRaw, &answerRaw, &ex.Difficulty,
		&i.ID, &i.LevelID, &i.TopicID, &i.Kind, &i.FR, &i.Target,
		&i.Translit, &i.Notes, &i.AudioURL, &i.IsActive, &i.Version,
		&l.ID, &l.CourseID, &l.CourseSlug, &l.LangCode, &l.Number, &l.Title,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(promptRaw) > 0 {
		if err := json.Unmarshal(promptRaw, &ex.Prompt); err != nil {
			return nil, fmt.Errorf("decode exercise prompt: %w", err)
		}
	}
	if len(answerRaw) > 0 {
		if err := json.Unmarshal(answerRaw, &ex.Answer); err != nil {
			return nil, fmt.Errorf("decode exercise answer: %w", err)
		}
	}
	return &loaded, nil
}

// --- practice.Store: attempts and progress ---

func (s *Store) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO attempts (user_id, exercise_id, is_correct, time_ms)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.UserID, a.ExerciseID, a.IsCorrect, a.TimeMS,
	).Scan(&a.ID, &a.CreatedAt)
}

// ApplyProgress runs the atomic read-modify-write on a progress row:
// create-if-absent, lock, apply, update, all in one transaction. A
// serialization failure is retried once, then surfaced as
// practice.ErrConflict.
func (s *Store) ApplyProgress(ctx context.Context, userID, itemID int, apply func(p *models.ItemProgress)) (*models.ItemProgress, error) {
	var p *models.ItemProgress
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		p, err = s.applyProgressOnce(ctx, userID, itemID, apply)
		if err == nil || !isSerializationFailure(err) {
			return p, err
		}
	}
	return nil, fmt.Errorf("%w: %v", practice.ErrConflict, err)
}

func (s *Store) applyProgressOnce(ctx context.Context, userID, itemID int, apply func(p *models.ItemProgress)) (*models.ItemProgress, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO item_progress (user_id, item_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, item_id) DO NOTHING`,
		userID, itemID); err != nil {
		return nil, fmt.Errorf("ensure progress row: %w", err)
	}

	var p models.ItemProgress
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, item_id, status, last_result, streak, ease, interval_days, due_at, updated_at
		FROM item_progress
		WHERE user_id = $1 AND item_id = $2
		FOR UPDATE`,
		userID, itemID,
	).Scan(&p.UserID, &p.ItemID, &p.Status, &p.LastResult, &p.Streak,
		&p.Ease, &p.IntervalDays, &p.DueAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock progress row: %w", err)
	}

	apply(&p)

	_, err = tx.ExecContext(ctx, `
		UPDATE item_progress
		SET status = $3, last_result = $4, streak = $5, ease = $6,
		    interval_days = $7, due_at = $8, updated_at = now()
		WHERE user_id = $1 AND item_id = $2`,
		userID, itemID, p.Status, p.LastResult, p.Streak, p.Ease, p.IntervalDays, p.DueAt)
	if err != nil {
		return nil, fmt.Errorf("update progress row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- media.AssetStore ---

func (s *Store) FindTTSAsset(ctx context.Context, langCode, textHash string) (*models.MediaAsset, error) {
	var a models.MediaAsset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, lang_code, text_hash, text, file_path, duration_ms, item_id, created_at
		FROM media_assets
		WHERE kind = 'tts' AND lang_code = $1 AND text_hash = $2`,
		langCode, textHash,
	).Scan(&a.ID, &a.Kind, &a.LangCode, &a.TextHash, &a.Text,
		&a.FilePath, &a.DurationMS, &a.ItemID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateTTSAsset inserts the asset, resolving a concurrent insert of the
// same (lang_code, text_hash) to the row that won.
func (s *Store) CreateTTSAsset(ctx context.Context, a *models.MediaAsset) (*models.MediaAsset, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO media_assets (kind, lang_code, text_hash, text, file_path, duration_ms, item_id)
		VALUES ('tts', $1, $2, $3, $4, $5, $6)
		ON CONFLICT (lang_code, text_hash) WHERE kind = 'tts' DO NOTHING
		RETURNING id, created_at`,
		a.LangCode, a.TextHash, a.Text, a.FilePath, a.DurationMS, a.ItemID,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race; hand back the winner.
		return s.FindTTSAsset(ctx, a.LangCode, a.TextHash)
	}
	if err != nil {
		return nil, err
	}
	a.Kind = models.MediaTTS
	return a, nil
}

// --- warm-up tooling ---

// WarmTarget is one item to pre-synthesize, with its course language.
type WarmTarget struct {
	ItemID   int
	Target   string
	LangCode string
}

// ListWarmTargets returns active items for the TTS warmer, optionally
// filtered by course slug and level number, ordered the way the warmer
// reports progress: course, level, id.
func (s *Store) ListWarmTargets(ctx context.Context, courseSlug string, levelNumber, limit int) ([]WarmTarget, error) {
	query := `
		SELECT i.id, i.target, lg.code
		FROM items i
		JOIN levels l ON l.id = i.level_id
		JOIN courses c ON c.id = l.course_id
		JOIN languages lg ON lg.id = c.language_id
		WHERE i.is_active`
	args := []any{}
	if courseSlug != "" {
		args = append(args, courseSlug)
		query += fmt.Sprintf(" AND c.slug = $%d", len(args))
	}
	if levelNumber > 0 {
		args = append(args, levelNumber)
		query += fmt.Sprintf(" AND l.number = $%d", len(args))
	}
	query += " ORDER BY c.slug, l.number, i.id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []WarmTarget
	for rows.Next() {
		var t WarmTarget
		if err := rows.Scan(&t.ItemID, &t.Target, &t.LangCode); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// --- error classification ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
