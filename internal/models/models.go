package models

import (
	"database/sql"
	"time"
)

// Language is a target language offered by the platform, e.g. Lingala ("ln").
type Language struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Course groups levels for one language.
type Course struct {
	ID          int      `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Language    Language `json:"language"`
}

// Level is one numbered stage of a course. (course_id, number) is unique.
type Level struct {
	ID         int    `json:"id"`
	CourseID   int    `json:"-"`
	CourseSlug string `json:"course"`
	// LangCode is the course language, carried along so callers can
	// synthesize audio without another lookup.
	LangCode string `json:"-"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
}

// Topic is an optional thematic grouping of items within a course.
type Topic struct {
	ID       int    `json:"id"`
	CourseID int    `json:"-"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
}

// Item is one learning unit: a source-language phrase and its target-language
// translation. (level_id, fr, target) is unique. Read-only to the practice
// core; owned by content management.
type Item struct {
	ID       int           `json:"id"`
	LevelID  int           `json:"-"`
	TopicID  sql.NullInt32 `json:"-"`
	Kind     string        `json:"kind"`
	FR       string        `json:"fr"`
	Target   string        `json:"target"`
	Translit string        `json:"translit"`
	Notes    string        `json:"notes"`
	AudioURL string        `json:"audio_url"`
	IsActive bool          `json:"-"`
	Version  int           `json:"-"`
}

// Exercise types.
const (
	ExTranslate = "translate"
	ExMCQ       = "mcq"
	ExListen    = "listen"
)

// Prompt is the structured prompt stored on an exercise.
// Text is nil for listen exercises (there is nothing to read).
type Prompt struct {
	From string  `json:"from"`
	Text *string `json:"text"`
}

// Answer is the structured expected answer stored on an exercise.
// Synonyms are alternative spellings accepted as exact matches.
type Answer struct {
	To       string   `json:"to"`
	Text     string   `json:"text"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Exercise is a presentable task derived from an Item. One item may carry
// several exercises; the core lazily creates a translate exercise when none
// exists.
type Exercise struct {
	ID         int     `json:"id"`
	ItemID     int     `json:"-"`
	ExType     string  `json:"ex_type"`
	Prompt     *Prompt `json:"prompt"`
	Answer     *Answer `json:"answer"`
	Difficulty int     `json:"difficulty"`
}

// Progress statuses.
const (
	StatusNew      = "new"
	StatusLearning = "learning"
	StatusReview   = "review"
)

// ItemProgress is the per-(user, item) scheduling state. Created lazily on
// the first answer, mutated only through the scheduling engine, never
// deleted. A NULL DueAt means the item was never scheduled.
type ItemProgress struct {
	UserID       int
	ItemID       int
	Status       string
	LastResult   sql.NullBool
	Streak       int
	Ease         float64
	IntervalDays int
	DueAt        sql.NullTime
	UpdatedAt    time.Time
}

// Attempt is the append-only audit record of one answer submission.
type Attempt struct {
	ID         int
	UserID     int
	ExerciseID int
	IsCorrect  bool
	TimeMS     sql.NullInt32
	CreatedAt  time.Time
}

// Media asset kinds.
const (
	MediaTTS       = "tts"
	MediaRecording = "recording"
)

// MediaAsset is a cached generated-speech artifact, content-addressed by
// (lang_code, text_hash). At most one tts asset exists per hash; entries are
// never mutated or deleted.
type MediaAsset struct {
	ID         int
	Kind       string
	LangCode   string
	TextHash   string
	Text       string
	FilePath   string
	DurationMS sql.NullInt32
	ItemID     sql.NullInt32
	CreatedAt  time.Time
}

// User is an account row. Email doubles as the login name.
type User struct {
	ID           int
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile carries the display data attached to a user. Created together with
// the user at registration.
type Profile struct {
	ID       int
	UserID   int
	FullName string
	Phone    string
}
