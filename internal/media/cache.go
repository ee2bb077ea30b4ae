// Package media caches synthesized speech. Assets are content-addressed: the
// same (text, language, voice) always maps to the same hash, so synthesis
// happens at most once per unique input and repeats are free.
package media

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dolva2000/yekolaap/internal/models"
)

// ErrEngineUnavailable reports that the external speech engine could not
// serve the request. Recoverable: callers degrade to text-only prompts.
var ErrEngineUnavailable = errors.New("media: speech engine unavailable")

// Synthesizer is the external text-to-speech contract.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, langCode string) ([]byte, error)
}

// Transcriber is the external speech-recognition contract. Best-effort:
// implementations return empty text instead of an error when nothing could
// be recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, langCode string) string
}

// AssetStore is the persistence needed by the cache. CreateTTSAsset must
// resolve concurrent inserts of the same (lang_code, text_hash) to a single
// winning row.
type AssetStore interface {
	FindTTSAsset(ctx context.Context, langCode, textHash string) (*models.MediaAsset, error)
	CreateTTSAsset(ctx context.Context, asset *models.MediaAsset) (*models.MediaAsset, error)
}

// DefaultVoice is used when the caller does not pick a voice.
const DefaultVoice = "default"

// TextKey derives the stable cache key for a (text, language, voice) tuple.
// The text is trimmed but deliberately not run through textutil.Normalize:
// the cache must reproduce the exact source text, grading tolerance does not
// apply here.
func TextKey(text, langCode, voice string) string {
	raw := fmt.Sprintf("%s::%s::%s", langCode, voice, strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Cache is the content-addressed TTS store.
type Cache struct {
	store AssetStore
	synth Synthesizer
	root  string // media root directory; files live under <root>/audio/
}

func NewCache(store AssetStore, synth Synthesizer, root string) *Cache {
	return &Cache{store: store, synth: synth, root: root}
}

// Ensure returns the cached asset for (text, langCode, voice), synthesizing
// and persisting it first if this is the first request for that tuple.
// itemID, when non-zero, links the asset back to a content item.
//
// The miss path is synthesize-then-insert: no lock is held across the
// external call, so two concurrent misses may both synthesize, but the store
// resolves them to one row.
func (c *Cache) Ensure(ctx context.Context, text, langCode, voice string, itemID int) (*models.MediaAsset, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	hash := TextKey(text, langCode, voice)

	existing, err := c.store.FindTTSAsset(ctx, langCode, hash)
	if err != nil {
		return nil, fmt.Errorf("media: lookup tts asset: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	audio, err := c.synth.Synthesize(ctx, text, langCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	relPath := filepath.Join("audio", hash+".mp3")
	outPath := filepath.Join(c.root, relPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("media: create audio dir: %w", err)
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return nil, fmt.Errorf("media: write audio file: %w", err)
	}

	asset := &models.MediaAsset{
		Kind:     models.MediaTTS,
		LangCode: langCode,
		TextHash: hash,
		Text:     text,
		FilePath: relPath,
	}
	if itemID != 0 {
		asset.ItemID = sql.NullInt32{Int32: int32(itemID), Valid: true}
	}
	created, err := c.store.CreateTTSAsset(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("media: create tts asset: %w", err)
	}
	return created, nil
}
