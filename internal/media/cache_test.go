package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolva2000/yekolaap/internal/models"
)

// fakeAssetStore keeps assets in memory and enforces the (lang_code,
// text_hash) uniqueness the real store gets from its partial unique index.
type fakeAssetStore struct {
	mu     sync.Mutex
	assets map[string]*models.MediaAsset
	nextID int
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{assets: map[string]*models.MediaAsset{}}
}

func (s *fakeAssetStore) key(langCode, hash string) string { return langCode + "/" + hash }

func (s *fakeAssetStore) FindTTSAsset(_ context.Context, langCode, textHash string) (*models.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets[s.key(langCode, textHash)], nil
}

func (s *fakeAssetStore) CreateTTSAsset(_ context.Context, asset *models.MediaAsset) (*models.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(asset.LangCode, asset.TextHash)
	if existing, ok := s.assets[k]; ok {
		// Conflict resolves to the winning row.
		return existing, nil
	}
	s.nextID++
	asset.ID = s.nextID
	s.assets[k] = asset
	return asset, nil
}

type fakeSynth struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("engine down")
	}
	return []byte("mp3-bytes"), nil
}

func TestTextKeyStable(t *testing.T) {
	a := TextKey("Mbote na yo", "ln", "default")
	b := TextKey("Mbote na yo", "ln", "default")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Trimming only, no case folding or whitespace collapse.
	assert.Equal(t, a, TextKey("  Mbote na yo  ", "ln", "default"))
	assert.NotEqual(t, a, TextKey("mbote na yo", "ln", "default"))
	assert.NotEqual(t, a, TextKey("Mbote na yo", "fr", "default"))
	assert.NotEqual(t, a, TextKey("Mbote na yo", "ln", "male"))
}

func TestEnsureSynthesizesOnce(t *testing.T) {
	store := newFakeAssetStore()
	synth := &fakeSynth{}
	cache := NewCache(store, synth, t.TempDir())

	first, err := cache.Ensure(context.Background(), "Mbote", "ln", "", 7)
	require.NoError(t, err)
	second, err := cache.Ensure(context.Background(), "Mbote", "ln", "", 7)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TextHash, second.TextHash)
	assert.Equal(t, 1, synth.calls)
	assert.Equal(t, models.MediaTTS, first.Kind)
	assert.Equal(t, int32(7), first.ItemID.Int32)
}

func TestEnsureWritesAudioFile(t *testing.T) {
	store := newFakeAssetStore()
	root := t.TempDir()
	cache := NewCache(store, &fakeSynth{}, root)

	asset, err := cache.Ensure(context.Background(), "Mbote", "ln", "", 0)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, asset.FilePath))
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), data)
	assert.False(t, asset.ItemID.Valid)
}

func TestEnsureEngineUnavailable(t *testing.T) {
	store := newFakeAssetStore()
	cache := NewCache(store, &fakeSynth{fail: true}, t.TempDir())

	_, err := cache.Ensure(context.Background(), "Mbote", "ln", "", 0)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestEnsureConcurrentMissesConvergeToOneRow(t *testing.T) {
	store := newFakeAssetStore()
	synth := &fakeSynth{}
	cache := NewCache(store, synth, t.TempDir())

	const n = 8
	results := make([]*models.MediaAsset, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			asset, err := cache.Ensure(context.Background(), "Mbote", "ln", "", 0)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = asset
		}(i)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	for _, asset := range results {
		// Duplicate synthesis work is allowed, duplicate rows are not.
		assert.Equal(t, results[0].ID, asset.ID)
	}
}
