// Pre-generates and caches TTS audio for course items, so learners never
// wait on first-listen synthesis. Safe to re-run: the cache is
// content-addressed and already-synthesized items are free.
//
// Run from the repository root: go run ./scripts/audio_generator -course lingala-a1
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"github.com/dolva2000/yekolaap/internal/database"
	"github.com/dolva2000/yekolaap/internal/media"
)

func main() {
	course := flag.String("course", "", "filter by course slug (e.g. lingala-a1)")
	level := flag.Int("level", 0, "filter by level number")
	lang := flag.String("lang", "", "override the TTS language code")
	limit := flag.Int("limit", 0, "limit the number of items to process")
	workers := flag.Int("workers", 10, "concurrent synthesis requests")
	flag.Parse()

	log.Println("Starting audio generator...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("DB connect error: %v", err)
	}
	defer db.Close()
	store := database.NewStore(db)

	ctx := context.Background()
	tts, err := media.NewGoogleTTS(ctx)
	if err != nil {
		log.Fatalf("TTS client error: %v", err)
	}
	defer tts.Close()

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = "media"
	}
	cache := media.NewCache(store, tts, mediaDir)

	targets, err := store.ListWarmTargets(ctx, *course, *level, *limit)
	if err != nil {
		log.Fatalf("Failed to list items: %v", err)
	}
	if len(targets) == 0 {
		log.Println("Nothing to synthesize. Done.")
		return
	}
	log.Printf("Found %d items to warm.", len(targets))

	jobs := make(chan database.WarmTarget, len(targets))
	var processed, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				langCode := t.LangCode
				if *lang != "" {
					langCode = *lang
				}
				if _, err := cache.Ensure(ctx, t.Target, langCode, "", t.ItemID); err != nil {
					failed.Add(1)
					log.Printf("Failed item %d: %v", t.ItemID, err)
					continue
				}
				if n := processed.Add(1); n%20 == 0 {
					log.Printf("Processed %d items...", n)
				}
				// Stay under the synthesis API per-minute quota.
				time.Sleep(700 * time.Millisecond)
			}
		}()
	}

	for _, t := range targets {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	log.Printf("Warm TTS done. Processed: %d, failed: %d", processed.Load(), failed.Load())
}
