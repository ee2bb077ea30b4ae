// Loads course content from CSV files into the database. Files are named
// <course-slug>_level_<n>.csv and hold one item per row:
//
//	fr,target,translit,notes,topic
//
// The whole run is one transaction: a bad file rolls everything back.
// Re-running is safe, existing items are skipped.
//
// Run from the repository root: go run ./scripts/data_loader -dir data -lang ln
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dolva2000/yekolaap/internal/database"
)

var fileRe = regexp.MustCompile(`^([a-z0-9-]+)_level_([0-9]+)\.csv$`)

type levelFile struct {
	Path       string
	CourseSlug string
	Number     int
}

func main() {
	dir := flag.String("dir", "data", "directory containing the CSV files")
	langCode := flag.String("lang", "ln", "language code for new courses")
	langName := flag.String("lang-name", "Lingala", "language name for new courses")
	flag.Parse()

	log.Println("Starting data loader...")
	startTime := time.Now()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("DB connect error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("DB migrate error: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	total, err := loadAll(tx, *dir, *langCode, *langName)
	if err != nil {
		log.Fatalf("Load error: %v\n--- ALL CHANGES ROLLED BACK ---", err)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %v", err)
	}
	log.Printf("--- SUCCESS ---\nLoaded %d items in %v.", total, time.Since(startTime))
}

func loadAll(tx *sql.Tx, dir, langCode, langName string) (int, error) {
	files, err := findLevelFiles(dir)
	if err != nil {
		return 0, err
	}
	log.Printf("Found %d level files to process.", len(files))

	languageID, err := getOrInsertLanguage(tx, langCode, langName)
	if err != nil {
		return 0, fmt.Errorf("language %s: %w", langCode, err)
	}

	total := 0
	for _, lf := range files {
		log.Printf("Processing %s (course: %s, level: %d)", filepath.Base(lf.Path), lf.CourseSlug, lf.Number)

		courseID, err := getOrInsertCourse(tx, languageID, lf.CourseSlug)
		if err != nil {
			return 0, fmt.Errorf("course %s: %w", lf.CourseSlug, err)
		}
		levelID, err := getOrInsertLevel(tx, courseID, lf.Number)
		if err != nil {
			return 0, fmt.Errorf("level %d (course %s): %w", lf.Number, lf.CourseSlug, err)
		}

		count, err := loadItems(tx, courseID, levelID, lf.Path)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", lf.Path, err)
		}
		total += count
	}
	return total, nil
}

func findLevelFiles(dir string) ([]levelFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []levelFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := fileRe.FindStringSubmatch(entry.Name())
		if len(matches) != 3 {
			continue
		}
		number, _ := strconv.Atoi(matches[2])
		files = append(files, levelFile{
			Path:       filepath.Join(dir, entry.Name()),
			CourseSlug: matches[1],
			Number:     number,
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].CourseSlug != files[j].CourseSlug {
			return files[i].CourseSlug < files[j].CourseSlug
		}
		return files[i].Number < files[j].Number
	})
	return files, nil
}

func getOrInsertLanguage(tx *sql.Tx, code, name string) (int, error) {
	var id int
	err := tx.QueryRow(`
		INSERT INTO languages (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, code, name).Scan(&id)
	return id, err
}

func getOrInsertCourse(tx *sql.Tx, languageID int, slug string) (int, error) {
	title := titleFromSlug(slug)
	var id int
	err := tx.QueryRow(`
		INSERT INTO courses (language_id, slug, title) VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET title = courses.title
		RETURNING id`, languageID, slug, title).Scan(&id)
	return id, err
}

func getOrInsertLevel(tx *sql.Tx, courseID, number int) (int, error) {
	title := fmt.Sprintf("Level %d", number)
	var id int
	err := tx.QueryRow(`
		INSERT INTO levels (course_id, number, title) VALUES ($1, $2, $3)
		ON CONFLICT (course_id, number) DO UPDATE SET title = levels.title
		RETURNING id`, courseID, number, title).Scan(&id)
	return id, err
}

func getOrInsertTopic(tx *sql.Tx, courseID int, slug string) (int, error) {
	name := titleFromSlug(slug)
	var id int
	err := tx.QueryRow(`
		INSERT INTO topics (course_id, slug, name) VALUES ($1, $2, $3)
		ON CONFLICT (course_id, slug) DO UPDATE SET name = topics.name
		RETURNING id`, courseID, slug, name).Scan(&id)
	return id, err
}

// loadItems reads one CSV file. Columns: fr, target, translit, notes, topic;
// only fr and target are required. A header row is detected and skipped.
func loadItems(tx *sql.Tx, courseID, levelID int, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // trailing optional columns may be absent

	count := 0
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "fr") {
			continue
		}
		if len(record) < 2 {
			return 0, fmt.Errorf("line %d: expected at least fr and target", line)
		}

		fr := strings.TrimSpace(record[0])
		target := strings.TrimSpace(record[1])
		if fr == "" || target == "" {
			log.Printf("Skipping line %d: empty fr or target", line)
			continue
		}
		translit, notes, topicSlug := field(record, 2), field(record, 3), field(record, 4)

		var topicID sql.NullInt32
		if topicSlug != "" {
			id, err := getOrInsertTopic(tx, courseID, topicSlug)
			if err != nil {
				return 0, fmt.Errorf("topic %s: %w", topicSlug, err)
			}
			topicID = sql.NullInt32{Int32: int32(id), Valid: true}
		}

		res, err := tx.Exec(`
			INSERT INTO items (level_id, topic_id, fr, target, translit, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (level_id, fr, target) DO NOTHING`,
			levelID, topicID, fr, target, translit, notes)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	return count, nil
}

// titleFromSlug turns "lingala-a1" into "Lingala A1".
func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
