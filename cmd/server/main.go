package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/dolva2000/yekolaap/internal/api"
	"github.com/dolva2000/yekolaap/internal/database"
	"github.com/dolva2000/yekolaap/internal/media"
	"github.com/dolva2000/yekolaap/internal/practice"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}
	cfg := api.LoadConfig()

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("DB connect error: %v", err)
	}
	defer db.Close()
	log.Println("DB connected!")

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("DB migrate error: %v", err)
	}

	store := database.NewStore(db)

	// Speech backends are optional: without credentials the service still
	// runs, listen exercises degrade to text and audio answers grade empty.
	var synth media.Synthesizer
	if tts, err := media.NewGoogleTTS(ctx); err != nil {
		log.Printf("TTS engine unavailable, listen exercises will degrade to text: %v", err)
		synth = unavailableSynthesizer{}
	} else {
		defer tts.Close()
		synth = tts
	}
	var asr practice.Transcriber
	if recognizer, err := media.NewGoogleASR(ctx); err != nil {
		log.Printf("Speech recognition unavailable, audio answers will grade as empty: %v", err)
	} else {
		defer recognizer.Close()
		asr = recognizer
	}

	cache := media.NewCache(store, synth, cfg.MediaDir)
	selector := practice.NewSelector(practice.SelectorConfig{
		Store:    store,
		Audio:    cache,
		MediaURL: cfg.MediaURL,
	})
	evaluator := practice.NewEvaluator(practice.EvaluatorConfig{
		Store: store,
		ASR:   asr,
	})
	apiHandler := api.NewApiHandler(store, selector, evaluator, cfg.JWTKey)

	r := mux.NewRouter()

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/register", apiHandler.RegisterUser).Methods("POST")
	apiRouter.HandleFunc("/login", apiHandler.LoginUser).Methods("POST")
	apiRouter.HandleFunc("/courses", apiHandler.GetCourses).Methods("GET")
	apiRouter.HandleFunc("/levels", apiHandler.GetLevels).Methods("GET")

	s := apiRouter.PathPrefix("/practice").Subrouter()
	s.Use(api.AuthMiddleware(cfg.JWTKey))
	s.HandleFunc("/start", apiHandler.StartPractice).Methods("POST")
	s.HandleFunc("/progress", apiHandler.GetProgress).Methods("GET")
	s.HandleFunc("/next", apiHandler.NextExercise).Methods("GET")
	s.HandleFunc("/answer", apiHandler.SubmitAnswer).Methods("POST")

	// Generated audio is served straight from the media directory.
	fs := http.FileServer(http.Dir(cfg.MediaDir))
	r.PathPrefix(cfg.MediaURL).Handler(http.StripPrefix(cfg.MediaURL, fs))

	addr := ":" + cfg.Port
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server start error: %v", err)
	}
}

// unavailableSynthesizer keeps the cache wired when no TTS credentials are
// configured; every request reports the engine as unavailable.
type unavailableSynthesizer struct{}

func (unavailableSynthesizer) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, media.ErrEngineUnavailable
}
