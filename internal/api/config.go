package api

import (
	"log"
	"os"
)

// Config carries the environment-driven settings for the HTTP layer.
// Loaded once at startup; godotenv has already populated the environment.
type Config struct {
	Port     string
	JWTKey   []byte
	MediaDir string // directory holding generated audio files
	MediaURL string // URL prefix the media dir is served under
}

func LoadConfig() Config {
	cfg := Config{
		Port:     getenv("PORT", "8080"),
		JWTKey:   []byte(os.Getenv("JWT_SECRET")),
		MediaDir: getenv("MEDIA_DIR", "media"),
		MediaURL: getenv("MEDIA_URL", "/media/"),
	}
	if len(cfg.JWTKey) == 0 {
		// Keep local development working, but make it loud.
		log.Println("WARNING: JWT_SECRET is not set, using an insecure development key")
		cfg.JWTKey = []byte("insecure-development-key-change-me")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
