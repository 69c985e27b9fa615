package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	PublicBaseURL      string // Prefix for returned video URLs (empty = relative URLs)

	// Asset directories
	BackgroundDir string // One subdirectory per background category
	MusicDir      string // Background music tracks, one picked at random per video
	SoundsDir     string // Transition sound effects (popup.mp3)
	OutputDir     string // Finished videos and per-task temp subdirectories

	// Transcription
	OpenAIKey       string
	WhisperLanguage string

	// Encoding
	VideoCRF      int    // Constant rate factor, lower is better quality (0-51)
	VideoPreset   string // ultrafast .. veryslow
	AudioBitrate  string
	FFmpegThreads int

	// Concurrency
	MaxConcurrentVideos int // Admission gate size for simultaneous compositions

	// Caches
	ProbeCacheSize int // Max entries in the background metadata probe cache

	// Retention
	VideoRetention time.Duration // How long finished videos are kept
	OrphanAge      time.Duration // Age after which unregistered temp files are deleted
	SweepInterval  time.Duration // Cleanup sweep cadence
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8000"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),

		BackgroundDir: getEnv("BACKGROUND_DIR", "background"),
		MusicDir:      getEnv("MUSIC_DIR", "music"),
		SoundsDir:     getEnv("SOUNDS_DIR", "sounds"),
		OutputDir:     getEnv("OUTPUT_DIR", "processed_videos"),

		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "en"),

		VideoCRF:      getEnvInt("VIDEO_CRF", 26),
		VideoPreset:   getEnv("VIDEO_PRESET", "ultrafast"),
		AudioBitrate:  getEnv("AUDIO_BITRATE", "192k"),
		FFmpegThreads: getEnvInt("FFMPEG_THREADS", runtime.NumCPU()),

		MaxConcurrentVideos: getEnvInt("MAX_CONCURRENT_VIDEOS", runtime.NumCPU()),
		ProbeCacheSize:      getEnvInt("MAX_CACHE_SIZE", 100),

		VideoRetention: time.Duration(getEnvInt("VIDEO_RETENTION_MINUTES", 1440)) * time.Minute,
		OrphanAge:      time.Duration(getEnvInt("ORPHAN_AGE_MINUTES", 60)) * time.Minute,
		SweepInterval:  time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
	}

	// Validate required fields
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.MaxConcurrentVideos < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_VIDEOS must be at least 1")
	}

	if cfg.VideoCRF < 0 || cfg.VideoCRF > 51 {
		return nil, fmt.Errorf("VIDEO_CRF must be in [0, 51], got %d", cfg.VideoCRF)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
