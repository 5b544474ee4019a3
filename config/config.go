package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultBucket         = "easylabel"
	DefaultArchivesSubDir = "export_archives"
)

const (
	defaultPageSize        = 12
	defaultPresignedURLTTL = 3600
)

type Config struct {
	// database path
	DatabasePath string

	// object store configuration
	StoragePath  string // root directory backing the object store
	Bucket       string // bucket holding all project images
	ArchivesPath string // full-calculated path for export archives

	// download URL signing
	BaseURL          string
	URLSigningSecret string
	PresignedURLTTL  int // seconds

	// auth
	JWTSecret string

	// OCR settings
	EASTModelPath string // text detection model; detection disabled when empty
	OCRLanguage   string

	// view settings
	PageSize int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "easylabel.db")

	storage := getEnvOrDefault("STORAGE_PATH", filepath.Join(".", "object_storage"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage '%s': %w", storage, err)
	}

	archiveSubDir := getEnvOrDefault("ARCHIVES_SUBDIR", DefaultArchivesSubDir)
	absArchivesPath := filepath.Join(absStorage, archiveSubDir)

	jwtSecret := getEnvOrDefault("JWT_SECRET", "")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	cfg := Config{
		DatabasePath:     dbPath,
		StoragePath:      absStorage,
		Bucket:           getEnvOrDefault("BUCKET", DefaultBucket),
		ArchivesPath:     absArchivesPath,
		BaseURL:          getEnvOrDefault("BASE_URL", "http://localhost:8080"),
		URLSigningSecret: getEnvOrDefault("URL_SIGNING_SECRET", jwtSecret),
		PresignedURLTTL:  getEnvIntOrDefault("PRESIGNED_URL_TTL", defaultPresignedURLTTL),
		JWTSecret:        jwtSecret,
		EASTModelPath:    getEnvOrDefault("EAST_MODEL_PATH", ""),
		OCRLanguage:      getEnvOrDefault("OCR_LANGUAGE", "eng"),
		PageSize:         getEnvIntOrDefault("PAGE_SIZE", defaultPageSize),
	}

	return cfg, nil
}
