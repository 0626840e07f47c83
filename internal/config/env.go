package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads environment variables from .env/.env.local files.
// Existing process environment variables are not overwritten, and missing
// files are not an error.
func loadEnvFiles() {
	for _, envPath := range envFiles {
		err := godotenv.Load(envPath)
		switch {
		case err == nil:
			slog.Debug("Loaded environment variables", "path", envPath)
		case errors.Is(err, fs.ErrNotExist):
		default:
			slog.Warn("Could not parse env file", "path", envPath, "error", err)
		}
	}
}
