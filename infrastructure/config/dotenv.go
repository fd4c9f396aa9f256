package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from .env files without overwriting variables
// already set. Explicit paths are tried first, then .env next to the config
// file, then .env in the working directory. Missing files are skipped.
func LoadDotEnv(configPath string, paths ...string) error {
	candidates := append([]string{}, paths...)
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(abs), ".env"))
		}
	}
	candidates = append(candidates, ".env")

	seen := make(map[string]bool, len(candidates))
	for _, path := range candidates {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		if err := loadIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

func loadIfExists(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
