package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads key/value pairs from a dotenv file into the process environment.
//
// Variables already present in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// MergeEnvFile writes values into the dotenv file at path, keeping every unrelated key already there.
func MergeEnvFile(path string, values map[string]string) error {
	existing := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		if existing, err = godotenv.Read(path); err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	for k, v := range values {
		if v == "" {
			continue
		}
		existing[k] = v
	}

	if err := godotenv.Write(existing, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}
