package common

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// LoadEnvFile loads KEY=VALUE pairs from path without overriding variables
// already set. A missing file is not an error.
func LoadEnvFile(path string, log zerolog.Logger) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("env_file", path).Msg("env file not found, using process environment")
			return nil
		}
		return err
	}
	log.Debug().Str("env_file", path).Msg("env file loaded")
	return nil
}
