package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

// dotEnvFiles in priority order. godotenv never overwrites a variable that
// is already set, so the process environment wins, then .env.local, then .env.
var dotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads the .env files present in the working directory and
// returns the ones that loaded cleanly
func LoadDotEnv() []string {
	return loadDotEnv(dotEnvFiles)
}

func loadDotEnv(candidates []string) []string {
	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warn("skipping env file %s: %v", f, err)
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded
}
