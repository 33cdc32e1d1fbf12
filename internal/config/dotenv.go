package config

import (
	"os"

	"github.com/joho/godotenv"
)

// dotenvCandidates returns the env files to try for the given APP_ENV,
// most specific first.
func dotenvCandidates(env string) []string {
	candidates := []string{".env.local", ".env"}
	if env != "" {
		candidates = append([]string{".env." + env}, candidates...)
	}
	return candidates
}

// LoadDotEnv loads the env files for the given APP_ENV. godotenv never
// overwrites variables that are already set, so OS env vars win over
// every file, and .env.<env> wins over .env.local wins over .env.
// Returns the files actually loaded.
func LoadDotEnv(env string) []string {
	var loaded []string
	for _, f := range dotenvCandidates(env) {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	return loaded
}
