package launch

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Resolves the configuration from the process environment.
//
// Variables from the given .env files (".env" when none are given) are
// added first without overriding anything already set. Missing files are
// ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, err
		}
	}
	return Resolve(environ())
}

// Returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
