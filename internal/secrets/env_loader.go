package secrets

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvLoader returns a Loader that reads the specified environment variables.
// Missing variables are silently omitted from the result map.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// DotenvLoader reads keys from the dotenv file at path on every call, so an
// edited file takes effect on the next Reload. A missing file yields no
// values.
func DotenvLoader(path string, keys ...string) Loader {
	return func() (map[string]string, error) {
		all, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return map[string]string{}, nil
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := all[k]; v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// Chain merges loaders in order; later loaders win on conflicting keys.
func Chain(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		vals := map[string]string{}
		for _, l := range loaders {
			m, err := l()
			if err != nil {
				return nil, err
			}
			for k, v := range m {
				vals[k] = v
			}
		}
		return vals, nil
	}
}
