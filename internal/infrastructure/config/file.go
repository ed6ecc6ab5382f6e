package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// LoadFile loads configuration from a YAML or TOML file plus the environment.
//
// The file holds the same keys as the environment, at the top level:
//
//	PORT: 8080
//	TERMINAL_SHELL: /bin/zsh
//	CORS_ALLOW_ORIGINS: [http://localhost:3000]
//
// Variables already set in the environment win over the file. File values
// are exported to the process environment, so the shell inherits them.
func LoadFile(path string) (*Config, error) {
	values, err := readFile(path)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, values[key]); err != nil {
			return nil, fmt.Errorf("failed to apply %s from %s: %w", key, path, err)
		}
	}
	return Load()
}

// readFile decodes path by extension into flat KEY=value pairs
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported config file type %q (want .yaml, .yml or .toml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, err := scalar(v)
		if err != nil {
			return nil, fmt.Errorf("%s: key %s: %w", path, k, err)
		}
		values[strings.ToUpper(k)] = s
	}
	return values, nil
}

// scalar renders a decoded value the way envconfig parses it. Lists become
// comma-separated.
func scalar(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, err := scalar(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]any:
		return "", fmt.Errorf("nested tables are not supported")
	default:
		return fmt.Sprint(val), nil
	}
}
