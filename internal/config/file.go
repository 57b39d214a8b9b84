package config

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars substitutes ${VAR} references with environment values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// File is a YAML settings file flattened into dotted keys:
//
//	mssql:
//	  server: db.internal
//
// resolves "mssql.server". Reload re-reads the file in place.
type File struct {
	path string

	mu     sync.RWMutex
	values Map
}

func LoadFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Reload() error {
	// #nosec G304 -- path comes from the operator's command line
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &doc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	values := Map{}
	flatten("", doc, values)

	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
	return nil
}

func (f *File) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values.Get(key)
}

func flatten(prefix string, node map[string]any, out Map) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flatten(key, x, out)
		case nil:
		default:
			out[key] = fmt.Sprint(x)
		}
	}
}
