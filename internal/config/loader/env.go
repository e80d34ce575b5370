package loader

import (
	"os"
	"sort"
	"strings"
)

// EnvLoader reads configuration overrides from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "SIMSCRIPT_")
	mapping map[string]string // Env var -> config path
	lookup  func(string) (string, bool)
}

// NewEnvLoader creates a loader for the given prefix with no mappings.
// The prefix should include the trailing underscore (e.g., "SIMSCRIPT_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: make(map[string]string),
		lookup:  os.LookupEnv,
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable
// mappings. Names in mapping are given without the prefix.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	l := NewEnvLoader(prefix)
	for name, path := range mapping {
		l.AddMapping(name, path)
	}
	return l
}

// WithLookup replaces the environment lookup, for tests.
func (l *EnvLoader) WithLookup(fn func(string) (string, bool)) *EnvLoader {
	l.lookup = fn
	return l
}

// AddMapping maps the variable prefix+name to a config path.
func (l *EnvLoader) AddMapping(name, configPath string) {
	l.mapping[l.prefix+name] = configPath
}

// Vars returns the mapped variable names, sorted.
func (l *EnvLoader) Vars() []string {
	vars := make([]string, 0, len(l.mapping))
	for env := range l.mapping {
		vars = append(vars, env)
	}
	sort.Strings(vars)
	return vars
}

// Override is a single environment value bound to a config path.
type Override struct {
	Env   string
	Path  string
	Value string
}

// Load returns the overrides for every mapped variable that is set, in
// variable name order. Empty values count as set.
func (l *EnvLoader) Load() []Override {
	var out []Override
	for _, env := range l.Vars() {
		if val, ok := l.lookup(env); ok {
			out = append(out, Override{Env: env, Path: l.mapping[env], Value: strings.TrimSpace(val)})
		}
	}
	return out
}
