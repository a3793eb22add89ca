package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymSeedFile is the on-disk YAML format consumed by the synonym
// seeder. Keys are canonical skill names; values list the variants
// that should normalize to that canonical form.
type SynonymSeedFile struct {
	Skills map[string][]string `yaml:"skills"`
}

// LoadSynonymSeed reads and parses the seed file at path. The file is
// optional infrastructure: callers that receive os.ErrNotExist may fall
// back to DefaultSynonymSeed.
func LoadSynonymSeed(path string) (*SynonymSeedFile, error) {
	const op = "config.LoadSynonymSeed"

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("op=%s: resolve path: %w", op, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("op=%s: read seed file: %w", op, err)
	}

	var f SynonymSeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("op=%s: parse yaml: %w", op, err)
	}
	if len(f.Skills) == 0 {
		return nil, fmt.Errorf("op=%s: seed file has no skills", op)
	}

	// Normalize casing once at load time so the seeder and the
	// pipeline agree on canonical forms.
	normalized := make(map[string][]string, len(f.Skills))
	for canonical, variants := range f.Skills {
		key := strings.ToLower(strings.TrimSpace(canonical))
		if key == "" {
			continue
		}
		seen := make(map[string]struct{}, len(variants))
		out := make([]string, 0, len(variants))
		for _, v := range variants {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" || v == key {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
		normalized[key] = out
	}
	f.Skills = normalized
	return &f, nil
}

// DefaultSynonymSeed returns the built-in seed used when no seed file
// is configured. It covers the aliases that show up most often in
// resumes; tenants extend the set through the seeder CLI.
func DefaultSynonymSeed() *SynonymSeedFile {
	return &SynonymSeedFile{
		Skills: map[string][]string{
			"golang":                {"go", "go-lang"},
			"javascript":            {"js", "ecmascript"},
			"typescript":            {"ts"},
			"kubernetes":            {"k8s"},
			"postgresql":            {"postgres", "pgsql"},
			"python":                {"py", "python3"},
			"react":                 {"reactjs", "react.js"},
			"node.js":               {"node", "nodejs"},
			"c++":                   {"cpp", "cplusplus"},
			"c#":                    {"csharp", "c sharp"},
			"amazon web services":   {"aws"},
			"google cloud platform": {"gcp", "google cloud"},
		},
	}
}
