package dictionary

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a single pack file.
func Load(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open pack %s: %w", path, err)
	}
	defer f.Close()

	def, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary: load pack %s: %w", path, err)
	}
	return def, nil
}

// LoadFromReader decodes and validates one pack definition. Unknown YAML
// fields are rejected so typos surface at load time instead of silently
// producing an empty section.
func LoadFromReader(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &def, nil
}

// LoadDir loads every *.yaml and *.yml file directly under dir, sorted by
// file name so merge order is stable across platforms. Any single broken
// file fails the whole load; the caller keeps serving its previous index.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dictionary: read pack dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("dictionary: no pack files in %s: %w", dir, fs.ErrNotExist)
	}
	sort.Strings(paths)

	defs := make([]*Definition, 0, len(paths))
	for _, p := range paths {
		def, err := Load(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
