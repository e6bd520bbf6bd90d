// internal/selectors/loader.go
package selectors

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load reads every *.json, *.yaml and *.yml file in dir. It is called once at
// startup; the returned set is never mutated afterwards.
func Load(dir string, logger *zap.Logger) (*Set, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand selectors path %q: %w", dir, err)
	}

	entries, err := os.ReadDir(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors directory %q: %w", expanded, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(expanded, e.Name()))
		}
	}
	sort.Strings(paths)

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded selector file.", zap.String("path", p), zap.String("storefront", f.BotName))
		files = append(files, f)
	}

	set, err := New(files...)
	if err != nil {
		return nil, err
	}
	logger.Info("Selector configuration loaded.", zap.Strings("storefronts", set.Storefronts()))
	return set, nil
}

// LoadFile decodes a single selector file, choosing the codec by extension.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read selector file: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return File{}, fmt.Errorf("failed to decode selector file %s: %w", filepath.Base(path), err)
	}
	return f, nil
}
