package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Manifest names searched for, in order, in each directory.
var Manifest = []string{"cbind.toml", "cbind.yaml", "cbind.yml"}

// ErrNotFound is returned by Find when no manifest exists up to the root.
var ErrNotFound = errors.New("no cbind.toml found")

// Loaded is a decoded manifest.
type Loaded struct {
	Path   string
	Root   string
	Config Config
}

// Find walks up from startDir looking for a manifest.
func Find(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range Manifest {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrNotFound
}

// Discover finds and loads the nearest manifest. When none exists the
// default configuration rooted at startDir is returned with an empty Path.
func Discover(startDir string) (*Loaded, error) {
	path, err := Find(startDir)
	if errors.Is(err, ErrNotFound) {
		root, absErr := filepath.Abs(startDir)
		if absErr != nil {
			return nil, absErr
		}
		cfg := Default()
		cfg.Resolve(root)
		return &Loaded{Root: root, Config: cfg}, nil
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load decodes path over the defaults, resolves relative paths against the
// manifest directory and validates the result.
func Load(path string) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(abs)
	cfg.Resolve(root)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Loaded{Path: abs, Root: root, Config: cfg}, nil
}

// Decode parses manifest bytes; the format follows the file extension.
func Decode(path string, data []byte) (Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
		}
	}
	return cfg, nil
}

// Encode writes cfg as TOML, the format `cbind init` produces.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
