// Package config loads cbind.toml / cbind.yaml and supplies the immutable
// per-run generation settings.
package config

import (
	"path/filepath"
)

// Config mirrors the manifest sections.
type Config struct {
	Generate Generation `toml:"generate" yaml:"generate"`
	Input    Input      `toml:"input" yaml:"input"`
	Frontend Frontend   `toml:"frontend" yaml:"frontend"`
	Cache    Cache      `toml:"cache" yaml:"cache"`
}

// Generation is the per-run GenerationConfig value; the emitter never
// mutates it.
type Generation struct {
	// Library is the native library name bindings are loaded from.
	Library string `toml:"library" yaml:"library" validate:"required"`
	// Package is the Go package name of the generated code.
	Package string `toml:"package" yaml:"package" validate:"required,goident"`
	Output  string `toml:"output" yaml:"output" validate:"required"`
	// MethodContainer names the struct variable holding function bindings.
	MethodContainer string `toml:"method_container" yaml:"method_container" validate:"required,goident"`
	// MethodPrefix is stripped from function names that start with it.
	MethodPrefix      string `toml:"method_prefix" yaml:"method_prefix"`
	MultiFile         bool   `toml:"multi_file" yaml:"multi_file"`
	CallingConvention string `toml:"calling_convention" yaml:"calling_convention" validate:"omitempty,oneof=cdecl"`
}

type Input struct {
	Files              []string `toml:"files" yaml:"files" validate:"dive,required"`
	IncludePaths       []string `toml:"include_paths" yaml:"include_paths" validate:"dive,required"`
	SystemIncludePaths []string `toml:"system_include_paths" yaml:"system_include_paths" validate:"dive,required"`
	Language           string   `toml:"language" yaml:"language" validate:"omitempty,oneof=c c++"`
	Flags              []string `toml:"flags" yaml:"flags"`
}

type Frontend struct {
	// Clang is the executable; a bare name is searched for in PATH plus RuntimeDirs.
	Clang       string   `toml:"clang" yaml:"clang"`
	RuntimeDirs []string `toml:"runtime_dirs" yaml:"runtime_dirs" validate:"dive,required"`
}

type Cache struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Dir     string `toml:"dir" yaml:"dir"`
}

// Default is the OpenXR reference configuration.
func Default() Config {
	return Config{
		Generate: Generation{
			Library:           "openxr_loader",
			Package:           "openxr",
			Output:            "gen",
			MethodContainer:   "XR",
			MethodPrefix:      "xr",
			MultiFile:         true,
			CallingConvention: "cdecl",
		},
		Input: Input{
			Files:        []string{"include/openxr/openxr.h"},
			IncludePaths: []string{"include"},
			Language:     "c++",
		},
		Frontend: Frontend{
			Clang: "clang",
		},
		Cache: Cache{
			Dir: ".cbind-cache",
		},
	}
}

// Resolve makes every relative path in c absolute against root.
func (c *Config) Resolve(root string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, filepath.FromSlash(p))
	}
	all := func(ps []string) []string {
		if ps == nil {
			return nil
		}
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = abs(p)
		}
		return out
	}
	c.Generate.Output = abs(c.Generate.Output)
	c.Input.Files = all(c.Input.Files)
	c.Input.IncludePaths = all(c.Input.IncludePaths)
	c.Input.SystemIncludePaths = all(c.Input.SystemIncludePaths)
	c.Frontend.RuntimeDirs = all(c.Frontend.RuntimeDirs)
	c.Cache.Dir = abs(c.Cache.Dir)
}
