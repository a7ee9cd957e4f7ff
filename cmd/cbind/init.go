package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cbind/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default cbind.toml",
	Long: `Write a cbind.toml with the default generation settings into [path], or the
current directory when [path] is omitted. A missing directory is created.
An existing manifest is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("package", "", "Go package name written to the manifest")
	initCmd.Flags().String("library", "", "native library name written to the manifest")
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	target := wd
	if len(args) == 1 && args[0] != "." {
		target = absAll(wd, args)[0]
	}

	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err = os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	for _, name := range config.Manifest {
		existing := filepath.Join(target, name)
		if _, err := os.Stat(existing); err == nil {
			return fmt.Errorf("already initialized: %s exists", existing)
		}
	}

	cfg := config.Default()
	if v, _ := cmd.Flags().GetString("package"); v != "" {
		cfg.Generate.Package = v
	}
	if v, _ := cmd.Flags().GetString("library"); v != "" {
		cfg.Generate.Library = v
	}
	if err := config.Validate(&cfg); err != nil {
		return err
	}
	data, err := config.Encode(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	manifestPath := filepath.Join(target, config.Manifest[0])
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	rel := target
	if r, err := filepath.Rel(wd, target); err == nil {
		rel = r
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized cbind manifest in %s\n", rel)
	fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", config.Manifest[0])
	return nil
}
