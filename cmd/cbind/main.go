package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cbind/internal/logging"
	"cbind/internal/version"
)

// exitCode is the process status; generate sets it from the run's status.
var exitCode int

// stopProfiling is replaced by setup once profilers are running.
var stopProfiling = func() {}

var rootCmd = &cobra.Command{
	Use:   "cbind",
	Short: "Generate Go bindings from C/C++ headers",
	Long: `cbind parses C/C++ headers with clang and emits purego-based Go bindings:
structs, enums, typedefs and a function container loaded from the native library.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func main() {
	rootCmd.Version = version.Colored()

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to cbind.toml or cbind.yaml (default: search upwards)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress the transcript")
	pf.Bool("timings", false, "show timing information")
	pf.String("ui", "auto", "progress UI (auto|on|off)")
	pf.String("log-level", "warn", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "ring", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace format (auto|text|ndjson|chrome)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "heartbeat interval while tracing (0 disables)")
	pf.String("cpu-profile", "", "write a CPU profile to the file")
	pf.String("mem-profile", "", "write a heap profile to the file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to the file")

	err := rootCmd.Execute()
	stopProfiling()
	if err != nil {
		// ошибки запуска считаются жёстким отказом
		os.Exit(-1)
	}
	os.Exit(exitCode)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := setupLogging(cmd, args); err != nil {
		return err
	}
	stop, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	stopProfiling = stop
	return nil
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	pf := cmd.Root().PersistentFlags()
	levelStr, err := pf.GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	format, err := pf.GetString("log-format")
	if err != nil {
		return fmt.Errorf("failed to get log-format flag: %w", err)
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = cmd.ErrOrStderr()
	_, err = logging.Init(cfg)
	return err
}

// useColor resolves --color against the terminal state of stdout.
func useColor(cmd *cobra.Command) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	case "", "auto":
		return isTerminal(os.Stdout) && !color.NoColor, nil
	}
	return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
