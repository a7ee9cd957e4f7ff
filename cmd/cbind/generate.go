package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cbind/internal/cache"
	"cbind/internal/config"
	"cbind/internal/diagfmt"
	"cbind/internal/driver"
	"cbind/internal/frontend"
	"cbind/internal/frontend/clang"
	"cbind/internal/observ"
	"cbind/internal/trace"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags] [headers...]",
	Short: "Parse headers and write Go bindings",
	Long: `Parse each header with clang, in order, and write Go bindings for the
declarations of every header that parsed without errors. Headers given on the
command line replace [input] files from the configuration.

The exit status is 0 for a clean run, the number of emitter warnings when only
warnings were reported, and negative (255 on POSIX) when a header was skipped
or the emitter reported an error.`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringP("output", "o", "", "output directory")
	f.String("package", "", "Go package name of the generated code")
	f.String("prefix", "", "prefix stripped from function names")
	f.String("container", "", "name of the function container variable")
	f.String("library", "", "native library name")
	f.Bool("single-file", false, "write every binding into one file")
	f.StringSliceP("include", "I", nil, "include directory (repeatable)")
	f.StringSlice("isystem", nil, "system include directory (repeatable)")
	f.String("language", "", "header language (c|c++)")
	f.String("clang", "", "clang executable")
	f.StringSlice("runtime-dir", nil, "directory made discoverable to clang (repeatable)")
	f.StringSlice("flag", nil, "extra flag passed to clang verbatim (repeatable)")
	f.Bool("cache", false, "reuse cached parses of unchanged headers")
	f.Bool("dry-run", false, "do not write output files")
	f.String("format", "pretty", "report format (pretty|json)")
	f.String("path-mode", "given", "how header paths are printed (given|relative|basename)")
}

type generateFlags struct {
	format   string
	pathMode diagfmt.PathMode
	dryRun   bool
	quiet    bool
	timings  bool
	ui       uiMode
	color    bool
}

func readGenerateFlags(cmd *cobra.Command) (generateFlags, error) {
	var gf generateFlags
	var err error
	if gf.format, err = cmd.Flags().GetString("format"); err != nil {
		return gf, fmt.Errorf("failed to get format flag: %w", err)
	}
	gf.format = strings.ToLower(gf.format)
	if gf.format != "pretty" && gf.format != "json" {
		return gf, fmt.Errorf("unknown format %q (expected pretty|json)", gf.format)
	}
	pm, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return gf, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	var ok bool
	if gf.pathMode, ok = diagfmt.ParsePathMode(pm); !ok {
		return gf, fmt.Errorf("unknown path mode %q (expected given|relative|basename)", pm)
	}
	if gf.dryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return gf, fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	pf := cmd.Root().PersistentFlags()
	if gf.quiet, err = pf.GetBool("quiet"); err != nil {
		return gf, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if gf.timings, err = pf.GetBool("timings"); err != nil {
		return gf, fmt.Errorf("failed to get timings flag: %w", err)
	}
	uiStr, err := pf.GetString("ui")
	if err != nil {
		return gf, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if gf.ui, err = readUIMode(uiStr); err != nil {
		return gf, err
	}
	if gf.color, err = useColor(cmd); err != nil {
		return gf, err
	}
	return gf, nil
}

// loadConfig reads --config or discovers the nearest manifest, then applies
// flag overrides and positional headers.
func loadConfig(cmd *cobra.Command, args []string) (*config.Loaded, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var loaded *config.Loaded
	if path != "" {
		loaded, err = config.Load(path)
	} else {
		loaded, err = config.Discover(wd)
	}
	if err != nil {
		return nil, err
	}

	cfg := &loaded.Config
	fl := cmd.Flags()
	str := func(name string, dst *string) {
		if fl.Changed(name) {
			v, _ := fl.GetString(name)
			*dst = v
		}
	}
	paths := func(name string, dst *[]string) {
		if fl.Changed(name) {
			v, _ := fl.GetStringSlice(name)
			*dst = absAll(wd, v)
		}
	}
	str("package", &cfg.Generate.Package)
	str("prefix", &cfg.Generate.MethodPrefix)
	str("container", &cfg.Generate.MethodContainer)
	str("library", &cfg.Generate.Library)
	str("language", &cfg.Input.Language)
	str("clang", &cfg.Frontend.Clang)
	if fl.Changed("output") {
		v, _ := fl.GetString("output")
		cfg.Generate.Output = absAll(wd, []string{v})[0]
	}
	if fl.Changed("single-file") {
		single, _ := fl.GetBool("single-file")
		cfg.Generate.MultiFile = !single
	}
	if fl.Changed("cache") {
		cfg.Cache.Enabled, _ = fl.GetBool("cache")
	}
	paths("include", &cfg.Input.IncludePaths)
	paths("isystem", &cfg.Input.SystemIncludePaths)
	paths("runtime-dir", &cfg.Frontend.RuntimeDirs)
	if fl.Changed("flag") {
		cfg.Input.Flags, _ = fl.GetStringSlice("flag")
	}
	if len(args) > 0 {
		cfg.Input.Files = absAll(wd, args)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Input.Files) == 0 {
		return nil, fmt.Errorf("no headers to process: pass them as arguments or set [input] files")
	}
	return loaded, nil
}

func absAll(base string, ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(base, p)
		}
	}
	return out
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gf, err := readGenerateFlags(cmd)
	if err != nil {
		return err
	}
	loaded, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	if cfg.Input.Language == "" {
		cfg.Input.Language = string(frontend.LanguageCXX)
	}
	lang, err := frontend.ParseLanguage(cfg.Input.Language)
	if err != nil {
		return err
	}

	tracer, cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	env := &frontend.Environment{
		Executable:  cfg.Frontend.Clang,
		RuntimeDirs: cfg.Frontend.RuntimeDirs,
	}
	var pc *cache.Cache
	if cfg.Cache.Enabled {
		if pc, err = cache.Open(cfg.Cache.Dir); err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
	}
	var timer *observ.Timer
	if gf.timings {
		timer = observ.NewTimer()
	}

	useUI := shouldUseTUI(gf.ui, gf.format == "json", len(cfg.Input.Files))

	// транскрипт идёт в stdout; при JSON или UI он копится и печатается позже
	var transcriptBuf bytes.Buffer
	var transcriptOut io.Writer = cmd.OutOrStdout()
	if gf.format == "json" || useUI {
		transcriptOut = &transcriptBuf
	}
	var transcript *diagfmt.Transcript
	if !gf.quiet {
		transcript = diagfmt.NewTranscript(transcriptOut, diagfmt.TranscriptOpts{
			Color:    gf.color && gf.format != "json",
			PathMode: gf.pathMode,
			BaseDir:  loaded.Root,
		})
	}

	opts := driver.Options{
		Files: cfg.Input.Files,
		Request: frontend.Request{
			IncludePaths:       cfg.Input.IncludePaths,
			SystemIncludePaths: cfg.Input.SystemIncludePaths,
			Language:           lang,
			Flags:              cfg.Input.Flags,
		},
		Frontend:   clang.New(env),
		Env:        env,
		Generation: cfg.Generate,
		DryRun:     gf.dryRun,
		Cache:      pc,
		Transcript: transcript,
		Timer:      timer,
		Logger:     slog.Default(),
	}
	slog.Debug("generate", "config", loaded.Path, "headers", len(opts.Files), "output", cfg.Generate.Output)

	var res *driver.Result
	if useUI {
		res, err = runWithUI(ctx, "cbind generate", opts)
	} else {
		res, err = driver.Run(ctx, opts)
	}
	if gf.format == "json" {
		_, _ = cmd.ErrOrStderr().Write(transcriptBuf.Bytes())
	} else {
		_, _ = cmd.OutOrStdout().Write(transcriptBuf.Bytes())
	}
	if err != nil {
		dumpRing(cmd, tracer)
		return err
	}

	if gf.timings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if gf.format == "json" {
		if err := diagfmt.JSON(cmd.OutOrStdout(), res.Summary(), diagfmt.JSONOpts{
			PathMode: gf.pathMode,
			BaseDir:  loaded.Root,
		}); err != nil {
			return err
		}
	} else if !gf.quiet && len(res.Written) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d files to %s\n", len(res.Written), filepath.Dir(res.Written[0]))
	}
	if res.Status < 0 {
		dumpRing(cmd, tracer)
	}
	exitCode = res.Status
	return nil
}

// dumpRing prints the ring buffer to stderr after a failed run when tracing
// kept events only in memory.
func dumpRing(cmd *cobra.Command, t trace.Tracer) {
	ring := ringOf(t)
	if ring == nil {
		return
	}
	if _, ok := t.(*trace.RingTracer); !ok {
		// поток уже записан; кольцо нужно только при чисто кольцевом режиме
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "trace (most recent events):")
	_ = ring.Dump(cmd.ErrOrStderr(), trace.FormatText)
}
