package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"cbind/internal/frontend"
	"cbind/internal/frontend/clang"
	"cbind/internal/version"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
	Frontend  string `json:"frontend,omitempty"`
}

var (
	versionFormat   string
	versionFrontend bool
	versionClang    string
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionFrontend, "frontend", false, "query the clang front end for its version")
	versionCmd.Flags().StringVar(&versionClang, "clang", "clang", "clang executable queried by --frontend")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show cbind build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(versionFormat)
		switch format {
		case "pretty", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}

		fe := ""
		if versionFrontend {
			env := &frontend.Environment{Executable: versionClang}
			if err := env.Prepare(); err != nil {
				return fmt.Errorf("front-end setup: %w", err)
			}
			fe = clang.New(env).Version()
		}

		if format == "json" {
			return renderVersionJSON(cmd.OutOrStdout(), fe)
		}
		fmt.Fprint(cmd.OutOrStdout(), version.Details(fe))
		return nil
	},
}

func renderVersionJSON(w io.Writer, fe string) error {
	payload := versionPayload{
		Tool:      "cbind",
		Version:   version.Number,
		GitCommit: version.GitCommit,
		BuildDate: version.BuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Frontend:  fe,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
