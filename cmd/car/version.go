package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ctfld/internal/version"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

var (
	versionFormat   string
	versionShowFull bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "show every recorded bit of build metadata")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show car build fingerprints",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyColorMode(cmd)
		switch strings.ToLower(versionFormat) {
		case "json":
			payload := versionPayload{Tool: "car", Version: version.Version}
			if versionShowFull {
				payload.GitCommit = version.GitCommit
				payload.BuildDate = version.BuildDate
			}
			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		case "pretty":
			fmt.Printf("car %s\n", version.Colored())
			if versionShowFull {
				if version.GitCommit != "" {
					fmt.Printf("  commit: %s\n", version.GitCommit)
				}
				if version.BuildDate != "" {
					fmt.Printf("  built:  %s\n", version.BuildDate)
				}
			}
		default:
			return fmt.Errorf("unknown version format: %q (expected: pretty|json)", versionFormat)
		}
		return nil
	},
}
