package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ctfld/internal/ctfdebug"
	"ctfld/internal/observ"
)

var (
	extractOutput  string
	extractVerbose bool
	extractTimings bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "directory to extract members into")
	extractCmd.Flags().BoolVarP(&extractVerbose, "verbose", "v", false, "list archive contents while extracting")
	extractCmd.Flags().BoolVar(&extractTimings, "timings", false, "show timing information")
}

var extractCmd = &cobra.Command{
	Use:     "extract <archive>...",
	Aliases: []string{"x"},
	Short:   "Extract archive contents into per-member files",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	applyColorMode(cmd)
	quiet, _ := cmd.Flags().GetBool("quiet")
	cfgPath, _ := cmd.Flags().GetString("config")

	timer := observ.NewTimer()
	stop := timer.Phase("config")
	cfg, err := loadConfig(cfgPath)
	stop("")
	if err != nil {
		return err
	}
	outDir := cfg.OutputDir
	if extractOutput != "" {
		outDir = extractOutput
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", outDir, err)
	}

	stop = timer.Phase("extract")
	g, _ := errgroup.WithContext(cmd.Context())
	for _, path := range args {
		path := path
		g.Go(func() error {
			return extractArchive(path, outDir, quiet)
		})
	}
	err = g.Wait()
	stop(fmt.Sprintf("%d archives", len(args)))

	if extractTimings && !quiet {
		fmt.Fprint(os.Stderr, timer.Summary())
	}
	return err
}

func extractArchive(path, outDir string, quiet bool) error {
	arc, err := openArchiveFile(path)
	if err != nil {
		return err
	}
	if extractVerbose && !quiet {
		printArchiveTable(path, arc)
	}
	for _, m := range arc.Members() {
		data, err := m.File.Bytes()
		if err != nil {
			return fmt.Errorf("cannot serialize member %s of %s: %w", m.Name, path, err)
		}
		// Member names come from the archive; keep only the base name so
		// they cannot escape the output directory.
		fn := filepath.Join(outDir, filepath.Base(m.Name)+".ctf")
		if err := os.WriteFile(fn, data, 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", fn, err)
		}
		ctfdebug.Printf("extracted %s -> %s", m.Name, fn)
	}
	return nil
}
