package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"ctfld/internal/archive"
)

var listCmd = &cobra.Command{
	Use:     "list <archive>...",
	Aliases: []string{"t"},
	Short:   "List archive contents without extraction",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runList,
}

var headerColor = color.New(color.FgCyan, color.Bold)

func runList(cmd *cobra.Command, args []string) error {
	applyColorMode(cmd)
	quiet, _ := cmd.Flags().GetBool("quiet")

	for _, path := range args {
		arc, err := openArchiveFile(path)
		if err != nil {
			return err
		}
		if !quiet {
			printArchiveTable(path, arc)
		}
	}
	return nil
}

func openArchiveFile(path string) (*archive.Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	arc, err := archive.Open(data)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return arc, nil
}

// memberColSize computes the column width needed to print every member
// name of the archive.
func memberColSize(arc *archive.Archive) int {
	colsize := len("Name")
	for _, m := range arc.Members() {
		if w := runewidth.StringWidth(m.Name); w > colsize {
			colsize = w
		}
	}
	return colsize
}

func printArchiveTable(path string, arc *archive.Archive) {
	colsize := memberColSize(arc)
	fmt.Printf("\n%s:\n\n", path)
	headerColor.Printf("%-*s %-10s %-8s %-8s\n\n", colsize, "Name", "Size", "Types", "Vars")
	for _, m := range arc.Members() {
		fmt.Printf("%-*s %-10d %-8d %-8d\n",
			colsize, m.Name, m.File.Size(), m.File.TypeCount(), m.File.VarCount())
	}
}
