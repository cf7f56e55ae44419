package main

import (
	"github.com/spf13/cobra"

	"github.com/schemati/schemati/internal/ingest"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "List the drawing files under a directory",
	Long: `Walks a directory the way the intake daemon would and prints every
file the pipeline would accept. Hidden entries are skipped; unreadable
entries are counted but do not stop the scan.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	paths, stats, err := ingest.ScanDirectory(args[0])
	if err != nil {
		return err
	}
	for _, p := range paths {
		cmd.Println(p)
	}
	cmd.Printf("%d scanned, %d matched, %d unreadable\n", stats.Scanned, stats.Matched, stats.Failed)
	return nil
}
