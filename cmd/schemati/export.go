package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schemati/schemati/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [job-id]",
	Short: "Export a stored document result to XLSX",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output XLSX path (default <job-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	if exportOut == "" {
		exportOut = jobID + ".xlsx"
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := st.GetResult(context.Background(), jobID)
	if err != nil {
		return err
	}

	payload, err := export.NewService(logger).ExportXLSX(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, payload, 0644); err != nil {
		return err
	}
	abs, _ := filepath.Abs(exportOut)
	cmd.Printf("wrote %s (%d pages, %d failed)\n", abs, len(result.Pages), len(result.Failures))
	return nil
}
