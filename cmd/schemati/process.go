package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemati/schemati/internal/async"
	"github.com/schemati/schemati/internal/services/extraction"
)

var (
	processOut  string
	processSave bool
)

var processCmd = &cobra.Command{
	Use:   "process [path]",
	Short: "Run a drawing through the extraction pipeline",
	Long: `Renders the document, tiles each page, extracts entities from every
fragment, reconciles the fragments, and prints the document result as
JSON. With --save the result is also recorded in the job store.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOut, "out", "o", "", "write JSON result to file instead of stdout")
	processCmd.Flags().BoolVar(&processSave, "save", false, "record the job and result in the store")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := context.Background()

	proc, err := newProcessor()
	if err != nil {
		return err
	}

	if processSave {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		// The job is created directly rather than via Submit: a one-off
		// CLI run should not be turned away by a stale in-flight row.
		job, err := st.CreateJob(ctx, path)
		if err != nil {
			return err
		}

		// HandleJob owns the status transitions, including FAILED when
		// processing or persisting goes wrong.
		svc := extraction.NewService(st, proc, logger)
		if err := svc.HandleJob(ctx, async.Job{JobID: job.ID, Path: job.Path, SubmittedAt: job.CreatedAt}); err != nil {
			return err
		}

		result, err := svc.Result(ctx, job.ID)
		if err != nil {
			return err
		}
		cmd.Printf("job %s completed (%d pages, %d failures)\n", job.ID, len(result.Pages), len(result.Failures))
		return emitJSON(cmd, result)
	}

	result, err := proc.ProcessDocument(ctx, path)
	if err != nil {
		return err
	}
	return emitJSON(cmd, result)
}

func emitJSON(cmd *cobra.Command, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if processOut != "" {
		return os.WriteFile(processOut, payload, 0644)
	}
	cmd.Println(string(payload))
	return nil
}
