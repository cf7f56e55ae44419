package main

import (
	"context"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List extraction jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := st.ListJobs(context.Background())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		cmd.Println("no jobs")
		return nil
	}
	for _, j := range jobs {
		line := j.ID + "  " + string(j.Status) + "  " + j.Path
		if j.Error != "" {
			line += "  (" + j.Error + ")"
		}
		cmd.Println(line)
	}
	return nil
}
