package main

import (
	"encoding/json"
	"fmt"

	"repartos/internal/worker"

	"github.com/spf13/cobra"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect or requeue dead-lettered reconciliation jobs",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the newest dead-lettered jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt64("limit")
		_, deps, err := connect()
		if err != nil {
			return err
		}
		entries, err := worker.ListDLQ(cmd.Context(), deps.RDB, worker.QueueConciliacion, limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var dlqRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Move every dead-lettered job back to its queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, deps, err := connect()
		if err != nil {
			return err
		}
		n, err := worker.RequeueDLQ(cmd.Context(), deps.RDB, worker.QueueConciliacion)
		if err != nil {
			return fmt.Errorf("requeued %d before failing: %w", n, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d jobs\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd, dlqRequeueCmd)

	dlqListCmd.Flags().Int64("limit", 50, "Maximum entries to print")
}
