package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var conciliarCmd = &cobra.Command{
	Use:   "conciliar <tenant_id> <entrega_id>",
	Short: "Apply the pending effects of a delivery (idempotent)",
	Long: `Runs the same reconciliation the worker runs. Effects already applied are
skipped, so this is safe to run for a delivery that may have succeeded.`,
	Args: cobra.ExactArgs(2),
	RunE: runConciliar,
}

func init() {
	rootCmd.AddCommand(conciliarCmd)
}

func runConciliar(cmd *cobra.Command, args []string) error {
	tenantID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid tenant_id: %w", err)
	}
	entregaID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid entrega_id: %w", err)
	}

	_, deps, err := connect()
	if err != nil {
		return err
	}
	resp, err := deps.Conciliacion.ConciliarEntrega(cmd.Context(), tenantID, entregaID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
