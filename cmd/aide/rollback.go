package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <plan-id>",
	Short: "Undo an executed plan's file operations",
	Long: `Restores every file the plan touched from its pre-execution backup, in
reverse execution order. Operations that cannot be undone are reported and
left in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.orch.RollbackPlan(context.Background(), args[0])
	printEvents(p.events)

	fmt.Printf("Rolled back %d operation(s).\n", len(res.RolledBack))
	for _, path := range res.RolledBack {
		fmt.Printf("  restored %s\n", path)
	}
	for _, path := range res.Skipped {
		fmt.Printf("  skipped  %s (was not applied)\n", path)
	}
	for _, path := range res.Failed {
		fmt.Printf("  FAILED   %s\n", path)
	}
	return err
}
