package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"aide/internal/execute"

	"github.com/spf13/cobra"
)

var (
	executeForce bool
)

var executeCmd = &cobra.Command{
	Use:   "execute <plan-id>",
	Short: "Execute an approved or pending plan",
	Long: `Runs a plan's file operations against the working tree. Risky plans pause
before each operation for confirmation; --force applies everything without
gates. Every destructive operation is backed up first and can be undone with
'aide rollback'.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	executeCmd.Flags().BoolVar(&executeForce, "force", false, "Apply all operations without per-file confirmation")
	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := context.Background()
	outcome, err := p.orch.ExecutePlan(ctx, args[0], executeForce)
	printEvents(p.events)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for outcome.AwaitingPath != "" {
		fmt.Printf("Apply operation %d (%s)? [y/n/skip] ", outcome.AwaitingIndex+1, outcome.AwaitingPath)
		if !scanner.Scan() {
			return scanner.Err()
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch answer {
		case "y", "yes":
			outcome, err = p.orch.ContinuePlan(ctx, args[0])
		case "skip", "s":
			outcome, err = p.orch.SkipCurrentFile(ctx, args[0])
		case "n", "no":
			res, rbErr := p.orch.RollbackPlan(ctx, args[0])
			printEvents(p.events)
			fmt.Printf("Cancelled. Rolled back %d operation(s).\n", len(res.RolledBack))
			return rbErr
		default:
			continue
		}
		printEvents(p.events)
		if err != nil {
			return err
		}
	}

	printOutcome(outcome)
	return nil
}

func printOutcome(outcome execute.Outcome) {
	fmt.Printf("Plan %s: %s\n", outcome.PlanID, outcome.Status)
	for _, fe := range outcome.Executions {
		line := fmt.Sprintf("  %-11s %-7s %s", fe.Status, fe.Operation, fe.Path)
		if fe.NewPath != "" {
			line += " -> " + fe.NewPath
		}
		if fe.Error != "" {
			line += "  (" + fe.Error + ")"
		}
		fmt.Println(line)
	}
	if outcome.Error != "" {
		fmt.Printf("Error: %s\n", outcome.Error)
	}
}
