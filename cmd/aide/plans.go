package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	plansLimit int
	plansJSON  bool
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the project's plans",
	RunE:  runPlans,
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show one plan in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanShow,
}

func init() {
	plansCmd.Flags().IntVarP(&plansLimit, "limit", "n", 20, "Maximum number of plans to list")
	plansCmd.Flags().BoolVar(&plansJSON, "json", false, "Emit JSON")
	plansCmd.AddCommand(planShowCmd)
	rootCmd.AddCommand(plansCmd)
}

func runPlans(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	plans, err := p.store.ListPlans(context.Background(), p.proj.ID, plansLimit)
	if err != nil {
		return err
	}

	if plansJSON {
		return json.NewEncoder(os.Stdout).Encode(plans)
	}

	if len(plans) == 0 {
		fmt.Println("No plans yet.")
		return nil
	}
	for _, pl := range plans {
		fmt.Printf("%s  %-14s  %-3d ops  %s\n", pl.ID, pl.Status, len(pl.FileOperations), pl.Title)
	}
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	pl, err := p.store.GetPlan(context.Background(), args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(pl, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
