package main

import (
	"context"
	"fmt"

	"aide/internal/index"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project and index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Printf("Project:   %s (%s)\n", p.proj.Name, p.proj.ID)
	fmt.Printf("Root:      %s\n", p.proj.Root)
	if len(p.proj.TechStack) > 0 {
		fmt.Printf("Stack:     %v\n", p.proj.TechStack)
	}

	ctx := context.Background()
	reader, err := index.OpenSQLite(p.proj.ScanDBPath, p.logger)
	if err != nil {
		fmt.Printf("Index:     unavailable (%v)\n", err)
		return nil
	}
	defer reader.Close()

	scanID, err := reader.ScanID(ctx, p.proj.ID)
	if err != nil {
		fmt.Printf("Index:     no scan recorded\n")
		return nil
	}
	files, _ := reader.ListFiles(ctx, p.proj.ID)
	chunks, _ := reader.ListChunks(ctx, p.proj.ID)
	routes, _ := reader.ListRoutes(ctx, p.proj.ID)
	fmt.Printf("Scan:      %s\n", scanID)
	fmt.Printf("Indexed:   %d files, %d chunks, %d routes\n", len(files), len(chunks), len(routes))
	return nil
}
