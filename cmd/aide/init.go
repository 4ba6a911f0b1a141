package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"aide/internal/config"

	"github.com/spf13/cobra"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize aide configuration",
	Long:  "Creates a .aide/ directory with default configuration and project metadata in the repository root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (overwrites existing configuration)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}

	aideDir := filepath.Join(root, ".aide")
	configPath := filepath.Join(aideDir, "config.json")
	if _, statErr := os.Stat(configPath); statErr == nil && !initForce {
		// Idempotent: already initialized is success
		fmt.Println("aide already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("\nRun 'aide init --force' to reinitialize.")
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = "."
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	projectPath := filepath.Join(aideDir, "project.json")
	if _, statErr := os.Stat(projectPath); os.IsNotExist(statErr) || initForce {
		proj := defaultProject(root)
		proj.Root = "."
		proj.ScanDBPath = filepath.Join(".aide", "scan.db")
		data, err := json.MarshalIndent(proj, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(projectPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write project file: %w", err)
		}
	}

	fmt.Println("aide initialized.")
	fmt.Printf("Configuration at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point your scanner at this repository to produce .aide/scan.db")
	fmt.Println("  2. Review .aide/project.json (tech stack, domain paths)")
	fmt.Println("  3. Run 'aide chat' to start a conversation")
	return nil
}
