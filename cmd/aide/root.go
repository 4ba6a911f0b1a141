package main

import (
	"aide/internal/version"

	"github.com/spf13/cobra"
)

var (
	// repoFlag overrides the repository root (default: current directory)
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "aide",
	Short: "aide - AI pair programmer for indexed codebases",
	Long: `aide is a conversational coding assistant backend. It classifies what you
ask for, retrieves the relevant code from the project's scan index, drafts a
reviewable file-change plan, and executes approved plans with per-operation
backups and rollback.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("aide version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository root (default: current directory)")
}
