package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"aide/internal/config"
	"aide/internal/events"
	"aide/internal/logging"
	"aide/internal/orchestrator"
	"aide/internal/project"
	"aide/internal/provider"
	"aide/internal/store"
)

// pipeline bundles everything a command needs, with a single cleanup.
type pipeline struct {
	cfg    *config.Config
	proj   *project.Project
	store  *store.Store
	orch   *orchestrator.Orchestrator
	events *events.Buffer
	logger *logging.Logger
	db     *store.DB
}

func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
}

// repoRoot resolves the repository root from the --repo flag or the current
// directory.
func repoRoot() (string, error) {
	if repoFlag != "" {
		return filepath.Abs(repoFlag)
	}
	return os.Getwd()
}

// buildPipeline loads config and project metadata, opens the database, and
// wires the orchestrator.
func buildPipeline() (*pipeline, error) {
	root, err := repoRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	proj, err := loadProject(root)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(root, logger)
	if err != nil {
		return nil, err
	}

	st := store.New(db)
	completer := provider.NewHTTPProvider(cfg.Provider, logger)
	buf := events.NewBuffer()

	return &pipeline{
		cfg:    cfg,
		proj:   proj,
		store:  st,
		orch:   orchestrator.New(cfg, proj, st, completer, buf, logger),
		events: buf,
		logger: logger,
		db:     db,
	}, nil
}

// loadProject reads .aide/project.json, synthesizing sensible defaults for a
// repository that has a scan index but no explicit project file yet.
func loadProject(root string) (*project.Project, error) {
	path := filepath.Join(root, ".aide", "project.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultProject(root), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var proj project.Project
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}
	if proj.Root == "" {
		proj.Root = root
	}
	if proj.ScanDBPath == "" {
		proj.ScanDBPath = filepath.Join(root, ".aide", "scan.db")
	}
	if proj.ID == "" {
		proj.ID = filepath.Base(root)
	}
	return &proj, nil
}

func defaultProject(root string) *project.Project {
	name := filepath.Base(root)
	return &project.Project{
		ID:          name,
		Name:        name,
		Root:        root,
		DomainPaths: project.DefaultDomainPaths(),
		ScanDBPath:  filepath.Join(root, ".aide", "scan.db"),
	}
}

// printEvents flushes buffered pipeline events as progress lines.
func printEvents(buf *events.Buffer) {
	for _, e := range buf.Drain() {
		fmt.Printf("  [%s]", e.Type)
		for k, v := range e.Data {
			fmt.Printf(" %s=%v", k, v)
		}
		fmt.Println()
	}
}
