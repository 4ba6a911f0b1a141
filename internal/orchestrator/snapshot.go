package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"aide/internal/config"
	"aide/internal/graph"
	"aide/internal/index"
	"aide/internal/logging"
	"aide/internal/project"
	"aide/internal/retrieval"
	"aide/internal/routes"
)

// SnapshotLoader builds and caches per-scan retrieval snapshots. The graph
// and route resolver are expensive to build and immutable for a given scan,
// so they are held in memory until the TTL lapses or the scan changes.
type SnapshotLoader struct {
	graphCfg config.GraphConfig
	cacheCfg config.CacheConfig
	logger   *logging.Logger

	mu     sync.Mutex
	cached map[string]*cachedSnapshot // projectID -> snapshot
}

type cachedSnapshot struct {
	snap     *retrieval.Snapshot
	loadedAt time.Time
}

func NewSnapshotLoader(graphCfg config.GraphConfig, cacheCfg config.CacheConfig, logger *logging.Logger) *SnapshotLoader {
	if logger == nil {
		logger = logging.Silent()
	}
	if cacheCfg.GraphTtlSeconds <= 0 {
		cacheCfg.GraphTtlSeconds = 300
	}
	return &SnapshotLoader{
		graphCfg: graphCfg,
		cacheCfg: cacheCfg,
		logger:   logger,
		cached:   make(map[string]*cachedSnapshot),
	}
}

// Load returns the current snapshot for the project, reusing the cached one
// while it is fresh and still matches the latest scan.
func (l *SnapshotLoader) Load(ctx context.Context, proj *project.Project) (*retrieval.Snapshot, error) {
	reader, err := index.OpenSQLite(proj.ScanDBPath, l.logger)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	scanID, err := reader.ScanID(ctx, proj.ID)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(l.cacheCfg.GraphTtlSeconds) * time.Second
	l.mu.Lock()
	if c, ok := l.cached[proj.ID]; ok && c.snap.ScanID == scanID && time.Since(c.loadedAt) < ttl {
		l.mu.Unlock()
		return c.snap, nil
	}
	l.mu.Unlock()

	snap, err := l.build(ctx, reader, proj, scanID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cached[proj.ID] = &cachedSnapshot{snap: snap, loadedAt: time.Now()}
	l.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Load rebuilds it.
func (l *SnapshotLoader) Invalidate(projectID string) {
	l.mu.Lock()
	delete(l.cached, projectID)
	l.mu.Unlock()
}

func (l *SnapshotLoader) build(ctx context.Context, reader *index.SQLiteReader, proj *project.Project, scanID string) (*retrieval.Snapshot, error) {
	started := time.Now()

	files, err := reader.ListFiles(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	chunks, err := reader.ListChunks(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	routeRecords, err := reader.ListRoutes(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	if len(routeRecords) == 0 {
		// Older scans ship routes as a YAML manifest next to the index.
		manifest := filepath.Join(proj.Root, ".aide", "routes.yaml")
		if loaded, yamlErr := index.LoadRoutesYAML(manifest); yamlErr == nil {
			routeRecords = loaded
		}
	}

	g := graph.NewBuilder(l.graphCfg, l.logger).Build(files, chunks)
	resolver := routes.NewResolver(routeRecords, files, l.logger)

	l.logger.Info("Snapshot built", map[string]interface{}{
		"project":    proj.ID,
		"scan":       scanID,
		"files":      len(files),
		"chunks":     len(chunks),
		"routes":     len(routeRecords),
		"durationMs": time.Since(started).Milliseconds(),
	})

	return &retrieval.Snapshot{
		ScanID: scanID,
		Files:  files,
		Chunks: chunks,
		Graph:  g,
		Routes: resolver,
	}, nil
}
