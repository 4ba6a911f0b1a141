package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aide/internal/config"
	"aide/internal/index"
	"aide/internal/intent"
	"aide/internal/logging"
	"aide/internal/project"
	"aide/internal/redact"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"add a phone field to the user model", []string{"phone", "field", "user", "model"}},
		{"Fix the CHECKOUT bug", []string{"fix", "checkout", "bug"}},
		{"the and for", nil},
		{"user user user", []string{"user"}},
		{"rename foo_bar to foo-baz", []string{"rename", "foo_bar", "foo-baz"}},
	}
	for _, tt := range tests {
		got := extractKeywords(tt.message)
		if len(got) != len(tt.want) {
			t.Errorf("extractKeywords(%q) = %v, want %v", tt.message, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("extractKeywords(%q) = %v, want %v", tt.message, got, tt.want)
				break
			}
		}
	}
}

func TestHasRouteKeywords(t *testing.T) {
	if !hasRouteKeywords("add a login endpoint") {
		t.Error("login endpoint not detected")
	}
	if hasRouteKeywords("tidy the invoice calculations") {
		t.Error("false positive on non-route message")
	}
}

func TestIsRouteRelated(t *testing.T) {
	if !isRouteRelated("change the profile page", nil) {
		t.Error("route vocabulary not detected")
	}
	if isRouteRelated("tidy the calculations", nil) {
		t.Error("nil intent without vocabulary should not be route related")
	}

	apiIntent := intent.NewIntent(intent.TypeRefactor, 0.9)
	apiIntent.Domain.Primary = "api"
	if !isRouteRelated("tidy the calculations", apiIntent) {
		t.Error("api domain should be route related")
	}

	feature := intent.NewIntent(intent.TypeFeatureRequest, 0.9)
	if !isRouteRelated("tidy the calculations", feature) {
		t.Error("feature requests should be route related")
	}

	refactor := intent.NewIntent(intent.TypeRefactor, 0.9)
	if isRouteRelated("tidy the calculations", refactor) {
		t.Error("plain refactor should not be route related")
	}
}

func TestEstimateTokensAndBudget(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Errorf("EstimateTokens = %d", got)
	}

	res := Result{Chunks: []Chunk{
		{Path: "a.php", Content: strings.Repeat("x", 400), RelevanceScore: 0.9},
		{Path: "b.php", Content: strings.Repeat("y", 400), RelevanceScore: 0.5},
		{Path: "c.php", Content: strings.Repeat("z", 400), RelevanceScore: 0.2},
	}}
	if res.TotalTokens() != 300 {
		t.Fatalf("TotalTokens = %d", res.TotalTokens())
	}

	trimmed := res.LimitToTokenBudget(200)
	if len(trimmed.Chunks) != 2 {
		t.Fatalf("kept %d chunks, want 2", len(trimmed.Chunks))
	}
	if trimmed.Chunks[0].Path != "a.php" || trimmed.Chunks[1].Path != "b.php" {
		t.Errorf("kept wrong chunks: %s, %s", trimmed.Chunks[0].Path, trimmed.Chunks[1].Path)
	}
	if limited, _ := trimmed.Metadata["token_limited"].(bool); !limited {
		t.Error("token_limited metadata missing")
	}
	if len(res.Chunks) != 3 {
		t.Error("receiver was mutated")
	}
}

func TestLimitToTokenBudgetTruncatesFinalChunk(t *testing.T) {
	res := Result{Chunks: []Chunk{
		{Path: "a.php", Content: strings.Repeat("x", 2000), RelevanceScore: 0.9},
	}}

	trimmed := res.LimitToTokenBudget(300)
	if len(trimmed.Chunks) != 1 {
		t.Fatalf("kept %d chunks", len(trimmed.Chunks))
	}
	if got := len(trimmed.Chunks[0].Content); got != 1200 {
		t.Errorf("truncated length = %d, want 1200", got)
	}
}

func TestLimitToTokenBudgetUnderBudgetUnchanged(t *testing.T) {
	res := Result{Chunks: []Chunk{{Path: "a.php", Content: "short"}}}
	if got := res.LimitToTokenBudget(100); len(got.Chunks) != 1 || got.Metadata != nil {
		t.Errorf("under-budget result altered: %+v", got)
	}
}

func TestFileTypeScore(t *testing.T) {
	tests := []struct {
		path string
		typ  intent.Type
		want float64
	}{
		{"app/Models/User.php", intent.TypeFeatureRequest, 1.0},
		{"routes/web.php", intent.TypeFeatureRequest, 0.6},
		{"tests/Feature/CartTest.php", intent.TypeTestRequest, 1.0},
		{"resources/js/Cart.vue", intent.TypeUIComponent, 1.0},
		{"README.md", intent.TypeFeatureRequest, 0},
		{"app/Models/User.php", intent.TypeQuestion, 0},
	}
	for _, tt := range tests {
		if got := fileTypeScore(tt.path, tt.typ); got != tt.want {
			t.Errorf("fileTypeScore(%q, %s) = %f, want %f", tt.path, tt.typ, got, tt.want)
		}
	}
}

func TestDomainScore(t *testing.T) {
	if got := domainScore("app/Models/User.php", "app/Models", nil); got != 1.0 {
		t.Errorf("primary match = %f", got)
	}
	if got := domainScore("routes/api.php", "app/Models", []string{"routes"}); got != 0.5 {
		t.Errorf("secondary match = %f", got)
	}
	if got := domainScore("config/app.php", "app/Models", []string{"routes"}); got != 0 {
		t.Errorf("no match = %f", got)
	}
}

func TestPerFileLimit(t *testing.T) {
	if got := perFileLimit(15); got != 5 {
		t.Errorf("perFileLimit(15) = %d", got)
	}
	if got := perFileLimit(6); got != 3 {
		t.Errorf("perFileLimit(6) = %d", got)
	}
}

func TestSelectDiverseChunksCapsPerFile(t *testing.T) {
	e := NewEngine(config.RetrievalConfig{}, config.GraphConfig{}, nil, logging.Silent())

	var scored []scoredChunk
	for i := 0; i < 8; i++ {
		scored = append(scored, scoredChunk{
			record: index.ChunkRecord{Path: "hot.php", StartLine: i * 10, EndLine: i*10 + 9},
			score:  0.9,
		})
	}
	scored = append(scored, scoredChunk{
		record: index.ChunkRecord{Path: "cold.php", StartLine: 1, EndLine: 10},
		score:  0.2,
	})

	selected := e.selectDiverseChunks(scored, 6)
	perFile := map[string]int{}
	for _, sc := range selected {
		perFile[sc.record.Path]++
	}
	if perFile["hot.php"] > 3 {
		t.Errorf("hot file took %d slots", perFile["hot.php"])
	}
	if perFile["cold.php"] != 1 {
		t.Errorf("cold file not selected: %v", perFile)
	}
}

func TestChunkExtentsAndCompleteFile(t *testing.T) {
	chunks := []index.ChunkRecord{
		{Path: "a.php", StartLine: 1, EndLine: 40},
		{Path: "a.php", StartLine: 41, EndLine: 80},
		{Path: "b.php", StartLine: 1, EndLine: 12},
	}
	extents := chunkExtents(chunks)
	if extents["a.php"] != 80 || extents["b.php"] != 12 {
		t.Errorf("extents = %v", extents)
	}

	if isCompleteFileChunk(chunks[0], extents) {
		t.Error("partial chunk reported complete")
	}
	if !isCompleteFileChunk(chunks[2], extents) {
		t.Error("whole-file chunk not reported complete")
	}
}

func setupRetrieval(t *testing.T) (*Engine, *project.Project, *Snapshot) {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"app/Models/User.php":                     "<?php\nclass User extends Model\n{\n    protected $fillable = ['name', 'email'];\n}\n",
		"app/Http/Controllers/CartController.php": "<?php\nclass CartController\n{\n    public function store() {}\n}\n",
		"config/services.php":                     "<?php\nreturn ['stripe' => ['secret' => env('STRIPE_SECRET')]];\n",
	}
	for path, content := range files {
		abs := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	proj := &project.Project{
		ID:        "proj-1",
		Name:      "shop",
		Root:      root,
		TechStack: []string{"laravel"},
		DomainPaths: map[string]string{
			"users": "app/Models",
		},
	}

	snap := &Snapshot{
		ScanID: "scan-1",
		Files: []index.FileRecord{
			{Path: "app/Models/User.php", Language: "php", Symbols: []string{"User"}},
			{Path: "app/Http/Controllers/CartController.php", Language: "php", Symbols: []string{"CartController"}},
			{Path: "config/services.php", Language: "php"},
		},
		Chunks: []index.ChunkRecord{
			{Path: "app/Models/User.php", StartLine: 1, EndLine: 5, Symbols: []string{"User"}},
			{Path: "app/Http/Controllers/CartController.php", StartLine: 1, EndLine: 5, Symbols: []string{"CartController"}, UsedSymbols: []string{"Cart"}},
			{Path: "config/services.php", StartLine: 1, EndLine: 2},
		},
	}

	cfg := config.RetrievalConfig{
		MaxChunks:       10,
		MinScore:        0.05,
		LargeChunkLines: 300,
		Weights:         config.DefaultScoringWeights(),
	}
	e := NewEngine(cfg, config.GraphConfig{MaxDepth: 3}, redact.NewRedactor(logging.Silent()), logging.Silent())
	return e, proj, snap
}

func TestRetrieveFindsMentionedFile(t *testing.T) {
	e, proj, snap := setupRetrieval(t)

	it := intent.NewIntent(intent.TypeFeatureRequest, 0.9)
	it.Entities.Files = []string{"User.php"}
	it.Entities.Symbols = []string{"User"}
	it.Domain.Primary = "users"

	res := e.Retrieve(context.Background(), proj, snap, it, "add a phone field to the user model", Options{})
	if len(res.Chunks) == 0 {
		t.Fatal("no chunks retrieved")
	}
	if res.Chunks[0].Path != "app/Models/User.php" {
		t.Errorf("top chunk = %s", res.Chunks[0].Path)
	}
	if !strings.Contains(res.Chunks[0].Content, "$fillable") {
		t.Errorf("chunk content not materialized: %q", res.Chunks[0].Content)
	}
	if !res.Chunks[0].IsCompleteFile {
		t.Error("whole-file chunk not flagged complete")
	}

	found := false
	for _, ep := range res.EntryPoints {
		if ep == "app/Models/User.php" {
			found = true
		}
	}
	if !found {
		t.Errorf("entry points = %v", res.EntryPoints)
	}
	if res.Metadata["scan_id"] != "scan-1" {
		t.Errorf("metadata = %v", res.Metadata)
	}
}

func TestRetrieveAppliesConfiguredTokenBudget(t *testing.T) {
	_, proj, snap := setupRetrieval(t)

	cfg := config.RetrievalConfig{
		MaxChunks:       10,
		TokenBudget:     10,
		MinScore:        0.05,
		LargeChunkLines: 300,
		Weights:         config.DefaultScoringWeights(),
	}
	e := NewEngine(cfg, config.GraphConfig{MaxDepth: 3}, redact.NewRedactor(logging.Silent()), logging.Silent())

	it := intent.NewIntent(intent.TypeFeatureRequest, 0.9)
	it.Entities.Files = []string{"User.php"}
	it.Domain.Primary = "users"

	// No explicit budget in the options, exactly as the orchestrator calls it.
	res := e.Retrieve(context.Background(), proj, snap, it, "add a phone field to the user model",
		Options{IncludeDependencies: true})

	if res.Metadata["token_limited"] != true {
		t.Fatalf("token_limited = %v, want true", res.Metadata["token_limited"])
	}
	if got := res.TotalTokens(); got > cfg.TokenBudget {
		t.Errorf("retrieved %d tokens against budget %d", got, cfg.TokenBudget)
	}
}

func TestRetrieveNilSnapshot(t *testing.T) {
	e, proj, _ := setupRetrieval(t)

	res := e.Retrieve(context.Background(), proj, nil, nil, "anything", Options{})
	if len(res.Chunks) != 0 {
		t.Errorf("chunks = %v", res.Chunks)
	}
	if _, ok := res.Metadata["error"]; !ok {
		t.Error("error metadata missing")
	}
}

func TestRetrieveRedactsSecrets(t *testing.T) {
	e, proj, snap := setupRetrieval(t)

	secret := "STRIPE_KEY=9fQz2Lx7KmP4tR8w\n"
	if err := os.WriteFile(filepath.Join(proj.Root, "config", "services.php"), []byte(secret), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	it := intent.NewIntent(intent.TypeFeatureRequest, 0.9)
	it.Entities.Files = []string{"services.php"}

	res := e.Retrieve(context.Background(), proj, snap, it, "update the stripe services config", Options{})
	for _, c := range res.Chunks {
		if c.Path == "config/services.php" && strings.Contains(c.Content, "9fQz2Lx7KmP4tR8w") {
			t.Errorf("secret leaked: %q", c.Content)
		}
	}
}

func TestRetrieveUnreadableChunkSkipped(t *testing.T) {
	e, proj, snap := setupRetrieval(t)
	snap.Chunks = append(snap.Chunks, index.ChunkRecord{
		Path: "app/Models/Gone.php", StartLine: 1, EndLine: 5, Symbols: []string{"Gone"},
	})

	it := intent.NewIntent(intent.TypeFeatureRequest, 0.9)
	it.Entities.Symbols = []string{"Gone"}
	it.Domain.Primary = "users"

	res := e.Retrieve(context.Background(), proj, snap, it, "change the gone model", Options{})
	for _, c := range res.Chunks {
		if c.Path == "app/Models/Gone.php" {
			t.Error("unreadable chunk materialized")
		}
	}
}
