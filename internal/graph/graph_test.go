package graph

import (
	"fmt"
	"testing"

	"aide/internal/config"
	"aide/internal/index"
	"aide/internal/logging"
)

func TestAddEdgeRules(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Path: "a.php"})
	g.AddNode(&Node{Path: "b.php"})

	if g.AddEdge("a.php", "a.php", EdgeImports) {
		t.Error("self-edge accepted")
	}
	if g.AddEdge("a.php", "missing.php", EdgeImports) {
		t.Error("edge to unknown node accepted")
	}
	if !g.AddEdge("a.php", "b.php", EdgeImports) {
		t.Error("valid edge rejected")
	}
	if g.AddEdge("a.php", "b.php", EdgeImports) {
		t.Error("duplicate edge accepted")
	}
	if !g.AddEdge("a.php", "b.php", EdgeExtends) {
		t.Error("second relationship type between the same pair rejected")
	}
	if g.NumEdges() != 2 {
		t.Errorf("edge count = %d", g.NumEdges())
	}
}

func TestWeightFor(t *testing.T) {
	if WeightFor(EdgeImports) != 1.0 || WeightFor(EdgeReferences) != 0.5 {
		t.Error("edge weights changed")
	}
	if WeightFor(EdgeExtends) <= WeightFor(EdgeUsesTrait) {
		t.Error("extends should outweigh trait use")
	}
}

func TestRelatedTraversal(t *testing.T) {
	g := NewGraph()
	for _, p := range []string{"a.php", "b.php", "c.php", "d.php"} {
		g.AddNode(&Node{Path: p})
	}
	g.AddEdge("a.php", "b.php", EdgeImports)    // depth 1, weight 1.0
	g.AddEdge("b.php", "c.php", EdgeExtends)    // depth 2, weight 0.9
	g.AddEdge("c.php", "d.php", EdgeReferences) // depth 3, beyond cap

	related := g.Related("a.php", 2)
	if len(related) != 2 {
		t.Fatalf("related = %v", related)
	}
	if related[0].Path != "b.php" || related[0].Depth != 1 || related[0].Weight != 1.0 {
		t.Errorf("first hop = %+v", related[0])
	}
	if related[1].Path != "c.php" || related[1].Depth != 2 {
		t.Errorf("second hop = %+v", related[1])
	}
	if related[1].Weight != 0.9 {
		t.Errorf("cumulative weight = %f", related[1].Weight)
	}
}

func TestRelatedStrongestRelationWins(t *testing.T) {
	g := NewGraph()
	for _, p := range []string{"origin.php", "mid1.php", "mid2.php", "target.php"} {
		g.AddNode(&Node{Path: p})
	}
	// target is reachable through a weak reference first in insertion order
	// and a strong import second; the traversal must prefer the import.
	g.AddEdge("origin.php", "mid1.php", EdgeReferences)
	g.AddEdge("origin.php", "mid2.php", EdgeImports)
	g.AddEdge("mid1.php", "target.php", EdgeImports)
	g.AddEdge("mid2.php", "target.php", EdgeImports)

	related := g.Related("origin.php", 2)
	for _, r := range related {
		if r.Path == "target.php" {
			if r.Weight != 1.0 {
				t.Errorf("target reached through weaker path: %+v", r)
			}
			return
		}
	}
	t.Error("target not reached")
}

func TestRelatedUnknownOrigin(t *testing.T) {
	g := NewGraph()
	if got := g.Related("nope.php", 3); got != nil {
		t.Errorf("related = %v", got)
	}
}

func buildTestGraph(t *testing.T, files []index.FileRecord, chunks []index.ChunkRecord) *Graph {
	t.Helper()
	b := NewBuilder(config.GraphConfig{
		MaxNodes:  100,
		MaxDepth:  3,
		RootAlias: "@/",
		RootPath:  "resources/js/",
	}, logging.Silent())
	return b.Build(files, chunks)
}

func TestBuildInheritanceEdges(t *testing.T) {
	files := []index.FileRecord{
		{Path: "app/Models/Model.php", Language: "php", Symbols: []string{"Model"}},
		{Path: "app/Models/User.php", Language: "php", Symbols: []string{"User"}, Extends: []string{"Model"}},
		{Path: "app/Contracts/Billable.php", Language: "php", Symbols: []string{"Billable"}},
		{Path: "app/Models/Team.php", Language: "php", Symbols: []string{"Team"}, Extends: []string{"Model"}, Implements: []string{"Billable"}},
	}

	g := buildTestGraph(t, files, nil)

	assertEdge(t, g, "app/Models/User.php", "app/Models/Model.php", EdgeExtends)
	assertEdge(t, g, "app/Models/Team.php", "app/Models/Model.php", EdgeExtends)
	assertEdge(t, g, "app/Models/Team.php", "app/Contracts/Billable.php", EdgeImplements)
}

func TestBuildReferenceEdgesFromChunks(t *testing.T) {
	files := []index.FileRecord{
		{Path: "app/Models/User.php", Language: "php", Symbols: []string{"User"}},
		{Path: "app/Http/Controllers/UserController.php", Language: "php", Symbols: []string{"UserController"}},
	}
	chunks := []index.ChunkRecord{
		{Path: "app/Http/Controllers/UserController.php", StartLine: 1, EndLine: 20, UsedSymbols: []string{"User"}},
	}

	g := buildTestGraph(t, files, chunks)
	assertEdge(t, g, "app/Http/Controllers/UserController.php", "app/Models/User.php", EdgeReferences)
}

func TestBuildRelativeImportEdges(t *testing.T) {
	files := []index.FileRecord{
		{Path: "resources/js/Pages/Cart.vue", Language: "vue", Imports: []string{"../components/Button"}},
		{Path: "resources/js/components/Button.vue", Language: "vue", Symbols: []string{"Button"}},
	}

	g := buildTestGraph(t, files, nil)
	assertEdge(t, g, "resources/js/Pages/Cart.vue", "resources/js/components/Button.vue", EdgeImports)
}

func TestBuildAliasImportEdges(t *testing.T) {
	files := []index.FileRecord{
		{Path: "resources/js/Pages/Cart.vue", Language: "vue", Imports: []string{"@/components/Button"}},
		{Path: "resources/js/components/Button.vue", Language: "vue", Symbols: []string{"Button"}},
	}

	g := buildTestGraph(t, files, nil)
	assertEdge(t, g, "resources/js/Pages/Cart.vue", "resources/js/components/Button.vue", EdgeImports)
}

func TestBuildExternalImportsIgnored(t *testing.T) {
	files := []index.FileRecord{
		{Path: "resources/js/app.js", Language: "js", Imports: []string{"vue", "axios"}},
	}

	g := buildTestGraph(t, files, nil)
	if g.NumEdges() != 0 {
		t.Errorf("external imports produced %d edges", g.NumEdges())
	}
}

func TestBuildNodeCap(t *testing.T) {
	b := NewBuilder(config.GraphConfig{MaxNodes: 5}, logging.Silent())

	var files []index.FileRecord
	for i := 0; i < 10; i++ {
		files = append(files, index.FileRecord{Path: fmt.Sprintf("f%d.php", i)})
	}

	g := b.Build(files, nil)
	if g.NumNodes() != 5 {
		t.Errorf("nodes = %d", g.NumNodes())
	}
	if !g.Truncated() {
		t.Error("truncation not flagged")
	}
}

func TestMergeUnique(t *testing.T) {
	got := mergeUnique([]string{"a", "b"}, []string{"b", "c", "", "a"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func assertEdge(t *testing.T, g *Graph, from, to string, typ EdgeType) {
	t.Helper()
	for _, e := range g.OutEdges(from) {
		if e.To == to && e.Type == typ {
			return
		}
	}
	t.Errorf("missing edge %s -[%s]-> %s (have %v)", from, typ, to, g.OutEdges(from))
}
