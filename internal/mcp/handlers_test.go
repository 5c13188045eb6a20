package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/electsim/internal/config"
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/roster"
	"github.com/nvandessel/electsim/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.electsim/
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))
}

func testDefaults() *config.SimConfig {
	cfg := config.Default()
	cfg.Network = network.Config{Nodes: 200, MeanDegree: 10, Beta: 0.3, Dimensions: 1}
	cfg.Election.Seed = 11
	cfg.Election.Rounds = 2
	return cfg
}

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	isolateHome(t)
	auditDir := t.TempDir()

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Store:    store.NewMemoryRunStore(),
		Defaults: testDefaults(),
		AuditDir: auditDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, auditDir
}

func ptr[T any](v T) *T { return &v }

func TestNewServer(t *testing.T) {
	server, _ := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil || server.runner == nil {
		t.Error("Server store or runner is nil")
	}
	if server.auditLogger == nil {
		t.Error("audit logger should be open when AuditDir is set")
	}
}

func TestNewServer_Defaults(t *testing.T) {
	isolateHome(t)
	server, err := NewServer(&Config{Name: "test", Version: "v0"})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.defaults.Network.Nodes != config.Default().Network.Nodes {
		t.Errorf("default nodes = %d", server.defaults.Network.Nodes)
	}
	if server.auditLogger != nil {
		t.Error("audit logger should be nil without AuditDir")
	}
}

func TestNewServer_InvalidDefaults(t *testing.T) {
	cfg := testDefaults()
	cfg.Election.Rounds = 0
	if _, err := NewServer(&Config{Name: "test", Defaults: cfg}); err == nil {
		t.Fatal("expected error for invalid defaults")
	}
}

func TestHandleRun(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{})
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}

	if out.ID == "" {
		t.Error("expected run ID")
	}
	if out.Seed != 11 || out.Agents != 200 || out.System != "fptp" {
		t.Errorf("run = seed %d, %d agents, %s", out.Seed, out.Agents, out.System)
	}
	if len(out.Parties) != 2 {
		t.Fatalf("len(Parties) = %d, want 2", len(out.Parties))
	}
	if out.Parties[0].Votes+out.Parties[1].Votes != 200 {
		t.Errorf("votes = %d + %d, want 200", out.Parties[0].Votes, out.Parties[1].Votes)
	}
	if len(out.Elections) != 2 {
		t.Errorf("len(Elections) = %d, want 2", len(out.Elections))
	}
	if out.Stats == nil || out.Stats.Nodes != 200 {
		t.Errorf("Stats = %+v", out.Stats)
	}
	if !strings.Contains(out.Message, out.Winner) {
		t.Errorf("Message = %q, want winner %q", out.Message, out.Winner)
	}

	if _, err := server.store.GetRun(ctx, out.ID); err != nil {
		t.Errorf("run was not stored: %v", err)
	}
}

func TestHandleRun_Overrides(t *testing.T) {
	server, _ := setupTestServer(t)

	_, out, err := server.handleRun(context.Background(), nil, RunInput{
		Name:      "custom",
		Seed:      ptr(uint64(3)),
		Agents:    ptr(120),
		System:    "two-round",
		Rounds:    ptr(1),
		Parties:   []string{"A", "B", "C"},
		NewVoters: ptr(0.5),
	})
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if out.Name != "custom" || out.Seed != 3 || out.Agents != 120 || out.System != "two-round" {
		t.Errorf("out = %+v", out)
	}
	if len(out.Parties) != 3 || len(out.Elections) != 1 {
		t.Errorf("parties = %d, elections = %d; want 3, 1", len(out.Parties), len(out.Elections))
	}
	runoff := 0
	for _, p := range out.Parties {
		if p.RunoffVotes != nil {
			runoff += *p.RunoffVotes
		}
	}
	if runoff != 120 {
		t.Errorf("runoff votes = %d, want 120", runoff)
	}
}

func TestHandleRun_Roster(t *testing.T) {
	server, _ := setupTestServer(t)
	r, err := roster.Lookup("nl2023")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	_, out, err := server.handleRun(context.Background(), nil, RunInput{Roster: "NL2023", Rounds: ptr(1)})
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if out.Name != "nl2023" {
		t.Errorf("Name = %q, want nl2023", out.Name)
	}
	if len(out.Parties) != len(r.Parties) {
		t.Fatalf("len(Parties) = %d, want %d", len(out.Parties), len(r.Parties))
	}
	for _, p := range out.Parties {
		if p.Reference == "" {
			t.Errorf("party %s has no reference share", p.Party)
		}
	}
}

func TestHandleRun_Batch(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleRun(ctx, nil, RunInput{Runs: 3, Rounds: ptr(1)})
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if out.Batch == nil {
		t.Fatal("expected batch summary")
	}
	if out.ID != "" || len(out.Parties) != 0 {
		t.Error("batch output should not carry single-run fields")
	}
	if out.Seed != 11 || out.Batch.LastSeed != 13 || out.Batch.Runs != 3 {
		t.Errorf("seeds %d..%d over %d runs", out.Seed, out.Batch.LastSeed, out.Batch.Runs)
	}
	if len(out.Batch.RunIDs) != 3 {
		t.Errorf("len(RunIDs) = %d, want 3", len(out.Batch.RunIDs))
	}
	wins := 0
	for _, p := range out.Batch.Parties {
		wins += p.Wins
	}
	if wins != 3 {
		t.Errorf("total wins = %d, want 3", wins)
	}
	if out.Winner == "" || !strings.Contains(out.Message, "Batch of 3 runs") {
		t.Errorf("winner %q, message %q", out.Winner, out.Message)
	}

	summaries, err := server.store.ListRuns(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("stored runs = %d, want 3", len(summaries))
	}
}

func TestHandleRun_Errors(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name string
		args RunInput
	}{
		{"roster and parties", RunInput{Roster: "nl2023", Parties: []string{"A"}}},
		{"unknown roster", RunInput{Roster: "atlantis"}},
		{"unknown system", RunInput{System: "approval"}},
		{"negative runs", RunInput{Runs: -1}},
		{"too many runs", RunInput{Runs: MaxBatchRuns + 1}},
		{"odd degree", RunInput{MeanDegree: ptr(7)}},
		{"zero rounds", RunInput{Rounds: ptr(0)}},
		{"new voters out of range", RunInput{NewVoters: ptr(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleRun(context.Background(), nil, tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}

	summaries, err := server.store.ListRuns(context.Background(), store.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("failed runs were stored: %d", len(summaries))
	}
}

func TestHandleRun_RunsBounds(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	for _, runs := range []int{0, 1} {
		_, out, err := server.handleRun(ctx, nil, RunInput{Runs: runs, Rounds: ptr(1)})
		if err != nil {
			t.Fatalf("handleRun(runs=%d): %v", runs, err)
		}
		if out.Batch != nil || out.ID == "" {
			t.Errorf("runs=%d: Batch = %v, ID = %q; want a single stored run", runs, out.Batch, out.ID)
		}
	}

	_, _, err := server.handleRun(ctx, nil, RunInput{Runs: -1})
	if err == nil || !strings.Contains(err.Error(), "between 0 and") {
		t.Errorf("handleRun(runs=-1) error = %v, want bounds message", err)
	}

	summaries, err := server.store.ListRuns(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("stored runs = %d, want 2", len(summaries))
	}
}

func TestHandleNetwork(t *testing.T) {
	server, _ := setupTestServer(t)

	_, out, err := server.handleNetwork(context.Background(), nil, NetworkInput{
		Agents:     ptr(100),
		MeanDegree: ptr(6),
		Beta:       ptr(0.0),
		Sources:    ptr(0),
	})
	if err != nil {
		t.Fatalf("handleNetwork failed: %v", err)
	}
	if out.Stats.Nodes != 100 || out.Stats.Edges != 300 {
		t.Errorf("stats = %d nodes, %d edges; want 100, 300", out.Stats.Nodes, out.Stats.Edges)
	}
	if out.Stats.MinDegree != 6 || out.Stats.MaxDegree != 6 {
		t.Errorf("ring lattice degrees = %d..%d, want 6..6", out.Stats.MinDegree, out.Stats.MaxDegree)
	}
	if out.Config.Nodes != 100 || out.DOT != "" || out.Graph != nil {
		t.Errorf("out = %+v", out)
	}
}

func TestHandleNetwork_Formats(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleNetwork(ctx, nil, NetworkInput{Agents: ptr(30), MeanDegree: ptr(4), Format: "dot"})
	if err != nil {
		t.Fatalf("dot: %v", err)
	}
	if !strings.HasPrefix(out.DOT, "graph electsim {") || strings.Contains(out.DOT, "cluster_legend") {
		t.Errorf("DOT = %q", out.DOT)
	}

	_, out, err = server.handleNetwork(ctx, nil, NetworkInput{Agents: ptr(30), MeanDegree: ptr(4), Format: "json"})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Graph == nil || out.Graph.NodeCount != 30 || out.Graph.EdgeCount != 60 {
		t.Errorf("Graph = %+v", out.Graph)
	}

	if _, _, err := server.handleNetwork(ctx, nil, NetworkInput{Format: "svg"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, _, err := server.handleNetwork(ctx, nil, NetworkInput{Agents: ptr(3), MeanDegree: ptr(4)}); err == nil {
		t.Error("expected error for degree > agents")
	}
}

func TestHandleRuns(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleRuns(ctx, nil, RunsInput{})
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if out.Count != 0 || !strings.Contains(out.Message, "No runs") {
		t.Errorf("empty list = %+v", out)
	}

	var ids []string
	for _, name := range []string{"alpha", "beta", "alpha"} {
		_, run, err := server.handleRun(ctx, nil, RunInput{Name: name, Rounds: ptr(1)})
		if err != nil {
			t.Fatalf("handleRun: %v", err)
		}
		ids = append(ids, run.ID)
	}

	t.Run("list", func(t *testing.T) {
		_, out, err := server.handleRuns(ctx, nil, RunsInput{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if out.Count != 3 || len(out.Runs) != 3 {
			t.Fatalf("Count = %d, len(Runs) = %d; want 3", out.Count, len(out.Runs))
		}
		if out.Runs[0].Winner == "" || out.Runs[0].CreatedAt == "" {
			t.Errorf("first item = %+v", out.Runs[0])
		}
	})

	t.Run("filter and limit", func(t *testing.T) {
		_, out, err := server.handleRuns(ctx, nil, RunsInput{Name: "alpha"})
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if out.Count != 2 {
			t.Errorf("alpha runs = %d, want 2", out.Count)
		}
		_, out, err = server.handleRuns(ctx, nil, RunsInput{Limit: 1})
		if err != nil {
			t.Fatalf("limit: %v", err)
		}
		if out.Count != 1 {
			t.Errorf("limited runs = %d, want 1", out.Count)
		}
	})

	t.Run("show", func(t *testing.T) {
		_, out, err := server.handleRuns(ctx, nil, RunsInput{ID: ids[1]})
		if err != nil {
			t.Fatalf("show: %v", err)
		}
		if out.Run == nil || out.Run.ID != ids[1] || out.Run.Name != "beta" {
			t.Fatalf("Run = %+v", out.Run)
		}
		if len(out.Run.Parties) != 2 || len(out.Run.Elections) != 1 {
			t.Errorf("stored run = %+v", out.Run)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, _, err := server.handleRuns(ctx, nil, RunsInput{Delete: true}); err == nil {
			t.Error("expected error deleting without id")
		}
		if _, _, err := server.handleRuns(ctx, nil, RunsInput{ID: ids[0], Delete: true}); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_, _, err := server.handleRuns(ctx, nil, RunsInput{ID: ids[0]})
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("show deleted run error = %v, want ErrNotFound", err)
		}
	})
}

func TestRostersResource(t *testing.T) {
	server, _ := setupTestServer(t)

	res, err := server.handleRostersResource(context.Background(), &sdk.ReadResourceRequest{
		Params: &sdk.ReadResourceParams{URI: rostersURI},
	})
	if err != nil {
		t.Fatalf("handleRostersResource: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("len(Contents) = %d, want 1", len(res.Contents))
	}
	text := res.Contents[0].Text
	for _, name := range roster.Names() {
		if !strings.Contains(text, "## "+name) {
			t.Errorf("resource missing roster %s", name)
		}
	}
}

func TestRunResource(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, run, err := server.handleRun(ctx, nil, RunInput{Name: "resource"})
	if err != nil {
		t.Fatalf("handleRun: %v", err)
	}

	res, err := server.handleRunResource(ctx, &sdk.ReadResourceRequest{
		Params: &sdk.ReadResourceParams{URI: runsPrefix + run.ID},
	})
	if err != nil {
		t.Fatalf("handleRunResource: %v", err)
	}
	if text := res.Contents[0].Text; !strings.Contains(text, "Run "+run.ID+" (resource)") {
		t.Errorf("report = %q", text)
	}

	tests := []struct {
		name string
		uri  string
	}{
		{"unknown run", runsPrefix + "missing"},
		{"empty id", runsPrefix},
		{"wrong scheme", "other://runs/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.handleRunResource(ctx, &sdk.ReadResourceRequest{
				Params: &sdk.ReadResourceParams{URI: tt.uri},
			})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestToolCallsAreAudited(t *testing.T) {
	server, auditDir := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleRun(ctx, nil, RunInput{Name: "private", Seed: ptr(uint64(5)), Parties: []string{"X", "Y"}}); err != nil {
		t.Fatalf("handleRun: %v", err)
	}
	if _, _, err := server.handleRuns(ctx, nil, RunsInput{ID: "missing"}); err == nil {
		t.Fatal("expected error for missing run")
	}
	server.auditLogger.Close()

	f, err := os.Open(filepath.Join(auditDir, AuditFileName))
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit line: %v", err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}

	run := entries[0]
	if run.Tool != "electsim_run" || run.Status != "success" {
		t.Errorf("first entry = %+v", run)
	}
	if run.Params["seed"] != "5" || run.Params["name"] != "(set)" || run.Params["parties"] != "(set)" {
		t.Errorf("params = %v", run.Params)
	}
	if run.Params["_param_count"] != "3" {
		t.Errorf("_param_count = %q, want 3", run.Params["_param_count"])
	}
	for _, v := range run.Params {
		if strings.Contains(v, "private") || strings.Contains(v, "X") {
			t.Errorf("audit leaked value %q", v)
		}
	}

	if lookup := entries[1]; lookup.Tool != "electsim_runs" || lookup.Status != "error" || lookup.Error == "" {
		t.Errorf("second entry = %+v", lookup)
	}
}

func TestClientSession(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"electsim_run", "electsim_network", "electsim_runs"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}

	res, err := session.CallTool(ctx, &sdk.CallToolParams{
		Name:      "electsim_run",
		Arguments: map[string]any{"agents": 60, "mean_degree": 6, "rounds": 1},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}
	data, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out RunOutput
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
	if out.Agents != 60 || len(out.Parties) != 2 {
		t.Errorf("structured output = %+v", out)
	}
}
