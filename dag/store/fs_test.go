package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecord(id string) NodeRecord {
	score := 0.8
	return NodeRecord{
		ID:           id,
		ParentIDs:    []string{},
		UserPrompt:   "Write a haiku about rivers",
		SystemPrompt: "You are a poet",
		Model:        "gpt-4o",
		Score:        &score,
		Type:         "standard",
		Children:     []string{},
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Metadata:     map[string]interface{}{"source": "test"},
		Plan: []StepRecord{
			{Order: 1, Text: "Pick an image"},
			{Order: 2, Text: "Write three lines"},
		},
		Output: "Water finds its way\n",
		Diff:   "",
	}
}

func TestFSStoreNodeRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rec := sampleRecord("node-1")

	if err := s.SaveNode(ctx, rec); err != nil {
		t.Fatalf("SaveNode() error: %v", err)
	}

	got, err := s.LoadNode(ctx, "node-1")
	if err != nil {
		t.Fatalf("LoadNode() error: %v", err)
	}

	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if got.UserPrompt != rec.UserPrompt {
		t.Errorf("UserPrompt = %q, want %q", got.UserPrompt, rec.UserPrompt)
	}
	if got.Output != rec.Output {
		t.Errorf("Output = %q, want %q", got.Output, rec.Output)
	}
	if got.Score == nil || *got.Score != 0.8 {
		t.Errorf("Score = %v, want 0.8", got.Score)
	}
	if len(got.Plan) != 2 || got.Plan[0].Text != "Pick an image" {
		t.Errorf("Plan = %v, want 2 steps starting with 'Pick an image'", got.Plan)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestFSStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	if err := s.SaveNode(context.Background(), sampleRecord("node-1")); err != nil {
		t.Fatalf("SaveNode() error: %v", err)
	}

	for _, name := range []string{"output.txt", "plan.json", "diff.patch", "meta.json"} {
		path := filepath.Join(dir, "nodes", "node-1", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestFSStoreLoadNodeNotFound(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	_, err = s.LoadNode(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadNode() error = %v, want ErrNotFound", err)
	}
}

func TestFSStoreNodeExists(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	exists, err := s.NodeExists(ctx, "node-1")
	if err != nil {
		t.Fatalf("NodeExists() error: %v", err)
	}
	if exists {
		t.Error("NodeExists() = true before save")
	}

	if err := s.SaveNode(ctx, sampleRecord("node-1")); err != nil {
		t.Fatalf("SaveNode() error: %v", err)
	}

	exists, err = s.NodeExists(ctx, "node-1")
	if err != nil {
		t.Fatalf("NodeExists() error: %v", err)
	}
	if !exists {
		t.Error("NodeExists() = false after save")
	}
}

func TestFSStoreGraphRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	doc := NewGraphDoc()
	doc.Nodes["node-1"] = sampleRecord("node-1")
	doc.Nodes["node-2"] = sampleRecord("node-2")
	doc.Edges = append(doc.Edges, EdgeRecord{From: "node-1", To: "node-2"})

	if err := s.SaveGraph(ctx, doc); err != nil {
		t.Fatalf("SaveGraph() error: %v", err)
	}

	got, err := s.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph() error: %v", err)
	}
	if len(got.Nodes) != 2 {
		t.Errorf("loaded %d nodes, want 2", len(got.Nodes))
	}
	if len(got.Edges) != 1 || got.Edges[0].From != "node-1" || got.Edges[0].To != "node-2" {
		t.Errorf("Edges = %v, want [{node-1 node-2}]", got.Edges)
	}
}

func TestFSStoreLoadGraphEmpty(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	doc, err := s.LoadGraph(context.Background())
	if err != nil {
		t.Fatalf("LoadGraph() error: %v", err)
	}
	if len(doc.Nodes) != 0 || len(doc.Edges) != 0 {
		t.Errorf("LoadGraph() on empty store = %v, want empty doc", doc)
	}
}

func TestFSStorePlanFileWins(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.SaveNode(ctx, sampleRecord("node-1")); err != nil {
		t.Fatalf("SaveNode() error: %v", err)
	}

	// Overwrite plan.json out of band; it is authoritative over the plan
	// embedded in meta.json.
	planPath := filepath.Join(dir, "nodes", "node-1", "plan.json")
	if err := os.WriteFile(planPath, []byte(`[{"order":1,"text":"Edited"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	got, err := s.LoadNode(ctx, "node-1")
	if err != nil {
		t.Fatalf("LoadNode() error: %v", err)
	}
	if len(got.Plan) != 1 || got.Plan[0].Text != "Edited" {
		t.Errorf("Plan = %v, want the edited plan.json content", got.Plan)
	}
}
