package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSQLiteStoreNodeRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := sampleRecord("node-1")

	if err := s.SaveNode(ctx, rec); err != nil {
		t.Fatalf("SaveNode() error: %v", err)
	}

	got, err := s.LoadNode(ctx, "node-1")
	if err != nil {
		t.Fatalf("LoadNode() error: %v", err)
	}
	if got.ID != rec.ID || got.Output != rec.Output || got.Diff != rec.Diff {
		t.Errorf("LoadNode() = %+v, want round-trip of %+v", got, rec)
	}
	if len(got.Plan) != 2 || got.Plan[1].Text != "Write three lines" {
		t.Errorf("Plan = %v, want original 2 steps", got.Plan)
	}
}

func TestSQLiteStoreSaveNodeOverwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord("node-1")
	if err := s.SaveNode(ctx, rec); err != nil {
		t.Fatalf("SaveNode() error: %v", err)
	}

	rec.Output = "Revised output"
	rec.Diff = "--- A\n+++ B\n"
	if err := s.SaveNode(ctx, rec); err != nil {
		t.Fatalf("SaveNode() overwrite error: %v", err)
	}

	got, err := s.LoadNode(ctx, "node-1")
	if err != nil {
		t.Fatalf("LoadNode() error: %v", err)
	}
	if got.Output != "Revised output" {
		t.Errorf("Output = %q, want overwritten value", got.Output)
	}
	if got.Diff != rec.Diff {
		t.Errorf("Diff = %q, want overwritten value", got.Diff)
	}
}

func TestSQLiteStoreLoadNodeNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.LoadNode(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadNode() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreNodeExists(t *testing.T) {
	s := newTestSQLiteStore(t)
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

func TestSQLiteStoreGraphRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
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
	if len(got.Nodes) != 2 || len(got.Edges) != 1 {
		t.Errorf("LoadGraph() = %d nodes, %d edges; want 2, 1", len(got.Nodes), len(got.Edges))
	}
}

func TestSQLiteStoreSaveGraphReplaces(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := NewGraphDoc()
	doc.Nodes["node-1"] = sampleRecord("node-1")
	doc.Nodes["node-2"] = sampleRecord("node-2")
	doc.Edges = append(doc.Edges, EdgeRecord{From: "node-1", To: "node-2"})
	if err := s.SaveGraph(ctx, doc); err != nil {
		t.Fatalf("SaveGraph() error: %v", err)
	}

	smaller := NewGraphDoc()
	smaller.Nodes["node-1"] = sampleRecord("node-1")
	if err := s.SaveGraph(ctx, smaller); err != nil {
		t.Fatalf("SaveGraph() replace error: %v", err)
	}

	got, err := s.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph() error: %v", err)
	}
	if len(got.Nodes) != 1 || len(got.Edges) != 0 {
		t.Errorf("LoadGraph() after replace = %d nodes, %d edges; want 1, 0", len(got.Nodes), len(got.Edges))
	}
}

func TestSQLiteStoreClosed(t *testing.T) {
	s := newTestSQLiteStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	// Closing twice is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	if err := s.SaveNode(context.Background(), sampleRecord("node-1")); err == nil {
		t.Error("SaveNode() on closed store succeeded, want error")
	}
}
