package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is the filesystem implementation of Store and the authoritative
// on-disk contract for the graph:
//
//	<root>/graph.json                 graph index (nodes + edges)
//	<root>/nodes/<uuid>/output.txt    raw output text
//	<root>/nodes/<uuid>/plan.json     JSON array of {"order", "text"}
//	<root>/nodes/<uuid>/diff.patch    raw diff text
//	<root>/nodes/<uuid>/meta.json     node metadata
//
// meta.json plus its sibling files are authoritative per-node content;
// graph.json is a secondary index. plan.json wins over the plan embedded in
// meta.json when both are present.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at path, creating the root
// and nodes directories if needed. A leading "~" expands to the user's home
// directory.
func NewFSStore(path string) (*FSStore, error) {
	root, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, "nodes"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Root returns the expanded storage root directory.
func (s *FSStore) Root() string {
	return s.root
}

// SaveGraph writes the graph index to graph.json.
func (s *FSStore) SaveGraph(_ context.Context, doc GraphDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, "graph.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph.json: %w", err)
	}
	return nil
}

// LoadGraph reads graph.json. A missing file yields an empty document.
func (s *FSStore) LoadGraph(_ context.Context) (GraphDoc, error) {
	data, err := os.ReadFile(filepath.Join(s.root, "graph.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return NewGraphDoc(), nil
	}
	if err != nil {
		return GraphDoc{}, fmt.Errorf("failed to read graph.json: %w", err)
	}

	var doc GraphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return GraphDoc{}, fmt.Errorf("failed to parse graph.json: %w", err)
	}
	if doc.Nodes == nil {
		doc.Nodes = make(map[string]NodeRecord)
	}
	return doc, nil
}

// SaveNode writes the node's content files under nodes/<id>/.
func (s *FSStore) SaveNode(_ context.Context, rec NodeRecord) error {
	dir := s.nodeDir(rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create node dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "output.txt"), []byte(rec.Output), 0o644); err != nil {
		return fmt.Errorf("failed to write output.txt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "diff.patch"), []byte(rec.Diff), 0o644); err != nil {
		return fmt.Errorf("failed to write diff.patch: %w", err)
	}

	plan := rec.Plan
	if plan == nil {
		plan = []StepRecord{}
	}
	planData, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.json"), planData, 0o644); err != nil {
		return fmt.Errorf("failed to write plan.json: %w", err)
	}

	metaData, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaData, 0o644); err != nil {
		return fmt.Errorf("failed to write meta.json: %w", err)
	}
	return nil
}

// LoadNode reads the node's content files. Returns ErrNotFound when the node
// directory or meta.json is missing.
func (s *FSStore) LoadNode(_ context.Context, id string) (NodeRecord, error) {
	dir := s.nodeDir(id)

	metaData, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return NodeRecord{}, ErrNotFound
	}
	if err != nil {
		return NodeRecord{}, fmt.Errorf("failed to read meta.json: %w", err)
	}

	var rec NodeRecord
	if err := json.Unmarshal(metaData, &rec); err != nil {
		return NodeRecord{}, fmt.Errorf("failed to parse meta.json: %w", err)
	}

	if output, err := os.ReadFile(filepath.Join(dir, "output.txt")); err == nil {
		rec.Output = string(output)
	}
	if diff, err := os.ReadFile(filepath.Join(dir, "diff.patch")); err == nil {
		rec.Diff = string(diff)
	}
	if planData, err := os.ReadFile(filepath.Join(dir, "plan.json")); err == nil {
		var plan []StepRecord
		if err := json.Unmarshal(planData, &plan); err == nil {
			rec.Plan = plan
		}
	}
	return rec, nil
}

// NodeExists reports whether the node's directory exists.
func (s *FSStore) NodeExists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.nodeDir(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close is a no-op for the filesystem store.
func (s *FSStore) Close() error {
	return nil
}

func (s *FSStore) nodeDir(id string) string {
	return filepath.Join(s.root, "nodes", id)
}

// expandHome expands a leading "~" to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
