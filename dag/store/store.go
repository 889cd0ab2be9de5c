// Package store provides persistence backends for the node graph.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested node has no persisted content.
var ErrNotFound = errors.New("not found")

// StepRecord is the serialized form of one plan step.
type StepRecord struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// NodeRecord is the serialized form of a node: identity, generation inputs,
// generated content, graph relationships, and metadata.
//
// The same record shape backs both the per-node content (meta.json and its
// sibling files on the filesystem backend) and the node summaries embedded
// in the graph index. Output and Diff live in sibling files rather than
// meta.json, so they carry no JSON tags for the meta document; backends that
// store the whole record in one row serialize them separately.
type NodeRecord struct {
	ID           string                 `json:"id"`
	ParentIDs    []string               `json:"parent_ids"`
	UserPrompt   string                 `json:"user_prompt"`
	SystemPrompt string                 `json:"system_prompt"`
	Model        string                 `json:"model"`
	Score        *float64               `json:"score"`
	Type         string                 `json:"type"`
	Children     []string               `json:"children"`
	CreatedAt    time.Time              `json:"created_at"`
	Metadata     map[string]interface{} `json:"metadata"`
	Plan         []StepRecord           `json:"plan"`

	Output string `json:"-"`
	Diff   string `json:"-"`
}

// EdgeRecord is one parent-to-child edge in the graph index.
type EdgeRecord struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphDoc is the serialized graph index: a summary of every node plus the
// edge list derived from parent ids.
//
// The index is a consistency cache, not authoritative; per-node content wins
// on reload, and ids present in the index but missing node content are
// skipped.
type GraphDoc struct {
	Nodes map[string]NodeRecord `json:"nodes"`
	Edges []EdgeRecord          `json:"edges"`
}

// NewGraphDoc returns an empty graph document with initialized collections.
func NewGraphDoc() GraphDoc {
	return GraphDoc{
		Nodes: make(map[string]NodeRecord),
		Edges: make([]EdgeRecord, 0),
	}
}

// Store persists the node graph: the per-node content plus the graph index.
//
// Implementations:
//   - FSStore: the authoritative on-disk layout (graph.json + nodes/<uuid>/)
//   - SQLiteStore: single-file database for local use
//   - MySQLStore: shared database for server deployments
//
// All methods must be safe for concurrent use; batch evaluation persists
// nodes from multiple goroutines.
type Store interface {
	// SaveGraph writes the graph index.
	SaveGraph(ctx context.Context, doc GraphDoc) error

	// LoadGraph reads the graph index. A store with no saved graph returns
	// an empty document, not an error.
	LoadGraph(ctx context.Context) (GraphDoc, error)

	// SaveNode writes one node's full content. Saving an existing id
	// overwrites it.
	SaveNode(ctx context.Context, rec NodeRecord) error

	// LoadNode reads one node's full content.
	// Returns ErrNotFound when the id has no persisted content.
	LoadNode(ctx context.Context, id string) (NodeRecord, error)

	// NodeExists reports whether the id has persisted content.
	NodeExists(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
