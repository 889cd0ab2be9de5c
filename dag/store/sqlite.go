package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps the whole graph in a single-file database. Designed for:
//   - Local use with zero setup
//   - Single-process graphs that outgrow loose files
//   - Prototyping before migrating to a shared database
//
// SQLiteStore uses WAL mode for concurrent reads and transactional writes
// for the graph index.
//
// Schema:
//   - graph_nodes: node summaries of the graph index
//   - graph_edges: parent-to-child edges of the graph index
//   - node_content: authoritative per-node content (meta, output, plan, diff)
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore creates a SQLite-backed store at the given database path.
// Use ":memory:" for an in-memory database (data lost on close).
//
// The store automatically creates the database file and required tables,
// enables WAL mode, and sets a busy timeout.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id TEXT PRIMARY KEY,
			summary TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			PRIMARY KEY (from_id, to_id)
		)`,
		`CREATE TABLE IF NOT EXISTS node_content (
			id TEXT PRIMARY KEY,
			meta TEXT NOT NULL,
			output TEXT NOT NULL,
			plan TEXT NOT NULL,
			diff TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON graph_edges(to_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveGraph replaces the graph index atomically.
func (s *SQLiteStore) SaveGraph(ctx context.Context, doc GraphDoc) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_nodes"); err != nil {
		return fmt.Errorf("failed to clear graph_nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_edges"); err != nil {
		return fmt.Errorf("failed to clear graph_edges: %w", err)
	}

	for id, summary := range doc.Nodes {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal node summary %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO graph_nodes (id, summary) VALUES (?, ?)", id, string(data)); err != nil {
			return fmt.Errorf("failed to insert node summary %s: %w", id, err)
		}
	}
	for _, edge := range doc.Edges {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO graph_edges (from_id, to_id) VALUES (?, ?)", edge.From, edge.To); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", edge.From, edge.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

// LoadGraph reads the graph index. An empty database yields an empty
// document.
func (s *SQLiteStore) LoadGraph(ctx context.Context) (GraphDoc, error) {
	if err := s.checkOpen(); err != nil {
		return GraphDoc{}, err
	}

	doc := NewGraphDoc()

	rows, err := s.db.QueryContext(ctx, "SELECT id, summary FROM graph_nodes")
	if err != nil {
		return GraphDoc{}, fmt.Errorf("failed to query graph_nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return GraphDoc{}, fmt.Errorf("failed to scan node summary: %w", err)
		}
		var rec NodeRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return GraphDoc{}, fmt.Errorf("failed to parse node summary %s: %w", id, err)
		}
		doc.Nodes[id] = rec
	}
	if err := rows.Err(); err != nil {
		return GraphDoc{}, fmt.Errorf("failed to iterate graph_nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id FROM graph_edges")
	if err != nil {
		return GraphDoc{}, fmt.Errorf("failed to query graph_edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge EdgeRecord
		if err := edgeRows.Scan(&edge.From, &edge.To); err != nil {
			return GraphDoc{}, fmt.Errorf("failed to scan edge: %w", err)
		}
		doc.Edges = append(doc.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return GraphDoc{}, fmt.Errorf("failed to iterate graph_edges: %w", err)
	}

	return doc, nil
}

// SaveNode upserts one node's full content.
func (s *SQLiteStore) SaveNode(ctx context.Context, rec NodeRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	meta, plan, err := marshalContent(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_content (id, meta, output, plan, diff, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			meta = excluded.meta,
			output = excluded.output,
			plan = excluded.plan,
			diff = excluded.diff,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ID, meta, rec.Output, plan, rec.Diff)
	if err != nil {
		return fmt.Errorf("failed to save node %s: %w", rec.ID, err)
	}
	return nil
}

// LoadNode reads one node's full content.
func (s *SQLiteStore) LoadNode(ctx context.Context, id string) (NodeRecord, error) {
	if err := s.checkOpen(); err != nil {
		return NodeRecord{}, err
	}

	var meta, output, plan, diff string
	err := s.db.QueryRowContext(ctx,
		"SELECT meta, output, plan, diff FROM node_content WHERE id = ?", id).
		Scan(&meta, &output, &plan, &diff)
	if errors.Is(err, sql.ErrNoRows) {
		return NodeRecord{}, ErrNotFound
	}
	if err != nil {
		return NodeRecord{}, fmt.Errorf("failed to load node %s: %w", id, err)
	}

	return unmarshalContent(id, meta, output, plan, diff)
}

// NodeExists reports whether the id has persisted content.
func (s *SQLiteStore) NodeExists(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM node_content WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check node %s: %w", id, err)
	}
	return true, nil
}

// Close closes the database connection. Subsequent calls are no-ops.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}
	return nil
}

// marshalContent serializes the meta and plan documents of a record.
func marshalContent(rec NodeRecord) (meta string, plan string, err error) {
	metaData, err := json.Marshal(rec)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal node meta %s: %w", rec.ID, err)
	}

	steps := rec.Plan
	if steps == nil {
		steps = []StepRecord{}
	}
	planData, err := json.Marshal(steps)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal node plan %s: %w", rec.ID, err)
	}
	return string(metaData), string(planData), nil
}

// unmarshalContent rebuilds a record from its stored columns.
func unmarshalContent(id, meta, output, plan, diff string) (NodeRecord, error) {
	var rec NodeRecord
	if err := json.Unmarshal([]byte(meta), &rec); err != nil {
		return NodeRecord{}, fmt.Errorf("failed to parse node meta %s: %w", id, err)
	}
	rec.Output = output
	rec.Diff = diff

	var steps []StepRecord
	if err := json.Unmarshal([]byte(plan), &steps); err == nil {
		rec.Plan = steps
	}
	return rec, nil
}
