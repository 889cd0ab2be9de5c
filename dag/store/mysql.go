package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL implementation of Store.
//
// Designed for server deployments where the graph must be shared across
// hosts or survive the local filesystem. The schema mirrors SQLiteStore:
// graph index tables plus one authoritative content row per node.
//
// The DSN should include parseTime=true, e.g.:
//
//	user:pass@tcp(localhost:3306)/iterai?parseTime=true
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed store, verifying connectivity and
// creating the required tables.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id VARCHAR(36) PRIMARY KEY,
			summary TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			from_id VARCHAR(36) NOT NULL,
			to_id VARCHAR(36) NOT NULL,
			PRIMARY KEY (from_id, to_id),
			INDEX idx_edges_to (to_id)
		)`,
		`CREATE TABLE IF NOT EXISTS node_content (
			id VARCHAR(36) PRIMARY KEY,
			meta TEXT NOT NULL,
			output MEDIUMTEXT NOT NULL,
			plan TEXT NOT NULL,
			diff MEDIUMTEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveGraph replaces the graph index atomically.
func (s *MySQLStore) SaveGraph(ctx context.Context, doc GraphDoc) error {
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
func (s *MySQLStore) LoadGraph(ctx context.Context) (GraphDoc, error) {
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
func (s *MySQLStore) SaveNode(ctx context.Context, rec NodeRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	meta, plan, err := marshalContent(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_content (id, meta, output, plan, diff)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			meta = VALUES(meta),
			output = VALUES(output),
			plan = VALUES(plan),
			diff = VALUES(diff)`,
		rec.ID, meta, rec.Output, plan, rec.Diff)
	if err != nil {
		return fmt.Errorf("failed to save node %s: %w", rec.ID, err)
	}
	return nil
}

// LoadNode reads one node's full content.
func (s *MySQLStore) LoadNode(ctx context.Context, id string) (NodeRecord, error) {
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
func (s *MySQLStore) NodeExists(ctx context.Context, id string) (bool, error) {
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
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}
	return nil
}
