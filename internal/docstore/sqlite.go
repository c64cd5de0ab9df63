package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ideashare/internal/apperr"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	body       TEXT    NOT NULL DEFAULT '{}',
	version    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);
`

// SQLite implements Store on a single SQLite table of JSON documents.
type SQLite struct {
	conn    *sql.DB
	indexes *IndexSet
}

// OpenSQLite opens (or creates) the database, applies the schema and
// materialises the declared composite indexes as expression indexes.
func OpenSQLite(dsn string, indexes *IndexSet) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	// Read-modify-write paths run in a transaction; a single connection keeps
	// them from deadlocking on lock upgrade.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply core schema: %w", err)
	}
	if indexes == nil {
		indexes = &IndexSet{}
	}
	for _, ix := range indexes.All() {
		if _, err := conn.Exec(indexSQL(ix)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("docstore: create index %s: %w", ix.Name(), err)
		}
	}
	return &SQLite{conn: conn, indexes: indexes}, nil
}

// indexSQL builds a partial expression index. Identifiers were validated by
// NewIndexSet.
func indexSQL(ix Index) string {
	cols := make([]string, len(ix.Fields))
	for i, f := range ix.Fields {
		cols[i] = jsonPath(f)
	}
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON documents(%s) WHERE collection = '%s'`,
		ix.Name(), strings.Join(cols, ", "), ix.Collection)
}

func jsonPath(field string) string {
	return "json_extract(body, '$." + field + "')"
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Create inserts a new document with a generated id.
func (s *SQLite) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !ValidIdent(collection) {
		return "", apperr.Write("create", fmt.Errorf("invalid collection %q", collection))
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", apperr.Write("create", err)
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, version) VALUES (?, ?, ?, 0)`,
		collection, id, string(body))
	if err != nil {
		return "", apperr.Write("create", err)
	}
	return id, nil
}

// Query runs q against collection.
func (s *SQLite) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, apperr.Read("query", err)
	}
	if err := s.indexes.Check(collection, q); err != nil {
		return nil, apperr.Read("query", err)
	}

	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT id, body, version FROM documents WHERE collection = ?`)
	for _, f := range q.Filters {
		fmt.Fprintf(&sb, " AND %s %s ?", jsonPath(f.Field), sqlOp(f.Op))
		args = append(args, f.Value)
	}
	if q.OrderBy != nil {
		dir := "ASC"
		if q.OrderBy.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s, rowid %s", jsonPath(q.OrderBy.Field), dir, dir)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.Read("query", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperr.Read("query", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Read("query", err)
	}
	return out, nil
}

// Get returns a single document.
func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, body, version FROM documents WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, apperr.Read("get", apperr.ErrNotFound)
	}
	if err != nil {
		return Document{}, apperr.Read("get", err)
	}
	return doc, nil
}

// Update merges fields into the stored document and bumps its version.
func (s *SQLite) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.update(ctx, collection, id, -1, fields)
}

// UpdateIfVersion merges fields only when the stored version matches.
func (s *SQLite) UpdateIfVersion(ctx context.Context, collection, id string, version int64, fields map[string]any) error {
	return s.update(ctx, collection, id, version, fields)
}

// update performs the read-merge-write in one transaction. A negative
// version skips the version check.
func (s *SQLite) update(ctx context.Context, collection, id string, version int64, fields map[string]any) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Write("update", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var raw string
	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT body, version FROM documents WHERE collection = ? AND id = ?`, collection, id).
		Scan(&raw, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Write("update", apperr.ErrNotFound)
	}
	if err != nil {
		return apperr.Write("update", err)
	}
	if version >= 0 && current != version {
		return apperr.Write("update", fmt.Errorf("%w: version %d, have %d", apperr.ErrConflict, current, version))
	}

	base := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &base); err != nil {
		return apperr.Write("update", fmt.Errorf("decode body: %w", err))
	}
	body, err := json.Marshal(mergeFields(base, fields))
	if err != nil {
		return apperr.Write("update", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ?, version = version + 1 WHERE collection = ? AND id = ?`,
		string(body), collection, id); err != nil {
		return apperr.Write("update", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Write("update", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (Document, error) {
	var doc Document
	var raw string
	if err := sc.Scan(&doc.ID, &raw, &doc.Version); err != nil {
		return Document{}, err
	}
	doc.Fields = map[string]any{}
	if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("decode body: %w", err)
	}
	return doc, nil
}

func sqlOp(op Op) string {
	if op == OpEq {
		return "="
	}
	return string(op)
}

// Verify *SQLite satisfies Store at compile time.
var _ Store = (*SQLite)(nil)
