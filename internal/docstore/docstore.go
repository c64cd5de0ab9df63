// Package docstore provides the document store that idea records live in:
// an async collection store with equality/range filters, ordering and limits.
//
// Backends emulate the constraint of hosted document databases that a query
// touching more than one field needs a declared composite index. Such queries
// fail with apperr.ErrMissingIndex, which callers use to switch to a
// scan-and-filter strategy.
package docstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/ideashare/internal/apperr"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by Field.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a collection query. Zero Limit means unlimited.
type Query struct {
	Filters []Filter
	OrderBy *Order
	Limit   int
}

// Where returns a copy of q with an extra filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Fields returns the distinct fields the query touches, in first-use order.
func (q Query) Fields() []string {
	var out []string
	seen := map[string]bool{}
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range q.Filters {
		add(f.Field)
	}
	if q.OrderBy != nil {
		add(q.OrderBy.Field)
	}
	return out
}

// Document is one stored record. Version increases on every write.
type Document struct {
	ID      string
	Version int64
	Fields  map[string]any
}

// Store is the document store collaborator.
type Store interface {
	// Create inserts fields as a new document and returns its generated id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Query returns the documents matching q.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Get returns one document or apperr.ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into the document unconditionally.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateIfVersion merges fields only if the stored version equals version,
	// failing with apperr.ErrConflict otherwise.
	UpdateIfVersion(ctx context.Context, collection, id string, version int64, fields map[string]any) error
	Close() error
}

// Index declares a composite index over Fields in Collection.
type Index struct {
	Collection string   `yaml:"collection"`
	Fields     []string `yaml:"fields"`
}

// Name returns a stable identifier for the index.
func (ix Index) Name() string {
	return "idx_" + ix.Collection + "_" + strings.Join(ix.Fields, "_")
}

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidIdent reports whether s may be used as a collection or field name.
// Names are interpolated into backend query paths, so anything else is refused.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// IndexSet is the set of declared composite indexes.
type IndexSet struct {
	indexes []Index
}

// NewIndexSet validates and collects the declared indexes.
func NewIndexSet(indexes []Index) (*IndexSet, error) {
	for _, ix := range indexes {
		if !ValidIdent(ix.Collection) {
			return nil, fmt.Errorf("docstore: invalid index collection %q", ix.Collection)
		}
		if len(ix.Fields) < 2 {
			return nil, fmt.Errorf("docstore: composite index %s needs at least two fields", ix.Name())
		}
		for _, f := range ix.Fields {
			if !ValidIdent(f) {
				return nil, fmt.Errorf("docstore: invalid index field %q", f)
			}
		}
	}
	return &IndexSet{indexes: append([]Index(nil), indexes...)}, nil
}

// All returns the declared indexes.
func (s *IndexSet) All() []Index {
	return append([]Index(nil), s.indexes...)
}

// Check returns apperr.ErrMissingIndex when q touches more than one field and
// no declared index in collection covers all of them.
func (s *IndexSet) Check(collection string, q Query) error {
	fields := q.Fields()
	if len(fields) <= 1 {
		return nil
	}
	for _, ix := range s.indexes {
		if ix.Collection == collection && covers(ix.Fields, fields) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s(%s)", apperr.ErrMissingIndex, collection, strings.Join(fields, ","))
}

func covers(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, f := range have {
		set[f] = true
	}
	for _, f := range want {
		if !set[f] {
			return false
		}
	}
	return true
}

// validateQuery refuses identifiers that cannot be safely used by a backend.
func validateQuery(collection string, q Query) error {
	if !ValidIdent(collection) {
		return fmt.Errorf("docstore: invalid collection %q", collection)
	}
	for _, f := range q.Fields() {
		if !ValidIdent(f) {
			return fmt.Errorf("docstore: invalid field %q", f)
		}
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEq, OpGt, OpGte, OpLt, OpLte:
		default:
			return fmt.Errorf("docstore: unsupported operator %q", f.Op)
		}
	}
	return nil
}

// mergeFields returns base with every key of patch applied.
func mergeFields(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
