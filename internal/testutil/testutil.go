// Package testutil provides shared test helpers for setting up document
// stores, local storage and loggers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/localstore"
)

// IdeaIndexes are the composite indexes a fully provisioned deployment declares.
var IdeaIndexes = []docstore.Index{
	{Collection: "ideas", Fields: []string{"authorId", "createdAt"}},
	{Collection: "ideas", Fields: []string{"totalVotes", "createdAt"}},
}

// TestDB creates a temporary SQLite document store that is automatically
// cleaned up. Pass no indexes to simulate an unprovisioned deployment.
func TestDB(t *testing.T, indexes ...docstore.Index) *docstore.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ideashare-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	set, err := docstore.NewIndexSet(indexes)
	if err != nil {
		t.Fatal(err)
	}
	db, err := docstore.OpenSQLite(dbFile.Name(), set)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLocal creates a file-backed local store in a temp directory.
func TestLocal(t *testing.T) *localstore.File {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "local.yaml"), Logger())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
