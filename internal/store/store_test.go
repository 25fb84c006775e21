package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.srctrldb")
	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestNode claims an element id and writes a node row inside one tx.
func insertTestNode(t *testing.T, s *Store, id int64, kind int32, name string) {
	t.Helper()
	err := s.WithTx(func(tx *Tx) error {
		if err := tx.InsertElement(id); err != nil {
			return err
		}
		return tx.InsertNode(&Node{ID: id, Kind: kind, SerializedName: name})
	})
	require.NoError(t, err)
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"meta", "element", "element_component", "edge", "node", "symbol",
		"file", "filecontent", "local_symbol", "source_location",
		"occurrence", "component_access", "error",
	}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	// Running migrate again should not error.
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestMeta_InsertAndRead(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.InsertMeta("storage_version", StorageVersion))

	got, err := s.MetaValue("storage_version")
	require.NoError(t, err)
	assert.Equal(t, StorageVersion, got)

	missing, err := s.MetaValue("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMaxID_EmptyDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	maxID, err := s.MaxID()
	require.NoError(t, err)
	assert.Zero(t, maxID)
}

func TestMaxID_CoversLocations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	insertTestNode(t, s, 1, 1<<18, "/\tmmain.cpp\ts\tp")
	err := s.WithTx(func(tx *Tx) error {
		return tx.InsertSourceLocation(&SourceLocation{
			ID: 7, FileNodeID: 1, StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 5,
		})
	})
	require.NoError(t, err)

	maxID, err := s.MaxID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), maxID, "location ids share the element id space")
}

// =============================================================================
// Node lookups
// =============================================================================

func TestNode_ByNameAndByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, 1, 128, "::\tmWidget\ts\tp")

	err := s.WithTx(func(tx *Tx) error {
		byName, err := tx.NodeByName("::\tmWidget\ts\tp")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, int64(1), byName.ID)
		assert.Equal(t, int32(128), byName.Kind)

		byID, err := tx.NodeByID(1)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, byName.SerializedName, byID.SerializedName)

		missing, err := tx.NodeByName("::\tmNope\ts\tp")
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestNode_PromoteKindOnlyFromPlaceholder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, 1, 1, "::\tmA\ts\tp")  // placeholder
	insertTestNode(t, s, 2, 64, "::\tmB\ts\tp") // already specific

	err := s.WithTx(func(tx *Tx) error {
		require.NoError(t, tx.PromoteNodeKind(1, 128, 1))
		require.NoError(t, tx.PromoteNodeKind(2, 128, 1))
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(func(tx *Tx) error {
		a, err := tx.NodeByID(1)
		require.NoError(t, err)
		assert.Equal(t, int32(128), a.Kind, "placeholder promoted")

		b, err := tx.NodeByID(2)
		require.NoError(t, err)
		assert.Equal(t, int32(64), b.Kind, "specific kind untouched")
		return nil
	})
	require.NoError(t, err)
}

func TestNodeNames_Rehydration(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, 1, 1, "::\tmA\ts\tp")
	insertTestNode(t, s, 2, 1, "::\tmB\ts\tp")

	names, err := s.NodeNames()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"::\tmA\ts\tp": 1,
		"::\tmB\ts\tp": 2,
	}, names)
}

// =============================================================================
// Edges, symbols, files
// =============================================================================

func TestEdge_ByTriple(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, 1, 1, "::\tmA\ts\tp")
	insertTestNode(t, s, 2, 1, "::\tmB\ts\tp")

	err := s.WithTx(func(tx *Tx) error {
		require.NoError(t, tx.InsertElement(3))
		require.NoError(t, tx.InsertEdge(&Edge{ID: 3, Kind: 4, SourceNodeID: 1, TargetNodeID: 2}))

		found, err := tx.EdgeByTriple(4, 1, 2)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, int64(3), found.ID)

		missing, err := tx.EdgeByTriple(8, 1, 2)
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestSymbol_Upsert(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, 1, 128, "::\tmWidget\ts\tp")

	err := s.WithTx(func(tx *Tx) error {
		require.NoError(t, tx.UpsertSymbol(1, 1))
		require.NoError(t, tx.UpsertSymbol(1, 2))

		sym, err := tx.SymbolByID(1)
		require.NoError(t, err)
		require.NotNil(t, sym)
		assert.Equal(t, int32(2), sym.DefinitionKind)
		return nil
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.Get(&count, "SELECT COUNT(*) FROM symbol"))
	assert.Equal(t, 1, count)
}

func TestFile_InsertUpdateContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, 1, 1<<18, "/\tmsrc/a.cpp\ts\tp")

	err := s.WithTx(func(tx *Tx) error {
		err := tx.InsertFile(&File{
			ID: 1, Path: "src/a.cpp", Language: "cpp",
			ModificationTime: "2026-08-24 10:00:00",
			Indexed:          true, Complete: true, LineCount: 2,
		})
		require.NoError(t, err)
		require.NoError(t, tx.UpsertFileContent(1, "int x;\nint y;\n"))
		require.NoError(t, tx.UpsertFileContent(1, "int x;\n"))

		f, err := tx.FileByPath("src/a.cpp")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "cpp", f.Language)

		f.Language = "cxx"
		require.NoError(t, tx.UpdateFile(f))
		return nil
	})
	require.NoError(t, err)

	var content string
	require.NoError(t, s.db.Get(&content, "SELECT content FROM filecontent WHERE id = 1"))
	assert.Equal(t, "int x;\n", content)

	var lang string
	require.NoError(t, s.db.Get(&lang, "SELECT language FROM file WHERE id = 1"))
	assert.Equal(t, "cxx", lang)
}

// =============================================================================
// Clear & transactions
// =============================================================================

func TestClear_KeepsMeta(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.InsertMeta("storage_version", StorageVersion))
	insertTestNode(t, s, 1, 1, "::\tmA\ts\tp")

	require.NoError(t, s.Clear())

	var nodes, elements, meta int
	require.NoError(t, s.db.Get(&nodes, "SELECT COUNT(*) FROM node"))
	require.NoError(t, s.db.Get(&elements, "SELECT COUNT(*) FROM element"))
	require.NoError(t, s.db.Get(&meta, "SELECT COUNT(*) FROM meta"))
	assert.Zero(t, nodes)
	assert.Zero(t, elements)
	assert.Equal(t, 1, meta)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.WithTx(func(tx *Tx) error {
		require.NoError(t, tx.InsertElement(1))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int
	require.NoError(t, s.db.Get(&count, "SELECT COUNT(*) FROM element"))
	assert.Zero(t, count)
}
