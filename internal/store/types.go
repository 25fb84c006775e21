// Package store is the SQLite data-access layer for trailhead databases.
// It owns the schema, the transactional write helpers, and the lookups the
// deduplication rules depend on. All row types mirror the storage-version-25
// tables the Sourcetrail reader consumes.
package store

// Node is a row of the node table. Kind holds the reader's bit-flag value.
type Node struct {
	ID             int64  `db:"id"`
	Kind           int32  `db:"type"`
	SerializedName string `db:"serialized_name"`
}

// Symbol is a row of the symbol table, keyed by node id.
type Symbol struct {
	ID             int64 `db:"id"`
	DefinitionKind int32 `db:"definition_kind"`
}

// Edge is a row of the edge table.
type Edge struct {
	ID           int64 `db:"id"`
	Kind         int32 `db:"type"`
	SourceNodeID int64 `db:"source_node_id"`
	TargetNodeID int64 `db:"target_node_id"`
}

// File is a row of the file table. ModificationTime is stored as the
// reader's "2006-01-02 15:04:05" text format.
type File struct {
	ID               int64  `db:"id"`
	Path             string `db:"path"`
	Language         string `db:"language"`
	ModificationTime string `db:"modification_time"`
	Indexed          bool   `db:"indexed"`
	Complete         bool   `db:"complete"`
	LineCount        int    `db:"line_count"`
}

// SourceLocation is a row of the source_location table. Positions are
// 1-based and inclusive.
type SourceLocation struct {
	ID          int64 `db:"id"`
	FileNodeID  int64 `db:"file_node_id"`
	StartLine   int   `db:"start_line"`
	StartColumn int   `db:"start_column"`
	EndLine     int   `db:"end_line"`
	EndColumn   int   `db:"end_column"`
	Kind        int32 `db:"type"`
}

// LocalSymbol is a row of the local_symbol table.
type LocalSymbol struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// IndexError is a row of the error table.
type IndexError struct {
	ID              int64  `db:"id"`
	Message         string `db:"message"`
	Fatal           bool   `db:"fatal"`
	Indexed         bool   `db:"indexed"`
	TranslationUnit string `db:"translation_unit"`
}

// ElementComponent is a row of the element_component table, used to attach
// auxiliary data (currently only the ambiguity marker) to an element.
type ElementComponent struct {
	ID        int64  `db:"id"`
	ElementID int64  `db:"element_id"`
	Kind      int32  `db:"type"`
	Data      string `db:"data"`
}

// ComponentIsAmbiguous is the element_component type value marking an
// ambiguous edge.
const ComponentIsAmbiguous int32 = 1
