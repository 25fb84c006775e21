package trailhead

import "github.com/jward/trailhead/internal/store"

// StorageVersion is the database schema version this library writes and the
// Sourcetrail reader consumes.
const StorageVersion = store.StorageVersion

// Row types of the underlying tables, re-exported for callers that inspect
// a database they just wrote (test harnesses, migration tooling).
type (
	Node           = store.Node
	Symbol         = store.Symbol
	Edge           = store.Edge
	File           = store.File
	SourceLocation = store.SourceLocation
	LocalSymbol    = store.LocalSymbol
	IndexError     = store.IndexError
)
