// Package trailhead writes Sourcetrail-compatible code-index databases.
//
// Client code — compiler frontends, static analyzers, custom indexers —
// describes symbols, their containment hierarchy, the references between
// them, and where everything lives in source. trailhead persists it all
// into the SQLite schema the Sourcetrail UI reads (storage version 25),
// along with the sibling .srctrlprj project file.
//
// # Sessions
//
// A [Session] is the single logical writer for one database. Create a new
// project with [Create], reopen one with [Open], or use [OpenOrCreate] for
// either. Every record commit runs in its own write transaction, so a
// session closed mid-construction leaves the file exactly as it was.
//
// # Recording symbols
//
// Symbols are staged with fluent builders and committed once:
//
//	class, err := db.RecordClass().Name("Widget").Commit()
//	method, err := db.RecordMethod().Name("draw").Parent(class).Commit()
//
// Committing a symbol registers its whole containment chain: every
// ancestor gets a node and a member edge, deduplicated by qualified name,
// so re-recording the same symbol writes nothing and returns the same id.
//
// # References and locations
//
// [Session.RecordReference] (and the per-kind RecordRef helpers) connect
// two recorded nodes; identical references deduplicate to the first edge.
// Locations tie any recorded element to a 1-based, inclusive source range
// in a recorded file:
//
//	file, err := db.RecordFile().Path("src/widget.cpp").Commit()
//	_, err = db.RecordSymbolLocation().
//		Element(method).File(file).
//		StartPosition(12, 5).EndPosition(12, 8).
//		Commit()
//
// # Errors
//
// All failures wrap one of the package sentinels ([ErrInvalidName],
// [ErrDanglingReference], [ErrDatabase], ...); match with errors.Is.
package trailhead
