package trailhead

import "errors"

// Sentinel errors returned by Session operations and builder commits.
// Match with errors.Is; wrapped messages carry the offending value.
var (
	// ErrInvalidName reports an empty or malformed name hierarchy.
	ErrInvalidName = errors.New("invalid name hierarchy")

	// ErrInvalidSymbolKind reports a node or edge kind the storage schema
	// does not recognize.
	ErrInvalidSymbolKind = errors.New("invalid symbol kind")

	// ErrDanglingReference reports an edge or location that references a
	// node or file id not present in the database.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrInvalidRange reports a malformed source range: positions below 1,
	// or an inverted range. Positions are inclusive, so a start equal to
	// the end is a valid one-character range.
	ErrInvalidRange = errors.New("invalid source range")

	// ErrMissingField reports a builder committed without a mandatory
	// attribute; the wrapped message names the field.
	ErrMissingField = errors.New("missing required field")

	// ErrAlreadyCommitted reports reuse of a finalized builder.
	ErrAlreadyCommitted = errors.New("record already committed")

	// ErrDatabase reports a storage failure: open, schema mismatch, or a
	// transaction error. The in-progress operation is rolled back; the
	// Session remains usable.
	ErrDatabase = errors.New("database error")
)
