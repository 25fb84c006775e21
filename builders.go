package trailhead

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/trailhead/internal/store"
)

const fileTimeFormat = "2006-01-02 15:04:05"

// SourceRange is an inclusive, 1-based span of source text.
type SourceRange struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (r SourceRange) validate() error {
	if r.StartLine < 1 || r.StartColumn < 1 || r.EndLine < 1 || r.EndColumn < 1 {
		return fmt.Errorf("%w: positions are 1-based, got %+v", ErrInvalidRange, r)
	}
	if r.StartLine > r.EndLine {
		return fmt.Errorf("%w: start line %d after end line %d", ErrInvalidRange, r.StartLine, r.EndLine)
	}
	if r.StartLine == r.EndLine && r.StartColumn > r.EndColumn {
		return fmt.Errorf("%w: start column %d after end column %d", ErrInvalidRange, r.StartColumn, r.EndColumn)
	}
	return nil
}

// SymbolBuilder stages a symbol record. Configure it with the fluent
// setters, then Commit exactly once; all rows land in one transaction.
type SymbolBuilder struct {
	session   *Session
	kind      NodeKind
	name      string
	prefix    string
	postfix   string
	delimiter string
	parentID  int64
	hasParent bool
	full      NameHierarchy
	hasFull   bool
	indexed   bool
	committed bool
}

// RecordSymbol starts a symbol record of the given kind. The delimiter
// defaults to "::" and the symbol defaults to indexed.
func (s *Session) RecordSymbol(kind NodeKind) *SymbolBuilder {
	return &SymbolBuilder{
		session:   s,
		kind:      kind,
		delimiter: DelimiterCxx,
		indexed:   true,
	}
}

// Kind preset constructors.

func (s *Session) RecordType() *SymbolBuilder        { return s.RecordSymbol(NodeType) }
func (s *Session) RecordBuiltinType() *SymbolBuilder { return s.RecordSymbol(NodeBuiltinType) }
func (s *Session) RecordModule() *SymbolBuilder      { return s.RecordSymbol(NodeModule) }
func (s *Session) RecordNamespace() *SymbolBuilder   { return s.RecordSymbol(NodeNamespace) }
func (s *Session) RecordPackage() *SymbolBuilder     { return s.RecordSymbol(NodePackage) }
func (s *Session) RecordStruct() *SymbolBuilder      { return s.RecordSymbol(NodeStruct) }
func (s *Session) RecordClass() *SymbolBuilder       { return s.RecordSymbol(NodeClass) }
func (s *Session) RecordInterface() *SymbolBuilder   { return s.RecordSymbol(NodeInterface) }
func (s *Session) RecordAnnotation() *SymbolBuilder  { return s.RecordSymbol(NodeAnnotation) }
func (s *Session) RecordGlobalVariable() *SymbolBuilder {
	return s.RecordSymbol(NodeGlobalVariable)
}
func (s *Session) RecordField() *SymbolBuilder        { return s.RecordSymbol(NodeField) }
func (s *Session) RecordFunction() *SymbolBuilder     { return s.RecordSymbol(NodeFunction) }
func (s *Session) RecordMethod() *SymbolBuilder       { return s.RecordSymbol(NodeMethod) }
func (s *Session) RecordEnum() *SymbolBuilder         { return s.RecordSymbol(NodeEnum) }
func (s *Session) RecordEnumConstant() *SymbolBuilder { return s.RecordSymbol(NodeEnumConstant) }
func (s *Session) RecordTypedef() *SymbolBuilder      { return s.RecordSymbol(NodeTypedef) }
func (s *Session) RecordTypeParameter() *SymbolBuilder {
	return s.RecordSymbol(NodeTypeParameter)
}
func (s *Session) RecordMacro() *SymbolBuilder { return s.RecordSymbol(NodeMacro) }
func (s *Session) RecordUnion() *SymbolBuilder { return s.RecordSymbol(NodeUnion) }

// Name sets the symbol's own name. Required.
func (b *SymbolBuilder) Name(name string) *SymbolBuilder {
	b.name = name
	return b
}

// Prefix sets display text before the name, e.g. a return type.
func (b *SymbolBuilder) Prefix(prefix string) *SymbolBuilder {
	b.prefix = prefix
	return b
}

// Postfix sets display text after the name, e.g. a parameter list.
func (b *SymbolBuilder) Postfix(postfix string) *SymbolBuilder {
	b.postfix = postfix
	return b
}

// Delimiter sets the qualified-name delimiter for a root symbol. Ignored
// when a parent is set, since the child inherits the parent's hierarchy.
func (b *SymbolBuilder) Delimiter(delimiter string) *SymbolBuilder {
	b.delimiter = delimiter
	return b
}

// Parent nests the symbol under an existing node.
func (b *SymbolBuilder) Parent(nodeID int64) *SymbolBuilder {
	b.parentID = nodeID
	b.hasParent = true
	return b
}

// Hierarchy supplies the full qualified name at once, overriding Name,
// Prefix, Postfix, Delimiter and Parent. Ancestors not recorded yet enter
// as bare symbol placeholders and are promoted when their own record
// arrives.
func (b *SymbolBuilder) Hierarchy(h NameHierarchy) *SymbolBuilder {
	b.full = h
	b.hasFull = true
	return b
}

// Indexed marks whether the symbol's definition was actually seen by the
// indexer (explicit) or merely inferred (implicit).
func (b *SymbolBuilder) Indexed(indexed bool) *SymbolBuilder {
	b.indexed = indexed
	return b
}

// Commit registers the symbol and its containment chain, returning the
// symbol's node id.
func (b *SymbolBuilder) Commit() (int64, error) {
	if b.committed {
		return 0, fmt.Errorf("%w: symbol record", ErrAlreadyCommitted)
	}
	if !b.kind.Valid() {
		return 0, fmt.Errorf("%w: node kind %d", ErrInvalidSymbolKind, b.kind)
	}
	if !b.hasFull && b.name == "" {
		return 0, fmt.Errorf("%w: symbol name", ErrMissingField)
	}
	if b.hasFull && len(b.full.Elements) == 0 {
		return 0, fmt.Errorf("%w: hierarchy needs at least one element", ErrInvalidName)
	}

	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make(map[string]int64)
	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		element := NameElement{Prefix: b.prefix, Name: b.name, Postfix: b.postfix}
		var hierarchy NameHierarchy
		if b.hasFull {
			hierarchy = b.full
		} else if b.hasParent {
			parent, err := tx.NodeByID(b.parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: parent node %d", ErrDanglingReference, b.parentID)
			}
			hierarchy, err = DeserializeNameHierarchy(parent.SerializedName)
			if err != nil {
				return err
			}
			hierarchy.Push(element)
		} else {
			var err error
			hierarchy, err = NewNameHierarchy(b.delimiter, element)
			if err != nil {
				return err
			}
		}

		var err error
		id, err = s.registerHierarchy(tx, hierarchy, b.kind, added)
		if err != nil {
			return err
		}

		definition := DefinitionImplicit
		if b.indexed {
			definition = DefinitionExplicit
		}
		return tx.UpsertSymbol(id, int32(definition))
	})
	if err != nil {
		return 0, err
	}

	s.mergeNames(added)
	b.committed = true
	return id, nil
}

// FileBuilder stages a source file record.
type FileBuilder struct {
	session    *Session
	path       string
	language   string
	content    string
	hasContent bool
	modTime    time.Time
	indexed    bool
	committed  bool
}

// RecordFile starts a file record. Files default to indexed.
func (s *Session) RecordFile() *FileBuilder {
	return &FileBuilder{session: s, indexed: true}
}

// Path sets the file's path. Required; cleaned and slash-normalized before
// storage so equal paths dedup regardless of spelling.
func (b *FileBuilder) Path(path string) *FileBuilder {
	b.path = path
	return b
}

// Language sets the file's source language, e.g. "cpp" or "python".
func (b *FileBuilder) Language(language string) *FileBuilder {
	b.language = language
	return b
}

// Content supplies the file's text, stored for the reader's code view when
// the file is indexed. Also drives the line count.
func (b *FileBuilder) Content(content string) *FileBuilder {
	b.content = content
	b.hasContent = true
	return b
}

// ModificationTime sets the file's last-modified timestamp.
func (b *FileBuilder) ModificationTime(t time.Time) *FileBuilder {
	b.modTime = t
	return b
}

// Indexed marks whether the file itself was indexed. Non-indexed files
// (e.g. system headers) get a node but no stored content.
func (b *FileBuilder) Indexed(indexed bool) *FileBuilder {
	b.indexed = indexed
	return b
}

// CommitPath stats and reads the file at path from disk, then commits.
func (b *FileBuilder) CommitPath(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("recording file %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("recording file %s: %w", path, err)
	}
	return b.Path(path).ModificationTime(info.ModTime()).Content(string(content)).Commit()
}

// Commit registers the file, returning its node id. Committing a path that
// is already registered merges newly supplied attributes into the existing
// record instead of creating a second one.
func (b *FileBuilder) Commit() (int64, error) {
	if b.committed {
		return 0, fmt.Errorf("%w: file record", ErrAlreadyCommitted)
	}
	if b.path == "" {
		return 0, fmt.Errorf("%w: file path", ErrMissingField)
	}
	normalized := filepath.ToSlash(filepath.Clean(b.path))

	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make(map[string]int64)
	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		existing, err := tx.FileByPath(normalized)
		if err != nil {
			return err
		}
		if existing != nil {
			id = existing.ID
			return b.merge(tx, existing)
		}

		hierarchy, err := NewNameHierarchy(DelimiterFile, NameElement{Name: normalized})
		if err != nil {
			return err
		}
		name, err := hierarchy.Serialize()
		if err != nil {
			return err
		}
		id, err = s.getOrCreateNode(tx, name, NodeFile, added)
		if err != nil {
			return err
		}

		modTime := b.modTime
		if modTime.IsZero() {
			modTime = time.Now()
		}
		lineCount := 0
		if b.indexed && b.hasContent {
			lineCount = countLines(b.content)
		}
		err = tx.InsertFile(&store.File{
			ID:               id,
			Path:             normalized,
			Language:         b.language,
			ModificationTime: modTime.Format(fileTimeFormat),
			Indexed:          b.indexed,
			Complete:         true,
			LineCount:        lineCount,
		})
		if err != nil {
			return err
		}
		if b.indexed && b.hasContent {
			return tx.UpsertFileContent(id, b.content)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.mergeNames(added)
	b.committed = true
	return id, nil
}

// merge folds newly supplied attributes into an existing file row without
// clobbering values the builder left unset.
func (b *FileBuilder) merge(tx *store.Tx, f *store.File) error {
	changed := false
	if b.language != "" && b.language != f.Language {
		f.Language = b.language
		changed = true
	}
	if !b.modTime.IsZero() {
		f.ModificationTime = b.modTime.Format(fileTimeFormat)
		changed = true
	}
	if b.hasContent {
		f.LineCount = countLines(b.content)
		f.Indexed = true
		changed = true
		if err := tx.UpsertFileContent(f.ID, b.content); err != nil {
			return err
		}
	}
	if !changed {
		return nil
	}
	return tx.UpdateFile(f)
}

// countLines counts text lines the way the reader does: a trailing newline
// does not start an extra line.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// LocationBuilder stages a source location record.
type LocationBuilder struct {
	session    *Session
	kind       LocationKind
	elementID  int64
	hasElement bool
	fileID     int64
	hasFile    bool
	start      [2]int
	hasStart   bool
	end        [2]int
	hasEnd     bool
	committed  bool
}

// RecordLocation starts a location record of the given kind.
func (s *Session) RecordLocation(kind LocationKind) *LocationBuilder {
	return &LocationBuilder{session: s, kind: kind}
}

// Location kind helpers.

func (s *Session) RecordSymbolLocation() *LocationBuilder {
	return s.RecordLocation(LocationToken)
}

func (s *Session) RecordSymbolScopeLocation() *LocationBuilder {
	return s.RecordLocation(LocationScope)
}

func (s *Session) RecordSymbolSignatureLocation() *LocationBuilder {
	return s.RecordLocation(LocationSignature)
}

func (s *Session) RecordReferenceLocation() *LocationBuilder {
	return s.RecordLocation(LocationToken)
}

func (s *Session) RecordQualifierLocation() *LocationBuilder {
	return s.RecordLocation(LocationQualifier)
}

func (s *Session) RecordLocalSymbolLocation() *LocationBuilder {
	return s.RecordLocation(LocationLocalSymbol)
}

func (s *Session) RecordAtomicSourceRange() *LocationBuilder {
	return s.RecordLocation(LocationAtomicRange)
}

// Element sets the element the location belongs to. Required.
func (b *LocationBuilder) Element(elementID int64) *LocationBuilder {
	b.elementID = elementID
	b.hasElement = true
	return b
}

// File sets the registered file the range lies in. Required.
func (b *LocationBuilder) File(fileID int64) *LocationBuilder {
	b.fileID = fileID
	b.hasFile = true
	return b
}

// StartPosition sets the 1-based start line and column. Required.
func (b *LocationBuilder) StartPosition(line, column int) *LocationBuilder {
	b.start = [2]int{line, column}
	b.hasStart = true
	return b
}

// EndPosition sets the 1-based inclusive end line and column. Required.
func (b *LocationBuilder) EndPosition(line, column int) *LocationBuilder {
	b.end = [2]int{line, column}
	b.hasEnd = true
	return b
}

// Commit writes the location and its occurrence, returning the location id.
func (b *LocationBuilder) Commit() (int64, error) {
	if b.committed {
		return 0, fmt.Errorf("%w: location record", ErrAlreadyCommitted)
	}
	switch {
	case !b.hasElement:
		return 0, fmt.Errorf("%w: location element", ErrMissingField)
	case !b.hasFile:
		return 0, fmt.Errorf("%w: location file", ErrMissingField)
	case !b.hasStart:
		return 0, fmt.Errorf("%w: location start position", ErrMissingField)
	case !b.hasEnd:
		return 0, fmt.Errorf("%w: location end position", ErrMissingField)
	}
	r := SourceRange{
		StartLine:   b.start[0],
		StartColumn: b.start[1],
		EndLine:     b.end[0],
		EndColumn:   b.end[1],
	}

	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		var err error
		id, err = s.recordLocation(tx, b.elementID, b.fileID, r, b.kind)
		return err
	})
	if err != nil {
		return 0, err
	}
	b.committed = true
	return id, nil
}

// unsolvedSymbolName is the well-known node unresolved references point at.
const unsolvedSymbolName = "unsolved symbol"

// UnsolvedSymbolBuilder stages a reference whose target could not be
// resolved. The reference edge points at a shared "unsolved symbol" node
// and the source range is marked with the unsolved location kind so the
// reader renders it distinctly.
type UnsolvedSymbolBuilder struct {
	session    *Session
	symbolID   int64
	hasSymbol  bool
	refKind    EdgeKind
	hasRefKind bool
	fileID     int64
	hasFile    bool
	start      [2]int
	hasStart   bool
	end        [2]int
	hasEnd     bool
	committed  bool
}

// RecordUnsolvedSymbol starts an unsolved-reference record.
func (s *Session) RecordUnsolvedSymbol() *UnsolvedSymbolBuilder {
	return &UnsolvedSymbolBuilder{session: s}
}

// Symbol sets the referencing symbol's node id. Required.
func (b *UnsolvedSymbolBuilder) Symbol(nodeID int64) *UnsolvedSymbolBuilder {
	b.symbolID = nodeID
	b.hasSymbol = true
	return b
}

// ReferenceKind sets the kind of the unresolved reference. Required.
func (b *UnsolvedSymbolBuilder) ReferenceKind(kind EdgeKind) *UnsolvedSymbolBuilder {
	b.refKind = kind
	b.hasRefKind = true
	return b
}

// File sets the registered file the reference occurs in. Required.
func (b *UnsolvedSymbolBuilder) File(fileID int64) *UnsolvedSymbolBuilder {
	b.fileID = fileID
	b.hasFile = true
	return b
}

// StartPosition sets the 1-based start of the reference range. Required.
func (b *UnsolvedSymbolBuilder) StartPosition(line, column int) *UnsolvedSymbolBuilder {
	b.start = [2]int{line, column}
	b.hasStart = true
	return b
}

// EndPosition sets the 1-based inclusive end of the reference range.
// Required.
func (b *UnsolvedSymbolBuilder) EndPosition(line, column int) *UnsolvedSymbolBuilder {
	b.end = [2]int{line, column}
	b.hasEnd = true
	return b
}

// Commit records the unresolved reference, returning the edge id.
func (b *UnsolvedSymbolBuilder) Commit() (int64, error) {
	if b.committed {
		return 0, fmt.Errorf("%w: unsolved symbol record", ErrAlreadyCommitted)
	}
	switch {
	case !b.hasSymbol:
		return 0, fmt.Errorf("%w: referencing symbol", ErrMissingField)
	case !b.hasRefKind:
		return 0, fmt.Errorf("%w: reference kind", ErrMissingField)
	case !b.hasFile:
		return 0, fmt.Errorf("%w: reference file", ErrMissingField)
	case !b.hasStart:
		return 0, fmt.Errorf("%w: reference start position", ErrMissingField)
	case !b.hasEnd:
		return 0, fmt.Errorf("%w: reference end position", ErrMissingField)
	}
	if !b.refKind.Valid() {
		return 0, fmt.Errorf("%w: edge kind %d", ErrInvalidSymbolKind, b.refKind)
	}
	r := SourceRange{
		StartLine:   b.start[0],
		StartColumn: b.start[1],
		EndLine:     b.end[0],
		EndColumn:   b.end[1],
	}

	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make(map[string]int64)
	var edgeID int64
	err := s.withTx(func(tx *store.Tx) error {
		hierarchy, err := NewNameHierarchy(DelimiterUnknown, NameElement{Name: unsolvedSymbolName})
		if err != nil {
			return err
		}
		unsolvedID, err := s.registerHierarchy(tx, hierarchy, NodeSymbol, added)
		if err != nil {
			return err
		}
		edgeID, err = s.recordEdge(tx, b.refKind, b.symbolID, unsolvedID)
		if err != nil {
			return err
		}
		_, err = s.recordLocation(tx, edgeID, b.fileID, r, LocationUnsolved)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.mergeNames(added)
	b.committed = true
	return edgeID, nil
}

// IndexerErrorBuilder stages an error message the indexer encountered, tied
// to the source range that produced it.
type IndexerErrorBuilder struct {
	session   *Session
	message   string
	fatal     bool
	fileID    int64
	hasFile   bool
	start     [2]int
	hasStart  bool
	end       [2]int
	hasEnd    bool
	committed bool
}

// RecordIndexerError starts an indexer-error record.
func (s *Session) RecordIndexerError() *IndexerErrorBuilder {
	return &IndexerErrorBuilder{session: s}
}

// Message sets the error text. Required.
func (b *IndexerErrorBuilder) Message(message string) *IndexerErrorBuilder {
	b.message = message
	return b
}

// Fatal marks the error as one that aborted indexing of its file.
func (b *IndexerErrorBuilder) Fatal(fatal bool) *IndexerErrorBuilder {
	b.fatal = fatal
	return b
}

// File sets the registered file the error occurred in. Required.
func (b *IndexerErrorBuilder) File(fileID int64) *IndexerErrorBuilder {
	b.fileID = fileID
	b.hasFile = true
	return b
}

// StartPosition sets the 1-based start of the error range. Required.
func (b *IndexerErrorBuilder) StartPosition(line, column int) *IndexerErrorBuilder {
	b.start = [2]int{line, column}
	b.hasStart = true
	return b
}

// EndPosition sets the 1-based inclusive end of the error range. Required.
func (b *IndexerErrorBuilder) EndPosition(line, column int) *IndexerErrorBuilder {
	b.end = [2]int{line, column}
	b.hasEnd = true
	return b
}

// Commit records the error, returning its element id.
func (b *IndexerErrorBuilder) Commit() (int64, error) {
	if b.committed {
		return 0, fmt.Errorf("%w: indexer error record", ErrAlreadyCommitted)
	}
	switch {
	case b.message == "":
		return 0, fmt.Errorf("%w: error message", ErrMissingField)
	case !b.hasFile:
		return 0, fmt.Errorf("%w: error file", ErrMissingField)
	case !b.hasStart:
		return 0, fmt.Errorf("%w: error start position", ErrMissingField)
	case !b.hasEnd:
		return 0, fmt.Errorf("%w: error end position", ErrMissingField)
	}
	r := SourceRange{
		StartLine:   b.start[0],
		StartColumn: b.start[1],
		EndLine:     b.end[0],
		EndColumn:   b.end[1],
	}

	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		id = s.ids.Next()
		if err := tx.InsertElement(id); err != nil {
			return err
		}
		err := tx.InsertError(&store.IndexError{
			ID:      id,
			Message: b.message,
			Fatal:   b.fatal,
			Indexed: true,
		})
		if err != nil {
			return err
		}
		_, err = s.recordLocation(tx, id, b.fileID, r, LocationIndexerError)
		return err
	})
	if err != nil {
		return 0, err
	}
	b.committed = true
	return id, nil
}
