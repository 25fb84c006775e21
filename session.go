package trailhead

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jward/trailhead/internal/store"
)

const (
	databaseExt = ".srctrldb"
	projectExt  = ".srctrlprj"

	projectSettingsXML = `<?xml version="1.0" encoding="utf-8" ?>
<config>
    <version>0</version>
</config>
`
)

// Session is the single logical writer for one project database. All record
// operations go through it; a mutex serializes commits so every record lands
// in its own write transaction.
type Session struct {
	store *store.Store
	path  string

	mu     sync.Mutex
	ids    *idAllocator
	names  map[string]int64
	locals map[localSymbolKey]int64
}

type localSymbolKey struct {
	scope string
	name  string
}

// uniformizePath forces the database extension the reader expects,
// replacing any other extension the caller supplied.
func uniformizePath(path string) string {
	if ext := filepath.Ext(path); ext != databaseExt {
		path = strings.TrimSuffix(path, ext) + databaseExt
	}
	return path
}

// Exists reports whether a project database already exists at path.
func Exists(path string) bool {
	_, err := os.Stat(uniformizePath(path))
	return err == nil
}

// Create makes a new, empty project database at path (the .srctrldb
// extension is enforced) together with its sibling .srctrlprj project file.
// It fails if the database already exists.
func Create(path string) (*Session, error) {
	path = uniformizePath(path)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", ErrDatabase, path)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if err := st.InsertMeta("storage_version", store.StorageVersion); err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if err := st.InsertMeta("project_settings", projectSettingsXML); err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	projectPath := strings.TrimSuffix(path, databaseExt) + projectExt
	if err := os.WriteFile(projectPath, []byte(projectSettingsXML), 0o644); err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: writing project file: %v", ErrDatabase, err)
	}

	return newSession(st, path)
}

// Open opens an existing project database, verifying its storage version.
func Open(path string) (*Session, error) {
	path = uniformizePath(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrDatabase, path)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	version, err := st.MetaValue("storage_version")
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if version != store.StorageVersion {
		st.Close()
		return nil, fmt.Errorf("%w: storage version %q, want %s", ErrDatabase, version, store.StorageVersion)
	}

	return newSession(st, path)
}

// OpenOrCreate opens the database at path, creating it when absent. When
// clear is set an existing database is wiped first.
func OpenOrCreate(path string, clear bool) (*Session, error) {
	if !Exists(path) {
		return Create(path)
	}
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if clear {
		if err := s.Clear(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func newSession(st *store.Store, path string) (*Session, error) {
	maxID, err := st.MaxID()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	names, err := st.NodeNames()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return &Session{
		store:  st,
		path:   path,
		ids:    newIDAllocator(maxID),
		names:  names,
		locals: make(map[localSymbolKey]int64),
	}, nil
}

// Path returns the database file path.
func (s *Session) Path() string { return s.path }

// Clear wipes all index data, keeping the database a valid empty project.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	s.ids = newIDAllocator(0)
	s.names = make(map[string]int64)
	s.locals = make(map[localSymbolKey]int64)
	return nil
}

// CommitAll flushes the write-ahead log into the database file. Record
// commits are already durable transactions; call this before handing the
// .srctrldb file to another tool.
func (s *Session) CommitAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Checkpoint(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

// Close closes the database. Records not committed through a builder are
// never written, so closing mid-construction leaves the file untouched.
func (s *Session) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

// withTx wraps store.WithTx, folding storage failures into ErrDatabase
// while passing validation sentinels through untouched.
func (s *Session) withTx(fn func(tx *store.Tx) error) error {
	err := s.store.WithTx(fn)
	if err != nil && !isSentinel(err) {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return err
}

func isSentinel(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidName, ErrInvalidSymbolKind, ErrDanglingReference,
		ErrInvalidRange, ErrMissingField, ErrAlreadyCommitted,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// getOrCreateNode resolves a serialized name to a node id inside tx,
// inserting element and node rows on first sight. Hierarchy prefixes enter
// as bare NodeSymbol placeholders; when a specific kind arrives for an
// existing placeholder the kind is promoted in place. added accumulates the
// tx's new name bindings so the session cache is only updated on commit.
func (s *Session) getOrCreateNode(tx *store.Tx, name string, kind NodeKind, added map[string]int64) (int64, error) {
	promote := func(id int64) error {
		if kind == NodeSymbol {
			return nil
		}
		return tx.PromoteNodeKind(id, int32(kind), int32(NodeSymbol))
	}

	if id, ok := added[name]; ok {
		return id, promote(id)
	}
	if id, ok := s.names[name]; ok {
		return id, promote(id)
	}
	// The cache is a fast path only; the table is authoritative.
	if existing, err := tx.NodeByName(name); err != nil {
		return 0, err
	} else if existing != nil {
		added[name] = existing.ID
		return existing.ID, promote(existing.ID)
	}

	id := s.ids.Next()
	if err := tx.InsertElement(id); err != nil {
		return 0, err
	}
	if err := tx.InsertNode(&store.Node{ID: id, Kind: int32(kind), SerializedName: name}); err != nil {
		return 0, err
	}
	added[name] = id
	return id, nil
}

// registerHierarchy records every ancestor prefix of h as a node and a
// Member edge between each consecutive pair, returning the leaf node's id.
// The leaf gets leafKind; ancestors not seen before enter as placeholders.
func (s *Session) registerHierarchy(tx *store.Tx, h NameHierarchy, leafKind NodeKind, added map[string]int64) (int64, error) {
	ids := make([]int64, 0, len(h.Elements))
	for i := range h.Elements {
		name, err := h.SerializeRange(0, i+1)
		if err != nil {
			return 0, err
		}
		kind := NodeSymbol
		if i == len(h.Elements)-1 {
			kind = leafKind
		}
		id, err := s.getOrCreateNode(tx, name, kind, added)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if _, err := s.recordEdge(tx, EdgeMember, ids[i-1], ids[i]); err != nil {
			return 0, err
		}
	}
	return ids[len(ids)-1], nil
}

// recordEdge deduplicates on the (kind, source, target) triple and verifies
// both endpoints exist as nodes before inserting.
func (s *Session) recordEdge(tx *store.Tx, kind EdgeKind, sourceID, targetID int64) (int64, error) {
	existing, err := tx.EdgeByTriple(int32(kind), sourceID, targetID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	for _, nodeID := range []int64{sourceID, targetID} {
		ok, err := tx.NodeExists(nodeID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: node %d", ErrDanglingReference, nodeID)
		}
	}

	id := s.ids.Next()
	if err := tx.InsertElement(id); err != nil {
		return 0, err
	}
	err = tx.InsertEdge(&store.Edge{
		ID:           id,
		Kind:         int32(kind),
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// recordLocation validates the range, checks the file and element exist,
// and writes a source_location row plus its occurrence. Locations are never
// deduplicated.
func (s *Session) recordLocation(tx *store.Tx, elementID, fileID int64, r SourceRange, kind LocationKind) (int64, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: location kind %d", ErrInvalidSymbolKind, kind)
	}
	file, err := tx.FileByID(fileID)
	if err != nil {
		return 0, err
	}
	if file == nil {
		return 0, fmt.Errorf("%w: file %d", ErrDanglingReference, fileID)
	}
	ok, err := tx.ElementExists(elementID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: element %d", ErrDanglingReference, elementID)
	}

	id := s.ids.Next()
	err = tx.InsertSourceLocation(&store.SourceLocation{
		ID:          id,
		FileNodeID:  fileID,
		StartLine:   r.StartLine,
		StartColumn: r.StartColumn,
		EndLine:     r.EndLine,
		EndColumn:   r.EndColumn,
		Kind:        int32(kind),
	})
	if err != nil {
		return 0, err
	}
	if err := tx.InsertOccurrence(elementID, id); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordReference records a relationship edge between two existing nodes.
// Identical (kind, source, target) triples return the first edge's id
// without a second row.
func (s *Session) RecordReference(kind EdgeKind, sourceID, targetID int64) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: edge kind %d", ErrInvalidSymbolKind, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		var err error
		id, err = s.recordEdge(tx, kind, sourceID, targetID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Per-kind reference helpers.

func (s *Session) RecordRefMember(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeMember, sourceID, targetID)
}

func (s *Session) RecordRefTypeUsage(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeTypeUsage, sourceID, targetID)
}

func (s *Session) RecordRefUsage(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeUsage, sourceID, targetID)
}

func (s *Session) RecordRefCall(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeCall, sourceID, targetID)
}

func (s *Session) RecordRefInheritance(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeInheritance, sourceID, targetID)
}

func (s *Session) RecordRefOverride(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeOverride, sourceID, targetID)
}

func (s *Session) RecordRefTypeArgument(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeTypeArgument, sourceID, targetID)
}

func (s *Session) RecordRefTemplateSpecialization(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeTemplateSpecialization, sourceID, targetID)
}

func (s *Session) RecordRefInclude(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeInclude, sourceID, targetID)
}

func (s *Session) RecordRefImport(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeImport, sourceID, targetID)
}

func (s *Session) RecordRefBundledEdges(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeBundledEdges, sourceID, targetID)
}

func (s *Session) RecordRefMacroUsage(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeMacroUsage, sourceID, targetID)
}

func (s *Session) RecordRefAnnotationUsage(sourceID, targetID int64) (int64, error) {
	return s.RecordReference(EdgeAnnotationUsage, sourceID, targetID)
}

// RecordReferenceAmbiguous flags an existing reference as ambiguous.
// Idempotent per reference.
func (s *Session) RecordReferenceAmbiguous(referenceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *store.Tx) error {
		ok, err := tx.ElementExists(referenceID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: reference %d", ErrDanglingReference, referenceID)
		}
		flagged, err := tx.HasElementComponent(referenceID, store.ComponentIsAmbiguous)
		if err != nil {
			return err
		}
		if flagged {
			return nil
		}
		return tx.InsertElementComponent(&store.ElementComponent{
			ElementID: referenceID,
			Kind:      store.ComponentIsAmbiguous,
		})
	})
}

// RecordSourceLocation attaches a source range in a registered file to an
// existing element. Every call writes a new location row.
func (s *Session) RecordSourceLocation(elementID, fileID int64, r SourceRange, kind LocationKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		var err error
		id, err = s.recordLocation(tx, elementID, fileID, r, kind)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RecordLocalSymbol records a function-local name such as a variable or
// parameter. scope is a caller-chosen key (typically the enclosing
// function's qualified name); repeated calls with the same scope and name
// return the same id, while equal names in different scopes stay distinct.
func (s *Session) RecordLocalSymbol(scope, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty local symbol name", ErrInvalidName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := localSymbolKey{scope: scope, name: name}
	if id, ok := s.locals[key]; ok {
		return id, nil
	}

	var id int64
	err := s.withTx(func(tx *store.Tx) error {
		id = s.ids.Next()
		stored := name
		if scope != "" {
			stored = scope + "<" + name + ">"
		}
		if err := tx.InsertElement(id); err != nil {
			return err
		}
		return tx.InsertLocalSymbol(&store.LocalSymbol{ID: id, Name: stored})
	})
	if err != nil {
		return 0, err
	}
	s.locals[key] = id
	return id, nil
}

// RecordFileLanguage sets the language of an already registered file.
func (s *Session) RecordFileLanguage(fileID int64, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *store.Tx) error {
		file, err := tx.FileByID(fileID)
		if err != nil {
			return err
		}
		if file == nil {
			return fmt.Errorf("%w: file %d", ErrDanglingReference, fileID)
		}
		file.Language = language
		return tx.UpdateFile(file)
	})
}

// RecordSymbolAccess records a node's access specifier (public, private,
// ...). Later calls overwrite earlier ones.
func (s *Session) RecordSymbolAccess(nodeID int64, access AccessKind) error {
	if !access.Valid() {
		return fmt.Errorf("%w: access kind %d", ErrInvalidSymbolKind, access)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *store.Tx) error {
		ok, err := tx.NodeExists(nodeID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: node %d", ErrDanglingReference, nodeID)
		}
		return tx.UpsertComponentAccess(nodeID, int32(access))
	})
}

// mergeNames folds a committed transaction's new name bindings into the
// session cache.
func (s *Session) mergeNames(added map[string]int64) {
	for name, id := range added {
		s.names[name] = id
	}
}
