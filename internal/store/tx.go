package store

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Tx scopes all write helpers and dedup lookups to one open transaction, so
// a record commit sees its own earlier inserts and either lands atomically
// or not at all.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) getOne(dest any, builder sq.SelectBuilder) (bool, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("building query: %w", err)
	}
	if err := t.tx.Get(dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertElement claims an id in the element table. Every node, edge, local
// symbol and error owns one element row.
func (t *Tx) InsertElement(id int64) error {
	if _, err := t.tx.Exec("INSERT INTO element(id) VALUES(?)", id); err != nil {
		return fmt.Errorf("inserting element %d: %w", id, err)
	}
	return nil
}

// ElementExists reports whether id has an element row.
func (t *Tx) ElementExists(id int64) (bool, error) {
	var one int
	found, err := t.getOne(&one, sq.Select("1").From("element").Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("looking up element %d: %w", id, err)
	}
	return found, nil
}

// NodeByName returns the node with the given serialized name, or nil.
func (t *Tx) NodeByName(serializedName string) (*Node, error) {
	var n Node
	found, err := t.getOne(&n, sq.
		Select("id", "type", "serialized_name").
		From("node").
		Where(sq.Eq{"serialized_name": serializedName}).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("looking up node %q: %w", serializedName, err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

// NodeByID returns the node with the given id, or nil.
func (t *Tx) NodeByID(id int64) (*Node, error) {
	var n Node
	found, err := t.getOne(&n, sq.
		Select("id", "type", "serialized_name").
		From("node").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("looking up node %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

// NodeExists reports whether id has a node row.
func (t *Tx) NodeExists(id int64) (bool, error) {
	var one int
	found, err := t.getOne(&one, sq.Select("1").From("node").Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("looking up node %d: %w", id, err)
	}
	return found, nil
}

// InsertNode writes a node row; the element row must already exist.
func (t *Tx) InsertNode(n *Node) error {
	_, err := t.tx.NamedExec(
		"INSERT INTO node(id, type, serialized_name) VALUES(:id, :type, :serialized_name)", n)
	if err != nil {
		return fmt.Errorf("inserting node %q: %w", n.SerializedName, err)
	}
	return nil
}

// PromoteNodeKind upgrades a node's kind, but only while it still carries
// the placeholder kind hierarchy registration assigned it.
func (t *Tx) PromoteNodeKind(id int64, kind, placeholder int32) error {
	_, err := t.tx.Exec("UPDATE node SET type = ? WHERE id = ? AND type = ?", kind, id, placeholder)
	if err != nil {
		return fmt.Errorf("promoting node %d: %w", id, err)
	}
	return nil
}

// SymbolByID returns the symbol row for a node id, or nil.
func (t *Tx) SymbolByID(id int64) (*Symbol, error) {
	var s Symbol
	found, err := t.getOne(&s, sq.
		Select("id", "definition_kind").
		From("symbol").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("looking up symbol %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

// UpsertSymbol records a node's definition kind, inserting or updating as
// needed.
func (t *Tx) UpsertSymbol(id int64, definitionKind int32) error {
	existing, err := t.SymbolByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err = t.tx.Exec("INSERT INTO symbol(id, definition_kind) VALUES(?, ?)", id, definitionKind)
	} else if existing.DefinitionKind != definitionKind {
		_, err = t.tx.Exec("UPDATE symbol SET definition_kind = ? WHERE id = ?", definitionKind, id)
	}
	if err != nil {
		return fmt.Errorf("writing symbol %d: %w", id, err)
	}
	return nil
}

// EdgeByTriple returns the edge with the given kind and endpoints, or nil.
// This lookup backs edge deduplication.
func (t *Tx) EdgeByTriple(kind int32, sourceID, targetID int64) (*Edge, error) {
	var e Edge
	found, err := t.getOne(&e, sq.
		Select("id", "type", "source_node_id", "target_node_id").
		From("edge").
		Where(sq.Eq{"type": kind, "source_node_id": sourceID, "target_node_id": targetID}).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("looking up edge (%d, %d, %d): %w", kind, sourceID, targetID, err)
	}
	if !found {
		return nil, nil
	}
	return &e, nil
}

// InsertEdge writes an edge row; the element row must already exist.
func (t *Tx) InsertEdge(e *Edge) error {
	_, err := t.tx.NamedExec(`
		INSERT INTO edge(id, type, source_node_id, target_node_id)
		VALUES(:id, :type, :source_node_id, :target_node_id)`, e)
	if err != nil {
		return fmt.Errorf("inserting edge %d: %w", e.ID, err)
	}
	return nil
}

// FileByPath returns the file row with the given path, or nil.
func (t *Tx) FileByPath(path string) (*File, error) {
	var f File
	found, err := t.getOne(&f, sq.
		Select("id", "path", "language", "modification_time", "indexed", "complete", "line_count").
		From("file").
		Where(sq.Eq{"path": path}).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("looking up file %q: %w", path, err)
	}
	if !found {
		return nil, nil
	}
	return &f, nil
}

// FileByID returns the file row with the given node id, or nil.
func (t *Tx) FileByID(id int64) (*File, error) {
	var f File
	found, err := t.getOne(&f, sq.
		Select("id", "path", "language", "modification_time", "indexed", "complete", "line_count").
		From("file").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("looking up file %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &f, nil
}

// InsertFile writes a file row; the node row must already exist.
func (t *Tx) InsertFile(f *File) error {
	_, err := t.tx.NamedExec(`
		INSERT INTO file(id, path, language, modification_time, indexed, complete, line_count)
		VALUES(:id, :path, :language, :modification_time, :indexed, :complete, :line_count)`, f)
	if err != nil {
		return fmt.Errorf("inserting file %q: %w", f.Path, err)
	}
	return nil
}

// UpdateFile rewrites all mutable columns of a file row.
func (t *Tx) UpdateFile(f *File) error {
	_, err := t.tx.NamedExec(`
		UPDATE file
		SET language = :language, modification_time = :modification_time,
		    indexed = :indexed, complete = :complete, line_count = :line_count
		WHERE id = :id`, f)
	if err != nil {
		return fmt.Errorf("updating file %d: %w", f.ID, err)
	}
	return nil
}

// HasFileContent reports whether a filecontent row exists for the file id.
func (t *Tx) HasFileContent(id int64) (bool, error) {
	var one int
	found, err := t.getOne(&one, sq.Select("1").From("filecontent").Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("looking up filecontent %d: %w", id, err)
	}
	return found, nil
}

// UpsertFileContent stores the indexed content of a file.
func (t *Tx) UpsertFileContent(id int64, content string) error {
	exists, err := t.HasFileContent(id)
	if err != nil {
		return err
	}
	if exists {
		_, err = t.tx.Exec("UPDATE filecontent SET content = ? WHERE id = ?", content, id)
	} else {
		_, err = t.tx.Exec("INSERT INTO filecontent(id, content) VALUES(?, ?)", id, content)
	}
	if err != nil {
		return fmt.Errorf("writing filecontent %d: %w", id, err)
	}
	return nil
}

// InsertSourceLocation writes a source_location row.
func (t *Tx) InsertSourceLocation(l *SourceLocation) error {
	_, err := t.tx.NamedExec(`
		INSERT INTO source_location(id, file_node_id, start_line, start_column, end_line, end_column, type)
		VALUES(:id, :file_node_id, :start_line, :start_column, :end_line, :end_column, :type)`, l)
	if err != nil {
		return fmt.Errorf("inserting source location %d: %w", l.ID, err)
	}
	return nil
}

// InsertOccurrence ties an element to a source location.
func (t *Tx) InsertOccurrence(elementID, locationID int64) error {
	_, err := t.tx.Exec(
		"INSERT INTO occurrence(element_id, source_location_id) VALUES(?, ?)", elementID, locationID)
	if err != nil {
		return fmt.Errorf("inserting occurrence (%d, %d): %w", elementID, locationID, err)
	}
	return nil
}

// InsertLocalSymbol writes a local_symbol row; the element row must already
// exist.
func (t *Tx) InsertLocalSymbol(l *LocalSymbol) error {
	_, err := t.tx.NamedExec("INSERT INTO local_symbol(id, name) VALUES(:id, :name)", l)
	if err != nil {
		return fmt.Errorf("inserting local symbol %q: %w", l.Name, err)
	}
	return nil
}

// InsertError writes an error row; the element row must already exist.
func (t *Tx) InsertError(e *IndexError) error {
	_, err := t.tx.NamedExec(`
		INSERT INTO error(id, message, fatal, indexed, translation_unit)
		VALUES(:id, :message, :fatal, :indexed, :translation_unit)`, e)
	if err != nil {
		return fmt.Errorf("inserting error %d: %w", e.ID, err)
	}
	return nil
}

// InsertElementComponent attaches auxiliary data to an element.
func (t *Tx) InsertElementComponent(c *ElementComponent) error {
	_, err := t.tx.NamedExec(`
		INSERT INTO element_component(element_id, type, data)
		VALUES(:element_id, :type, :data)`, c)
	if err != nil {
		return fmt.Errorf("inserting element component for %d: %w", c.ElementID, err)
	}
	return nil
}

// HasElementComponent reports whether the element already carries a
// component of the given kind.
func (t *Tx) HasElementComponent(elementID int64, kind int32) (bool, error) {
	var one int
	found, err := t.getOne(&one, sq.
		Select("1").
		From("element_component").
		Where(sq.Eq{"element_id": elementID, "type": kind}).
		Limit(1))
	if err != nil {
		return false, fmt.Errorf("looking up element component (%d, %d): %w", elementID, kind, err)
	}
	return found, nil
}

// UpsertComponentAccess records a node's access specifier.
func (t *Tx) UpsertComponentAccess(nodeID int64, kind int32) error {
	_, err := t.tx.Exec(`
		INSERT INTO component_access(node_id, type) VALUES(?, ?)
		ON CONFLICT(node_id) DO UPDATE SET type = excluded.type`, nodeID, kind)
	if err != nil {
		return fmt.Errorf("writing component access %d: %w", nodeID, err)
	}
	return nil
}
