package trailhead

import (
	"fmt"
	"strings"
)

// Qualified-name delimiters understood by the Sourcetrail reader.
const (
	DelimiterCxx     = "::"
	DelimiterJava    = "."
	DelimiterFile    = "/"
	DelimiterUnknown = "@"
)

// Separators of the serialized hierarchy format. The meta separator splits
// the delimiter from the element list, elements are joined by the name
// separator, and each element carries its prefix and postfix behind the
// part separators.
const (
	metaSeparator    = "\tm"
	nameSeparator    = "\tn"
	prefixSeparator  = "\ts"
	postfixSeparator = "\tp"
)

// NameElement is one level of a qualified name: the name itself plus an
// optional display prefix (e.g. a return type) and postfix (e.g. a
// parameter list).
type NameElement struct {
	Prefix  string
	Name    string
	Postfix string
}

// NameHierarchy is a fully qualified name: an ordered chain of elements
// from outermost container to the symbol itself, joined by a
// language-specific delimiter.
type NameHierarchy struct {
	Delimiter string
	Elements  []NameElement
}

// NewNameHierarchy builds a hierarchy from at least one element.
func NewNameHierarchy(delimiter string, elements ...NameElement) (NameHierarchy, error) {
	if len(elements) == 0 {
		return NameHierarchy{}, fmt.Errorf("%w: hierarchy needs at least one element", ErrInvalidName)
	}
	return NameHierarchy{Delimiter: delimiter, Elements: elements}, nil
}

// Size returns the number of elements in the hierarchy.
func (h NameHierarchy) Size() int { return len(h.Elements) }

// Push appends a child element.
func (h *NameHierarchy) Push(e NameElement) {
	h.Elements = append(h.Elements, e)
}

// Serialize encodes the full hierarchy into the reader's wire format.
func (h NameHierarchy) Serialize() (string, error) {
	return h.SerializeRange(0, len(h.Elements))
}

// SerializeRange encodes the elements in [start, end). Serializing each
// [0, i) range yields the names of every ancestor prefix, which is how
// hierarchy registration derives the containment chain.
func (h NameHierarchy) SerializeRange(start, end int) (string, error) {
	if start < 0 || end > len(h.Elements) || start >= end {
		return "", fmt.Errorf("%w: serialize range [%d, %d) of %d elements", ErrInvalidName, start, end, len(h.Elements))
	}
	var b strings.Builder
	b.WriteString(escapeComponent(h.Delimiter))
	b.WriteString(metaSeparator)
	for i := start; i < end; i++ {
		if i > start {
			b.WriteString(nameSeparator)
		}
		e := h.Elements[i]
		b.WriteString(escapeComponent(e.Name))
		b.WriteString(prefixSeparator)
		b.WriteString(escapeComponent(e.Prefix))
		b.WriteString(postfixSeparator)
		b.WriteString(escapeComponent(e.Postfix))
	}
	return b.String(), nil
}

// DeserializeNameHierarchy decodes a serialized hierarchy. It is the exact
// inverse of Serialize for any input Serialize can produce.
func DeserializeNameHierarchy(s string) (NameHierarchy, error) {
	delim, rest, ok := strings.Cut(s, metaSeparator)
	if !ok {
		return NameHierarchy{}, fmt.Errorf("%w: serialized name %q has no delimiter separator", ErrInvalidName, s)
	}
	delimiter, err := unescapeComponent(delim)
	if err != nil {
		return NameHierarchy{}, err
	}

	parts := strings.Split(rest, nameSeparator)
	elements := make([]NameElement, 0, len(parts))
	for _, part := range parts {
		name, tail, ok := strings.Cut(part, prefixSeparator)
		if !ok {
			return NameHierarchy{}, fmt.Errorf("%w: element %q has no prefix separator", ErrInvalidName, part)
		}
		prefix, postfix, ok := strings.Cut(tail, postfixSeparator)
		if !ok {
			return NameHierarchy{}, fmt.Errorf("%w: element %q has no postfix separator", ErrInvalidName, part)
		}
		e := NameElement{}
		if e.Name, err = unescapeComponent(name); err != nil {
			return NameHierarchy{}, err
		}
		if e.Prefix, err = unescapeComponent(prefix); err != nil {
			return NameHierarchy{}, err
		}
		if e.Postfix, err = unescapeComponent(postfix); err != nil {
			return NameHierarchy{}, err
		}
		elements = append(elements, e)
	}
	return NameHierarchy{Delimiter: delimiter, Elements: elements}, nil
}

var componentEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`)

// escapeComponent makes a name component safe to embed between the tab
// separators. Identifiers never contain tabs or backslashes, so for real
// names the escaped form is byte-identical to the input.
func escapeComponent(s string) string {
	if !strings.ContainsAny(s, "\\\t") {
		return s
	}
	return componentEscaper.Replace(s)
}

func unescapeComponent(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: component %q ends mid-escape", ErrInvalidName, s)
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("%w: component %q has unknown escape %q", ErrInvalidName, s, s[i])
		}
	}
	return b.String(), nil
}
