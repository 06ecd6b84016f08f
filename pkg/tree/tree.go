// Package tree holds the source-annotated document model produced by
// parsing YAML text. Every node remembers where in the source it came
// from, so later stages can report errors against the original file.
package tree

import "strings"

// Kind identifies which of the three node shapes a Node is.
type Kind int

const (
	KindScalar Kind = iota + 1
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Marker is a single source coordinate. Line and column are 1-based;
// source is an opaque identifier chosen by whoever parsed the document,
// typically an index into a list of file names.
type Marker struct {
	source int
	line   int
	column int
}

// NewMarker creates a marker for the given source coordinate.
func NewMarker(source, line, column int) Marker {
	return Marker{source: source, line: line, column: column}
}

func (m Marker) Source() int { return m.source }
func (m Marker) Line() int   { return m.line }
func (m Marker) Column() int { return m.column }

// Span is a possibly-partial source range. Scalars parsed from text
// carry a start marker only; containers carry both ends. A zero Span
// is blank, meaning no location is known.
type Span struct {
	start    Marker
	end      Marker
	hasStart bool
	hasEnd   bool
}

// NewSpan creates a span from optional start and end markers. A nil
// marker means that end of the range is unknown.
func NewSpan(start, end *Marker) Span {
	var s Span
	if start != nil {
		s.start = *start
		s.hasStart = true
	}
	if end != nil {
		s.end = *end
		s.hasEnd = true
	}
	return s
}

// Start returns the start marker, or nil if the span has none.
func (s Span) Start() *Marker {
	if !s.hasStart {
		return nil
	}
	m := s.start
	return &m
}

// End returns the end marker, or nil if the span has none.
func (s Span) End() *Marker {
	if !s.hasEnd {
		return nil
	}
	m := s.end
	return &m
}

// IsBlank reports whether the span carries no location at all.
func (s Span) IsBlank() bool { return !s.hasStart && !s.hasEnd }

// Node is a parsed document value: scalar, mapping or sequence. The
// set of implementations is closed; callers dispatch with a type
// switch over the three concrete types.
type Node interface {
	Kind() Kind
	Span() Span

	sealed()
}

// Scalar is a leaf node holding the scalar's original text.
type Scalar struct {
	text string
	span Span
}

// NewScalar creates a scalar node with the given text and span.
func NewScalar(text string, span Span) *Scalar {
	return &Scalar{text: text, span: span}
}

func (s *Scalar) Kind() Kind { return KindScalar }
func (s *Scalar) Span() Span { return s.span }
func (s *Scalar) sealed()    {}

// Text returns the scalar's textual content as written in the source,
// with quoting already removed by the parser.
func (s *Scalar) Text() string { return s.text }

// AsBool coerces the scalar text to a boolean. Only case-insensitive
// "true" and "false" are accepted; anything else reports ok=false.
func (s *Scalar) AsBool() (value, ok bool) {
	switch {
	case strings.EqualFold(s.text, "true"):
		return true, true
	case strings.EqualFold(s.text, "false"):
		return false, true
	default:
		return false, false
	}
}

// Entry is a single key/value pair in a mapping.
type Entry struct {
	Key   *Scalar
	Value Node
}

// Mapping is an ordered collection of key/value pairs. Insertion order
// is the canonical iteration order. Duplicate keys keep the first
// occurrence.
type Mapping struct {
	entries []Entry
	index   map[string]int
	span    Span
}

// NewMapping creates a mapping node from the given entries. Entries
// whose key repeats an earlier key are dropped.
func NewMapping(span Span, entries []Entry) *Mapping {
	m := &Mapping{span: span, index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, dup := m.index[e.Key.Text()]; dup {
			continue
		}
		m.index[e.Key.Text()] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m
}

func (m *Mapping) Kind() Kind { return KindMapping }
func (m *Mapping) Span() Span { return m.span }
func (m *Mapping) sealed()    {}

// Len returns the number of entries.
func (m *Mapping) Len() int { return len(m.entries) }

// At returns the i'th entry in insertion order.
func (m *Mapping) At(i int) Entry { return m.entries[i] }

// Get looks up the value for the given key text.
func (m *Mapping) Get(key string) (Node, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Key looks up the key scalar itself, which callers use when a
// diagnostic should point at the key rather than its value.
func (m *Mapping) Key(key string) (*Scalar, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Key, true
}

// Sequence is an ordered, indexable list of nodes.
type Sequence struct {
	items []Node
	span  Span
}

// NewSequence creates a sequence node from the given items.
func NewSequence(span Span, items []Node) *Sequence {
	return &Sequence{span: span, items: items}
}

func (s *Sequence) Kind() Kind { return KindSequence }
func (s *Sequence) Span() Span { return s.span }
func (s *Sequence) sealed()    {}

// Len returns the number of items.
func (s *Sequence) Len() int { return len(s.items) }

// At returns the i'th item.
func (s *Sequence) At(i int) Node { return s.items[i] }

// Get returns the i'th item, reporting ok=false when i is out of
// range.
func (s *Sequence) Get(i int) (Node, bool) {
	if i < 0 || i >= len(s.items) {
		return nil, false
	}
	return s.items[i], true
}
