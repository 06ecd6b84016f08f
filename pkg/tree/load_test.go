package tree

import "testing"

const testDoc = `hello: world
some: [ value, or, other ]
says: { grow: nothing, or: die }
numbers: [ 1, 2, 3, 500 ]
success: true
failure: False
shouting: TRUE
`

func mustParse(t *testing.T, doc string) *Mapping {
	t.Helper()
	m, err := Parse(0, []byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

func wantMarker(t *testing.T, m *Marker, source, line, column int) {
	t.Helper()
	if m == nil {
		t.Fatalf("marker is nil, want (%d, %d, %d)", source, line, column)
	}
	if m.Source() != source || m.Line() != line || m.Column() != column {
		t.Errorf("marker = (%d, %d, %d), want (%d, %d, %d)",
			m.Source(), m.Line(), m.Column(), source, line, column)
	}
}

func TestParsePositions(t *testing.T) {
	root := mustParse(t, testDoc)

	wantMarker(t, root.Span().Start(), 0, 1, 1)
	if root.Span().End() == nil {
		t.Error("root mapping has no end marker")
	}

	key, ok := root.Key("hello")
	if !ok {
		t.Fatal("key hello not found")
	}
	wantMarker(t, key.Span().Start(), 0, 1, 1)

	hello, _ := root.Get("hello")
	scalar, ok := hello.(*Scalar)
	if !ok {
		t.Fatalf("hello is %T, want *Scalar", hello)
	}
	if scalar.Text() != "world" {
		t.Errorf("hello = %q, want %q", scalar.Text(), "world")
	}
	wantMarker(t, scalar.Span().Start(), 0, 1, 8)
	if scalar.Span().End() != nil {
		t.Error("scalar carries an end marker")
	}
}

func TestParseFlowSequence(t *testing.T) {
	root := mustParse(t, testDoc)

	node, ok := root.Get("numbers")
	if !ok {
		t.Fatal("key numbers not found")
	}
	seq, ok := node.(*Sequence)
	if !ok {
		t.Fatalf("numbers is %T, want *Sequence", node)
	}
	if seq.Len() != 4 {
		t.Fatalf("numbers has %d items, want 4", seq.Len())
	}
	if seq.Span().End() == nil {
		t.Error("sequence has no end marker")
	}

	last := seq.At(3).(*Scalar)
	if last.Text() != "500" {
		t.Errorf("numbers[3] = %q, want %q", last.Text(), "500")
	}
	wantMarker(t, last.Span().Start(), 0, 4, 21)
}

func TestParseFlowMapping(t *testing.T) {
	root := mustParse(t, testDoc)

	node, ok := root.Get("says")
	if !ok {
		t.Fatal("key says not found")
	}
	says, ok := node.(*Mapping)
	if !ok {
		t.Fatalf("says is %T, want *Mapping", node)
	}
	if says.Len() != 2 {
		t.Fatalf("says has %d entries, want 2", says.Len())
	}
	if got := says.At(0).Key.Text(); got != "grow" {
		t.Errorf("first key = %q, want %q", got, "grow")
	}
	if got := says.At(1).Key.Text(); got != "or" {
		t.Errorf("second key = %q, want %q", got, "or")
	}
}

func TestParseKeepsRawScalarText(t *testing.T) {
	root := mustParse(t, testDoc)

	tests := []struct {
		key  string
		text string
	}{
		{"success", "true"},
		{"failure", "False"},
		{"shouting", "TRUE"},
	}
	for _, tt := range tests {
		node, ok := root.Get(tt.key)
		if !ok {
			t.Fatalf("key %s not found", tt.key)
		}
		if got := node.(*Scalar).Text(); got != tt.text {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.text)
		}
	}
}

func TestParseBlockSequence(t *testing.T) {
	root := mustParse(t, "items:\n  - first\n  - second\n")

	node, _ := root.Get("items")
	seq := node.(*Sequence)
	if seq.Len() != 2 {
		t.Fatalf("items has %d entries, want 2", seq.Len())
	}
	wantMarker(t, seq.At(0).Span().Start(), 0, 2, 5)
	wantMarker(t, seq.At(1).Span().Start(), 0, 3, 5)
}

func TestEndOfScalar(t *testing.T) {
	start := NewMarker(0, 1, 8)

	// Single line: end lands on the last character.
	single := NewScalar("world", NewSpan(&start, nil))
	wantMarker(t, endOf(single), 0, 1, 12)

	// Multi line: end lands on the last character of the final line.
	multiStart := NewMarker(0, 2, 3)
	multi := NewScalar("first\nsecond", NewSpan(&multiStart, nil))
	wantMarker(t, endOf(multi), 0, 3, 6)

	// Empty text: end coincides with start.
	empty := NewScalar("", NewSpan(&start, nil))
	wantMarker(t, endOf(empty), 0, 1, 8)

	blank := NewScalar("x", Span{})
	if endOf(blank) != nil {
		t.Error("scalar without a start marker produced an end marker")
	}
}

func TestContainerEndMarkers(t *testing.T) {
	root := mustParse(t, testDoc)

	// The root mapping ends where its last value ends: "TRUE" on
	// line 7 starts at column 11 and covers through column 14.
	wantMarker(t, root.Span().End(), 0, 7, 14)

	node, _ := root.Get("numbers")
	wantMarker(t, node.Span().End(), 0, 4, 23)
}

func TestParseAnchorsAndAliases(t *testing.T) {
	root := mustParse(t, "base: &anchor shared\ncopy: *anchor\n")

	node, ok := root.Get("copy")
	if !ok {
		t.Fatal("key copy not found")
	}
	if got := node.(*Scalar).Text(); got != "shared" {
		t.Errorf("copy = %q, want %q", got, "shared")
	}
	// The aliased value keeps the span of the anchor definition site,
	// where the text was actually written.
	wantMarker(t, node.Span().Start(), 0, 1, 15)
}

func TestParseSourceID(t *testing.T) {
	root, err := Parse(7, []byte("a: b\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := root.Span().Start().Source(); got != 7 {
		t.Errorf("source = %d, want 7", got)
	}
}

func TestParseRejectsNonMappingTopLevel(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"sequence", "- a\n- b\n"},
		{"scalar", "just a scalar\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(0, []byte(tt.doc)); err == nil {
				t.Errorf("Parse accepted %s top level", tt.name)
			}
		})
	}
}

func TestParseEmptyValue(t *testing.T) {
	root := mustParse(t, "empty:\nafter: x\n")

	node, ok := root.Get("empty")
	if !ok {
		t.Fatal("key empty not found")
	}
	if got := node.(*Scalar).Text(); got != "" {
		t.Errorf("empty = %q, want empty text", got)
	}
}
