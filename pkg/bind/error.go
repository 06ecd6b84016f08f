package bind

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spanyaml/spanyaml/pkg/tree"
)

// ErrorKind enumerates the closed set of decode failures.
type ErrorKind int

const (
	// NotBoolean means a scalar's text failed boolean coercion.
	NotBoolean ErrorKind = iota + 1
	// IntegerParseFailure means a scalar's text did not parse as the
	// requested integer type.
	IntegerParseFailure
	// FloatParseFailure means a scalar's text did not parse as the
	// requested float type.
	FloatParseFailure
	// UnknownField means a mapping key was rejected by the target
	// struct.
	UnknownField
	// OtherError covers any remaining failure, such as a shape
	// mismatch between a node and its target type.
	OtherError
)

// Error is a decode failure. Every error carries a span; errors
// raised from code with no view of the node tree start with a blank
// span, which the traced entry points backfill before returning.
type Error struct {
	Kind ErrorKind
	Span tree.Span

	// Field and Expected are set for UnknownField.
	Field    string
	Expected []string

	// Message is set for OtherError.
	Message string

	// Err holds the underlying parse error for the numeric failures.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case NotBoolean:
		return "value is not a boolean"
	case IntegerParseFailure, FloatParseFailure:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "number parse failure"
	case UnknownField:
		return formatUnknownField(e.Field, e.Expected)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// StartMark returns the start marker of the error's span, or nil when
// no location is known. Callers printing diagnostics should handle
// the nil case by omitting the location.
func (e *Error) StartMark() *tree.Marker { return e.Span.Start() }

// setSpan attaches a span to an error that was raised without one.
// Called at most once, by the backfill pass.
func (e *Error) setSpan(span tree.Span) { e.Span = span }

func formatUnknownField(field string, expected []string) string {
	switch len(expected) {
	case 0:
		return fmt.Sprintf("unknown field %q, there are no fields", field)
	case 1:
		return fmt.Sprintf("unknown field %q, expected %q", field, expected[0])
	case 2:
		return fmt.Sprintf("unknown field %q, expected %q or %q", field, expected[0], expected[1])
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "unknown field %q, expected one of ", field)
		for _, v := range expected[:len(expected)-1] {
			fmt.Fprintf(&b, "%q, ", v)
		}
		fmt.Fprintf(&b, "or %q", expected[len(expected)-1])
		return b.String()
	}
}

// withSpan stamps a span onto an error that does not have one yet.
func withSpan(e *Error, span tree.Span) *Error {
	if e.Span.IsBlank() {
		e.setSpan(span)
	}
	return e
}

type segmentKind int

const (
	segmentKey segmentKind = iota + 1
	segmentIndex
)

// Segment is one step of a traversal path: a mapping key or a
// sequence index.
type Segment struct {
	kind  segmentKind
	key   string
	index int
}

// KeySegment creates a mapping-key path step.
func KeySegment(key string) Segment { return Segment{kind: segmentKey, key: key} }

// IndexSegment creates a sequence-index path step.
func IndexSegment(index int) Segment { return Segment{kind: segmentIndex, index: index} }

// Key returns the mapping key, with ok=false for index segments.
func (s Segment) Key() (string, bool) { return s.key, s.kind == segmentKey }

// Index returns the sequence index, with ok=false for key segments.
func (s Segment) Index() (int, bool) { return s.index, s.kind == segmentIndex }

// Path is the traversal route from the document root to the node
// being decoded when an error was raised.
type Path []Segment

// String renders the path in the familiar dotted form, for example
// "jobs.build.steps[0]".
func (p Path) String() string {
	var b strings.Builder
	for _, seg := range p {
		switch seg.kind {
		case segmentKey:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.key)
		case segmentIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// TraceError is returned by the traced entry points. It pairs the
// decode error with the traversal path recorded at the moment the
// error was raised.
type TraceError struct {
	path Path
	err  *Error
}

// Path returns the recorded traversal path.
func (e *TraceError) Path() Path { return e.path }

// Inner returns the plain decode error.
func (e *TraceError) Inner() *Error { return e.err }

func (e *TraceError) Error() string {
	if len(e.path) == 0 {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.path, e.err)
}

func (e *TraceError) Unwrap() error { return e.err }
