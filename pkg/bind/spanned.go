// Package bind decodes a marked node tree (pkg/tree) into caller
// types, preserving source locations both for values the caller asks
// to keep them on (via Spanned) and for errors raised during the
// decode.
package bind

import (
	"fmt"
	"reflect"

	"github.com/spanyaml/spanyaml/pkg/tree"
)

// The synthetic struct identity used to carry span data through the
// otherwise location-unaware decoding machinery. Every per-kind
// decoder checks an incoming struct request against these exact
// identifiers before normal handling; keeping them in one place keeps
// the decoders from drifting apart.
const (
	spannedTypeName = "$spanyaml::bind::Spanned"

	keyStartSource = spannedTypeName + "::startSource"
	keyStartLine   = spannedTypeName + "::startLine"
	keyStartColumn = spannedTypeName + "::startColumn"
	keyEndSource   = spannedTypeName + "::endSource"
	keyEndLine     = spannedTypeName + "::endLine"
	keyEndColumn   = spannedTypeName + "::endColumn"
	keyInner       = spannedTypeName + "::inner"
)

var spannedFields = []string{
	keyStartSource,
	keyStartLine,
	keyStartColumn,
	keyEndSource,
	keyEndLine,
	keyEndColumn,
	keyInner,
}

// isSpannedRequest reports whether a struct request carries the
// reserved span-smuggling identity.
func isSpannedRequest(name string, fields []string) bool {
	if name != spannedTypeName || len(fields) != len(spannedFields) {
		return false
	}
	for i, f := range fields {
		if f != spannedFields[i] {
			return false
		}
	}
	return true
}

// spannedUnmarshaler is implemented by *Spanned[T]. The decoder probes
// for it to learn that a target wants the synthetic span fields, then
// serves the request through a cursor the target consumes itself.
type spannedUnmarshaler interface {
	spannedRequest() (name string, fields []string)
	unmarshalSpanned(cur mapCursor) error
}

// Spanned wraps a decoded value together with the source span of the
// node it was decoded from. Reading goes through Value; the span is
// metadata only and is discarded when the value is re-encoded.
type Spanned[T any] struct {
	span  tree.Span
	inner T
}

// NewSpanned wraps a value with the given span.
func NewSpanned[T any](span tree.Span, inner T) Spanned[T] {
	return Spanned[T]{span: span, inner: inner}
}

// Span returns the source span the value was decoded from.
func (s Spanned[T]) Span() tree.Span { return s.span }

// Value returns the wrapped value.
func (s Spanned[T]) Value() T { return s.inner }

// MarshalYAML collapses the wrapper to its inner value, so encoding a
// Spanned value produces the same output as encoding the value
// directly. Spans do not round-trip.
func (s Spanned[T]) MarshalYAML() (any, error) { return s.inner, nil }

func (s *Spanned[T]) spannedRequest() (string, []string) {
	return spannedTypeName, spannedFields
}

// unmarshalSpanned consumes the synthetic cursor served by a per-kind
// decoder. The cursor yields 0, 3 or 6 coordinate fields (start and
// end triples, each present only when the node has that marker)
// followed by the inner value, always in that order.
func (s *Spanned[T]) unmarshalSpanned(cur mapCursor) error {
	key, ok, err := cur.nextKey()
	if err != nil {
		return err
	}

	var start, end *tree.Marker
	if ok && key == keyStartSource {
		m, err := readMarker(cur, keyStartLine, keyStartColumn)
		if err != nil {
			return err
		}
		start = m
		key, ok, err = cur.nextKey()
		if err != nil {
			return err
		}
	}
	if ok && key == keyEndSource {
		m, err := readMarker(cur, keyEndLine, keyEndColumn)
		if err != nil {
			return err
		}
		end = m
		key, ok, err = cur.nextKey()
		if err != nil {
			return err
		}
	}

	if !ok || key != keyInner {
		return otherErrorf("spanned value missing from synthetic fields")
	}
	if err := cur.nextValue(reflect.ValueOf(&s.inner).Elem()); err != nil {
		return err
	}
	s.span = tree.NewSpan(start, end)
	return nil
}

// readMarker reads the remainder of a coordinate triple whose first
// key has already been consumed: the source value, then the line and
// column keyed by lineKey and columnKey.
func readMarker(cur mapCursor, lineKey, columnKey string) (*tree.Marker, error) {
	source, err := readInt(cur)
	if err != nil {
		return nil, err
	}
	if err := expectKey(cur, lineKey); err != nil {
		return nil, err
	}
	line, err := readInt(cur)
	if err != nil {
		return nil, err
	}
	if err := expectKey(cur, columnKey); err != nil {
		return nil, err
	}
	column, err := readInt(cur)
	if err != nil {
		return nil, err
	}
	m := tree.NewMarker(source, line, column)
	return &m, nil
}

func readInt(cur mapCursor) (int, error) {
	var v int
	if err := cur.nextValue(reflect.ValueOf(&v).Elem()); err != nil {
		return 0, err
	}
	return v, nil
}

func expectKey(cur mapCursor, want string) error {
	key, ok, err := cur.nextKey()
	if err != nil {
		return err
	}
	if !ok || key != want {
		return otherErrorf("spanned coordinate field %s missing", trimSyntheticKey(want))
	}
	return nil
}

// trimSyntheticKey strips the reserved prefix for error messages.
func trimSyntheticKey(key string) string {
	if len(key) > len(spannedTypeName)+2 && key[:len(spannedTypeName)] == spannedTypeName {
		return key[len(spannedTypeName)+2:]
	}
	return key
}

func otherErrorf(format string, args ...any) *Error {
	return &Error{Kind: OtherError, Message: fmt.Sprintf(format, args...)}
}
