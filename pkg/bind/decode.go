package bind

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/spanyaml/spanyaml/pkg/tree"
)

// Option configures a decode call.
type Option func(*options)

type options struct {
	disallowUnknown bool
}

// DisallowUnknownFields makes struct decoding fail with an
// UnknownField error when a mapping key matches no field of the
// target struct. Without it unknown keys are skipped.
func DisallowUnknownFields() Option {
	return func(o *options) { o.disallowUnknown = true }
}

// Unmarshal decodes node into the value pointed to by v. On failure
// the returned error is a *Error; errors raised from code without a
// view of the tree carry a blank span (use the traced entry points to
// have those locations reconstructed).
func Unmarshal(node tree.Node, v any, opts ...Option) error {
	d, rv, err := newDecoder(v, opts)
	if err != nil {
		return err
	}
	return d.decode(node, rv)
}

// Decode decodes node into a fresh value of type T.
func Decode[T any](node tree.Node, opts ...Option) (T, error) {
	var v T
	err := Unmarshal(node, &v, opts...)
	return v, err
}

// UnmarshalTraced is Unmarshal with path tracking. On failure the
// returned error is a *TraceError carrying the traversal path at the
// point of failure; if the underlying error had no span, one is
// backfilled by replaying that path against node.
func UnmarshalTraced(node tree.Node, v any, opts ...Option) error {
	d, rv, err := newDecoder(v, opts)
	if err != nil {
		return err
	}
	d.trace = &recorder{}
	if err := d.decode(node, rv); err != nil {
		de, ok := err.(*Error)
		if !ok {
			de = &Error{Kind: OtherError, Message: err.Error()}
		}
		path := append(Path(nil), d.trace.path...)
		backfill(node, path, de)
		return &TraceError{path: path, err: de}
	}
	return nil
}

// DecodeTraced decodes node into a fresh value of type T with path
// tracking, as UnmarshalTraced.
func DecodeTraced[T any](node tree.Node, opts ...Option) (T, error) {
	var v T
	err := UnmarshalTraced(node, &v, opts...)
	return v, err
}

func newDecoder(v any, opts []Option) (*decoder, reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, reflect.Value{}, fmt.Errorf("bind: target must be a non-nil pointer, got %T", v)
	}
	d := &decoder{}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d, rv.Elem(), nil
}

// decoder carries per-call decode state. Instances live for a single
// Unmarshal call and are never shared.
type decoder struct {
	opts  options
	trace *recorder
}

// recorder accumulates the traversal path while decoding. It is nil
// on untraced decodes, making tracking a pure decorator: the decoders
// themselves never inspect it.
type recorder struct {
	path Path
}

func (d *decoder) pushKey(key string) {
	if d.trace != nil {
		d.trace.path = append(d.trace.path, KeySegment(key))
	}
}

func (d *decoder) pushIndex(i int) {
	if d.trace != nil {
		d.trace.path = append(d.trace.path, IndexSegment(i))
	}
}

func (d *decoder) pop() {
	if d.trace != nil {
		d.trace.path = d.trace.path[:len(d.trace.path)-1]
	}
}

// decode is the dispatch bridge: it routes the target value to the
// decoder matching the node's kind, interpreting nothing itself.
// Pointer targets are unwrapped first; a node is never the encoding
// of absence, so pointers always decode as present.
func (d *decoder) decode(node tree.Node, rv reflect.Value) error {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}

	switch n := node.(type) {
	case *tree.Scalar:
		return scalarDecoder{d: d, node: n}.decode(rv)
	case *tree.Mapping:
		return mappingDecoder{d: d, node: n}.decode(rv)
	case *tree.Sequence:
		return sequenceDecoder{d: d, node: n}.decode(rv)
	default:
		return otherErrorf("unknown node kind %T", node)
	}
}

// spannedProbe checks whether the target negotiates the reserved
// span-smuggling identity and, if so, serves it the synthetic cursor
// over the given node. Every per-kind decoder runs this before its
// normal handling.
func (d *decoder) spannedProbe(node tree.Node, rv reflect.Value) (bool, error) {
	if !rv.CanAddr() {
		return false, nil
	}
	su, ok := rv.Addr().Interface().(spannedUnmarshaler)
	if !ok {
		return false, nil
	}
	name, fields := su.spannedRequest()
	if !isSpannedRequest(name, fields) {
		return false, nil
	}
	return true, su.unmarshalSpanned(newSpanCursor(d, node))
}

// mapCursor is how the generic container-consumption machinery and
// spanned targets read key/value pairs: keys as plain strings, values
// decoded on demand. Consumers never see nodes through it.
type mapCursor interface {
	nextKey() (key string, ok bool, err error)
	nextValue(rv reflect.Value) error
}

// ---------------------------------------------------------------------------
// scalar

type scalarDecoder struct {
	d    *decoder
	node *tree.Scalar
}

func (s scalarDecoder) decode(rv reflect.Value) error {
	if handled, err := s.d.spannedProbe(s.node, rv); handled {
		return err
	}
	if rv.CanAddr() && rv.Kind() != reflect.Interface {
		if tu, ok := rv.Addr().Interface().(encoding.TextUnmarshaler); ok {
			if err := tu.UnmarshalText([]byte(s.node.Text())); err != nil {
				return withSpan(&Error{Kind: OtherError, Message: err.Error(), Err: err}, s.node.Span())
			}
			return nil
		}
	}

	text := s.node.Text()
	switch rv.Kind() {
	case reflect.Bool:
		b, ok := s.node.AsBool()
		if !ok {
			return &Error{Kind: NotBoolean, Span: s.node.Span()}
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, rv.Type().Bits())
		if err != nil {
			return &Error{Kind: IntegerParseFailure, Span: s.node.Span(), Err: err}
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(text, 10, rv.Type().Bits())
		if err != nil {
			return &Error{Kind: IntegerParseFailure, Span: s.node.Span(), Err: err}
		}
		rv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, rv.Type().Bits())
		if err != nil {
			return &Error{Kind: FloatParseFailure, Span: s.node.Span(), Err: err}
		}
		rv.SetFloat(f)
	case reflect.String:
		rv.SetString(text)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			rv.SetBytes([]byte(text))
			return nil
		}
		return s.mismatch(rv)
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(text))
			return nil
		}
		return s.mismatch(rv)
	default:
		return s.mismatch(rv)
	}
	return nil
}

func (s scalarDecoder) mismatch(rv reflect.Value) error {
	return withSpan(otherErrorf("cannot decode scalar into %s", rv.Type()), s.node.Span())
}

// ---------------------------------------------------------------------------
// mapping

type mappingDecoder struct {
	d    *decoder
	node *tree.Mapping
}

func (m mappingDecoder) decode(rv reflect.Value) error {
	if handled, err := m.d.spannedProbe(m.node, rv); handled {
		return err
	}
	switch rv.Kind() {
	case reflect.Struct:
		return m.structValue(rv)
	case reflect.Map:
		return m.mapValue(rv)
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			return m.anyValue(rv)
		}
	}
	return withSpan(otherErrorf("cannot decode mapping into %s", rv.Type()), m.node.Span())
}

func (m mappingDecoder) structValue(rv reflect.Value) error {
	info := structInfoOf(rv.Type())
	cur := newMappingCursor(m.d, m.node)
	for {
		key, ok, err := cur.nextKey()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		f, found := info.byName[key]
		if !found {
			if m.d.opts.disallowUnknown {
				return &Error{Kind: UnknownField, Field: key, Expected: info.names}
			}
			cur.skipValue()
			continue
		}
		if err := cur.nextValue(fieldByIndex(rv, f.index)); err != nil {
			return err
		}
	}
}

func (m mappingDecoder) mapValue(rv reflect.Value) error {
	t := rv.Type()
	if rv.IsNil() {
		rv.Set(reflect.MakeMapWithSize(t, m.node.Len()))
	}
	for i := 0; i < m.node.Len(); i++ {
		e := m.node.At(i)
		key := reflect.New(t.Key()).Elem()
		if err := m.d.decode(e.Key, key); err != nil {
			return err
		}
		m.d.pushKey(e.Key.Text())
		value := reflect.New(t.Elem()).Elem()
		if err := m.d.decode(e.Value, value); err != nil {
			return err
		}
		m.d.pop()
		rv.SetMapIndex(key, value)
	}
	return nil
}

func (m mappingDecoder) anyValue(rv reflect.Value) error {
	out := make(map[string]any, m.node.Len())
	for i := 0; i < m.node.Len(); i++ {
		e := m.node.At(i)
		m.d.pushKey(e.Key.Text())
		var v any
		if err := m.d.decode(e.Value, reflect.ValueOf(&v).Elem()); err != nil {
			return err
		}
		m.d.pop()
		out[e.Key.Text()] = v
	}
	rv.Set(reflect.ValueOf(out))
	return nil
}

// mappingCursor walks a mapping's entries in insertion order. A key
// must be requested before the value it pairs with; values decode
// lazily, only when asked for. Calling nextValue without a pending
// key is a programming error and panics.
type mappingCursor struct {
	d     *decoder
	node  *tree.Mapping
	idx   int
	keyed bool
}

func newMappingCursor(d *decoder, node *tree.Mapping) *mappingCursor {
	return &mappingCursor{d: d, node: node}
}

func (c *mappingCursor) nextKey() (string, bool, error) {
	if c.keyed {
		panic("bind: nextKey called with a value still pending")
	}
	if c.idx >= c.node.Len() {
		return "", false, nil
	}
	key := c.node.At(c.idx).Key.Text()
	c.keyed = true
	c.d.pushKey(key)
	return key, true, nil
}

func (c *mappingCursor) nextValue(rv reflect.Value) error {
	if !c.keyed {
		panic("bind: nextValue called before nextKey")
	}
	if err := c.d.decode(c.node.At(c.idx).Value, rv); err != nil {
		return err
	}
	c.d.pop()
	c.idx++
	c.keyed = false
	return nil
}

// skipValue advances past the pending value without decoding it.
func (c *mappingCursor) skipValue() {
	if !c.keyed {
		panic("bind: skipValue called before nextKey")
	}
	c.d.pop()
	c.idx++
	c.keyed = false
}

// ---------------------------------------------------------------------------
// sequence

type sequenceDecoder struct {
	d    *decoder
	node *tree.Sequence
}

func (s sequenceDecoder) decode(rv reflect.Value) error {
	if handled, err := s.d.spannedProbe(s.node, rv); handled {
		return err
	}
	switch rv.Kind() {
	case reflect.Slice:
		n := s.node.Len()
		out := reflect.MakeSlice(rv.Type(), n, n)
		cur := newSequenceCursor(s.d, s.node)
		for i := 0; i < n; i++ {
			if _, err := cur.next(out.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(out)
		return nil
	case reflect.Array:
		if s.node.Len() > rv.Len() {
			return withSpan(otherErrorf("sequence has %d items but target array holds %d", s.node.Len(), rv.Len()), s.node.Span())
		}
		cur := newSequenceCursor(s.d, s.node)
		for i := 0; i < s.node.Len(); i++ {
			if _, err := cur.next(rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			out := make([]any, s.node.Len())
			cur := newSequenceCursor(s.d, s.node)
			for i := range out {
				if _, err := cur.next(reflect.ValueOf(&out[i]).Elem()); err != nil {
					return err
				}
			}
			rv.Set(reflect.ValueOf(out))
			return nil
		}
	}
	return withSpan(otherErrorf("cannot decode sequence into %s", rv.Type()), s.node.Span())
}

// sequenceCursor decodes sequence items in order, advancing past an
// item only once it decodes successfully. Exhausted after the last
// index.
type sequenceCursor struct {
	d    *decoder
	node *tree.Sequence
	idx  int
}

func newSequenceCursor(d *decoder, node *tree.Sequence) *sequenceCursor {
	return &sequenceCursor{d: d, node: node}
}

func (c *sequenceCursor) next(rv reflect.Value) (bool, error) {
	if c.idx >= c.node.Len() {
		return false, nil
	}
	c.d.pushIndex(c.idx)
	if err := c.d.decode(c.node.At(c.idx), rv); err != nil {
		return false, err
	}
	c.d.pop()
	c.idx++
	return true, nil
}

// ---------------------------------------------------------------------------
// span-smuggling cursor

type spanState int

const (
	stateStartSource spanState = iota
	stateStartLine
	stateStartColumn
	stateEndSource
	stateEndLine
	stateEndColumn
	stateValue
	stateDone
)

// spanCursor serves the synthetic field sequence for a spanned
// target: three start coordinates when the node has a start marker,
// three end coordinates when it has an end marker, then the real
// value decoded through the normal dispatch path. States only ever
// advance; the initial state is computed once from which markers the
// node's span carries.
type spanCursor struct {
	d     *decoder
	node  tree.Node
	state spanState
}

func newSpanCursor(d *decoder, node tree.Node) *spanCursor {
	span := node.Span()
	state := stateValue
	if span.Start() != nil {
		state = stateStartSource
	} else if span.End() != nil {
		state = stateEndSource
	}
	return &spanCursor{d: d, node: node, state: state}
}

func (c *spanCursor) nextKey() (string, bool, error) {
	switch c.state {
	case stateStartSource:
		return keyStartSource, true, nil
	case stateStartLine:
		return keyStartLine, true, nil
	case stateStartColumn:
		return keyStartColumn, true, nil
	case stateEndSource:
		return keyEndSource, true, nil
	case stateEndLine:
		return keyEndLine, true, nil
	case stateEndColumn:
		return keyEndColumn, true, nil
	case stateValue:
		return keyInner, true, nil
	default:
		return "", false, nil
	}
}

func (c *spanCursor) nextValue(rv reflect.Value) error {
	span := c.node.Span()
	switch c.state {
	case stateStartSource:
		c.state = stateStartLine
		return setIntValue(rv, span.Start().Source())
	case stateStartLine:
		c.state = stateStartColumn
		return setIntValue(rv, span.Start().Line())
	case stateStartColumn:
		if span.End() != nil {
			c.state = stateEndSource
		} else {
			c.state = stateValue
		}
		return setIntValue(rv, span.Start().Column())
	case stateEndSource:
		c.state = stateEndLine
		return setIntValue(rv, span.End().Source())
	case stateEndLine:
		c.state = stateEndColumn
		return setIntValue(rv, span.End().Line())
	case stateEndColumn:
		c.state = stateValue
		return setIntValue(rv, span.End().Column())
	case stateValue:
		c.state = stateDone
		return c.d.decode(c.node, rv)
	default:
		panic("bind: nextValue called after synthetic fields were exhausted")
	}
}

func setIntValue(rv reflect.Value, v int) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv.SetInt(int64(v))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		rv.SetUint(uint64(v))
	default:
		return otherErrorf("cannot decode span coordinate into %s", rv.Type())
	}
	return nil
}

// ---------------------------------------------------------------------------
// struct field metadata

type structField struct {
	name  string
	index []int
}

type structInfo struct {
	byName map[string]structField
	names  []string
}

var structInfoCache sync.Map // reflect.Type -> *structInfo

func structInfoOf(t reflect.Type) *structInfo {
	if v, ok := structInfoCache.Load(t); ok {
		return v.(*structInfo)
	}
	info := &structInfo{byName: make(map[string]structField)}
	collectFields(t, nil, info)
	structInfoCache.Store(t, info)
	return info
}

func collectFields(t reflect.Type, prefix []int, info *structInfo) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				// Exported fields promoted through an embedded struct
				// stay settable even when the embedded type itself is
				// unexported.
				sub := append(append([]int(nil), prefix...), i)
				collectFields(ft, sub, info)
				continue
			}
		}
		if f.PkgPath != "" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if _, dup := info.byName[name]; dup {
			continue
		}
		index := make([]int, 0, len(prefix)+1)
		index = append(append(index, prefix...), i)
		info.byName[name] = structField{name: name, index: index}
		info.names = append(info.names, name)
	}
}

// fieldByIndex resolves a possibly-embedded field, allocating nil
// embedded pointers along the way.
func fieldByIndex(rv reflect.Value, index []int) reflect.Value {
	for _, i := range index {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	return rv
}

// ---------------------------------------------------------------------------
// backfill

// backfill reconstructs a span for an error raised without one by
// replaying the recorded traversal path against the original tree.
// The replay follows sequence indices and mapping keys, stopping at
// the deepest step that still resolves; the span of that node becomes
// the error's span. Unknown-field errors prefer the span of the
// offending key in the parent mapping, since the diagnostic concerns
// the key.
func backfill(root tree.Node, path Path, e *Error) {
	if e.StartMark() != nil {
		return
	}
	best, prev := root, root
replay:
	for _, seg := range path {
		switch seg.kind {
		case segmentIndex:
			seq, ok := best.(*tree.Sequence)
			if !ok {
				break replay
			}
			node, ok := seq.Get(seg.index)
			if !ok {
				break replay
			}
			prev, best = best, node
		case segmentKey:
			m, ok := best.(*tree.Mapping)
			if !ok {
				break replay
			}
			node, ok := m.Get(seg.key)
			if !ok {
				break replay
			}
			prev, best = best, node
		default:
			break replay
		}
	}
	span := best.Span()
	if e.Kind == UnknownField {
		if m, ok := prev.(*tree.Mapping); ok {
			if key, ok := m.Key(e.Field); ok {
				span = key.Span()
			}
		}
	}
	e.setSpan(span)
}
