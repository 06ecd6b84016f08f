package bind

import (
	"reflect"
	"strings"
	"testing"

	yaml "github.com/goccy/go-yaml"

	"github.com/spanyaml/spanyaml/pkg/tree"
)

// drainSpanCursor walks a synthetic cursor to exhaustion, returning
// the keys it yielded in order.
func drainSpanCursor(t *testing.T, node tree.Node) []string {
	t.Helper()
	cur := newSpanCursor(&decoder{}, node)
	var keys []string
	for {
		key, ok, err := cur.nextKey()
		if err != nil {
			t.Fatalf("nextKey failed: %v", err)
		}
		if !ok {
			return keys
		}
		keys = append(keys, key)
		if key == keyInner {
			var v any
			if err := cur.nextValue(reflect.ValueOf(&v).Elem()); err != nil {
				t.Fatalf("nextValue(inner) failed: %v", err)
			}
			continue
		}
		var coord int
		if err := cur.nextValue(reflect.ValueOf(&coord).Elem()); err != nil {
			t.Fatalf("nextValue(%s) failed: %v", key, err)
		}
	}
}

func TestSpanCursorFieldCount(t *testing.T) {
	start := tree.NewMarker(0, 1, 8)
	end := tree.NewMarker(0, 2, 3)

	tests := []struct {
		name string
		node tree.Node
		want []string
	}{
		{
			name: "no markers",
			node: tree.NewScalar("x", tree.Span{}),
			want: []string{keyInner},
		},
		{
			name: "start only",
			node: tree.NewScalar("x", tree.NewSpan(&start, nil)),
			want: []string{keyStartSource, keyStartLine, keyStartColumn, keyInner},
		},
		{
			name: "end only",
			node: tree.NewScalar("x", tree.NewSpan(nil, &end)),
			want: []string{keyEndSource, keyEndLine, keyEndColumn, keyInner},
		},
		{
			name: "both markers",
			node: tree.NewScalar("x", tree.NewSpan(&start, &end)),
			want: []string{
				keyStartSource, keyStartLine, keyStartColumn,
				keyEndSource, keyEndLine, keyEndColumn,
				keyInner,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := drainSpanCursor(t, tt.node)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpanCursorCoordinateValues(t *testing.T) {
	start := tree.NewMarker(4, 10, 20)
	node := tree.NewScalar("x", tree.NewSpan(&start, nil))
	cur := newSpanCursor(&decoder{}, node)

	want := []int{4, 10, 20}
	for i, w := range want {
		if _, ok, _ := cur.nextKey(); !ok {
			t.Fatalf("cursor exhausted at coordinate %d", i)
		}
		var got int
		if err := cur.nextValue(reflect.ValueOf(&got).Elem()); err != nil {
			t.Fatalf("nextValue failed: %v", err)
		}
		if got != w {
			t.Errorf("coordinate %d = %d, want %d", i, got, w)
		}
	}
}

func TestIsSpannedRequest(t *testing.T) {
	if !isSpannedRequest(spannedTypeName, spannedFields) {
		t.Error("reserved identity not recognized")
	}
	if isSpannedRequest("other", spannedFields) {
		t.Error("wrong name recognized")
	}
	if isSpannedRequest(spannedTypeName, spannedFields[:6]) {
		t.Error("truncated field list recognized")
	}
	reordered := append([]string{spannedFields[1], spannedFields[0]}, spannedFields[2:]...)
	if isSpannedRequest(spannedTypeName, reordered) {
		t.Error("reordered field list recognized")
	}
}

func TestSpannedAccessors(t *testing.T) {
	start := tree.NewMarker(0, 3, 4)
	span := tree.NewSpan(&start, nil)
	s := NewSpanned(span, "payload")

	if s.Value() != "payload" {
		t.Errorf("Value() = %q", s.Value())
	}
	if m := s.Span().Start(); m == nil || m.Line() != 3 || m.Column() != 4 {
		t.Errorf("Span().Start() = %v", m)
	}
}

func TestSpannedMarshalCollapses(t *testing.T) {
	type doc struct {
		Name  Spanned[string]   `yaml:"name"`
		Count Spanned[int]      `yaml:"count"`
		Tags  Spanned[[]string] `yaml:"tags"`
	}

	start := tree.NewMarker(0, 1, 1)
	span := tree.NewSpan(&start, nil)
	v := doc{
		Name:  NewSpanned(span, "demo"),
		Count: NewSpanned(span, 3),
		Tags:  NewSpanned(span, []string{"a", "b"}),
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	text := string(out)
	if strings.Contains(text, "span") || strings.Contains(text, "inner") {
		t.Errorf("span metadata leaked into output:\n%s", text)
	}

	plain, err := yaml.Marshal(map[string]any{"name": "demo"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(text, strings.TrimSpace(string(plain))) {
		t.Errorf("output %q does not encode the bare inner value", text)
	}
}

func TestSpannedRoundTripThroughDecode(t *testing.T) {
	root, err := tree.Parse(0, []byte("name: demo\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	type doc struct {
		Name Spanned[string] `yaml:"name"`
	}
	got, err := Decode[doc](root)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	out, err := yaml.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "name: demo" {
		t.Errorf("re-encoded output = %q, want %q", string(out), "name: demo")
	}
}
