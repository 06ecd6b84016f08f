package tree

import (
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestFromYAMLNode(t *testing.T) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(testDoc), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}

	node, err := FromYAMLNode(3, &doc)
	if err != nil {
		t.Fatalf("FromYAMLNode failed: %v", err)
	}
	root, ok := node.(*Mapping)
	if !ok {
		t.Fatalf("root is %T, want *Mapping", node)
	}

	hello, ok := root.Get("hello")
	if !ok {
		t.Fatal("key hello not found")
	}
	scalar := hello.(*Scalar)
	if scalar.Text() != "world" {
		t.Errorf("hello = %q, want %q", scalar.Text(), "world")
	}
	wantMarker(t, scalar.Span().Start(), 3, 1, 8)

	numbers, _ := root.Get("numbers")
	seq := numbers.(*Sequence)
	if seq.Len() != 4 {
		t.Fatalf("numbers has %d items, want 4", seq.Len())
	}
	wantMarker(t, seq.At(3).Span().Start(), 3, 4, 21)
}

func TestFromYAMLNodeOrderAndAliases(t *testing.T) {
	const doc = "z: &v 1\na: *v\nm: 2\n"

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	node, err := FromYAMLNode(0, &root)
	if err != nil {
		t.Fatalf("FromYAMLNode failed: %v", err)
	}

	m := node.(*Mapping)
	want := []string{"z", "a", "m"}
	for i, key := range want {
		if got := m.At(i).Key.Text(); got != key {
			t.Errorf("key %d = %q, want %q", i, got, key)
		}
	}
	aliased, _ := m.Get("a")
	if got := aliased.(*Scalar).Text(); got != "1" {
		t.Errorf("aliased value = %q, want %q", got, "1")
	}
}

func TestFromYAMLNodeRejectsNonScalarKey(t *testing.T) {
	const doc = "{a: b}: value\n"

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if _, err := FromYAMLNode(0, &root); err == nil {
		t.Error("FromYAMLNode accepted a mapping key")
	}
}
