// Package cli implements the spanyaml commands: locating nodes in
// YAML documents by path and validating documents against a JSON
// schema with precise source locations.
package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spanyaml/spanyaml/pkg/bind"
	"github.com/spanyaml/spanyaml/pkg/tree"
)

// pathPartRe splits on dots and extracts bracketed indices, so
// "jobs.build.steps[0].run" becomes jobs, build, steps, [0], run.
var pathPartRe = regexp.MustCompile(`([^.\[\]]+)|\[([^\]]+)\]`)

// parsePathExpr converts a dotted path expression, optionally with a
// leading "$." prefix, into traversal segments.
func parsePathExpr(expr string) (bind.Path, error) {
	expr = strings.TrimPrefix(expr, "$.")
	expr = strings.TrimPrefix(expr, "$")
	if expr == "" {
		return nil, nil
	}

	var path bind.Path
	for _, match := range pathPartRe.FindAllStringSubmatch(expr, -1) {
		switch {
		case match[1] != "":
			path = append(path, bind.KeySegment(match[1]))
		case match[2] != "":
			index, err := strconv.Atoi(match[2])
			if err != nil {
				return nil, fmt.Errorf("invalid array index %q", match[2])
			}
			path = append(path, bind.IndexSegment(index))
		}
	}
	return path, nil
}

// navigate walks the tree along the path, failing on the first
// segment that does not resolve.
func navigate(root tree.Node, path bind.Path) (tree.Node, error) {
	current := root
	for i, seg := range path {
		if key, ok := seg.Key(); ok {
			m, ok := current.(*tree.Mapping)
			if !ok {
				return nil, fmt.Errorf("expected mapping at part %d, got %s", i, current.Kind())
			}
			next, ok := m.Get(key)
			if !ok {
				return nil, fmt.Errorf("key %q not found in mapping", key)
			}
			current = next
			continue
		}
		index, _ := seg.Index()
		s, ok := current.(*tree.Sequence)
		if !ok {
			return nil, fmt.Errorf("expected sequence at part %d, got %s", i, current.Kind())
		}
		next, ok := s.Get(index)
		if !ok {
			return nil, fmt.Errorf("array index %d out of range (length %d)", index, s.Len())
		}
		current = next
	}
	return current, nil
}

// deepest walks the tree along a JSON-pointer-style instance
// location, stopping at the last node that still resolves. Schema
// violations sometimes name locations the document does not have
// (a missing required property, say); the enclosing node is then the
// best place to point at.
func deepest(root tree.Node, location []string) tree.Node {
	current := root
	for _, seg := range location {
		switch n := current.(type) {
		case *tree.Mapping:
			next, ok := n.Get(seg)
			if !ok {
				return current
			}
			current = next
		case *tree.Sequence:
			index, err := strconv.Atoi(seg)
			if err != nil {
				return current
			}
			next, ok := n.Get(index)
			if !ok {
				return current
			}
			current = next
		default:
			return current
		}
	}
	return current
}
