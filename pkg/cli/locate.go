package cli

import (
	"fmt"
	"os"

	"github.com/spanyaml/spanyaml/pkg/console"
	"github.com/spanyaml/spanyaml/pkg/tree"
)

// LocateSpan parses the document in file and returns the span of the
// node at the given path expression.
func LocateSpan(file, expr string) (tree.Span, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tree.Span{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	root, err := tree.Parse(0, data)
	if err != nil {
		return tree.Span{}, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	path, err := parsePathExpr(expr)
	if err != nil {
		return tree.Span{}, err
	}
	node, err := navigate(root, path)
	if err != nil {
		return tree.Span{}, fmt.Errorf("path %q: %w", expr, err)
	}
	return node.Span(), nil
}

// LocateFile resolves a path expression in a YAML file and prints the
// source range of the node it names.
func LocateFile(file, expr string) error {
	span, err := LocateSpan(file, expr)
	if err != nil {
		return err
	}

	start := span.Start()
	if start == nil {
		fmt.Println(console.FormatWarningMessage(fmt.Sprintf("%s: no location recorded for %q", file, expr)))
		return nil
	}

	location := fmt.Sprintf("%s:%d:%d", console.ToRelativePath(file), start.Line(), start.Column())
	if end := span.End(); end != nil {
		location = fmt.Sprintf("%s-%d:%d", location, end.Line(), end.Column())
	}
	fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("%s at %s", expr, location)))
	return nil
}
