package tree

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
)

// Parse reads a YAML document into a marked node tree. The top level
// of the document must be a mapping, which is what configuration files
// look like; anything else is rejected. The source identifier is
// stamped into every marker so diagnostics can name the originating
// file.
func Parse(source int, data []byte) (*Mapping, error) {
	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if file == nil || len(file.Docs) == 0 {
		return nil, fmt.Errorf("no YAML documents found")
	}

	b := &builder{source: source, anchors: make(map[string]ast.Node)}
	node, err := b.build(file.Docs[0].Body)
	if err != nil {
		return nil, err
	}
	mapping, ok := node.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("top level of document must be a mapping, got %s", node.Kind())
	}
	return mapping, nil
}

type builder struct {
	source  int
	anchors map[string]ast.Node
}

func (b *builder) build(node ast.Node) (Node, error) {
	switch n := node.(type) {
	case nil:
		return NewScalar("", Span{}), nil
	case *ast.MappingNode:
		return b.mapping(n.Values, n.GetToken())
	case *ast.MappingValueNode:
		// goccy represents a single-pair mapping as the pair itself.
		return b.mapping([]*ast.MappingValueNode{n}, n.GetToken())
	case *ast.SequenceNode:
		return b.sequence(n)
	case *ast.AnchorNode:
		if name, ok := nodeText(n.Name); ok {
			b.anchors[name] = n.Value
		}
		return b.build(n.Value)
	case *ast.AliasNode:
		name, ok := nodeText(n.Value)
		if !ok {
			return nil, fmt.Errorf("alias node has no name")
		}
		target, ok := b.anchors[name]
		if !ok {
			return nil, fmt.Errorf("alias references unknown anchor %q", name)
		}
		return b.build(target)
	case *ast.TagNode:
		return b.build(n.Value)
	case *ast.StringNode:
		return b.scalar(n.Value, n.GetToken()), nil
	case *ast.LiteralNode:
		var text string
		if n.Value != nil {
			text = n.Value.Value
		}
		return b.scalar(text, n.GetToken()), nil
	case *ast.NullNode:
		return b.scalar("", n.GetToken()), nil
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.InfinityNode, *ast.NanNode:
		// Keep the raw token text; interpretation happens at decode
		// time against the caller's target type.
		return b.scalar(node.GetToken().Value, node.GetToken()), nil
	default:
		return nil, fmt.Errorf("unsupported YAML node type %T", node)
	}
}

func (b *builder) mapping(values []*ast.MappingValueNode, tok *token.Token) (Node, error) {
	entries := make([]Entry, 0, len(values))
	for _, v := range values {
		if v.Key == nil {
			return nil, fmt.Errorf("mapping entry has no key")
		}
		keyText, ok := nodeText(v.Key)
		if !ok {
			return nil, fmt.Errorf("mapping key is not a scalar")
		}
		key := b.scalar(keyText, v.Key.GetToken())
		value, err := b.build(v.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}

	start := b.marker(tok)
	if len(values) > 0 {
		// The mapping token can point at the first ":"; the first key
		// is a more useful anchor for the container itself.
		start = b.marker(values[0].Key.GetToken())
	}
	var end *Marker
	if len(entries) > 0 {
		end = endOf(entries[len(entries)-1].Value)
	} else {
		end = start
	}
	return NewMapping(NewSpan(start, end), entries), nil
}

func (b *builder) sequence(n *ast.SequenceNode) (Node, error) {
	items := make([]Node, 0, len(n.Values))
	for _, v := range n.Values {
		item, err := b.build(v)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	start := b.marker(n.GetToken())
	end := start
	if len(items) > 0 {
		end = endOf(items[len(items)-1])
	}
	return NewSequence(NewSpan(start, end), items), nil
}

func (b *builder) scalar(text string, tok *token.Token) *Scalar {
	return NewScalar(text, NewSpan(b.marker(tok), nil))
}

func (b *builder) marker(tok *token.Token) *Marker {
	if tok == nil || tok.Position == nil {
		return nil
	}
	m := NewMarker(b.source, tok.Position.Line, tok.Position.Column)
	return &m
}

// nodeText extracts the textual content of a scalar-ish AST node.
func nodeText(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, true
	case *ast.LiteralNode:
		if n.Value != nil {
			return n.Value.Value, true
		}
		return "", true
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode:
		return node.GetToken().Value, true
	case *ast.NullNode:
		return "", true
	default:
		return "", false
	}
}

// endOf computes the end marker for a built node: the coordinate of
// the last character the node covers. Containers defer to their last
// child; scalars extend their start marker by the text length.
func endOf(n Node) *Marker {
	switch n := n.(type) {
	case *Scalar:
		start := n.Span().Start()
		if start == nil {
			return nil
		}
		text := n.Text()
		line, column := start.Line(), start.Column()
		if i := strings.LastIndexByte(text, '\n'); i >= 0 {
			line += strings.Count(text, "\n")
			column = len(text) - i - 1
		} else if len(text) > 0 {
			column += len(text) - 1
		}
		m := NewMarker(start.Source(), line, column)
		return &m
	case *Mapping:
		if n.Len() > 0 {
			return endOf(n.At(n.Len() - 1).Value)
		}
		return n.Span().End()
	case *Sequence:
		if n.Len() > 0 {
			return endOf(n.At(n.Len() - 1))
		}
		return n.Span().End()
	default:
		return nil
	}
}
