package tree

import (
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// FromYAMLNode builds a marked node tree from a gopkg.in/yaml.v3 node,
// for callers that already parsed their document with that package.
// yaml.v3 reports start coordinates only, so every node in the
// resulting tree carries a start marker and containers borrow their
// end marker from their last child.
func FromYAMLNode(source int, node *yaml.Node) (Node, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return NewScalar("", Span{}), nil
		}
		return FromYAMLNode(source, node.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(source, node.Alias)
	case yaml.ScalarNode:
		return NewScalar(node.Value, startOnly(source, node)), nil
	case yaml.MappingNode:
		if len(node.Content)%2 != 0 {
			return nil, fmt.Errorf("mapping node has odd content length %d", len(node.Content))
		}
		entries := make([]Entry, 0, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			keyNode, valueNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("mapping key at line %d is not a scalar", keyNode.Line)
			}
			key := NewScalar(keyNode.Value, startOnly(source, keyNode))
			value, err := FromYAMLNode(source, valueNode)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: key, Value: value})
		}
		start := markerOf(source, node)
		var end *Marker
		if len(entries) > 0 {
			end = endOf(entries[len(entries)-1].Value)
		} else {
			end = start
		}
		return NewMapping(NewSpan(start, end), entries), nil
	case yaml.SequenceNode:
		items := make([]Node, 0, len(node.Content))
		for _, c := range node.Content {
			item, err := FromYAMLNode(source, c)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		start := markerOf(source, node)
		end := start
		if len(items) > 0 {
			end = endOf(items[len(items)-1])
		}
		return NewSequence(NewSpan(start, end), items), nil
	default:
		return nil, fmt.Errorf("unsupported yaml.v3 node kind %d", node.Kind)
	}
}

func markerOf(source int, node *yaml.Node) *Marker {
	if node.Line == 0 {
		return nil
	}
	m := NewMarker(source, node.Line, node.Column)
	return &m
}

func startOnly(source int, node *yaml.Node) Span {
	return NewSpan(markerOf(source, node), nil)
}
