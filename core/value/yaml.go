package value

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML node, keeping mapping keys in document order.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	out, err := fromNode(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	v, err := fromNode(node)
	if err != nil {
		return err
	}
	switch v.kind {
	case KindNull:
		*m = Map{}
	case KindMap:
		*m = *v.m
	default:
		return fmt.Errorf("line %d: expected mapping, got %s", node.Line, v.kind)
	}
	return nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	return toNode(v), nil
}

func (m *Map) MarshalYAML() (interface{}, error) {
	return toNode(Object(m)), nil
}

func fromNode(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return fromNode(node.Content[0])
	case yaml.AliasNode:
		return fromNode(node.Alias)
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
			}
			item, err := fromNode(valNode)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", keyNode.Value, err)
			}
			m.Set(keyNode.Value, item)
		}
		return Object(m), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for i, child := range node.Content {
			item, err := fromNode(child)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return List(items...), nil
	case yaml.ScalarNode:
		return fromScalar(node)
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
}

func fromScalar(node *yaml.Node) (Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			var decoded bool
			if err := node.Decode(&decoded); err != nil {
				return Value{}, fmt.Errorf("line %d: %w", node.Line, err)
			}
			return Bool(decoded), nil
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Number(f), nil
	}
	return String(node.Value), nil
}

func toNode(v Value) *yaml.Node {
	switch v.kind {
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.str}
	case KindNumber:
		tag := "!!float"
		if isWhole(v.num) {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: formatNumber(v.num)}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		v.m.Range(func(k string, item Value) bool {
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toNode(item),
			)
			return true
		})
		return node
	case KindList:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.list {
			node.Content = append(node.Content, toNode(item))
		}
		return node
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}
