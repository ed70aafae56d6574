package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
)

// Condition combines the children of a rule group.
type Condition string

const (
	ConditionAnd Condition = "AND"
	ConditionOr  Condition = "OR"
)

// Node is a rule tree node: a leaf when Rule is set, otherwise a group of
// Rules combined under Condition.
type Node struct {
	Condition Condition
	Rules     []Node
	Rule      *Rule
}

// Leaf wraps a single rule.
func Leaf(rule Rule) Node {
	return Node{Rule: &rule}
}

// Group combines children under condition.
func Group(condition Condition, children ...Node) Node {
	return Node{Condition: condition, Rules: children}
}

// IsLeaf reports whether the node holds a single rule.
func (n Node) IsLeaf() bool {
	return n.Rule != nil
}

// Leaves counts the rules in the tree.
func (n Node) Leaves() int {
	if n.IsLeaf() {
		return 1
	}
	count := 0
	for _, child := range n.Rules {
		count += child.Leaves()
	}
	return count
}

// UnmarshalJSON decodes either a group ({"condition", "rules"}) or a rule.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rulesRaw, isGroup := raw["rules"]
	if !isGroup {
		var rule Rule
		if err := json.Unmarshal(data, &rule); err != nil {
			return err
		}
		if rule.Field == "" {
			return fmt.Errorf("rule is missing a field: %s", bytes.TrimSpace(data))
		}
		*n = Node{Rule: &rule}
		return nil
	}

	var group Node
	if condRaw, ok := raw["condition"]; ok && !isNull(condRaw) {
		var cond string
		if err := json.Unmarshal(condRaw, &cond); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
		group.Condition = Condition(cond)
	}
	if !isNull(rulesRaw) {
		if err := json.Unmarshal(rulesRaw, &group.Rules); err != nil {
			return err
		}
	}

	*n = group
	return nil
}

// MarshalJSON encodes the node in the same shape it is decoded from.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.IsLeaf() {
		return json.Marshal(n.Rule)
	}
	rules := n.Rules
	if rules == nil {
		rules = []Node{}
	}
	condition := n.Condition
	if condition == "" {
		condition = ConditionAnd
	}
	return json.Marshal(struct {
		Condition Condition `json:"condition"`
		Rules     []Node    `json:"rules"`
	}{condition, rules})
}

// Build translates the tree into a single predicate. Groups without any
// rules produce no predicate; a nil or empty tree yields nil.
func Build(root *Node) (dsl.Query, error) {
	if root == nil {
		return nil, nil
	}
	return build(*root)
}

func build(n Node) (dsl.Query, error) {
	if n.IsLeaf() {
		return Translate(*n.Rule)
	}

	filters := make([]dsl.Query, 0, len(n.Rules))
	for _, child := range n.Rules {
		filter, err := build(child)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			filters = append(filters, filter)
		}
	}

	if len(filters) == 0 {
		return nil, nil
	}
	if n.Condition == ConditionOr {
		return dsl.Or{Filters: filters}, nil
	}
	return dsl.And{Filters: filters}, nil
}

// Parse decodes a rule tree from a JSON string, raw bytes, a decoded
// structure or an existing Node. Blank input, null and {} yield nil.
func Parse(input interface{}) (*Node, error) {
	var data []byte

	switch v := input.(type) {
	case nil:
		return nil, nil
	case *Node:
		return v, nil
	case Node:
		return &v, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRuleTree, err)
		}
		data = b
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return nil, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRuleTree, err)
	}
	if len(probe) == 0 {
		return nil, nil
	}
	if _, ok := probe["rules"]; !ok {
		return nil, fmt.Errorf("%w: missing rules", ErrMalformedRuleTree)
	}

	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRuleTree, err)
	}
	return &root, nil
}

func isNull(data []byte) bool {
	return strings.TrimSpace(string(data)) == "null"
}
