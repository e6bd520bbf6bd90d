// internal/selectors/query.go
package selectors

import (
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Query is one DOM query expression or an ordered list of fallbacks. In a
// selector file it is written as a string, a list of strings, or a map of named
// strings; the named form keeps file order so fallbacks stay first-match-wins.
type Query struct {
	Exprs []string
	// Names is parallel to Exprs when the query was written as a map.
	Names []string
}

// Single builds a query from one expression.
func Single(expr string) Query {
	return Query{Exprs: []string{expr}}
}

// Fallbacks builds a query from an ordered list of expressions.
func Fallbacks(exprs ...string) Query {
	return Query{Exprs: exprs}
}

// First returns the primary expression, or "" for an empty query.
func (q Query) First() string {
	if len(q.Exprs) == 0 {
		return ""
	}
	return q.Exprs[0]
}

// All returns every expression in order.
func (q Query) All() []string {
	return q.Exprs
}

// Named returns the expression registered under name, or "".
func (q Query) Named(name string) string {
	for i, n := range q.Names {
		if n == name {
			return q.Exprs[i]
		}
	}
	return ""
}

// Empty reports whether the query holds no usable expression.
func (q Query) Empty() bool {
	for _, e := range q.Exprs {
		if strings.TrimSpace(e) != "" {
			return false
		}
	}
	return true
}

// UnmarshalJSON accepts a string, an array of strings or an object of strings.
func (q *Query) UnmarshalJSON(data []byte) error {
	iter := json.ParseBytes(json.ConfigCompatibleWithStandardLibrary, data)

	*q = Query{}
	switch iter.WhatIsNext() {
	case json.StringValue:
		q.Exprs = []string{iter.ReadString()}
	case json.ArrayValue:
		for iter.ReadArray() {
			q.Exprs = append(q.Exprs, iter.ReadString())
		}
	case json.ObjectValue:
		iter.ReadObjectCB(func(it *json.Iterator, field string) bool {
			q.Names = append(q.Names, field)
			q.Exprs = append(q.Exprs, it.ReadString())
			return true
		})
	case json.NilValue:
		iter.Skip()
	default:
		return fmt.Errorf("selector must be a string, list or map, got %s", strings.TrimSpace(string(data)))
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return fmt.Errorf("invalid selector %s: %w", strings.TrimSpace(string(data)), iter.Error)
	}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML nodes.
func (q *Query) UnmarshalYAML(node *yaml.Node) error {
	*q = Query{}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		q.Exprs = []string{node.Value}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: selector list items must be strings", item.Line)
			}
			q.Exprs = append(q.Exprs, item.Value)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: named selector %q must be a string", val.Line, key.Value)
			}
			q.Names = append(q.Names, key.Value)
			q.Exprs = append(q.Exprs, val.Value)
		}
	default:
		return fmt.Errorf("line %d: selector must be a string, list or map", node.Line)
	}
	return nil
}
