// Package sexp provides S-expression navigation helpers shared by the KiCad
// readers in this module.
package sexp

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/diode/pkg/kicad/sexp/kicadsexp"
)

// S-expression navigation helpers

// FindNode searches for a child node with the given key (first symbol)
// Example: FindNode(sexp, "ref") finds (ref "R1") in a list
func FindNode(s kicadsexp.Sexp, key string) (kicadsexp.Sexp, bool) {
	for _, item := range SexpToSlice(s) {
		if item == nil || item.IsLeaf() {
			continue
		}
		if name, err := GetNodeName(item); err == nil && name == key {
			return item, true
		}
	}
	return nil, false
}

// FindAllNodes finds all child nodes with the given key
func FindAllNodes(s kicadsexp.Sexp, key string) []kicadsexp.Sexp {
	var results []kicadsexp.Sexp
	for _, item := range SexpToSlice(s) {
		if item == nil || item.IsLeaf() {
			continue
		}
		if name, err := GetNodeName(item); err == nil && name == key {
			results = append(results, item)
		}
	}
	return results
}

// GetListItems returns all items in a list (excluding the first symbol/key)
// Example: GetListItems((footprints (fp "R_*") (fp "C_*"))) returns the two fp nodes
func GetListItems(s kicadsexp.Sexp) []kicadsexp.Sexp {
	items := SexpToSlice(s)
	if len(items) <= 1 {
		return nil
	}
	return items[1:]
}

// SexpToSlice converts an s-expression list to a Go slice
func SexpToSlice(s kicadsexp.Sexp) []kicadsexp.Sexp {
	if s == nil || s.IsLeaf() {
		return nil
	}
	if l, ok := s.(*kicadsexp.List); ok {
		return l.Elements()
	}

	var items []kicadsexp.Sexp
	for s != nil && !s.IsLeaf() && s.LeafCount() > 0 {
		items = append(items, s.Head())
		if s.LeafCount() <= 1 {
			break
		}
		s = s.Tail()
	}
	return items
}

// Typed value extraction helpers

// GetString extracts a string value at the given index in a list
// Index 0 is the key, 1 is first value, etc.
func GetString(s kicadsexp.Sexp, index int) (string, error) {
	if s == nil || s.IsLeaf() {
		return "", fmt.Errorf("expected list, got leaf")
	}

	items := SexpToSlice(s)
	if index < 0 || index >= len(items) {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, len(items))
	}

	if sym, ok := items[index].(kicadsexp.Symbol); ok {
		return string(sym), nil
	}

	return "", fmt.Errorf("expected symbol at index %d, got list", index)
}

// GetInt extracts an int value at the given index
func GetInt(s kicadsexp.Sexp, index int) (int, error) {
	str, err := GetString(s, index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}

	return val, nil
}

// GetNodeName returns the first symbol of a list (the node type/name)
func GetNodeName(s kicadsexp.Sexp) (string, error) {
	if s == nil {
		return "", fmt.Errorf("nil node")
	}
	if s.IsLeaf() {
		if sym, ok := s.(kicadsexp.Symbol); ok {
			return string(sym), nil
		}
		return "", fmt.Errorf("expected symbol leaf")
	}

	head := s.Head()
	if sym, ok := head.(kicadsexp.Symbol); ok {
		return string(sym), nil
	}

	return "", fmt.Errorf("expected symbol at head of list")
}

// Netlist-style helpers. KiCad netlists store scalar attributes as
// single-value child lists: (comp (ref "R1") (value "10k")).

// ChildValue returns the first value of the child node named key.
// Example: ChildValue((comp (ref "R1")), "ref") returns "R1", true
func ChildValue(s kicadsexp.Sexp, key string) (string, bool) {
	node, ok := FindNode(s, key)
	if !ok {
		return "", false
	}
	val, err := GetString(node, 1)
	if err != nil {
		// (title) with no value is valid and means empty
		return "", SexpLen(node) == 1
	}
	return val, true
}

// ChildValueOr is ChildValue with a fallback for absent nodes.
func ChildValueOr(s kicadsexp.Sexp, key, fallback string) string {
	if v, ok := ChildValue(s, key); ok {
		return v
	}
	return fallback
}

// SexpLen returns the number of elements of a list, 0 for atoms.
func SexpLen(s kicadsexp.Sexp) int {
	if s == nil || s.IsLeaf() {
		return 0
	}
	return s.LeafCount()
}

// Field is a named value such as (field (name "MPN") "RC0603") or
// (property (name "Sheetname") (value "power")).
type Field struct {
	Name  string
	Value string
}

// GetField decodes both field shapes used by KiCad netlists:
//
//	(field (name "Footprint") "R_0603")
//	(property (name "Sheetname") (value "power"))
func GetField(s kicadsexp.Sexp) (Field, error) {
	name, ok := ChildValue(s, "name")
	if !ok {
		return Field{}, fmt.Errorf("field without name")
	}

	if v, ok := ChildValue(s, "value"); ok {
		return Field{Name: name, Value: v}, nil
	}

	// Value given as a bare atom after the (name ...) node
	for _, item := range GetListItems(s) {
		if sym, ok := item.(kicadsexp.Symbol); ok {
			return Field{Name: name, Value: string(sym)}, nil
		}
	}

	return Field{Name: name}, nil
}
