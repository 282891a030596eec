// Package circuit holds the validated, read-only circuit graph built from a
// parsed netlist: components keyed by reference designator, nets with
// deduplicated endpoints and the sheet tree.
package circuit

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SheetID indexes Model.Sheets
type SheetID int

// NoSheet is the parent of the root sheet
const NoSheet SheetID = -1

// RootSheet is always the first sheet of a model
const RootSheet SheetID = 0

// Sheet is one node of the sheet tree
type Sheet struct {
	ID       SheetID
	Path     string   // KiCad name path: "/" or "/power/regulator/"
	Segments []string // Path split on "/", empty for the root
	Title    string
	Parent   SheetID
	Children []SheetID

	// Components owned by the sheet, in natural order
	Components []string
}

// IsRoot reports whether the sheet is the top of the tree
func (s *Sheet) IsRoot() bool {
	return s.Parent == NoSheet
}

// Name returns the last path segment, "root" for the root sheet
func (s *Sheet) Name() string {
	if len(s.Segments) == 0 {
		return "root"
	}
	return s.Segments[len(s.Segments)-1]
}

// String returns the hierarchy path, e.g. "root/power/regulator"
func (s *Sheet) String() string {
	return strings.Join(append([]string{"root"}, s.Segments...), "/")
}

// Pin is a component pin
type Pin struct {
	Num  string
	Name string
	Type string
}

// Component is one placed part
type Component struct {
	Ref         string
	Value       string
	Footprint   string
	Datasheet   string
	Lib         string
	Part        string
	Description string
	MPN         string
	Sheet       SheetID

	// Pins in natural order of their numbers, unique by number
	Pins []Pin
}

// Pin returns the pin with the given number
func (c *Component) Pin(num string) (Pin, bool) {
	for _, p := range c.Pins {
		if p.Num == num {
			return p, true
		}
	}
	return Pin{}, false
}

// Endpoint is one component pin on a net
type Endpoint struct {
	Ref string
	Pin string
}

func (e Endpoint) String() string {
	return e.Ref + "." + e.Pin
}

// Less orders endpoints by reference designator, then pin, both naturally.
func (e Endpoint) Less(o Endpoint) bool {
	if e.Ref != o.Ref {
		return natural.Less(e.Ref, o.Ref)
	}
	return natural.Less(e.Pin, o.Pin)
}

// Net is an electrical connection between two or more distinct endpoints
type Net struct {
	Name string // "" for unnamed nets
	Code string

	// Endpoints sorted with Endpoint.Less, without duplicates
	Endpoints []Endpoint
}

// Label names the net in diagnostics
func (n *Net) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return "#" + n.Code
}

// Key is the canonical endpoint list, used to order unnamed nets
func (n *Net) Key() string {
	parts := make([]string, len(n.Endpoints))
	for i, ep := range n.Endpoints {
		parts[i] = ep.String()
	}
	return strings.Join(parts, ",")
}

// Model is the circuit graph. It is not modified after Build returns.
type Model struct {
	// Title of the design, from the root sheet title block
	Title string

	Components map[string]*Component
	// Refs lists every reference designator in natural order
	Refs []string

	// Nets in netlist order
	Nets []*Net

	// Sheets is an arena indexed by SheetID. Sheets[RootSheet] is the root.
	Sheets []*Sheet
}

// Component looks up a component by reference designator
func (m *Model) Component(ref string) (*Component, bool) {
	c, ok := m.Components[ref]
	return c, ok
}

// Sheet returns the sheet with the given id
func (m *Model) Sheet(id SheetID) *Sheet {
	return m.Sheets[id]
}

// Root returns the root sheet
func (m *Model) Root() *Sheet {
	return m.Sheets[RootSheet]
}

// SheetByPath finds a sheet by its KiCad name path
func (m *Model) SheetByPath(path string) (*Sheet, bool) {
	norm := normalizePath(path)
	for _, s := range m.Sheets {
		if s.Path == norm {
			return s, true
		}
	}
	return nil, false
}

// Walk visits the sheet tree depth first, parents before children
func (m *Model) Walk(fn func(*Sheet)) {
	var visit func(SheetID)
	visit = func(id SheetID) {
		s := m.Sheets[id]
		fn(s)
		for _, child := range s.Children {
			visit(child)
		}
	}
	visit(RootSheet)
}

func sortEndpoints(eps []Endpoint) {
	sort.Slice(eps, func(i, j int) bool { return eps[i].Less(eps[j]) })
}

func normalizePath(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
