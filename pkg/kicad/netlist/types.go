package netlist

import "github.com/OpenTraceLab/diode/pkg/kicad/sexp"

// Field is a named value attached to a component or library part
type Field = sexp.Field

// Netlist is the typed form of a KiCad netlist export
type Netlist struct {
	Version    string // Export format version ("D", "E")
	Design     Design
	Components []Component
	LibParts   []LibPart
	Libraries  []Library
	Nets       []Net
}

// Design holds the (design ...) header including the sheet list
type Design struct {
	Source string
	Date   string
	Tool   string
	Sheets []Sheet
}

// Sheet is one schematic sheet instance
type Sheet struct {
	Number  int
	Name    string // Hierarchical name path, e.g. "/power/regulator/"
	TStamps string // UUID path, e.g. "/5f1c.../9a2b.../"
	Parent  string // Name path of the parent sheet, "" for the root sheet
	Title   string
	File    string // Source schematic file from the title block
}

// IsRoot reports whether the sheet is the top-level sheet
func (s Sheet) IsRoot() bool {
	return s.Name == "/" || s.Name == ""
}

// Pin is a library pin: number (pad identifier), name and electrical type
type Pin struct {
	Num  string
	Name string
	Type string
}

// Component is one placed symbol (comp ...)
type Component struct {
	Ref         string
	Value       string
	Footprint   string
	Datasheet   string
	Lib         string // Library nickname from libsource
	Part        string // Part name from libsource
	Description string
	Fields      []Field
	Properties  []Field

	// SheetPath is the hierarchical sheet name path ("/" for the root sheet)
	SheetPath    string
	SheetTStamps string
	TStamps      string

	// Pins of the component. Taken from the matching libpart, or inferred
	// from the net nodes referencing the component when no libpart exists.
	Pins         []Pin
	PinsInferred bool

	Line int // Source line of the (comp ...) node
}

// Field returns the value of a named field, looking at fields first and
// then at properties.
func (c *Component) Field(name string) (string, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	for _, p := range c.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// HasPin reports whether the component declares a pin with the given number
func (c *Component) HasPin(num string) bool {
	for _, p := range c.Pins {
		if p.Num == num {
			return true
		}
	}
	return false
}

// LibPart is a library part description (libpart ...)
type LibPart struct {
	Lib         string
	Part        string
	Description string
	Docs        string
	Aliases     []string
	Footprints  []string
	Fields      []Field
	Pins        []Pin
}

// Library is a symbol library reference (library (logical ...) (uri ...))
type Library struct {
	Logical string
	URI     string
}

// Net is an electrical net with its nodes
type Net struct {
	Code  string
	Name  string
	Nodes []Node
	Line  int
}

// Node is one net endpoint: a pin of a component
type Node struct {
	Ref         string
	Pin         string
	PinFunction string
	PinType     string
}
