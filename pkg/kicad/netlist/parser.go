package netlist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OpenTraceLab/diode/pkg/kicad/sexp"
	"github.com/OpenTraceLab/diode/pkg/kicad/sexp/kicadsexp"
)

// Sheetname is the component property KiCad uses for the owning sheet's
// display name. It is only consulted when no (sheetpath ...) is present.
const Sheetname = "Sheetname"

// ParseFile reads and parses a KiCad netlist file
func ParseFile(filename string) (*Netlist, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// ParseString parses a KiCad netlist held in memory
func ParseString(raw string) (*Netlist, error) {
	return Parse(strings.NewReader(raw))
}

// Parse reads and parses a KiCad netlist from an io.Reader. Sections may
// appear in any order. The result is fully resolved: every component has a
// pin list and every net node references an existing component pin.
func Parse(r io.Reader) (*Netlist, error) {
	sexps, err := kicadsexp.Parse(r)
	if err != nil {
		var syn *kicadsexp.SyntaxError
		if errors.As(err, &syn) {
			return nil, &ParseError{Kind: Malformed, Line: syn.Pos.Line, Column: syn.Pos.Column, Message: syn.Msg}
		}
		return nil, fmt.Errorf("failed to read netlist: %w", err)
	}

	if len(sexps) == 0 {
		return nil, &ParseError{Kind: Malformed, Message: "empty input"}
	}
	if len(sexps) > 1 {
		return nil, malformed(sexps[1], "", "unexpected content after (export ...)")
	}

	root := sexps[0]
	rootName, err := sexp.GetNodeName(root)
	if err != nil || root.IsLeaf() {
		return nil, malformed(root, "", "expected (export ...) root node")
	}
	if rootName != "export" {
		return nil, malformed(root, rootName, "not a KiCad netlist: expected 'export'")
	}

	nl := &Netlist{
		Version: sexp.ChildValueOr(root, "version", ""),
	}

	if designNode, found := sexp.FindNode(root, "design"); found {
		nl.Design = parseDesign(designNode)
	}

	for _, section := range sexp.FindAllNodes(root, "libparts") {
		parts, err := parseLibParts(section)
		if err != nil {
			return nil, err
		}
		nl.LibParts = append(nl.LibParts, parts...)
	}

	for _, section := range sexp.FindAllNodes(root, "libraries") {
		nl.Libraries = append(nl.Libraries, parseLibraries(section)...)
	}

	for _, section := range sexp.FindAllNodes(root, "components") {
		comps, err := parseComponents(section)
		if err != nil {
			return nil, err
		}
		nl.Components = append(nl.Components, comps...)
	}

	for _, section := range sexp.FindAllNodes(root, "nets") {
		nets, err := parseNets(section)
		if err != nil {
			return nil, err
		}
		nl.Nets = append(nl.Nets, nets...)
	}

	resolveSheetParents(nl.Design.Sheets)
	resolvePins(nl)

	if err := checkReferences(nl); err != nil {
		return nil, err
	}

	return nl, nil
}

func malformed(node kicadsexp.Sexp, subject, msg string) *ParseError {
	pos := kicadsexp.PositionOf(node)
	return &ParseError{Kind: Malformed, Line: pos.Line, Column: pos.Column, Subject: subject, Message: msg}
}

// parseDesign extracts the design header and sheet list
func parseDesign(node kicadsexp.Sexp) Design {
	d := Design{
		Source: sexp.ChildValueOr(node, "source", ""),
		Date:   sexp.ChildValueOr(node, "date", ""),
		Tool:   sexp.ChildValueOr(node, "tool", ""),
	}

	for _, sheetNode := range sexp.FindAllNodes(node, "sheet") {
		sh := Sheet{
			Name:    sexp.ChildValueOr(sheetNode, "name", "/"),
			TStamps: sexp.ChildValueOr(sheetNode, "tstamps", ""),
		}
		if numNode, ok := sexp.FindNode(sheetNode, "number"); ok {
			sh.Number, _ = sexp.GetInt(numNode, 1)
		}
		if tb, ok := sexp.FindNode(sheetNode, "title_block"); ok {
			sh.Title = sexp.ChildValueOr(tb, "title", "")
			sh.File = sexp.ChildValueOr(tb, "source", "")
		}
		d.Sheets = append(d.Sheets, sh)
	}

	return d
}

// parseComponents parses every (comp ...) of a components section
func parseComponents(section kicadsexp.Sexp) ([]Component, error) {
	compNodes := sexp.FindAllNodes(section, "comp")
	comps := make([]Component, 0, len(compNodes))

	for _, node := range compNodes {
		ref, ok := sexp.ChildValue(node, "ref")
		if !ok || ref == "" {
			return nil, malformed(node, "", "component without (ref ...)")
		}

		c := Component{
			Ref:       ref,
			Value:     sexp.ChildValueOr(node, "value", ""),
			Footprint: sexp.ChildValueOr(node, "footprint", ""),
			Datasheet: sexp.ChildValueOr(node, "datasheet", ""),
			TStamps:   sexp.ChildValueOr(node, "tstamps", sexp.ChildValueOr(node, "tstamp", "")),
			Line:      kicadsexp.PositionOf(node).Line,
		}

		if libsource, ok := sexp.FindNode(node, "libsource"); ok {
			c.Lib = sexp.ChildValueOr(libsource, "lib", "")
			c.Part = sexp.ChildValueOr(libsource, "part", "")
			c.Description = sexp.ChildValueOr(libsource, "description", "")
		}

		c.Fields = parseFields(node)
		for _, propNode := range sexp.FindAllNodes(node, "property") {
			if f, err := sexp.GetField(propNode); err == nil {
				c.Properties = append(c.Properties, f)
			}
		}

		if sp, ok := sexp.FindNode(node, "sheetpath"); ok {
			c.SheetPath = sexp.ChildValueOr(sp, "names", "/")
			c.SheetTStamps = sexp.ChildValueOr(sp, "tstamps", "")
		} else if name, ok := c.Field(Sheetname); ok && name != "" && !strings.EqualFold(name, "root") {
			c.SheetPath = "/" + strings.Trim(name, "/") + "/"
		} else {
			c.SheetPath = "/"
		}

		comps = append(comps, c)
	}

	return comps, nil
}

// parseFields parses a (fields (field ...) ...) child
func parseFields(node kicadsexp.Sexp) []Field {
	fieldsNode, ok := sexp.FindNode(node, "fields")
	if !ok {
		return nil
	}
	var fields []Field
	for _, fn := range sexp.FindAllNodes(fieldsNode, "field") {
		if f, err := sexp.GetField(fn); err == nil {
			fields = append(fields, f)
		}
	}
	return fields
}

// parseLibParts parses every (libpart ...) of a libparts section
func parseLibParts(section kicadsexp.Sexp) ([]LibPart, error) {
	var parts []LibPart

	for _, node := range sexp.FindAllNodes(section, "libpart") {
		part, ok := sexp.ChildValue(node, "part")
		if !ok || part == "" {
			return nil, malformed(node, "", "libpart without (part ...)")
		}

		lp := LibPart{
			Lib:         sexp.ChildValueOr(node, "lib", ""),
			Part:        part,
			Description: sexp.ChildValueOr(node, "description", ""),
			Docs:        sexp.ChildValueOr(node, "docs", ""),
			Fields:      parseFields(node),
		}

		if aliases, ok := sexp.FindNode(node, "aliases"); ok {
			for _, a := range sexp.FindAllNodes(aliases, "alias") {
				if name, err := sexp.GetString(a, 1); err == nil {
					lp.Aliases = append(lp.Aliases, name)
				}
			}
		}

		if fps, ok := sexp.FindNode(node, "footprints"); ok {
			for _, fp := range sexp.FindAllNodes(fps, "fp") {
				if pattern, err := sexp.GetString(fp, 1); err == nil {
					lp.Footprints = append(lp.Footprints, pattern)
				}
			}
		}

		if pins, ok := sexp.FindNode(node, "pins"); ok {
			for _, pn := range sexp.FindAllNodes(pins, "pin") {
				num, ok := sexp.ChildValue(pn, "num")
				if !ok || num == "" {
					return nil, malformed(pn, lp.Part, "pin without (num ...)")
				}
				lp.Pins = append(lp.Pins, Pin{
					Num:  num,
					Name: sexp.ChildValueOr(pn, "name", ""),
					Type: sexp.ChildValueOr(pn, "type", ""),
				})
			}
		}

		parts = append(parts, lp)
	}

	return parts, nil
}

// parseLibraries parses every (library ...) of a libraries section
func parseLibraries(section kicadsexp.Sexp) []Library {
	var libs []Library
	for _, node := range sexp.FindAllNodes(section, "library") {
		libs = append(libs, Library{
			Logical: sexp.ChildValueOr(node, "logical", ""),
			URI:     sexp.ChildValueOr(node, "uri", ""),
		})
	}
	return libs
}

// parseNets parses every (net ...) of a nets section
func parseNets(section kicadsexp.Sexp) ([]Net, error) {
	var nets []Net

	for _, node := range sexp.FindAllNodes(section, "net") {
		code, hasCode := sexp.ChildValue(node, "code")
		name, hasName := sexp.ChildValue(node, "name")
		if !hasCode && !hasName {
			return nil, malformed(node, "", "net without (code ...) or (name ...)")
		}

		n := Net{Code: code, Name: name, Line: kicadsexp.PositionOf(node).Line}

		for _, nodeNode := range sexp.FindAllNodes(node, "node") {
			ref, ok := sexp.ChildValue(nodeNode, "ref")
			if !ok || ref == "" {
				return nil, malformed(nodeNode, netLabel(n), "node without (ref ...)")
			}
			pin, ok := sexp.ChildValue(nodeNode, "pin")
			if !ok || pin == "" {
				return nil, malformed(nodeNode, netLabel(n), "node without (pin ...)")
			}
			n.Nodes = append(n.Nodes, Node{
				Ref:         ref,
				Pin:         pin,
				PinFunction: sexp.ChildValueOr(nodeNode, "pinfunction", ""),
				PinType:     sexp.ChildValueOr(nodeNode, "pintype", ""),
			})
		}

		nets = append(nets, n)
	}

	return nets, nil
}

func netLabel(n Net) string {
	if n.Name != "" {
		return n.Name
	}
	return "net code " + n.Code
}

// resolveSheetParents fills Sheet.Parent from the tstamps path, falling
// back to the name path when the parent instance is not listed.
func resolveSheetParents(sheets []Sheet) {
	byTStamps := make(map[string]string, len(sheets))
	for _, sh := range sheets {
		if sh.TStamps != "" {
			byTStamps[sh.TStamps] = sh.Name
		}
	}

	for i := range sheets {
		sh := &sheets[i]
		if sh.IsRoot() {
			sh.Parent = ""
			continue
		}
		if parentTS := parentPath(sh.TStamps); parentTS != "" {
			if name, ok := byTStamps[parentTS]; ok {
				sh.Parent = name
				continue
			}
		}
		sh.Parent = parentPath(sh.Name)
	}
}

// parentPath strips the last segment of a "/a/b/" style path. The parent
// of a top-level path is "/"; the root itself has no parent.
func parentPath(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return ""
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "/"
	}
	return "/" + trimmed[:idx] + "/"
}

// resolvePins attaches library pins to components, or infers them from net
// nodes when the netlist carries no matching libpart.
func resolvePins(nl *Netlist) {
	byLibPart := make(map[string]*LibPart)
	byPart := make(map[string]*LibPart)
	for i := range nl.LibParts {
		lp := &nl.LibParts[i]
		names := append([]string{lp.Part}, lp.Aliases...)
		for _, name := range names {
			key := lp.Lib + ":" + name
			if _, exists := byLibPart[key]; !exists {
				byLibPart[key] = lp
			}
			if _, exists := byPart[name]; !exists {
				byPart[name] = lp
			}
		}
	}

	// Pins seen on nets, in order of appearance, for inference
	seen := make(map[string][]Pin)
	seenKey := make(map[string]bool)
	for _, n := range nl.Nets {
		for _, node := range n.Nodes {
			key := node.Ref + "\x00" + node.Pin
			if seenKey[key] {
				continue
			}
			seenKey[key] = true
			seen[node.Ref] = append(seen[node.Ref], Pin{Num: node.Pin, Name: node.PinFunction, Type: node.PinType})
		}
	}

	for i := range nl.Components {
		c := &nl.Components[i]
		lp, ok := byLibPart[c.Lib+":"+c.Part]
		if !ok {
			lp, ok = byPart[c.Part]
		}
		if ok && len(lp.Pins) > 0 {
			c.Pins = append([]Pin(nil), lp.Pins...)
			if c.Description == "" {
				c.Description = lp.Description
			}
			continue
		}
		c.Pins = append([]Pin(nil), seen[c.Ref]...)
		c.PinsInferred = true
	}
}

// checkReferences verifies that every net node references a known
// component and, for components with a declared pin list, a known pin.
func checkReferences(nl *Netlist) error {
	comps := make(map[string]*Component, len(nl.Components))
	for i := range nl.Components {
		comps[nl.Components[i].Ref] = &nl.Components[i]
	}

	for _, n := range nl.Nets {
		for _, node := range n.Nodes {
			c, ok := comps[node.Ref]
			if !ok {
				return &ParseError{
					Kind:    DanglingReference,
					Line:    n.Line,
					Subject: node.Ref,
					Message: fmt.Sprintf("net %q references unknown component", netLabel(n)),
				}
			}
			if !c.HasPin(node.Pin) {
				return &ParseError{
					Kind:    DanglingReference,
					Line:    n.Line,
					Subject: node.Ref + "." + node.Pin,
					Message: fmt.Sprintf("net %q references unknown pin of %s", netLabel(n), c.Part),
				}
			}
		}
	}

	return nil
}
