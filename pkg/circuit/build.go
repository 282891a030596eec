package circuit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/OpenTraceLab/diode/pkg/diag"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
)

// NoConnectPrefix starts the names KiCad gives to nets of unconnected pins
const NoConnectPrefix = "unconnected-"

// mpnFields are the component fields read as manufacturer part number
var mpnFields = []string{"MPN", "Mpn", "mpn", "Manufacturer_Part_Number", "MFR_PN", "PartNumber"}

// Options controls model building
type Options struct {
	// AllowNoConnect drops single-pin nets named "unconnected-..." with a
	// warning instead of failing with DegenerateNet.
	AllowNoConnect bool
}

// Build validates a parsed netlist and constructs the circuit model.
// Warnings are returned for recoverable oddities such as same-named nets.
func Build(nl *netlist.Netlist, opts Options) (*Model, diag.List, error) {
	var warnings diag.List

	m := &Model{
		Components: make(map[string]*Component, len(nl.Components)),
	}

	if err := buildComponents(m, nl); err != nil {
		return nil, nil, err
	}

	if err := buildSheets(m, nl); err != nil {
		return nil, nil, err
	}

	if err := buildNets(m, nl, opts, &warnings); err != nil {
		return nil, nil, err
	}

	return m, warnings, nil
}

func buildComponents(m *Model, nl *netlist.Netlist) error {
	for i := range nl.Components {
		src := &nl.Components[i]
		if _, exists := m.Components[src.Ref]; exists {
			return &ModelError{Kind: DuplicateReference, Subject: src.Ref}
		}

		c := &Component{
			Ref:         src.Ref,
			Value:       src.Value,
			Footprint:   src.Footprint,
			Datasheet:   src.Datasheet,
			Lib:         src.Lib,
			Part:        src.Part,
			Description: src.Description,
		}
		for _, name := range mpnFields {
			if v, ok := src.Field(name); ok && v != "" {
				c.MPN = v
				break
			}
		}

		seen := make(map[string]bool, len(src.Pins))
		for _, p := range src.Pins {
			if seen[p.Num] {
				continue
			}
			seen[p.Num] = true
			c.Pins = append(c.Pins, Pin{Num: p.Num, Name: p.Name, Type: p.Type})
		}
		sort.SliceStable(c.Pins, func(i, j int) bool { return natural.Less(c.Pins[i].Num, c.Pins[j].Num) })

		m.Components[c.Ref] = c
		m.Refs = append(m.Refs, c.Ref)
	}

	sort.Slice(m.Refs, func(i, j int) bool { return natural.Less(m.Refs[i], m.Refs[j]) })
	return nil
}

// sheetBuilder inserts sheet paths into the arena, creating intermediate
// nodes on demand.
type sheetBuilder struct {
	m        *Model
	byPath   map[string]SheetID
	declared map[string]string // path -> declared parent path
}

func (b *sheetBuilder) ensure(path string) SheetID {
	path = normalizePath(path)
	if id, ok := b.byPath[path]; ok {
		return id
	}

	id := SheetID(len(b.m.Sheets))
	b.m.Sheets = append(b.m.Sheets, &Sheet{
		ID:       id,
		Path:     path,
		Segments: splitPath(path),
		Parent:   NoSheet,
	})
	b.byPath[path] = id

	if path == "/" {
		return id
	}

	parentPath, ok := b.declared[path]
	if !ok || parentPath == "" {
		parentPath = parentOf(path)
	}
	b.m.Sheets[id].Parent = b.ensure(parentPath)
	return id
}

func parentOf(path string) string {
	segs := splitPath(path)
	if len(segs) <= 1 {
		return "/"
	}
	return "/" + strings.Join(segs[:len(segs)-1], "/") + "/"
}

func buildSheets(m *Model, nl *netlist.Netlist) error {
	b := &sheetBuilder{
		m:        m,
		byPath:   make(map[string]SheetID),
		declared: make(map[string]string),
	}

	for _, sh := range nl.Design.Sheets {
		if sh.IsRoot() {
			continue
		}
		b.declared[normalizePath(sh.Name)] = sh.Parent
	}

	root := b.ensure("/")
	for _, sh := range nl.Design.Sheets {
		id := b.ensure(sh.Name)
		if sh.Title != "" {
			m.Sheets[id].Title = sh.Title
		}
	}

	for _, c := range nl.Components {
		m.Components[c.Ref].Sheet = b.ensure(c.SheetPath)
	}

	m.Title = m.Sheets[root].Title

	// Parents are inserted lazily, so a declared parent chain can loop back
	// without ever reaching the root.
	for _, s := range m.Sheets {
		visited := map[SheetID]bool{}
		for cur := s.ID; cur != NoSheet; cur = m.Sheets[cur].Parent {
			if visited[cur] {
				return &ModelError{Kind: HierarchyCycle, Subject: s.String(), Detail: "sheet parents form a cycle"}
			}
			visited[cur] = true
		}
	}

	for _, s := range m.Sheets {
		if s.Parent != NoSheet {
			parent := m.Sheets[s.Parent]
			parent.Children = append(parent.Children, s.ID)
		}
	}
	for _, ref := range m.Refs {
		s := m.Sheets[m.Components[ref].Sheet]
		s.Components = append(s.Components, ref)
	}
	for _, s := range m.Sheets {
		sort.Slice(s.Children, func(i, j int) bool {
			return natural.Less(m.Sheets[s.Children[i]].Path, m.Sheets[s.Children[j]].Path)
		})
	}

	return nil
}

func buildNets(m *Model, nl *netlist.Netlist, opts Options, warnings *diag.List) error {
	byName := make(map[string]*Net)
	seen := make(map[*Net]map[Endpoint]bool)
	owner := make(map[Endpoint]*Net)

	for _, src := range nl.Nets {
		var n *Net
		if src.Name != "" {
			n = byName[src.Name]
		}
		if n != nil {
			warnings.Addf(diag.StageModel, src.Name, "net declared more than once, merging codes %s and %s", n.Code, src.Code)
		} else {
			n = &Net{Name: src.Name, Code: src.Code}
			seen[n] = make(map[Endpoint]bool)
			m.Nets = append(m.Nets, n)
			if src.Name != "" {
				byName[src.Name] = n
			}
		}

		for _, node := range src.Nodes {
			c, ok := m.Components[node.Ref]
			if !ok {
				return &ModelError{Kind: UnknownEndpoint, Subject: node.Ref, Detail: "net " + n.Label() + " references an unknown component"}
			}
			if _, ok := c.Pin(node.Pin); !ok {
				return &ModelError{Kind: UnknownEndpoint, Subject: node.Ref + "." + node.Pin, Detail: "net " + n.Label() + " references an unknown pin"}
			}
			ep := Endpoint{Ref: node.Ref, Pin: node.Pin}
			if seen[n][ep] {
				continue
			}
			if prev, ok := owner[ep]; ok {
				return &ModelError{Kind: SharedEndpoint, Subject: ep.String(),
					Detail: fmt.Sprintf("pin is on both net %s and net %s", prev.Label(), n.Label())}
			}
			owner[ep] = n
			seen[n][ep] = true
			n.Endpoints = append(n.Endpoints, ep)
		}
	}

	kept := m.Nets[:0]
	for _, n := range m.Nets {
		sortEndpoints(n.Endpoints)
		if len(n.Endpoints) >= 2 {
			kept = append(kept, n)
			continue
		}
		if opts.AllowNoConnect && strings.HasPrefix(n.Name, NoConnectPrefix) {
			warnings.Addf(diag.StageModel, n.Name, "dropping no-connect net with %d endpoint(s)", len(n.Endpoints))
			continue
		}
		return &ModelError{Kind: DegenerateNet, Subject: n.Label(), Detail: "a net needs at least two distinct endpoints"}
	}
	m.Nets = kept

	return nil
}
