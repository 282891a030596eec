// Package atopile emits an atopile project from a circuit model, its part
// library and its module plan.
//
// The layout is fixed:
//
//	library/<Part>.ato        one component block per part definition
//	<sheet path>.ato          one module block per sheet
//	<project>.ato             the root module, instantiating every sheet module
package atopile

import (
	"fmt"
	"path"
	"sort"
	"strconv"

	"github.com/maruel/natural"

	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/library"
	"github.com/OpenTraceLab/diode/pkg/naming"
	"github.com/OpenTraceLab/diode/pkg/partition"
)

// LibraryDir holds the part definition files
const LibraryDir = "library"

// Options tunes the generated text
type Options struct {
	// Header, when set, is written as a comment at the top of every file
	Header string
}

// DefinitionFile returns the project relative file of a part definition
func DefinitionFile(d *library.Definition) string {
	return path.Join(LibraryDir, d.Name+".ato")
}

type generator struct {
	m    *circuit.Model
	lib  *library.Library
	plan *partition.Plan
	opts Options

	boundary map[string]*partition.NetPlan
}

// Generate emits the project. It fails with a *GenError when a component
// has no definition or when two emitted names clash.
func Generate(m *circuit.Model, lib *library.Library, plan *partition.Plan, opts Options) (*Project, error) {
	g := &generator{
		m:        m,
		lib:      lib,
		plan:     plan,
		opts:     opts,
		boundary: make(map[string]*partition.NetPlan, len(plan.Boundary)),
	}
	for _, np := range plan.Boundary {
		g.boundary[np.Ident] = np
	}

	if err := g.checkSymbols(); err != nil {
		return nil, err
	}

	proj := &Project{Name: plan.Root().Name, Root: plan.Root().File}
	files := make(map[string]string)
	add := func(p, owner string, content []byte) error {
		if prev, ok := files[p]; ok {
			return collision(p, "", fmt.Sprintf("file written by both %s and %s", prev, owner))
		}
		files[p] = owner
		proj.Files = append(proj.Files, File{Path: p, Content: content})
		return nil
	}

	for _, d := range lib.Definitions {
		content, err := g.component(d)
		if err != nil {
			return nil, err
		}
		if err := add(DefinitionFile(d), "part "+d.Name, content); err != nil {
			return nil, err
		}
	}
	for _, mod := range plan.Modules {
		content, err := g.module(mod)
		if err != nil {
			return nil, err
		}
		if err := add(mod.File, "module "+mod.Path, content); err != nil {
			return nil, err
		}
	}

	proj.sortFiles()
	return proj, nil
}

// checkSymbols verifies that block names and root instance names are unique.
func (g *generator) checkSymbols() error {
	symbols := make(map[string]string)
	claim := func(name, owner string) error {
		if prev, ok := symbols[name]; ok {
			return collision(name, "", fmt.Sprintf("used by both %s and %s", prev, owner))
		}
		symbols[name] = owner
		return nil
	}

	for _, d := range g.lib.Definitions {
		if err := claim(d.Name, "part "+d.Key.String()); err != nil {
			return err
		}
	}
	for _, mod := range g.plan.Modules {
		if mod.Name == "" {
			return collision(mod.Path, "", "module name has no usable characters")
		}
		if err := claim(mod.Name, "module "+mod.Path); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) header(w *writer) {
	if g.opts.Header == "" {
		return
	}
	w.line("# %s", g.opts.Header)
	w.gap()
}

// component emits the block of a part definition. Two pin numbers written
// as the same token would wire two signals to one pin, so that fails.
func (g *generator) component(d *library.Definition) ([]byte, error) {
	w := newWriter()
	g.header(w)

	tokens := make(map[string]string, len(d.Pins))
	w.open("component %s:", d.Name)
	for _, p := range d.Pins {
		if prev, ok := tokens[p.Token]; ok {
			return nil, collision("pin "+p.Token, d.Name, fmt.Sprintf("pin numbers %q and %q are written the same", prev, p.Num))
		}
		tokens[p.Token] = p.Num
		w.line("signal %s ~ pin %s", p.Signal, p.Token)
	}
	if d.Footprint != "" {
		w.line("footprint = %s", strconv.Quote(d.Footprint))
	}
	if d.Value != "" {
		w.line("value = %s", strconv.Quote(d.Value))
	}
	if d.MPN != "" {
		w.line("mpn = %s", strconv.Quote(d.MPN))
	}
	if len(d.Pins) == 0 && d.Footprint == "" && d.Value == "" && d.MPN == "" {
		w.line("pass")
	}
	w.close()

	return []byte(w.String()), nil
}

type imported struct {
	file   string
	symbol string
}

// scope tracks the identifiers declared inside one module block
type scope struct {
	module string
	names  map[string]string
}

func (s *scope) declare(name, owner string) error {
	if prev, ok := s.names[name]; ok {
		return collision(name, s.module, fmt.Sprintf("declared by both %s and %s", prev, owner))
	}
	s.names[name] = owner
	return nil
}

// addImport records an imported symbol once. Imported symbols share the
// block scope with signals and instances.
func addImport(sc *scope, imports map[imported]bool, imp imported, owner string) error {
	if imports[imp] {
		return nil
	}
	if err := sc.declare(imp.symbol, owner); err != nil {
		return err
	}
	imports[imp] = true
	return nil
}

// instance is a component placed in a module
type instance struct {
	ref   string
	ident string
	def   *library.Definition
}

// module emits the block of one sheet module, or the root module
func (g *generator) module(mod *partition.Module) ([]byte, error) {
	sc := &scope{module: mod.Path, names: make(map[string]string)}
	imports := make(map[imported]bool)

	for _, sig := range mod.Interface {
		if err := sc.declare(sig, "signal "+sig); err != nil {
			return nil, err
		}
	}

	insts := make(map[string]*instance, len(mod.Components))
	ordered := make([]*instance, 0, len(mod.Components))
	for i, ref := range mod.Components {
		d, ok := g.lib.Lookup(ref)
		if !ok {
			return nil, &GenError{Kind: UnresolvedDefinition, Subject: ref, Scope: mod.Path, Message: "component has no part definition"}
		}
		ident := naming.Component(ref)
		if ident == "" {
			ident = fmt.Sprintf("U%d", i+1)
		}
		if err := sc.declare(ident, "component "+ref); err != nil {
			return nil, err
		}
		inst := &instance{ref: ref, ident: ident, def: d}
		insts[ref] = inst
		ordered = append(ordered, inst)
		if err := addImport(sc, imports, imported{DefinitionFile(d), d.Name}, "part "+d.Name); err != nil {
			return nil, err
		}
	}

	var children []*partition.Module
	if mod.IsRoot() {
		for _, child := range g.plan.Modules {
			if child.IsRoot() {
				continue
			}
			if err := sc.declare(child.Instance, "instance of "+child.Path); err != nil {
				return nil, err
			}
			children = append(children, child)
			if err := addImport(sc, imports, imported{child.File, child.Name}, "module "+child.Path); err != nil {
				return nil, err
			}
		}
		sort.Slice(children, func(i, j int) bool { return natural.Less(children[i].Instance, children[j].Instance) })
	}

	pinRef := func(ep circuit.Endpoint) (string, error) {
		inst, ok := insts[ep.Ref]
		if !ok {
			return "", &GenError{Kind: UnresolvedDefinition, Subject: ep.Ref, Scope: mod.Path, Message: "endpoint outside the module"}
		}
		sig, ok := inst.def.Signal(ep.Pin)
		if !ok {
			return "", &GenError{Kind: UnresolvedDefinition, Subject: ep.String(), Scope: mod.Path, Message: "pin missing from definition " + inst.def.Name}
		}
		return inst.ident + "." + sig, nil
	}

	w := newWriter()
	g.header(w)
	writeImports(w, imports)

	w.open("module %s:", mod.Name)
	empty := true

	for _, sig := range mod.Interface {
		w.line("signal %s", sig)
		empty = false
	}

	w.gap()
	for _, inst := range ordered {
		w.line("%s = new %s", inst.ident, inst.def.Name)
		w.line("%s.designator = %s", inst.ident, strconv.Quote(inst.ref))
		empty = false
	}

	w.gap()
	for _, child := range children {
		w.line("%s = new %s", child.Instance, child.Name)
		empty = false
	}

	// Nets wholly inside the module: star from the first endpoint
	for _, np := range mod.Intra {
		w.gap()
		w.line("# %s", netComment(np))
		first, err := pinRef(np.Net.Endpoints[0])
		if err != nil {
			return nil, err
		}
		for _, ep := range np.Net.Endpoints[1:] {
			other, err := pinRef(ep)
			if err != nil {
				return nil, err
			}
			w.line("%s ~ %s", first, other)
		}
		empty = false
	}

	// Boundary nets: the module signal joins the local endpoints and, in
	// the root, the interface points of the sheet instances.
	for _, sig := range g.boundaryOrder(mod) {
		np := g.boundary[sig]
		w.gap()
		w.line("# %s", netComment(np))

		var points []string
		for _, ep := range np.Net.Endpoints {
			if g.plan.ModuleOf[ep.Ref] != mod.ID {
				continue
			}
			ref, err := pinRef(ep)
			if err != nil {
				return nil, err
			}
			points = append(points, ref)
		}
		if mod.IsRoot() {
			for _, id := range np.Modules {
				if child := g.plan.Modules[id]; !child.IsRoot() {
					points = append(points, child.Instance+"."+np.Ident)
				}
			}
		}

		if np.Touches(mod.ID) {
			for _, p := range points {
				w.line("%s ~ %s", np.Ident, p)
			}
		} else {
			for _, p := range points[1:] {
				w.line("%s ~ %s", points[0], p)
			}
		}
		empty = false
	}

	if empty {
		w.line("pass")
	}
	w.close()

	return []byte(w.String()), nil
}

// boundaryOrder lists the boundary nets a module wires: the ones it touches,
// and for the root every boundary net.
func (g *generator) boundaryOrder(mod *partition.Module) []string {
	if !mod.IsRoot() {
		return mod.Interface
	}
	idents := make([]string, len(g.plan.Boundary))
	for i, np := range g.plan.Boundary {
		idents[i] = np.Ident
	}
	return idents
}

func netComment(np *partition.NetPlan) string {
	if np.Net.Name == "" {
		return np.Ident + " (unnamed)"
	}
	return np.Net.Name
}

func writeImports(w *writer, imports map[imported]bool) {
	list := make([]imported, 0, len(imports))
	for imp := range imports {
		list = append(list, imp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].file != list[j].file {
			return natural.Less(list[i].file, list[j].file)
		}
		return list[i].symbol < list[j].symbol
	})
	for _, imp := range list {
		w.line("from %s import %s", strconv.Quote(imp.file), imp.symbol)
	}
	w.gap()
}
