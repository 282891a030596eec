// Package trace recovers the net topology of an atopile project by
// expanding its module tree and merging every connection into a
// union-find structure. It is used to check that a generated project
// wires exactly the nets of the circuit it came from.
package trace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/OpenTraceLab/diode/pkg/atopile"
	"github.com/OpenTraceLab/diode/pkg/atopile/syntax"
	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/library"
)

// Terminal is a component pin reached by tracing
type Terminal struct {
	Designator string
	Pin        string
}

func (t Terminal) String() string {
	return t.Designator + "." + t.Pin
}

func (t Terminal) less(o Terminal) bool {
	if t.Designator != o.Designator {
		return natural.Less(t.Designator, o.Designator)
	}
	return natural.Less(t.Pin, o.Pin)
}

// Net is a sorted set of terminals
type Net []Terminal

func (n Net) String() string {
	parts := make([]string, len(n))
	for i, t := range n {
		parts[i] = t.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

type definedBlock struct {
	block *syntax.Block
	file  string
}

type pinNode struct {
	instance string
	pin      string
}

type tracer struct {
	blocks      map[string]definedBlock
	visible     map[string]map[string]bool // file -> symbols usable in it
	uf          *unionFind
	pins        map[string]pinNode
	designators map[string]string
	instances   map[string]bool
}

// Trace expands the module named root and returns every net joining two or
// more component pins, sorted.
func Trace(files map[string]*syntax.File, root string) ([]Net, error) {
	t := &tracer{
		blocks:      make(map[string]definedBlock),
		visible:     make(map[string]map[string]bool),
		uf:          newUnionFind(),
		pins:        make(map[string]pinNode),
		designators: make(map[string]string),
		instances:   make(map[string]bool),
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		t.visible[p] = make(map[string]bool)
		for _, b := range files[p].Blocks {
			if prev, ok := t.blocks[b.Name]; ok {
				return nil, fmt.Errorf("%s: block %s already defined in %s", p, b.Name, prev.file)
			}
			t.blocks[b.Name] = definedBlock{block: b, file: p}
			t.visible[p][b.Name] = true
		}
	}
	for _, p := range paths {
		for _, imp := range files[p].Imports {
			def, ok := t.blocks[imp.Symbol]
			if !ok || def.file != imp.Path {
				return nil, fmt.Errorf("%s:%d: import of %s from %q does not resolve", p, imp.Pos.Line, imp.Symbol, imp.Path)
			}
			t.visible[p][imp.Symbol] = true
		}
	}

	top, ok := t.blocks[root]
	if !ok {
		return nil, fmt.Errorf("root module %s not found", root)
	}
	if top.block.IsComponent() {
		return nil, fmt.Errorf("root %s is a component, not a module", root)
	}

	if err := t.expand(top, "", map[string]bool{}); err != nil {
		return nil, err
	}

	return t.nets()
}

// expand declares the nodes of one block instance. prefix is the instance
// path followed by a dot, or "" for the root.
func (t *tracer) expand(def definedBlock, prefix string, stack map[string]bool) error {
	b := def.block
	if stack[b.Name] {
		return fmt.Errorf("%s: block %s instantiates itself", def.file, b.Name)
	}
	stack[b.Name] = true
	defer delete(stack, b.Name)

	instance := strings.TrimSuffix(prefix, ".")

	for _, st := range b.Stmts {
		switch {
		case st.Pass:

		case st.Signal != nil:
			key := prefix + st.Signal.Name
			if t.uf.has(key) {
				return fmt.Errorf("%s:%d: %s declared twice", def.file, st.Pos.Line, st.Signal.Name)
			}
			t.uf.add(key)
			if st.Signal.Pin != "" {
				if err := t.connectPin(def, st, key, instance, st.Signal.Pin); err != nil {
					return err
				}
			}

		case st.Ref != nil && st.Ref.Assign != nil:
			if err := t.assign(def, st, prefix, stack); err != nil {
				return err
			}

		case st.Ref != nil && st.Ref.Connect != nil:
			left, err := t.resolve(def, st, prefix, st.Ref.Left)
			if err != nil {
				return err
			}
			if st.Ref.Connect.Pin != "" {
				if err := t.connectPin(def, st, left, instance, st.Ref.Connect.Pin); err != nil {
					return err
				}
				continue
			}
			right, err := t.resolve(def, st, prefix, st.Ref.Connect.Ref)
			if err != nil {
				return err
			}
			t.uf.union(left, right)
		}
	}

	return nil
}

func (t *tracer) connectPin(def definedBlock, st *syntax.Stmt, node, instance, pin string) error {
	if !def.block.IsComponent() {
		return fmt.Errorf("%s:%d: pin %s used outside a component", def.file, st.Pos.Line, pin)
	}
	key := instance + ".pin " + pin
	if _, ok := t.pins[key]; !ok {
		t.uf.add(key)
		t.pins[key] = pinNode{instance: instance, pin: pin}
	}
	t.uf.union(node, key)
	return nil
}

func (t *tracer) assign(def definedBlock, st *syntax.Stmt, prefix string, stack map[string]bool) error {
	left := st.Ref.Left
	val := st.Ref.Assign

	if val.New != "" {
		if len(left.Parts) != 1 {
			return fmt.Errorf("%s:%d: cannot instantiate into %s", def.file, st.Pos.Line, left)
		}
		if !t.visible[def.file][val.New] {
			return fmt.Errorf("%s:%d: %s is neither defined nor imported", def.file, st.Pos.Line, val.New)
		}
		path := prefix + left.Parts[0]
		if t.instances[path] || t.uf.has(path) {
			return fmt.Errorf("%s:%d: %s declared twice", def.file, st.Pos.Line, left)
		}
		t.instances[path] = true
		return t.expand(t.blocks[val.New], path+".", stack)
	}

	if len(left.Parts) == 2 && left.Parts[1] == "designator" && val.String != nil {
		path := prefix + left.Parts[0]
		if !t.instances[path] {
			return fmt.Errorf("%s:%d: designator set on unknown instance %s", def.file, st.Pos.Line, left.Parts[0])
		}
		t.designators[path] = *val.String
	}
	// Other attributes do not affect connectivity
	return nil
}

func (t *tracer) resolve(def definedBlock, st *syntax.Stmt, prefix string, ref *syntax.Ref) (string, error) {
	key := prefix + ref.String()
	if !t.uf.has(key) {
		return "", fmt.Errorf("%s:%d: %s is not declared", def.file, st.Pos.Line, ref)
	}
	return key, nil
}

func (t *tracer) nets() ([]Net, error) {
	groups := make(map[string]Net)
	for key, pn := range t.pins {
		desig, ok := t.designators[pn.instance]
		if !ok {
			return nil, fmt.Errorf("component instance %s has no designator", pn.instance)
		}
		root := t.uf.find(key)
		groups[root] = append(groups[root], Terminal{Designator: desig, Pin: pn.pin})
	}

	var nets []Net
	for _, n := range groups {
		if len(n) < 2 {
			continue
		}
		nets = append(nets, sortNet(n))
	}
	sortNets(nets)
	return nets, nil
}

func sortNet(n Net) Net {
	sort.Slice(n, func(i, j int) bool { return n[i].less(n[j]) })
	return n
}

func sortNets(nets []Net) {
	sort.Slice(nets, func(i, j int) bool { return nets[i][0].less(nets[j][0]) })
}

// Project parses every file of a generated project and traces it from its
// root module.
func Project(proj *atopile.Project) ([]Net, error) {
	p, err := syntax.NewParser()
	if err != nil {
		return nil, err
	}
	files := make(map[string]*syntax.File, len(proj.Files))
	for _, f := range proj.Files {
		parsed, err := p.ParseBytes(f.Path, f.Content)
		if err != nil {
			return nil, err
		}
		files[f.Path] = parsed
	}
	return Trace(files, proj.Name)
}

// ModelNets lists the nets of a circuit model in the form Trace returns,
// with pins written the way the generator writes them.
func ModelNets(m *circuit.Model, lib *library.Library) []Net {
	nets := make([]Net, 0, len(m.Nets))
	for _, n := range m.Nets {
		net := make(Net, 0, len(n.Endpoints))
		for _, ep := range n.Endpoints {
			pin := ep.Pin
			if d, ok := lib.Lookup(ep.Ref); ok {
				if tok, ok := d.Token(ep.Pin); ok {
					pin = tok
				}
			}
			net = append(net, Terminal{Designator: ep.Ref, Pin: pin})
		}
		nets = append(nets, sortNet(net))
	}
	sortNets(nets)
	return nets
}

// Compare reports the nets of want missing from got and the nets of got
// absent from want.
func Compare(want, got []Net) (missing, extra []Net) {
	index := func(nets []Net) map[string]bool {
		set := make(map[string]bool, len(nets))
		for _, n := range nets {
			set[n.String()] = true
		}
		return set
	}
	inWant, inGot := index(want), index(got)

	for _, n := range want {
		if !inGot[n.String()] {
			missing = append(missing, n)
		}
	}
	for _, n := range got {
		if !inWant[n.String()] {
			extra = append(extra, n)
		}
	}
	return missing, extra
}
