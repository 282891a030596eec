// Package partition maps the sheet tree of a circuit model onto modules and
// classifies every net as internal to one module or crossing module
// boundaries.
package partition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/diag"
	"github.com/OpenTraceLab/diode/pkg/naming"
)

// DefaultProject names the root module when no project name is given
const DefaultProject = "main"

// Options controls module and net naming
type Options struct {
	// ProjectName names the root module and its file
	ProjectName string
	// NetNames renames nets: original net name -> identifier
	NetNames map[string]string
	// ModuleNames renames sheet modules, keyed by sheet path in either the
	// KiCad form ("/power/") or the hierarchy form ("root/power")
	ModuleNames map[string]string
}

// Module is the generated unit for one sheet. Module IDs equal sheet IDs.
type Module struct {
	ID       int
	Sheet    circuit.SheetID
	Path     string // hierarchy path, e.g. "root/power"
	Name     string // block identifier
	File     string // project relative source path
	Instance string // instance name inside the root module, "" for the root

	// Components owned by the module, in natural order
	Components []string
	// Interface lists the identifiers of the boundary nets touching the
	// module, one interface point each, in natural order
	Interface []string
	// Intra lists the nets fully contained in the module
	Intra []*NetPlan
}

// IsRoot reports whether the module is the project root module
func (m *Module) IsRoot() bool {
	return m.ID == int(circuit.RootSheet)
}

// NetPlan is the classification of one net
type NetPlan struct {
	Net   *circuit.Net
	Ident string
	// Modules touched by the net endpoints, ascending by ID
	Modules []int
}

// Boundary reports whether the net crosses a module boundary
func (n *NetPlan) Boundary() bool {
	return len(n.Modules) > 1
}

// Touches reports whether the net has an endpoint in module id
func (n *NetPlan) Touches(id int) bool {
	for _, m := range n.Modules {
		if m == id {
			return true
		}
	}
	return false
}

// Plan is the module decomposition of a model
type Plan struct {
	// Modules indexed by ID; Modules[0] is the root
	Modules []*Module
	// ModuleOf maps a reference designator to its owning module ID
	ModuleOf map[string]int
	// Nets in model order
	Nets []*NetPlan
	// Boundary nets in identifier order
	Boundary []*NetPlan

	Warnings diag.List
}

// Root returns the project root module
func (p *Plan) Root() *Module {
	return p.Modules[circuit.RootSheet]
}

// Owner returns the module owning a component
func (p *Plan) Owner(ref string) (*Module, bool) {
	id, ok := p.ModuleOf[ref]
	if !ok {
		return nil, false
	}
	return p.Modules[id], true
}

// Partition computes the module plan of m. It does not fail; naming clashes
// between modules are left for the generator to report.
func Partition(m *circuit.Model, opts Options) *Plan {
	p := &Plan{
		Modules:  make([]*Module, len(m.Sheets)),
		ModuleOf: make(map[string]int, len(m.Refs)),
	}

	for _, s := range m.Sheets {
		mod := &Module{
			ID:         int(s.ID),
			Sheet:      s.ID,
			Path:       s.String(),
			Components: append([]string(nil), s.Components...),
		}
		nameModule(mod, s, opts, &p.Warnings)
		p.Modules[s.ID] = mod
		for _, ref := range s.Components {
			p.ModuleOf[ref] = mod.ID
		}
	}

	reserved := make(map[string]bool, len(m.Refs)+2*len(p.Modules))
	for _, ref := range m.Refs {
		reserved[naming.Component(ref)] = true
	}
	// the root block imports every sheet module under its block name
	for _, mod := range p.Modules {
		if mod.IsRoot() {
			continue
		}
		reserved[mod.Instance] = true
		reserved[mod.Name] = true
	}

	idents := NetIdentifiers(m.Nets, reserved, opts.NetNames)
	for i, n := range m.Nets {
		np := &NetPlan{Net: n, Ident: idents[i]}
		seen := make(map[int]bool)
		for _, ep := range n.Endpoints {
			id := p.ModuleOf[ep.Ref]
			if !seen[id] {
				seen[id] = true
				np.Modules = append(np.Modules, id)
			}
		}
		sort.Ints(np.Modules)
		p.Nets = append(p.Nets, np)

		if !np.Boundary() {
			mod := p.Modules[np.Modules[0]]
			mod.Intra = append(mod.Intra, np)
			continue
		}
		p.Boundary = append(p.Boundary, np)
		for _, id := range np.Modules {
			p.Modules[id].Interface = append(p.Modules[id].Interface, np.Ident)
		}
	}

	sort.Slice(p.Boundary, func(i, j int) bool { return natural.Less(p.Boundary[i].Ident, p.Boundary[j].Ident) })
	for _, mod := range p.Modules {
		sort.Slice(mod.Interface, func(i, j int) bool { return natural.Less(mod.Interface[i], mod.Interface[j]) })
		sort.Slice(mod.Intra, func(i, j int) bool { return natural.Less(mod.Intra[i].Ident, mod.Intra[j].Ident) })
	}

	return p
}

func nameModule(mod *Module, s *circuit.Sheet, opts Options, warnings *diag.List) {
	if s.IsRoot() {
		project := opts.ProjectName
		if project == "" {
			project = DefaultProject
		}
		mod.Name = naming.Project(project)
		mod.File = naming.FileSegment(project)
		if mod.Name == "" || mod.File == "" {
			warnings.Addf(diag.StagePartition, project, "project name has no usable characters, using %q", DefaultProject)
			mod.Name = naming.Project(DefaultProject)
			mod.File = DefaultProject
		}
		mod.File += ".ato"
		return
	}

	segs := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		segs[i] = naming.FileSegment(seg)
		if segs[i] == "" {
			segs[i] = fmt.Sprintf("sheet%d", s.ID)
			warnings.Addf(diag.StagePartition, s.String(), "sheet name %q has no usable characters, using %q", seg, segs[i])
		} else if !strings.EqualFold(segs[i], seg) {
			warnings.Addf(diag.StagePartition, s.String(), "sheet name %q normalized to %q", seg, segs[i])
		}
	}

	mod.File = strings.Join(segs, "/") + ".ato"
	mod.Instance = naming.Unreserved(naming.Instance(segs), "_")

	if rename, ok := lookupRename(opts.ModuleNames, s); ok {
		mod.Name = rename
		return
	}
	last := len(segs) - 1
	if mod.Name = naming.Module(s.Segments[last]); mod.Name == "" {
		mod.Name = naming.Module(segs[last])
	}
}

func lookupRename(renames map[string]string, s *circuit.Sheet) (string, bool) {
	for _, key := range []string{s.Path, s.String(), strings.Trim(s.Path, "/")} {
		if v, ok := renames[key]; ok {
			if id := naming.Module(v); id != "" {
				return id, true
			}
		}
	}
	return "", false
}
