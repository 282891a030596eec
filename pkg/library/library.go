// Package library groups the components of a circuit model into reusable
// part definitions. Components that share library part, footprint and value
// share a definition as long as their pin lists agree.
package library

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/diag"
	"github.com/OpenTraceLab/diode/pkg/naming"
)

// Key identifies a definition. Variant is 0 unless components sharing the
// other fields had incompatible pin lists.
type Key struct {
	Lib       string
	Part      string
	Footprint string
	Value     string
	Variant   int
}

func (k Key) String() string {
	s := fmt.Sprintf("%s:%s [%s] %s", k.Lib, k.Part, k.Footprint, k.Value)
	if k.Variant > 0 {
		s += fmt.Sprintf(" #%d", k.Variant+1)
	}
	return s
}

func (k Key) less(o Key) bool {
	switch {
	case k.Lib != o.Lib:
		return natural.Less(k.Lib, o.Lib)
	case k.Part != o.Part:
		return natural.Less(k.Part, o.Part)
	case k.Footprint != o.Footprint:
		return natural.Less(k.Footprint, o.Footprint)
	case k.Value != o.Value:
		return natural.Less(k.Value, o.Value)
	}
	return k.Variant < o.Variant
}

// Pin is a definition pin and the signal that exposes it
type Pin struct {
	Num    string
	Name   string
	Type   string
	Signal string // identifier of the signal wired to the pin
	Token  string // pin number as written after the "pin" keyword
}

// Definition is one reusable part
type Definition struct {
	Key  Key
	Name string // identifier, unique within the library

	Footprint   string
	Value       string
	MPN         string
	Description string

	// Pins in natural order of their numbers
	Pins []Pin

	// Members are the components using the definition, in natural order
	Members []string

	signals map[string]string
	tokens  map[string]string
}

// Signal returns the signal identifier of a pin number
func (d *Definition) Signal(num string) (string, bool) {
	s, ok := d.signals[num]
	return s, ok
}

// Token returns how a pin number is written in the generated source
func (d *Definition) Token(num string) (string, bool) {
	t, ok := d.tokens[num]
	return t, ok
}

// Library is the result of deduplication
type Library struct {
	// Definitions ordered by Name
	Definitions []*Definition
	// ByRef maps a reference designator to its definition
	ByRef map[string]*Definition

	Warnings diag.List
}

// Lookup returns the definition assigned to a component
func (l *Library) Lookup(ref string) (*Definition, bool) {
	d, ok := l.ByRef[ref]
	return d, ok
}

// pinSignature identifies a pin list by number and name
func pinSignature(c *circuit.Component) string {
	parts := make([]string, len(c.Pins))
	for i, p := range c.Pins {
		parts[i] = p.Num + "=" + p.Name
	}
	return strings.Join(parts, "|")
}

type variant struct {
	signature string
	members   []*circuit.Component
}

// Deduplicate assigns every component of m to a definition. It never fails:
// pin-incompatible components sharing a key are split into variants and a
// warning is recorded.
func Deduplicate(m *circuit.Model) *Library {
	lib := &Library{ByRef: make(map[string]*Definition, len(m.Refs))}

	groups := make(map[Key][]*circuit.Component)
	var keys []Key
	for _, ref := range m.Refs {
		c := m.Components[ref]
		k := Key{Lib: c.Lib, Part: c.Part, Footprint: c.Footprint, Value: c.Value}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	var defs []*Definition
	for _, k := range keys {
		variants := splitVariants(groups[k])
		if len(variants) > 1 {
			for i, v := range variants[1:] {
				lib.Warnings.Addf(diag.StageLibrary, k.String(),
					"components %s have pins incompatible with %s; emitting them as variant %d",
					strings.Join(refsOf(v.members), ", "), variants[0].members[0].Ref, i+2)
			}
		}

		for i, v := range variants {
			vk := k
			vk.Variant = i
			d := newDefinition(vk, v.members, &lib.Warnings)
			defs = append(defs, d)
			for _, c := range v.members {
				lib.ByRef[c.Ref] = d
			}
		}
	}

	assignNames(defs, netNames(m))
	sort.Slice(defs, func(i, j int) bool { return natural.Less(defs[i].Name, defs[j].Name) })
	lib.Definitions = defs

	return lib
}

// splitVariants partitions components by pin signature. The largest group
// comes first; ties are broken by signature.
func splitVariants(comps []*circuit.Component) []variant {
	bySig := make(map[string]*variant)
	var variants []*variant
	for _, c := range comps {
		sig := pinSignature(c)
		v, ok := bySig[sig]
		if !ok {
			v = &variant{signature: sig}
			bySig[sig] = v
			variants = append(variants, v)
		}
		v.members = append(v.members, c)
	}

	sort.Slice(variants, func(i, j int) bool {
		if len(variants[i].members) != len(variants[j].members) {
			return len(variants[i].members) > len(variants[j].members)
		}
		return variants[i].signature < variants[j].signature
	})

	out := make([]variant, len(variants))
	for i, v := range variants {
		out[i] = *v
	}
	return out
}

func refsOf(comps []*circuit.Component) []string {
	refs := make([]string, len(comps))
	for i, c := range comps {
		refs[i] = c.Ref
	}
	return refs
}

func newDefinition(k Key, members []*circuit.Component, warnings *diag.List) *Definition {
	first := members[0]
	d := &Definition{
		Key:         k,
		Footprint:   k.Footprint,
		Value:       k.Value,
		Description: first.Description,
		Members:     refsOf(members),
		signals:     make(map[string]string, len(first.Pins)),
		tokens:      make(map[string]string, len(first.Pins)),
	}

	for _, c := range members {
		if c.MPN == "" {
			continue
		}
		if d.MPN == "" {
			d.MPN = c.MPN
		} else if d.MPN != c.MPN {
			warnings.Addf(diag.StageLibrary, c.Ref, "MPN %q differs from %q used by the shared definition", c.MPN, d.MPN)
		}
	}

	d.Pins = assignSignals(first.Pins)
	for _, p := range d.Pins {
		d.signals[p.Num] = p.Signal
		d.tokens[p.Num] = p.Token
		if p.Token != p.Num {
			warnings.Addf(diag.StageLibrary, k.String(), "pin number %q written as %q", p.Num, p.Token)
		}
	}

	return d
}

// attributes are assigned inside generated blocks and can not name a signal
var attributes = map[string]bool{"footprint": true, "value": true, "mpn": true, "designator": true}

// assignSignals names a signal per pin: the pin name when it has one, else
// p<number>. Names used by several pins get the pin number appended.
func assignSignals(pins []circuit.Pin) []Pin {
	out := make([]Pin, len(pins))
	counts := make(map[string]int, len(pins))
	for i, p := range pins {
		token, _ := naming.PinToken(p.Num)
		if token == "" {
			token = fmt.Sprintf("unnamed%d", i+1)
		}
		out[i] = Pin{Num: p.Num, Name: p.Name, Type: p.Type, Token: token}

		var base string
		if p.Name != "" && p.Name != "~" {
			base = naming.Signal(p.Name)
		}
		if base == "" {
			base = "p" + token
		}
		if attributes[base] {
			base += "_"
		}
		out[i].Signal = naming.Unreserved(base, "_")
		counts[out[i].Signal]++
	}

	used := make(map[string]bool, len(out))
	for i := range out {
		if counts[out[i].Signal] > 1 {
			out[i].Signal += "_" + out[i].Token
		}
	}
	for i := range out {
		sig := out[i].Signal
		for n := 2; used[sig]; n++ {
			sig = fmt.Sprintf("%s_%d", out[i].Signal, n)
		}
		out[i].Signal = sig
		used[sig] = true
	}
	return out
}

// netNames lists the sanitized net names of m. A definition named like a
// net would clash with the signal declared for it where both meet.
func netNames(m *circuit.Model) map[string]bool {
	names := make(map[string]bool, len(m.Nets))
	for _, n := range m.Nets {
		if id := naming.Net(n.Name); id != "" {
			names[id] = true
		}
	}
	return names
}

// assignNames gives every definition a unique identifier. defs must be in
// key order. Names found in nets get a Part suffix.
func assignNames(defs []*Definition, nets map[string]bool) {
	base := make([]string, len(defs))
	byBase := make(map[string][]int)
	for i, d := range defs {
		name := naming.Part(d.Key.Part)
		if name == "" {
			name = "Part"
		}
		base[i] = naming.Unreserved(name, "Part")
		if nets[base[i]] {
			base[i] += "Part"
		}
		byBase[base[i]] = append(byBase[base[i]], i)
	}

	byName := make(map[string][]int)
	for i := range defs {
		name := base[i]
		if len(byBase[base[i]]) > 1 {
			if v := naming.Suffix(defs[i].Key.Value); v != "" {
				name += "_" + v
			}
		}
		defs[i].Name = name
		byName[name] = append(byName[name], i)
	}

	taken := make(map[string]bool, len(defs))
	for _, d := range defs {
		taken[d.Name] = true
	}
	var clashes []string
	for name, idx := range byName {
		if len(idx) > 1 {
			clashes = append(clashes, name)
		}
	}
	sort.Strings(clashes)
	for _, name := range clashes {
		n := 1
		for _, i := range byName[name] {
			candidate := fmt.Sprintf("%s_%d", name, n)
			for taken[candidate] {
				n++
				candidate = fmt.Sprintf("%s_%d", name, n)
			}
			taken[candidate] = true
			defs[i].Name = candidate
			n++
		}
	}
}
