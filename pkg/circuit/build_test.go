package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
)

func resistor(ref, sheet string) netlist.Component {
	return netlist.Component{
		Ref:       ref,
		Value:     "10k",
		Footprint: "Resistor_SMD:R_0603_1608Metric",
		Lib:       "Device",
		Part:      "R",
		SheetPath: sheet,
		Pins: []netlist.Pin{
			{Num: "2", Name: "~", Type: "passive"},
			{Num: "1", Name: "~", Type: "passive"},
		},
	}
}

func net(code, name string, nodes ...string) netlist.Net {
	n := netlist.Net{Code: code, Name: name}
	for i := 0; i+1 < len(nodes); i += 2 {
		n.Nodes = append(n.Nodes, netlist.Node{Ref: nodes[i], Pin: nodes[i+1]})
	}
	return n
}

func TestBuildSingleSheet(t *testing.T) {
	nl := &netlist.Netlist{
		Components: []netlist.Component{resistor("R2", "/"), resistor("R1", "/")},
		Nets: []netlist.Net{
			net("1", "N1", "R1", "2", "R2", "1"),
			net("2", "GND", "R2", "2", "R1", "1", "R1", "1"),
		},
	}

	m, warnings, err := Build(nl, Options{})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, []string{"R1", "R2"}, m.Refs)
	require.Len(t, m.Sheets, 1)
	assert.True(t, m.Root().IsRoot())
	assert.Equal(t, "root", m.Root().String())
	assert.Equal(t, []string{"R1", "R2"}, m.Root().Components)

	r1, ok := m.Component("R1")
	require.True(t, ok)
	assert.Equal(t, "1", r1.Pins[0].Num, "pins are naturally ordered")

	require.Len(t, m.Nets, 2)
	gnd := m.Nets[1]
	assert.Equal(t, []Endpoint{{"R1", "1"}, {"R2", "2"}}, gnd.Endpoints, "duplicate endpoints are removed")
	assert.Equal(t, "R1.1,R2.2", gnd.Key())
}

func TestBuildSheetTree(t *testing.T) {
	nl := &netlist.Netlist{
		Design: netlist.Design{Sheets: []netlist.Sheet{
			{Number: 1, Name: "/", Title: "Board"},
			{Number: 2, Name: "/power/", Parent: "/", Title: "Power"},
		}},
		Components: []netlist.Component{
			resistor("R1", "/power/regulator/"),
			resistor("R2", "/io/"),
			resistor("R3", "/power/"),
		},
		Nets: []netlist.Net{
			net("1", "SIG", "R1", "1", "R2", "1", "R3", "1"),
		},
	}

	m, _, err := Build(nl, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Board", m.Title)

	var paths []string
	m.Walk(func(s *Sheet) { paths = append(paths, s.String()) })
	assert.Equal(t, []string{"root", "root/io", "root/power", "root/power/regulator"}, paths)

	power, ok := m.SheetByPath("power")
	require.True(t, ok)
	assert.Equal(t, "Power", power.Title)
	assert.Equal(t, []string{"R3"}, power.Components)
	require.Len(t, power.Children, 1)

	regulator := m.Sheet(power.Children[0])
	assert.Equal(t, "regulator", regulator.Name())
	assert.Equal(t, power.ID, regulator.Parent)

	r1, _ := m.Component("R1")
	assert.Equal(t, regulator.ID, r1.Sheet)
}

func TestBuildDeclaredParentOverridesPath(t *testing.T) {
	nl := &netlist.Netlist{
		Design: netlist.Design{Sheets: []netlist.Sheet{
			{Name: "/"},
			{Name: "/a/"},
			{Name: "/b/", Parent: "/a/"},
		}},
	}

	m, _, err := Build(nl, Options{})
	require.NoError(t, err)

	a, _ := m.SheetByPath("/a/")
	b, _ := m.SheetByPath("/b/")
	assert.Equal(t, a.ID, b.Parent)
}

func TestBuildMergesSameNamedNets(t *testing.T) {
	nl := &netlist.Netlist{
		Components: []netlist.Component{resistor("R1", "/"), resistor("R2", "/")},
		Nets: []netlist.Net{
			net("1", "VCC", "R1", "1"),
			net("7", "VCC", "R2", "1"),
			net("2", "", "R1", "2", "R2", "2"),
		},
	}

	m, warnings, err := Build(nl, Options{})
	require.NoError(t, err)
	require.Len(t, m.Nets, 2)
	assert.Equal(t, "VCC", m.Nets[0].Name)
	assert.Len(t, m.Nets[0].Endpoints, 2)
	assert.Equal(t, "#2", m.Nets[1].Label())
	require.Len(t, warnings, 1)
	assert.Equal(t, "VCC", warnings[0].Subject)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		nl       *netlist.Netlist
		opts     Options
		sentinel error
		subject  string
	}{
		{
			name: "duplicate reference",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/"), resistor("R1", "/a/")},
			},
			sentinel: ErrDuplicateReference,
			subject:  "R1",
		},
		{
			name: "single endpoint",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/")},
				Nets:       []netlist.Net{net("1", "LONELY", "R1", "1")},
			},
			sentinel: ErrDegenerateNet,
			subject:  "LONELY",
		},
		{
			name: "endpoint repeated",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/")},
				Nets:       []netlist.Net{net("1", "TWICE", "R1", "1", "R1", "1")},
			},
			sentinel: ErrDegenerateNet,
			subject:  "TWICE",
		},
		{
			name: "no connect without permission",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/")},
				Nets:       []netlist.Net{net("1", "unconnected-(R1-Pad1)", "R1", "1")},
			},
			sentinel: ErrDegenerateNet,
			subject:  "unconnected-(R1-Pad1)",
		},
		{
			name: "parent cycle",
			nl: &netlist.Netlist{
				Design: netlist.Design{Sheets: []netlist.Sheet{
					{Name: "/a/", Parent: "/b/"},
					{Name: "/b/", Parent: "/a/"},
				}},
			},
			sentinel: ErrHierarchyCycle,
		},
		{
			name: "self parent",
			nl: &netlist.Netlist{
				Design: netlist.Design{Sheets: []netlist.Sheet{{Name: "/a/", Parent: "/a/"}}},
			},
			sentinel: ErrHierarchyCycle,
			subject:  "root/a",
		},
		{
			name: "unknown component",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/")},
				Nets:       []netlist.Net{net("1", "X", "R1", "1", "R5", "1")},
			},
			sentinel: ErrUnknownEndpoint,
			subject:  "R5",
		},
		{
			name: "unknown pin",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/"), resistor("R2", "/")},
				Nets:       []netlist.Net{net("1", "X", "R1", "1", "R2", "9")},
			},
			sentinel: ErrUnknownEndpoint,
			subject:  "R2.9",
		},
		{
			name: "pin on two nets",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/"), resistor("R2", "/"), resistor("R3", "/")},
				Nets: []netlist.Net{
					net("1", "A", "R1", "1", "R2", "1"),
					net("2", "B", "R1", "1", "R3", "1"),
				},
			},
			sentinel: ErrSharedEndpoint,
			subject:  "R1.1",
		},
		{
			name: "pin on two unnamed nets",
			nl: &netlist.Netlist{
				Components: []netlist.Component{resistor("R1", "/"), resistor("R2", "/")},
				Nets: []netlist.Net{
					net("1", "", "R1", "1", "R2", "1"),
					net("2", "", "R2", "1", "R1", "1"),
				},
			},
			sentinel: ErrSharedEndpoint,
			subject:  "R2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Build(tt.nl, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var me *ModelError
			require.ErrorAs(t, err, &me)
			if tt.subject != "" {
				assert.Equal(t, tt.subject, me.Subject)
			}
		})
	}
}

func TestBuildAllowNoConnect(t *testing.T) {
	nl := &netlist.Netlist{
		Components: []netlist.Component{resistor("R1", "/"), resistor("R2", "/")},
		Nets: []netlist.Net{
			net("1", "A", "R1", "1", "R2", "1"),
			net("2", "unconnected-(R1-Pad2)", "R1", "2"),
		},
	}

	m, warnings, err := Build(nl, Options{AllowNoConnect: true})
	require.NoError(t, err)
	assert.Len(t, m.Nets, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no-connect")
}
