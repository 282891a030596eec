package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/diode/pkg/atopile"
	"github.com/OpenTraceLab/diode/pkg/atopile/syntax"
	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
	"github.com/OpenTraceLab/diode/pkg/library"
	"github.com/OpenTraceLab/diode/pkg/partition"
)

// hierarchical has root components, nested sheets, unnamed nets, a net
// touching the root and two sheets, a net touching three sheets but not the
// root, and a part with repeated pin names.
const hierarchical = `(export (version "E")
  (design
    (sheet (number "1") (name "/") (tstamps "/"))
    (sheet (number "2") (name "/power/") (tstamps "/p/"))
    (sheet (number "3") (name "/power/ldo/") (tstamps "/p/l/"))
    (sheet (number "4") (name "/mcu/") (tstamps "/m/")))
  (components
    (comp (ref "J1") (value "USB_C") (libsource (lib "Connector") (part "USB_C_Receptacle")) (sheetpath (names "/")))
    (comp (ref "#PWR01") (value "GND") (libsource (lib "power") (part "GND")) (sheetpath (names "/")))
    (comp (ref "U1") (value "AMS1117-3.3") (libsource (lib "Regulator_Linear") (part "AMS1117-3.3")) (sheetpath (names "/power/ldo/")))
    (comp (ref "C1") (value "10u") (libsource (lib "Device") (part "C")) (sheetpath (names "/power/ldo/")))
    (comp (ref "C2") (value "10u") (libsource (lib "Device") (part "C")) (sheetpath (names "/power/")))
    (comp (ref "U2") (value "STM32") (libsource (lib "MCU") (part "STM32F0")) (sheetpath (names "/mcu/")))
    (comp (ref "R1") (value "10k") (libsource (lib "Device") (part "R")) (sheetpath (names "/mcu/")))
    (comp (ref "R2") (value "10k") (libsource (lib "Device") (part "R")) (sheetpath (names "/mcu/"))))
  (libparts
    (libpart (lib "Connector") (part "USB_C_Receptacle")
      (pins (pin (num "A4") (name "VBUS")) (pin (num "B4") (name "VBUS")) (pin (num "A1") (name "GND")) (pin (num "S1") (name "SHIELD"))))
    (libpart (lib "power") (part "GND") (pins (pin (num "1") (name "GND"))))
    (libpart (lib "Regulator_Linear") (part "AMS1117-3.3")
      (pins (pin (num "1") (name "GND")) (pin (num "2") (name "VO")) (pin (num "3") (name "VI"))))
    (libpart (lib "Device") (part "C") (pins (pin (num "1") (name "~")) (pin (num "2") (name "~"))))
    (libpart (lib "Device") (part "R") (pins (pin (num "1") (name "~")) (pin (num "2") (name "~"))))
    (libpart (lib "MCU") (part "STM32F0")
      (pins (pin (num "1") (name "VDD")) (pin (num "2") (name "PA0")) (pin (num "3") (name "VSS")) (pin (num "4") (name "~RESET")))))
  (nets
    (net (code "1") (name "VBUS")
      (node (ref "J1") (pin "A4")) (node (ref "J1") (pin "B4")) (node (ref "U1") (pin "3")) (node (ref "C2") (pin "1")))
    (net (code "2") (name "GND")
      (node (ref "#PWR01") (pin "1")) (node (ref "J1") (pin "A1")) (node (ref "U1") (pin "1"))
      (node (ref "C1") (pin "2")) (node (ref "C2") (pin "2")) (node (ref "U2") (pin "3")))
    (net (code "3") (name "+3V3")
      (node (ref "U1") (pin "2")) (node (ref "C1") (pin "1")) (node (ref "U2") (pin "1")) (node (ref "R1") (pin "1")))
    (net (code "4") (name "")
      (node (ref "R1") (pin "2")) (node (ref "U2") (pin "4")))
    (net (code "5") (name "Net-(R2-Pad1)")
      (node (ref "R2") (pin "1")) (node (ref "U2") (pin "2")))
    (net (code "6") (name "")
      (node (ref "R2") (pin "2")) (node (ref "J1") (pin "S1")))))`

func pipeline(t *testing.T, raw, project string) (*circuit.Model, *library.Library, *atopile.Project) {
	t.Helper()
	nl, err := netlist.ParseString(raw)
	require.NoError(t, err)
	m, _, err := circuit.Build(nl, circuit.Options{})
	require.NoError(t, err)
	lib := library.Deduplicate(m)
	plan := partition.Partition(m, partition.Options{ProjectName: project})
	proj, err := atopile.Generate(m, lib, plan, atopile.Options{Header: "generated"})
	require.NoError(t, err)
	return m, lib, proj
}

func TestRoundTripTopology(t *testing.T) {
	m, lib, proj := pipeline(t, hierarchical, "board")

	got, err := Project(proj)
	require.NoError(t, err)

	want := ModelNets(m, lib)
	assert.Len(t, want, 6)
	missing, extra := Compare(want, got)
	assert.Empty(t, missing, "nets lost by generation")
	assert.Empty(t, extra, "nets invented by generation")
	assert.Equal(t, want, got)
}

func TestModelNets(t *testing.T) {
	m, lib, _ := pipeline(t, hierarchical, "board")

	nets := ModelNets(m, lib)
	require.NotEmpty(t, nets)
	assert.Equal(t, "{#PWR01.1 C1.2 C2.2 J1.A1 U1.1 U2.3}", nets[0].String())
}

func parseAll(t *testing.T, sources map[string]string) map[string]*syntax.File {
	t.Helper()
	p, err := syntax.NewParser()
	require.NoError(t, err)
	files := make(map[string]*syntax.File, len(sources))
	for name, src := range sources {
		f, err := p.ParseString(name, src)
		require.NoError(t, err)
		files[name] = f
	}
	return files
}

const resistor = `component R:
    signal p1 ~ pin 1
    signal p2 ~ pin 2
`

func TestTraceHandWritten(t *testing.T) {
	files := parseAll(t, map[string]string{
		"library/R.ato": resistor,
		"sub.ato": `from "library/R.ato" import R

module Sub:
    signal A
    R3 = new R
    R3.designator = "R3"
    A ~ R3.p1
`,
		"top.ato": `from "library/R.ato" import R
from "sub.ato" import Sub

module Top:
    R1 = new R
    R1.designator = "R1"
    R2 = new R
    R2.designator = "R2"
    s = new Sub
    R1.p2 ~ R2.p1
    R2.p1 ~ s.A
`,
	})

	nets, err := Trace(files, "Top")
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.Equal(t, Net{{"R1", "2"}, {"R2", "1"}, {"R3", "1"}}, nets[0])
}

func TestTraceErrors(t *testing.T) {
	tests := []struct {
		name    string
		sources map[string]string
		root    string
		errText string
	}{
		{
			name:    "missing root",
			sources: map[string]string{"library/R.ato": resistor},
			root:    "Top",
			errText: "not found",
		},
		{
			name: "undeclared signal",
			sources: map[string]string{
				"library/R.ato": resistor,
				"top.ato":       "from \"library/R.ato\" import R\nmodule Top:\n    R1 = new R\n    R1.designator = \"R1\"\n    X ~ R1.p1\n",
			},
			root:    "Top",
			errText: "X is not declared",
		},
		{
			name: "missing import",
			sources: map[string]string{
				"library/R.ato": resistor,
				"top.ato":       "module Top:\n    R1 = new R\n",
			},
			root:    "Top",
			errText: "neither defined nor imported",
		},
		{
			name: "import from wrong file",
			sources: map[string]string{
				"library/R.ato": resistor,
				"top.ato":       "from \"library/C.ato\" import R\nmodule Top:\n    pass\n",
			},
			root:    "Top",
			errText: "does not resolve",
		},
		{
			name: "missing designator",
			sources: map[string]string{
				"library/R.ato": resistor,
				"top.ato":       "from \"library/R.ato\" import R\nmodule Top:\n    R1 = new R\n",
			},
			root:    "Top",
			errText: "no designator",
		},
		{
			name: "self instantiation",
			sources: map[string]string{
				"top.ato": "module Top:\n    t = new Top\n",
			},
			root:    "Top",
			errText: "instantiates itself",
		},
		{
			name: "pin in module",
			sources: map[string]string{
				"top.ato": "module Top:\n    signal a ~ pin 1\n",
			},
			root:    "Top",
			errText: "outside a component",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Trace(parseAll(t, tt.sources), tt.root)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestCompare(t *testing.T) {
	a := Net{{"R1", "1"}, {"R2", "1"}}
	b := Net{{"R1", "2"}, {"R2", "2"}}
	c := Net{{"R1", "2"}, {"R3", "2"}}

	missing, extra := Compare([]Net{a, b}, []Net{a, c})
	assert.Equal(t, []Net{b}, missing)
	assert.Equal(t, []Net{c}, extra)
}
