package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	require.NoError(t, err)
	return p
}

func TestParseComponent(t *testing.T) {
	src := `# Generated
component R:
    signal p1 ~ pin 1
    signal p2 ~ pin 2
    footprint = "Resistor_SMD:R_0603_1608Metric"
    value = "10k"
`
	f, err := newParser(t).ParseString("R.ato", src)
	require.NoError(t, err)
	require.Len(t, f.Blocks, 1)

	b := f.Blocks[0]
	assert.True(t, b.IsComponent())
	assert.Equal(t, "R", b.Name)
	require.Len(t, b.Stmts, 4)
	assert.Equal(t, "p1", b.Stmts[0].Signal.Name)
	assert.Equal(t, "1", b.Stmts[0].Signal.Pin)

	fp := b.Stmts[2].Ref
	require.NotNil(t, fp.Assign)
	assert.Equal(t, "footprint", fp.Left.String())
	assert.Equal(t, "Resistor_SMD:R_0603_1608Metric", *fp.Assign.String)
}

func TestParseModule(t *testing.T) {
	src := `from "library/R.ato" import R
from "power/regulator.ato" import Regulator

module Board:
    signal P5V

    R1 = new R
    R1.designator = "#PWR01"
    power_regulator = new Regulator

    # +5V
    P5V ~ R1.p1
    P5V ~ power_regulator.P5V
    R1.p2 ~ R1.p1
`
	f, err := newParser(t).ParseString("board.ato", src)
	require.NoError(t, err)

	require.Len(t, f.Imports, 2)
	assert.Equal(t, "power/regulator.ato", f.Imports[1].Path)
	assert.Equal(t, "Regulator", f.Imports[1].Symbol)

	require.Len(t, f.Blocks, 1)
	b := f.Blocks[0]
	assert.False(t, b.IsComponent())
	assert.Equal(t, "Board", b.Name)
	require.Len(t, b.Stmts, 7)

	assert.Equal(t, "P5V", b.Stmts[0].Signal.Name)
	assert.Empty(t, b.Stmts[0].Signal.Pin)

	inst := b.Stmts[1].Ref
	assert.Equal(t, "R1", inst.Left.String())
	assert.Equal(t, "R", inst.Assign.New)

	desig := b.Stmts[2].Ref
	assert.Equal(t, "R1.designator", desig.Left.String())
	assert.Equal(t, "#PWR01", *desig.Assign.String)

	conn := b.Stmts[5].Ref
	assert.Equal(t, "P5V", conn.Left.String())
	assert.Equal(t, "power_regulator.P5V", conn.Connect.Ref.String())
}

func TestParseSeveralBlocksAndPass(t *testing.T) {
	src := `module Empty:
    pass

component X:
    signal a
    a ~ pin 3
`
	f, err := newParser(t).ParseString("x.ato", src)
	require.NoError(t, err)
	require.Len(t, f.Blocks, 2)
	assert.True(t, f.Blocks[0].Stmts[0].Pass)

	x := f.Blocks[1]
	require.Len(t, x.Stmts, 2)
	assert.Equal(t, "3", x.Stmts[1].Ref.Connect.Pin)
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"missing colon":   "module A\n    pass\n",
		"dangling tilde":  "module A:\n    a ~\n",
		"keyword as name": "module signal:\n    pass\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newParser(t).ParseString("bad.ato", src)
			assert.Error(t, err)
		})
	}
}
