package convert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenTraceLab/diode/pkg/atopile/trace"
	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/diag"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
)

const divider = `(export (version "E")
  (components
    (comp (ref "R1") (value "10k") (footprint "R_0603") (libsource (lib "Device") (part "R")) (sheetpath (names "/")))
    (comp (ref "R2") (value "10k") (footprint "R_0603") (libsource (lib "Device") (part "R")) (sheetpath (names "/"))))
  (libparts
    (libpart (lib "Device") (part "R") (pins (pin (num "1") (name "~")) (pin (num "2") (name "~")))))
  (nets
    (net (code "1") (name "GND") (node (ref "R1") (pin "1")) (node (ref "R2") (pin "2")))
    (net (code "2") (name "N1") (node (ref "R1") (pin "2")) (node (ref "R2") (pin "1")))))`

const twoSheets = `(export (version "E")
  (design
    (sheet (number "1") (name "/") (tstamps "/"))
    (sheet (number "2") (name "/a/") (tstamps "/aa/"))
    (sheet (number "3") (name "/b/") (tstamps "/bb/")))
  (components
    (comp (ref "R1") (value "1k") (libsource (lib "Device") (part "R")) (sheetpath (names "/a/")))
    (comp (ref "R2") (value "1k") (libsource (lib "Device") (part "R")) (sheetpath (names "/b/")))
    (comp (ref "R3") (value "1k") (libsource (lib "Device") (part "R")) (sheetpath (names "/a/"))))
  (libparts
    (libpart (lib "Device") (part "R") (pins (pin (num "1") (name "~")) (pin (num "2") (name "~")))))
  (nets
    (net (code "1") (name "SIG") (node (ref "R1") (pin "2")) (node (ref "R2") (pin "1")))
    (net (code "2") (name "GND") (node (ref "R1") (pin "1")) (node (ref "R2") (pin "2")))
    (net (code "3") (name "GND") (node (ref "R2") (pin "2")) (node (ref "R1") (pin "1")))
    (net (code "4") (name "unconnected-(R3-Pad1)") (node (ref "R3") (pin "1")))))`

func TestRunSingleSheet(t *testing.T) {
	res, err := Run(context.Background(), divider, Options{ProjectName: "divider"})
	require.NoError(t, err)

	assert.Equal(t, []string{"divider.ato", "library/R.ato"}, res.Project.Paths())
	require.Len(t, res.Library.Definitions, 1)
	assert.Equal(t, []string{"R1", "R2"}, res.Library.Definitions[0].Members)
	assert.Empty(t, res.Warnings)
	assert.Contains(t, res.Summary(), "2 components")
}

func TestRunBoundaryNet(t *testing.T) {
	res, err := Run(context.Background(), twoSheets, Options{ProjectName: "board", AllowNoConnect: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.ato", "b.ato", "board.ato", "library/R.ato"}, res.Project.Paths())

	a, ok := res.Project.File("a.ato")
	require.True(t, ok)
	assert.Contains(t, string(a.Content), "signal SIG\n")

	// the duplicated GND and the no-connect net each leave a warning
	var stages []diag.Stage
	for _, w := range res.Warnings {
		stages = append(stages, w.Stage)
	}
	assert.Equal(t, []diag.Stage{diag.StageModel, diag.StageModel}, stages)

	got, err := trace.Project(res.Project)
	require.NoError(t, err)
	missing, extra := trace.Compare(trace.ModelNets(res.Model, res.Library), got)
	assert.Empty(t, missing)
	assert.Empty(t, extra)
}

func TestRunRenames(t *testing.T) {
	res, err := Run(context.Background(), twoSheets, Options{
		ProjectName:    "board",
		AllowNoConnect: true,
		NetNames:       map[string]string{"SIG": "DATA"},
		ModuleNames:    map[string]string{"/a/": "Sender"},
	})
	require.NoError(t, err)

	root, ok := res.Project.File("board.ato")
	require.True(t, ok)
	assert.Contains(t, string(root.Content), "a = new Sender")
	assert.Contains(t, string(root.Content), "a.DATA ~ b.DATA")
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		opts Options
		want error
	}{
		{
			name: "malformed",
			raw:  `(export (components (comp (ref "R1")))`,
			want: netlist.ErrMalformed,
		},
		{
			name: "degenerate net",
			raw: `(export
  (components (comp (ref "R1") (value "1k") (libsource (lib "Device") (part "R"))))
  (libparts (libpart (lib "Device") (part "R") (pins (pin (num "1") (name "~")) (pin (num "2") (name "~")))))
  (nets (net (code "1") (name "X") (node (ref "R1") (pin "1")))))`,
			want: circuit.ErrDegenerateNet,
		},
		{
			name: "no connect without allowance",
			raw:  twoSheets,
			want: circuit.ErrDegenerateNet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.raw, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, divider, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLogsStages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := Run(context.Background(), divider, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{
		"netlist parsed",
		"circuit model built",
		"library and modules planned",
		"project generated",
	}, msgs)
}
