package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/chewxy/sexp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
	"github.com/OpenTraceLab/diode/pkg/kicad/sexp/kicadsexp"
)

var showNets bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <netlist>",
	Short: "Show the contents of a KiCad netlist",
	Long: `Inspect a KiCad netlist: its top level sections, the sheet hierarchy with
component counts, and optionally every net with its endpoints.

Examples:
  diode inspect board.net
  diode inspect --nets board.net`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVarP(&showNets, "nets", "n", false, "list every net with its endpoints")
}

type section struct {
	name    string
	entries int
}

// rawSections lists the top level sections with a generic S-expression
// reader, without any KiCad knowledge.
func rawSections(data string) ([]section, error) {
	exprs, err := sexp.ParseString(data)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 || exprs[0].IsLeaf() {
		return nil, fmt.Errorf("no top level list")
	}

	var out []section
	for cur := exprs[0].Tail(); cur != nil && !cur.IsLeaf() && cur.LeafCount() > 0; cur = cur.Tail() {
		item := cur.Head()
		if item == nil || item.IsLeaf() || item.LeafCount() == 0 {
			continue
		}
		out = append(out, section{name: fmt.Sprint(item.Head()), entries: item.LeafCount() - 1})
	}
	return out, nil
}

// kicadSections lists the top level sections with the KiCad aware reader,
// which keeps quoted strings whole.
func kicadSections(data string) ([]section, error) {
	exprs, err := kicadsexp.ParseString(data)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 || exprs[0].IsLeaf() {
		return nil, fmt.Errorf("no top level list")
	}

	var out []section
	for _, item := range exprs[0].(*kicadsexp.List).Elements()[1:] {
		l, ok := item.(*kicadsexp.List)
		if !ok || l.Len() == 0 {
			continue
		}
		out = append(out, section{name: l.Head().String(), entries: l.Len() - 1})
	}
	return out, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read netlist: %w", err)
	}

	sections, err := rawSections(string(data))
	if err != nil {
		log.Debug("generic reader failed, using KiCad reader", zap.Error(err))
		if sections, err = kicadSections(string(data)); err != nil {
			return fmt.Errorf("failed to read %s: %w", filename, err)
		}
	}

	nl, err := netlist.ParseString(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	m, warnings, err := circuit.Build(nl, circuit.Options{AllowNoConnect: true})
	if err != nil {
		return fmt.Errorf("failed to build circuit: %w", err)
	}

	fmt.Printf("Netlist: %s\n", filename)
	fmt.Printf("  Version: %s\n", nl.Version)
	if nl.Design.Source != "" {
		fmt.Printf("  Source:  %s\n", nl.Design.Source)
	}
	if nl.Design.Tool != "" {
		fmt.Printf("  Tool:    %s\n", nl.Design.Tool)
	}

	fmt.Printf("\nSections:\n")
	for _, s := range sections {
		fmt.Printf("  %-12s %d\n", s.name, s.entries)
	}

	fmt.Printf("\nSheets:\n")
	m.Walk(func(s *circuit.Sheet) {
		depth := 0
		for p := s.Parent; p != circuit.NoSheet; p = m.Sheet(p).Parent {
			depth++
		}
		fmt.Printf("  %s%s (%d components)\n", strings.Repeat("  ", depth), s.Name(), len(s.Components))
	})

	unnamed := 0
	for _, n := range m.Nets {
		if n.Name == "" {
			unnamed++
		}
	}
	fmt.Printf("\nComponents: %d\n", len(m.Refs))
	fmt.Printf("Nets: %d (%d unnamed)\n", len(m.Nets), unnamed)

	var inferred []string
	for _, c := range nl.Components {
		if c.PinsInferred {
			inferred = append(inferred, c.Ref)
		}
	}
	if len(inferred) > 0 {
		fmt.Printf("Pins inferred from nets: %s\n", strings.Join(inferred, ", "))
	}

	if showNets {
		fmt.Printf("\nNets:\n")
		for _, n := range m.Nets {
			eps := make([]string, len(n.Endpoints))
			for i, ep := range n.Endpoints {
				eps[i] = ep.String()
			}
			fmt.Printf("  %-20s %s\n", n.Label(), strings.Join(eps, " "))
		}
	}

	if len(warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Printf("  %s\n", w)
		}
	}
	return nil
}
