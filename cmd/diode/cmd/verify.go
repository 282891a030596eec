package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/diode/pkg/atopile/syntax"
	"github.com/OpenTraceLab/diode/pkg/atopile/trace"
	"github.com/OpenTraceLab/diode/pkg/convert"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <netlist> <project-dir>",
	Short: "Check that a generated project wires the nets of a netlist",
	Long: `Verify reads the atopile sources a conversion of <netlist> produces from
<project-dir>, expands the module tree and compares the resulting nets, pin by
pin, with the nets of the netlist. Hand edits that change connectivity are
reported as missing or extra nets.

Examples:
  diode verify board.net ./board`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&projectName, "project", "p", "", "project name (default: project directory name)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	j := &job{netlistPath: args[0], projectDir: args[1]}

	raw, err := os.ReadFile(j.netlistPath)
	if err != nil {
		return fmt.Errorf("failed to read netlist: %w", err)
	}
	nl, err := netlist.ParseString(string(raw))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", j.netlistPath, err)
	}
	opts, err := j.options(nl)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := convert.RunNetlist(ctx, nl, opts)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", j.netlistPath, err)
	}

	parser, err := syntax.NewParser()
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}
	srcDir := filepath.Join(j.projectDir, settings.SourceDir)
	files := make(map[string]*syntax.File, len(res.Project.Files))
	for _, p := range res.Project.Paths() {
		f, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(p)))
		if err != nil {
			return fmt.Errorf("failed to open generated file: %w", err)
		}
		parsed, err := parser.Parse(p, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}
		files[p] = parsed
	}

	got, err := trace.Trace(files, res.Project.Name)
	if err != nil {
		return fmt.Errorf("failed to trace %s: %w", res.Project.Name, err)
	}
	want := trace.ModelNets(res.Model, res.Library)
	missing, extra := trace.Compare(want, got)

	fmt.Printf("Traced %d net(s) from module %s, netlist has %d\n", len(got), res.Project.Name, len(want))
	for _, n := range missing {
		fmt.Printf("  missing: %s\n", n)
	}
	for _, n := range extra {
		fmt.Printf("  extra:   %s\n", n)
	}
	if len(missing)+len(extra) > 0 {
		return fmt.Errorf("connectivity differs: %d missing, %d extra", len(missing), len(extra))
	}
	fmt.Printf("Connectivity matches\n")
	return nil
}
