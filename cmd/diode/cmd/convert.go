package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/diode/internal/config"
	"github.com/OpenTraceLab/diode/internal/project"
	"github.com/OpenTraceLab/diode/pkg/convert"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
)

var (
	projectName string
	reportPath  string
	watchMode   bool
	noScaffold  bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <netlist> <project-dir>",
	Short: "Generate an atopile project from a KiCad netlist",
	Long: `Convert a KiCad netlist (.net) into atopile sources under <project-dir>/elec/src.

A missing project directory is created with the scaffold command ("ato create"
by default). Existing files with different content are only replaced after
confirmation or with --force. All files are written or none.

Conversion rules are read from --rules, or from diode.hcl next to the netlist.

Examples:
  diode convert board.net ./board
  diode convert --force --report report.yaml board.net ./board
  diode convert --rules rules.hcl --watch board.net ./board`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	flags := convertCmd.Flags()
	flags.BoolP(config.KeyForce, "f", false, "overwrite changed files without asking")
	flags.String(config.KeyRules, "", "conversion rules file (HCL)")
	flags.String(config.KeySourceDir, "elec/src", "source directory inside the project")
	flags.String(config.KeyScaffold, "ato create", "command creating a missing project")
	flags.StringVarP(&projectName, "project", "p", "", "project name (default: project directory name)")
	flags.StringVar(&reportPath, "report", "", "write a YAML conversion report to this file")
	flags.BoolVarP(&watchMode, "watch", "w", false, "regenerate whenever the netlist changes")
	flags.BoolVar(&noScaffold, "no-scaffold", false, "fail instead of scaffolding a missing project")

	for _, key := range []string{config.KeyForce, config.KeyRules, config.KeySourceDir, config.KeyScaffold} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}
}

// job is one conversion of a netlist into a project directory
type job struct {
	netlistPath string
	projectDir  string
	force       bool
	in          *bufio.Reader
}

func runConvert(cmd *cobra.Command, args []string) error {
	j := &job{
		netlistPath: args[0],
		projectDir:  args[1],
		force:       settings.Force,
		in:          bufio.NewReader(cmd.InOrStdin()),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := j.ensureProject(ctx); err != nil {
		return err
	}
	if err := j.run(ctx); err != nil {
		return err
	}
	if !watchMode {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	fmt.Printf("Watching %s (Ctrl+C to stop)\n", j.netlistPath)

	// later runs replace the files of the previous one
	j.force = true
	return project.Watch(ctx, j.netlistPath, project.DefaultDebounce, log, func() error {
		return j.run(ctx)
	})
}

func (j *job) ensureProject(ctx context.Context) error {
	if noScaffold {
		info, err := os.Stat(j.projectDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("project directory %s does not exist", j.projectDir)
		}
		return nil
	}
	created, err := project.Ensure(ctx, project.CommandScaffolder{Command: settings.Scaffold, Logger: log}, j.projectDir)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created project %s\n", j.projectDir)
	}
	return nil
}

func (j *job) run(ctx context.Context) error {
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
	res, err := convert.RunNetlist(ctx, nl, opts)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", j.netlistPath, err)
	}

	srcDir := filepath.Join(j.projectDir, settings.SourceDir)
	conflicts := project.Conflicts(srcDir, res.Project)
	if len(conflicts) > 0 && !j.force {
		ok, err := j.confirm(conflicts)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted: %d file(s) would be overwritten", len(conflicts))
		}
	}

	if err := project.Write(srcDir, res.Project); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	log.Info("project written", zap.String("dir", srcDir), zap.Int("files", len(res.Project.Files)))

	fmt.Printf("Wrote %d file(s) to %s\n", len(res.Project.Files), srcDir)
	fmt.Printf("  %s\n", res.Summary())
	fmt.Printf("  root module: %s (%s)\n", res.Project.Name, res.Project.Root)
	if len(res.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range res.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}

	if reportPath != "" {
		if err := writeReport(reportPath, newReport(j.netlistPath, srcDir, res, conflicts)); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Report written to %s\n", reportPath)
		}
	}
	return nil
}

func (j *job) options(nl *netlist.Netlist) (convert.Options, error) {
	info := config.NetlistInfo{
		Name:   strings.TrimSuffix(filepath.Base(j.netlistPath), filepath.Ext(j.netlistPath)),
		Source: nl.Design.Source,
	}

	var rules *config.Rules
	if path := config.FindRules(settings.Rules, j.netlistPath); path != "" {
		r, err := config.LoadRulesFile(path, info)
		if err != nil {
			return convert.Options{}, err
		}
		log.Debug("rules loaded", zap.String("path", path), zap.Int("nets", len(r.Nets)), zap.Int("sheets", len(r.Sheets)))
		rules = r
	}

	name := projectName
	if name == "" {
		abs, err := filepath.Abs(j.projectDir)
		if err != nil {
			return convert.Options{}, err
		}
		name = rules.ProjectName(filepath.Base(abs))
	}

	return convert.Options{
		ProjectName:    name,
		AllowNoConnect: rules.AllowNoConnect(true),
		NetNames:       rules.NetNames(),
		ModuleNames:    rules.ModuleNames(),
		Header:         rules.Header("Generated by diode from " + filepath.Base(j.netlistPath)),
		Logger:         log,
	}, nil
}

func (j *job) confirm(conflicts []string) (bool, error) {
	fmt.Printf("These files changed since they were generated:\n")
	for _, c := range conflicts {
		fmt.Printf("  %s\n", c)
	}
	fmt.Printf("Overwrite them? [y/N] ")

	answer, err := j.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	fmt.Println()
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
