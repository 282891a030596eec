// Package convert runs the whole netlist to atopile pipeline: parse, build
// the circuit model, deduplicate parts and partition modules side by side,
// then generate the project.
package convert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/diode/pkg/atopile"
	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/diag"
	"github.com/OpenTraceLab/diode/pkg/kicad/netlist"
	"github.com/OpenTraceLab/diode/pkg/library"
	"github.com/OpenTraceLab/diode/pkg/partition"
)

// Options configures one conversion
type Options struct {
	ProjectName    string
	AllowNoConnect bool
	NetNames       map[string]string
	ModuleNames    map[string]string
	Header         string

	// Logger receives stage timings at debug level. Nil disables logging.
	Logger *zap.Logger
}

// Result carries every intermediate product of a conversion so callers can
// report on them. Warnings holds the diagnostics of all stages, merged.
type Result struct {
	Netlist  *netlist.Netlist
	Model    *circuit.Model
	Library  *library.Library
	Plan     *partition.Plan
	Project  *atopile.Project
	Warnings diag.List
}

func logger(opts Options) *zap.Logger {
	if opts.Logger == nil {
		return zap.NewNop()
	}
	return opts.Logger
}

// Run converts the raw text of a KiCad netlist. Stage errors are returned
// unwrapped so errors.Is matches their sentinels.
func Run(ctx context.Context, raw string, opts Options) (*Result, error) {
	start := time.Now()
	nl, err := netlist.ParseString(raw)
	if err != nil {
		return nil, err
	}
	logger(opts).Debug("netlist parsed",
		zap.Int("components", len(nl.Components)),
		zap.Int("nets", len(nl.Nets)),
		zap.Int("sheets", len(nl.Design.Sheets)),
		zap.Duration("elapsed", time.Since(start)))

	return RunNetlist(ctx, nl, opts)
}

// RunNetlist converts an already parsed netlist
func RunNetlist(ctx context.Context, nl *netlist.Netlist, opts Options) (*Result, error) {
	log := logger(opts)
	res := &Result{Netlist: nl}

	start := time.Now()
	m, modelWarnings, err := circuit.Build(nl, circuit.Options{AllowNoConnect: opts.AllowNoConnect})
	if err != nil {
		return nil, err
	}
	res.Model = m
	log.Debug("circuit model built",
		zap.Int("components", len(m.Refs)),
		zap.Int("nets", len(m.Nets)),
		zap.Int("sheets", len(m.Sheets)),
		zap.Duration("elapsed", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Both stages only read the model
	start = time.Now()
	var g errgroup.Group
	g.Go(func() error {
		res.Library = library.Deduplicate(m)
		return nil
	})
	g.Go(func() error {
		res.Plan = partition.Partition(m, partition.Options{
			ProjectName: opts.ProjectName,
			NetNames:    opts.NetNames,
			ModuleNames: opts.ModuleNames,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("library and modules planned",
		zap.Int("definitions", len(res.Library.Definitions)),
		zap.Int("modules", len(res.Plan.Modules)),
		zap.Int("boundary_nets", len(res.Plan.Boundary)),
		zap.Duration("elapsed", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	proj, err := atopile.Generate(m, res.Library, res.Plan, atopile.Options{Header: opts.Header})
	if err != nil {
		return nil, err
	}
	res.Project = proj
	log.Debug("project generated",
		zap.String("root", proj.Root),
		zap.Int("files", len(proj.Files)),
		zap.Duration("elapsed", time.Since(start)))

	res.Warnings = diag.Merge(modelWarnings, res.Library.Warnings, res.Plan.Warnings)
	for _, w := range res.Warnings {
		log.Debug("warning", zap.String("stage", string(w.Stage)), zap.String("subject", w.Subject), zap.String("message", w.Message))
	}
	return res, nil
}

// Summary is a one-line description of a result for CLI output
func (r *Result) Summary() string {
	return fmt.Sprintf("%d components, %d nets, %d part definitions, %d modules, %d files, %d warnings",
		len(r.Model.Refs), len(r.Model.Nets), len(r.Library.Definitions), len(r.Plan.Modules),
		len(r.Project.Files), len(r.Warnings))
}
