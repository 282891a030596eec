package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/diode/pkg/convert"
	"github.com/OpenTraceLab/diode/pkg/diag"
)

// report is the YAML document written by convert --report
type report struct {
	Netlist     string            `yaml:"netlist"`
	Output      string            `yaml:"output"`
	Project     string            `yaml:"project"`
	Root        string            `yaml:"root"`
	Files       []string          `yaml:"files"`
	Overwritten []string          `yaml:"overwritten,omitempty"`
	Definitions []reportPart      `yaml:"definitions"`
	Modules     []reportModule    `yaml:"modules"`
	Renamed     map[string]string `yaml:"renamed_nets,omitempty"`
	Warnings    diag.List         `yaml:"warnings,omitempty"`
}

type reportPart struct {
	Name    string   `yaml:"name"`
	Key     string   `yaml:"key"`
	Members []string `yaml:"members"`
}

type reportModule struct {
	Name       string   `yaml:"name"`
	File       string   `yaml:"file"`
	Sheet      string   `yaml:"sheet"`
	Components []string `yaml:"components,omitempty"`
	Interface  []string `yaml:"interface,omitempty"`
}

func newReport(netlistPath, srcDir string, res *convert.Result, overwritten []string) *report {
	r := &report{
		Netlist:     netlistPath,
		Output:      srcDir,
		Project:     res.Project.Name,
		Root:        res.Project.Root,
		Files:       res.Project.Paths(),
		Overwritten: overwritten,
		Warnings:    res.Warnings,
	}

	for _, d := range res.Library.Definitions {
		r.Definitions = append(r.Definitions, reportPart{Name: d.Name, Key: d.Key.String(), Members: d.Members})
	}
	for _, m := range res.Plan.Modules {
		r.Modules = append(r.Modules, reportModule{
			Name:       m.Name,
			File:       m.File,
			Sheet:      m.Path,
			Components: m.Components,
			Interface:  m.Interface,
		})
	}
	for _, np := range res.Plan.Nets {
		if np.Net.Name != "" && np.Net.Name != np.Ident {
			if r.Renamed == nil {
				r.Renamed = make(map[string]string)
			}
			r.Renamed[np.Net.Name] = np.Ident
		}
	}
	return r
}

func writeReport(path string, r *report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
