package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Rules tune one conversion. Example:
//
//	project {
//	  name = "${netlist.name}_v2"
//	}
//
//	net "Net-(R1-Pad2)" {
//	  rename = "FB"
//	}
//
//	sheet "/power/" {
//	  module = "PowerSupply"
//	}
//
//	no_connect {
//	  allow = false
//	}
type Rules struct {
	Project   *ProjectRule   `hcl:"project,block"`
	Nets      []NetRule      `hcl:"net,block"`
	Sheets    []SheetRule    `hcl:"sheet,block"`
	NoConnect *NoConnectRule `hcl:"no_connect,block"`
}

type ProjectRule struct {
	Name   string `hcl:"name,optional"`
	Header string `hcl:"header,optional"`
}

type NetRule struct {
	Net    string `hcl:"net,label"`
	Rename string `hcl:"rename"`
}

type SheetRule struct {
	Path   string `hcl:"path,label"`
	Module string `hcl:"module"`
}

type NoConnectRule struct {
	Allow bool `hcl:"allow"`
}

// NetlistInfo is exposed to rule expressions as the netlist object
type NetlistInfo struct {
	// Name is the netlist file name without extension
	Name string
	// Source is the schematic file recorded in the netlist header
	Source string
}

func evalContext(info NetlistInfo) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"netlist": cty.ObjectVal(map[string]cty.Value{
				"name":   cty.StringVal(info.Name),
				"source": cty.StringVal(info.Source),
			}),
		},
		Functions: map[string]function.Function{
			"lower":   stdlib.LowerFunc,
			"upper":   stdlib.UpperFunc,
			"replace": stdlib.ReplaceFunc,
		},
	}
}

// LoadRulesFile reads and decodes a rules file
func LoadRulesFile(path string, info NetlistInfo) (*Rules, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(path, src, info)
}

// ParseRules decodes rules from HCL source. filename is used in diagnostics.
func ParseRules(filename string, src []byte, info NetlistInfo) (*Rules, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse rules file %s: %s", filename, diags.Error())
	}

	var rules Rules
	diags = gohcl.DecodeBody(file.Body, evalContext(info), &rules)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode rules file %s: %s", filename, diags.Error())
	}

	if err := rules.validate(filename); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *Rules) validate(filename string) error {
	nets := make(map[string]bool, len(r.Nets))
	for _, n := range r.Nets {
		if nets[n.Net] {
			return fmt.Errorf("%s: net %q renamed more than once", filename, n.Net)
		}
		nets[n.Net] = true
		if strings.TrimSpace(n.Rename) == "" {
			return fmt.Errorf("%s: net %q has an empty rename", filename, n.Net)
		}
	}
	sheets := make(map[string]bool, len(r.Sheets))
	for _, s := range r.Sheets {
		if sheets[s.Path] {
			return fmt.Errorf("%s: sheet %q renamed more than once", filename, s.Path)
		}
		sheets[s.Path] = true
	}
	return nil
}

// NetNames maps original net names to identifiers
func (r *Rules) NetNames() map[string]string {
	if r == nil || len(r.Nets) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Nets))
	for _, n := range r.Nets {
		out[n.Net] = n.Rename
	}
	return out
}

// ModuleNames maps sheet paths to module identifiers
func (r *Rules) ModuleNames() map[string]string {
	if r == nil || len(r.Sheets) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Sheets))
	for _, s := range r.Sheets {
		out[s.Path] = s.Module
	}
	return out
}

// ProjectName returns the configured project name, or fallback
func (r *Rules) ProjectName(fallback string) string {
	if r == nil || r.Project == nil || r.Project.Name == "" {
		return fallback
	}
	return r.Project.Name
}

// Header returns the configured file header, or fallback
func (r *Rules) Header(fallback string) string {
	if r == nil || r.Project == nil || r.Project.Header == "" {
		return fallback
	}
	return r.Project.Header
}

// AllowNoConnect returns the no_connect setting, or fallback
func (r *Rules) AllowNoConnect(fallback bool) bool {
	if r == nil || r.NoConnect == nil {
		return fallback
	}
	return r.NoConnect.Allow
}

// FindRules returns the rules file to use for a netlist: explicit when set,
// else DefaultRulesFile next to the netlist if present, else "".
func FindRules(explicit, netlistPath string) string {
	if explicit != "" {
		return explicit
	}
	candidate := filepath.Join(filepath.Dir(netlistPath), DefaultRulesFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
