// Package diag holds the non-fatal diagnostics produced while converting a
// netlist. Stages append warnings instead of printing them; the caller
// decides how to present them.
package diag

import (
	"fmt"
	"sort"
)

// Stage names the pipeline stage that raised a diagnostic.
type Stage string

const (
	StageParse     Stage = "parse"
	StageModel     Stage = "model"
	StageLibrary   Stage = "library"
	StagePartition Stage = "partition"
	StageGenerate  Stage = "generate"
)

// Diagnostic is a single warning. Subject names the offending entity
// (a reference designator, net name or sheet path).
type Diagnostic struct {
	Stage   Stage  `yaml:"stage"`
	Subject string `yaml:"subject"`
	Message string `yaml:"message"`
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: %s", d.Stage, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Stage, d.Subject, d.Message)
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Addf appends a formatted diagnostic.
func (l *List) Addf(stage Stage, subject, format string, args ...any) {
	*l = append(*l, Diagnostic{Stage: stage, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Merge returns a new list holding the diagnostics of all lists, ordered by
// stage position in the pipeline, then subject, then message.
func Merge(lists ...List) List {
	var out List
	for _, l := range lists {
		out = append(out, l...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if stageOrder(a.Stage) != stageOrder(b.Stage) {
			return stageOrder(a.Stage) < stageOrder(b.Stage)
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Message < b.Message
	})
	return out
}

func stageOrder(s Stage) int {
	switch s {
	case StageParse:
		return 0
	case StageModel:
		return 1
	case StageLibrary:
		return 2
	case StagePartition:
		return 3
	case StageGenerate:
		return 4
	default:
		return 5
	}
}
