package atopile

import (
	"fmt"
	"strings"
)

// indentUnit is one level of block indentation
const indentUnit = "    "

// writer builds indented source text line by line
type writer struct {
	b         strings.Builder
	level     int
	lastBlank bool
}

func newWriter() *writer {
	return &writer{lastBlank: true}
}

// line writes one indented line
func (w *writer) line(format string, args ...any) {
	for i := 0; i < w.level; i++ {
		w.b.WriteString(indentUnit)
	}
	if len(args) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, args...)
	}
	w.b.WriteByte('\n')
	w.lastBlank = false
}

// gap writes a blank line unless the previous line was blank
func (w *writer) gap() {
	if w.lastBlank {
		return
	}
	w.b.WriteByte('\n')
	w.lastBlank = true
}

// open writes a block header and indents the lines that follow
func (w *writer) open(format string, args ...any) {
	w.line(format, args...)
	w.level++
	w.lastBlank = true
}

func (w *writer) close() {
	if w.level > 0 {
		w.level--
	}
}

func (w *writer) String() string {
	return strings.TrimRight(w.b.String(), "\n") + "\n"
}
