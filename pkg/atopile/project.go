package atopile

import (
	"bytes"
	"sort"

	"github.com/maruel/natural"
)

// File is one generated source file
type File struct {
	Path    string // slash separated, relative to the project source root
	Content []byte
}

// Project is the generated output: files sorted by path
type Project struct {
	Name  string // root module identifier
	Root  string // path of the root module file
	Files []File
}

// File returns the file at path
func (p *Project) File(path string) (File, bool) {
	i := sort.Search(len(p.Files), func(i int) bool { return !natural.Less(p.Files[i].Path, path) })
	if i < len(p.Files) && p.Files[i].Path == path {
		return p.Files[i], true
	}
	return File{}, false
}

// Paths lists the file paths in output order
func (p *Project) Paths() []string {
	paths := make([]string, len(p.Files))
	for i, f := range p.Files {
		paths[i] = f.Path
	}
	return paths
}

// Conflicts returns the paths whose existing content, as reported by read,
// differs from the generated content. Files that do not exist yet or are
// identical are not conflicts.
func (p *Project) Conflicts(read func(path string) ([]byte, bool)) []string {
	var conflicts []string
	for _, f := range p.Files {
		existing, ok := read(f.Path)
		if ok && !bytes.Equal(existing, f.Content) {
			conflicts = append(conflicts, f.Path)
		}
	}
	return conflicts
}

func (p *Project) sortFiles() {
	sort.Slice(p.Files, func(i, j int) bool { return natural.Less(p.Files[i].Path, p.Files[j].Path) })
}
