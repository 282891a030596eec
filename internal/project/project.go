// Package project puts a generated atopile project on disk: it scaffolds a
// missing project, detects files that would be overwritten and writes every
// file or none.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/diode/pkg/atopile"
)

// Scaffolder creates an empty atopile project named name inside parent
type Scaffolder interface {
	Scaffold(ctx context.Context, parent, name string) error
}

// CommandScaffolder runs an external command such as "ato create" in the
// parent directory, with the project name appended.
type CommandScaffolder struct {
	Command []string
	Logger  *zap.Logger
}

// Scaffold runs the command
func (c CommandScaffolder) Scaffold(ctx context.Context, parent, name string) error {
	if len(c.Command) == 0 {
		return errors.New("no scaffold command configured")
	}
	args := append(append([]string{}, c.Command[1:]...), name)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	cmd.Dir = parent
	if c.Logger != nil {
		c.Logger.Debug("scaffolding project", zap.Strings("command", cmd.Args), zap.String("dir", parent))
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", c.Command[0], err, out)
	}
	return nil
}

// Ensure scaffolds dir when it does not exist yet. It reports whether a
// project was created.
func Ensure(ctx context.Context, s Scaffolder, dir string) (bool, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return false, fmt.Errorf("%s exists and is not a directory", dir)
	case err == nil:
		return false, nil
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return false, err
	}
	if err := s.Scaffold(ctx, parent, filepath.Base(abs)); err != nil {
		return false, fmt.Errorf("failed to scaffold %s: %w", dir, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return false, fmt.Errorf("scaffolding did not create %s: %w", dir, err)
	}
	return true, nil
}

// Conflicts lists the project files that already exist under srcDir with
// different content.
func Conflicts(srcDir string, proj *atopile.Project) []string {
	return proj.Conflicts(func(path string) ([]byte, bool) {
		data, err := os.ReadFile(filepath.Join(srcDir, filepath.FromSlash(path)))
		if err != nil {
			return nil, false
		}
		return data, true
	})
}

type staged struct {
	target string
	tmp    string
	backup string // "" when target did not exist
}

// Write stores every project file under srcDir. Files are staged next to
// their target first; if anything fails, targets already replaced are
// restored and new ones removed.
func Write(srcDir string, proj *atopile.Project) (err error) {
	var done []staged
	defer func() {
		if err == nil {
			for _, s := range done {
				if s.backup != "" {
					os.Remove(s.backup)
				}
			}
			return
		}
		for i := len(done) - 1; i >= 0; i-- {
			s := done[i]
			os.Remove(s.tmp)
			if s.backup != "" {
				os.Rename(s.backup, s.target)
			} else {
				os.Remove(s.target)
			}
		}
	}()

	var pending []staged
	defer func() {
		for _, s := range pending {
			os.Remove(s.tmp)
		}
	}()

	for _, f := range proj.Files {
		target := filepath.Join(srcDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
		if err != nil {
			return err
		}
		pending = append(pending, staged{target: target, tmp: tmp.Name()})
		if _, err := tmp.Write(f.Content); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to stage %s: %w", f.Path, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f.Path, err)
		}
	}

	for len(pending) > 0 {
		s := pending[0]
		if _, statErr := os.Stat(s.target); statErr == nil {
			backup, err := os.CreateTemp(filepath.Dir(s.target), "."+filepath.Base(s.target)+".*.bak")
			if err != nil {
				return fmt.Errorf("failed to back up %s: %w", s.target, err)
			}
			backup.Close()
			if err := os.Rename(s.target, backup.Name()); err != nil {
				os.Remove(backup.Name())
				return fmt.Errorf("failed to back up %s: %w", s.target, err)
			}
			s.backup = backup.Name()
		}
		pending = pending[1:]
		done = append(done, s)
		if err := os.Rename(s.tmp, s.target); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.target, err)
		}
	}
	return nil
}
