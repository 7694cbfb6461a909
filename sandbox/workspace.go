package sandbox

import (
	"fmt"
	"path/filepath"
)

// Workspace is the host directory holding the single source file of one execution.
type Workspace struct {
	ID         string
	Dir        string
	SourceFile string
}

func newWorkspace(root, id, filename string) Workspace {
	dir := filepath.Join(root, id)
	return Workspace{
		ID:         id,
		Dir:        dir,
		SourceFile: filepath.Join(dir, filename),
	}
}

// create makes the workspace directory. Mkdir fails on an existing path, so
// two executions can never share a directory.
func (w Workspace) create(fs FileSystem) error {
	if err := fs.MkdirAll(filepath.Dir(w.Dir), DirPermission); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}
	if err := fs.Mkdir(w.Dir, DirPermission); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// writeSource stores code verbatim.
func (w Workspace) writeSource(fs FileSystem, code string) error {
	if err := fs.WriteFile(w.SourceFile, []byte(code), FilePermission); err != nil {
		return fmt.Errorf("failed to write source file: %w", err)
	}
	return nil
}

func (w Workspace) remove(fs FileSystem) error {
	return fs.RemoveAll(w.Dir)
}
