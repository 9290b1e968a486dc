// Package sandbox implements the per-command staging directory: a fresh
// directory seeded with symlinks to a command's inputs before it runs, and
// a harvest step that relocates its declared outputs to their bin-dir
// destinations afterwards.
package sandbox

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/file"
)

// Sandbox is the contract the scheduler drives a command's execution
// through when its Executor requests sandboxing. internal/scheduler
// converts either method failing into a synthetic failed Result rather
// than aborting the run.
type Sandbox interface {
	// Dir is the working directory the executor should run inside.
	Dir() string
	CreateAndProvideInputs(ctx context.Context) error
	HandleOutputsAndDestroy(ctx context.Context) error
}

// Local stages inputs via symlinks under a fresh directory beneath root,
// and harvests outputs back into the registry's bin dir with renameio so a
// crash mid-harvest never leaves a half-written output visible.
type Local struct {
	dir     string
	reg     *file.Registry
	command *command.Command
}

var _ Sandbox = (*Local)(nil)

// New allocates (but does not create on disk) a sandbox directory for cmd
// under root.
func New(cmd *command.Command, reg *file.Registry, root string) *Local {
	dir := filepath.Join(root, uuid.NewString())
	return &Local{dir: dir, reg: reg, command: cmd}
}

func (s *Local) Dir() string { return s.dir }

// CreateAndProvideInputs creates the sandbox directory and symlinks every
// input file into it at its workspace-relative path, creating parent
// directories as needed.
func (s *Local) CreateAndProvideInputs(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return xerrors.Errorf("sandbox: %w", err)
	}
	for _, fid := range s.command.Inputs {
		f := s.reg.Get(fid)
		src := f.Path
		if !filepath.IsAbs(src) {
			src = filepath.Join(s.reg.CurrentDir, src)
		}
		dst := filepath.Join(s.dir, f.Path)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return xerrors.Errorf("sandbox: %w", err)
		}
		if err := os.Symlink(src, dst); err != nil {
			return xerrors.Errorf("sandbox: stage %s: %w", f.Path, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// HandleOutputsAndDestroy relocates every declared output from the sandbox
// to its bin-dir destination, then removes the sandbox directory.
func (s *Local) HandleOutputsAndDestroy(ctx context.Context) error {
	defer os.RemoveAll(s.dir)
	for _, fid := range s.command.Outputs {
		f := s.reg.Get(fid)
		src := filepath.Join(s.dir, filepath.Base(f.Path))
		dst := filepath.Join(s.reg.CurrentDir, f.Path)
		b, err := os.ReadFile(src)
		if err != nil {
			return xerrors.Errorf("sandbox: harvest %s: %w", f.Path, err)
		}
		if err := renameio.WriteFile(dst, b, 0644); err != nil {
			return xerrors.Errorf("sandbox: harvest %s: %w", f.Path, err)
		}
	}
	return nil
}
