// Package file interns the files a build references: pure inputs,
// executables, and command outputs. Paths are normalized to be relative to
// the scheduler's current directory (see Registry.relPath) and deduplicated
// so the same on-disk path is always the same FileId (invariant: every File
// appears at most once in a Registry, keyed by its resolved path).
package file

import (
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/razel-build/razel/internal/arena"
	"github.com/razel-build/razel/internal/digest"
	"github.com/razel-build/razel/internal/id"
)

// File is an interned input or output artifact.
type File struct {
	Id id.FileId
	// Arg is the original textual reference, kept for diagnostics.
	Arg string
	// Path is workspace-relative for inputs, bin-dir-rooted for outputs.
	Path string
	// CreatingCommand is set exactly once, at the command that declares
	// this file as an output. A nil value means the file is a pure input.
	CreatingCommand *id.CommandId
	// Digest is populated by the input-digest pass for pure inputs, and by
	// the scheduler's action-cache hook for outputs once they have been
	// produced or restored from the cache.
	Digest *digest.Blob
}

// IsOutput reports whether f is produced by a command rather than supplied
// as a pure input.
func (f *File) IsOutput() bool { return f.CreatingCommand != nil }

// Registry interns files by their resolved path. It is not safe for
// concurrent use; all mutation happens on the scheduler's single
// coordinator goroutine, the same way the rest of razel's core state does.
type Registry struct {
	// WorkspaceDir is the base directory relative paths are resolved
	// against.
	WorkspaceDir string
	// CurrentDir is the process's working directory; all stored paths are
	// relative to it.
	CurrentDir string
	// BinDir is where output files are rooted.
	BinDir string

	arena       arena.Arena[id.FileId, File]
	pathToId    map[string]id.FileId
	whichToId   map[string]id.FileId
}

// NewRegistry creates an empty Registry rooted at currentDir, with
// workspaceDir defaulting to currentDir and outputs rooted at binDir.
func NewRegistry(currentDir, binDir string) *Registry {
	return &Registry{
		WorkspaceDir: currentDir,
		CurrentDir:   currentDir,
		BinDir:       binDir,
		pathToId:     make(map[string]id.FileId),
		whichToId:    make(map[string]id.FileId),
	}
}

// Len returns the number of interned files.
func (r *Registry) Len() int { return r.arena.Len() }

// Get returns the File for id. Do not retain the pointer across a call that
// interns a new file.
func (r *Registry) Get(fid id.FileId) *File { return r.arena.Get(fid) }

// FirstId is the cursor start for external iteration via GetAndIncId.
func (r *Registry) FirstId() id.FileId { return r.arena.FirstId() }

// GetAndIncId advances an external iteration cursor, used by the digest fan
// out to walk files in insertion order without holding the registry locked.
func (r *Registry) GetAndIncId(cursor *id.FileId) *File { return r.arena.GetAndIncId(cursor) }

// Iter visits every interned file in insertion order.
func (r *Registry) Iter(fn func(*File)) { r.arena.Iter(fn) }

// Executable resolves a program name to a File. Names containing a '.' are
// treated as paths and resolved like any other input; bare names are
// resolved once via $PATH and memoized.
func (r *Registry) Executable(arg string) (id.FileId, error) {
	if strings.Contains(arg, ".") {
		return r.InputFile(arg)
	}
	if fid, ok := r.whichToId[arg]; ok {
		return fid, nil
	}
	path, err := exec.LookPath(arg)
	if err != nil {
		return 0, xerrors.Errorf("executable %q: %w", arg, err)
	}
	fid, err := r.InputFile(path)
	if err != nil {
		return 0, err
	}
	r.whichToId[arg] = fid
	return fid, nil
}

// InputFile interns arg as a pure input, returning the existing handle if
// the resolved path was already registered.
func (r *Registry) InputFile(arg string) (id.FileId, error) {
	relPath, err := r.relPath(arg)
	if err != nil {
		return 0, err
	}
	if fid, ok := r.pathToId[relPath]; ok {
		return fid, nil
	}
	fid := r.arena.AllocWithId(func(fid id.FileId) File {
		return File{Id: fid, Arg: arg, Path: relPath}
	})
	r.pathToId[relPath] = fid
	return fid, nil
}

// OutputFile interns arg as an output. It fails if the resolved path is
// already interned, either as another command's declared output (the error
// names the conflicting command) or as an existing input.
func (r *Registry) OutputFile(arg string, commandName func(id.CommandId) string) (id.FileId, error) {
	relPath, err := r.relPath(arg)
	if err != nil {
		return 0, err
	}
	if existing, ok := r.pathToId[relPath]; ok {
		f := r.arena.Get(existing)
		if f.CreatingCommand != nil {
			return 0, xerrors.Errorf(
				"file %s cannot be output of multiple commands, already output of %s",
				arg, commandName(*f.CreatingCommand))
		}
		return 0, xerrors.Errorf("file %s cannot be output because it's already used as an input", arg)
	}
	fid := r.arena.AllocWithId(func(fid id.FileId) File {
		return File{
			Id:   fid,
			Arg:  arg,
			Path: filepath.Join(r.BinDir, relPath),
			// CreatingCommand is patched by the caller (Scheduler.Push)
			// once the new command's id is known.
		}
	})
	r.pathToId[relPath] = fid
	return fid, nil
}

// relPath resolves arg, which may be absolute or relative to WorkspaceDir,
// to a path relative to CurrentDir.
func (r *Registry) relPath(arg string) (string, error) {
	if filepath.IsAbs(arg) {
		if rel, err := filepath.Rel(r.CurrentDir, arg); err == nil && !strings.HasPrefix(rel, "..") {
			return rel, nil
		}
		return arg, nil
	}
	joined := filepath.Join(r.WorkspaceDir, arg)
	rel, err := filepath.Rel(r.CurrentDir, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", xerrors.Errorf("file is not within cwd (%s): %s", r.CurrentDir, arg)
	}
	return rel, nil
}
