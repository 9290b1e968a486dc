// Package scheduler is razel's core: it builds the dependency graph from
// commands pushed onto it, fans out input digests, and runs the
// bounded-parallel execution loop.
package scheduler

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/xerrors"

	"github.com/razel-build/razel/internal/actioncache"
	"github.com/razel-build/razel/internal/arena"
	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/config"
	"github.com/razel-build/razel/internal/file"
	"github.com/razel-build/razel/internal/id"
	"github.com/razel-build/razel/internal/status"
	"github.com/razel-build/razel/internal/tasks"
)

// Result is returned by Run. NotRun aggregates commands still waiting or
// queued-but-never-dispatched; it is only meaningful when the run ended
// early because of failures.
type Result struct {
	Succeeded int
	Failed    int
	NotRun    int
}

// Scheduler is the single-coordinator, multi-worker engine: its fields are
// mutated only between awaits on the completion channel inside Run.
type Scheduler struct {
	Log *log.Logger

	// CacheEnabled gates the input-digest pass and, when Cache/CAS are both
	// set, the opportunistic action-cache lookup around dispatch.
	CacheEnabled bool
	Cache        actioncache.ActionCache
	CAS          actioncache.ContentAddressableStorage

	WorkerThreads int
	SandboxRoot   string

	// Status, if non-nil, receives a per-worker-slot line as commands start
	// and finish, rendered by internal/status to show concurrent builds.
	Status *status.Board

	workspaceDir string
	currentDir   string
	binDir       string

	files     *file.Registry
	commands  arena.Arena[id.CommandId, command.Command]
	waiting   map[id.CommandId]struct{}
	ready     []id.CommandId
	running   int
	slots     []id.CommandId // 0 is a sentinel "idle" value read as unset via slotUsed
	slotUsed  []bool
	succeeded []id.CommandId
	failed    []id.CommandId
}

// New creates a Scheduler rooted at the process's current directory, with
// outputs under config.BinDir and WorkerThreads defaulted to the number of
// logical CPUs.
func New() (*Scheduler, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, xerrors.Errorf("scheduler: %w", err)
	}
	return NewAt(cwd, config.BinDir), nil
}

// NewAt creates a Scheduler rooted at currentDir with outputs under binDir
// (absolute, or resolved relative to currentDir). internal/file.Registry
// always stores paths relative to currentDir, so binDir is kept in that
// form for the registry even when the caller passed an absolute one; s.binDir
// itself stays absolute, since Clean's os.RemoveAll must work regardless of
// the process's current working directory.
func NewAt(currentDir, binDir string) *Scheduler {
	absBinDir := binDir
	if !filepath.IsAbs(absBinDir) {
		absBinDir = filepath.Join(currentDir, absBinDir)
	}
	regBinDir := binDir
	if filepath.IsAbs(regBinDir) {
		if rel, err := filepath.Rel(currentDir, regBinDir); err == nil {
			regBinDir = rel
		}
	}
	return &Scheduler{
		Log:           log.New(os.Stderr, "", log.LstdFlags),
		CacheEnabled:  true,
		WorkerThreads: runtime.NumCPU(),
		SandboxRoot:   filepath.Join(os.TempDir(), "razel-sandbox"),
		workspaceDir:  currentDir,
		currentDir:    currentDir,
		binDir:        absBinDir,
		files:         file.NewRegistry(currentDir, regBinDir),
		waiting:       make(map[id.CommandId]struct{}),
	}
}

// Clean best-effort removes the bin directory; errors are suppressed.
func (s *Scheduler) Clean() {
	os.RemoveAll(s.binDir)
}

// SetWorkspaceDir sets the base directory relative input/output paths
// resolve against. An absolute path is used as-is; a relative one is
// resolved against the current directory.
func (s *Scheduler) SetWorkspaceDir(dir string) {
	if filepath.IsAbs(dir) {
		s.workspaceDir = dir
	} else {
		s.workspaceDir = filepath.Join(s.currentDir, dir)
	}
	s.files.WorkspaceDir = s.workspaceDir
}

// Len returns the number of commands pushed so far.
func (s *Scheduler) Len() int { return s.commands.Len() }

// Files exposes the file registry, mainly so the CLI can render the
// canonical action record for `-explain`.
func (s *Scheduler) Files() *file.Registry { return s.files }

// commandName resolves a CommandId to its name, used for output-conflict
// diagnostics while building a new command's outputs.
func (s *Scheduler) commandName(cid id.CommandId) string {
	return s.commands.Get(cid).Name
}

// PushCustomCommand is the convenience entry point: build a CommandBuilder
// around a CustomCommand executor and push it.
func (s *Scheduler) PushCustomCommand(name, executable string, args, inputs, outputs []string) (id.CommandId, error) {
	return s.pushCustomCommand(name, executable, args, inputs, outputs, false)
}

func (s *Scheduler) pushCustomCommand(name, executable string, args, inputs, outputs []string, sandboxed bool) (id.CommandId, error) {
	b := command.NewBuilder(name)
	if err := b.Inputs(inputs, s.files); err != nil {
		return 0, err
	}
	if err := b.Outputs(outputs, s.files, s.commandName); err != nil {
		return 0, err
	}
	if err := b.CustomCommandExecutor(executable, args, sandboxed, s.files); err != nil {
		return 0, err
	}
	return s.Push(b)
}

// PushTask resolves a tasks.Task the same way PushCustomCommand resolves
// its individual arguments, the entry point internal/tasks' CSV/JSONL/
// textproto parsers feed into.
func (s *Scheduler) PushTask(t tasks.Task) (id.CommandId, error) {
	return s.pushCustomCommand(t.Name, t.Executable, t.Args, t.Inputs, t.Outputs, t.Sandboxed)
}

// Push finalizes builder into a Command, allocating its id, then back-patches
// every output File's CreatingCommand so it points at its producer.
func (s *Scheduler) Push(builder *command.Builder) (id.CommandId, error) {
	cid := s.commands.AllocWithId(func(cid id.CommandId) command.Command {
		return builder.Build(cid)
	})
	cmd := s.commands.Get(cid)
	for _, outputId := range cmd.Outputs {
		f := s.files.Get(outputId)
		if f.CreatingCommand != nil {
			// file.Registry.OutputFile already rejects a path that is
			// already someone's output, so reaching here would mean
			// command.Builder reused an id it should not have.
			panic("BUG: output file already has a creating command")
		}
		f.CreatingCommand = &cid
	}
	return cid, nil
}

// GetCommand exposes a pushed command, mainly for tests.
func (s *Scheduler) GetCommand(cid id.CommandId) *command.Command {
	if int(cid) < 0 || int(cid) >= s.commands.Len() {
		return nil
	}
	return s.commands.Get(cid)
}
