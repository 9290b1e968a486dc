// Package command models a scheduled unit of work: a name, an Executor
// strategy, and the input/output files that tie it into the dependency
// graph built in internal/scheduler.
package command

import (
	"github.com/razel-build/razel/internal/executor"
	"github.com/razel-build/razel/internal/file"
	"github.com/razel-build/razel/internal/id"
)

// ScheduleState is where a Command sits in the scheduler's lifecycle.
type ScheduleState int

const (
	New ScheduleState = iota
	// Waiting means at least one producer of an input has not finished yet.
	Waiting
	// Ready means UnfinishedDeps is empty and the command has not run.
	Ready
	Succeeded
	Failed
)

func (s ScheduleState) String() string {
	switch s {
	case New:
		return "New"
	case Waiting:
		return "Waiting"
	case Ready:
		return "Ready"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return "unknown"
	}
}

// Command is a scheduled unit of work.
type Command struct {
	Id       id.CommandId
	Name     string
	Executor executor.Executor
	Inputs   []id.FileId
	Outputs  []id.FileId

	ScheduleState ScheduleState
	// UnfinishedDeps is a multiset of command ids this command awaits;
	// order is not meaningful, only membership and count.
	UnfinishedDeps []id.CommandId
	// ReverseDeps are the commands waiting on this one.
	ReverseDeps []id.CommandId
}

// IsReady reports the invariant: Ready iff UnfinishedDeps is empty and the
// command has not already finished.
func (c *Command) IsReady() bool {
	return len(c.UnfinishedDeps) == 0 && c.ScheduleState != Succeeded && c.ScheduleState != Failed
}

// Builder accumulates the pieces of a Command before it is pushed onto a
// scheduler, which allocates its final Id.
type Builder struct {
	name     string
	inputs   []id.FileId
	outputs  []id.FileId
	executor executor.Executor
}

// NewBuilder starts a Builder for a command named name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Inputs resolves each path through reg.InputFile and records it as a
// dependency.
func (b *Builder) Inputs(paths []string, reg *file.Registry) error {
	for _, p := range paths {
		fid, err := reg.InputFile(p)
		if err != nil {
			return err
		}
		b.inputs = append(b.inputs, fid)
	}
	return nil
}

// Outputs resolves each path through reg.OutputFile. commandName resolves a
// CommandId to its name for conflict error messages.
func (b *Builder) Outputs(paths []string, reg *file.Registry, commandName func(id.CommandId) string) error {
	for _, p := range paths {
		fid, err := reg.OutputFile(p, commandName)
		if err != nil {
			return err
		}
		b.outputs = append(b.outputs, fid)
	}
	return nil
}

// CustomCommandExecutor resolves executable through reg (adding it as an
// implicit input, since a sandboxed run needs it staged too) and installs a
// executor.CustomCommand as this builder's Executor.
func (b *Builder) CustomCommandExecutor(executable string, args []string, sandboxed bool, reg *file.Registry) error {
	fid, err := reg.Executable(executable)
	if err != nil {
		return err
	}
	b.inputs = append(b.inputs, fid)
	resolved := reg.Get(fid)
	b.executor = executor.NewCustomCommand(resolved.Path, args, sandboxed)
	return nil
}

// WithExecutor installs an already-constructed Executor, for callers that
// build their own (e.g. a future remote executor).
func (b *Builder) WithExecutor(e executor.Executor) {
	b.executor = e
}

// Build finalizes the Command with the id the arena reserved for it.
func (b *Builder) Build(cid id.CommandId) Command {
	return Command{
		Id:       cid,
		Name:     b.name,
		Executor: b.executor,
		Inputs:   b.inputs,
		Outputs:  b.outputs,
	}
}
