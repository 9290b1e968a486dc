package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/xerrors"

	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/executor"
	"github.com/razel-build/razel/internal/file"
	"github.com/razel-build/razel/internal/id"
	"github.com/razel-build/razel/internal/sandbox"
	"github.com/razel-build/razel/internal/trace"
)

type completion struct {
	id      id.CommandId
	sandbox sandbox.Sandbox
	result  executor.Result
}

// Run executes every pushed command, respecting dependencies, bounded by
// WorkerThreads.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	if s.commands.IsEmpty() {
		return Result{}, xerrors.New("no commands added")
	}
	if err := s.createDependencyGraph(); err != nil {
		return Result{}, err
	}
	if s.CacheEnabled {
		if err := s.digestInputFiles(ctx); err != nil {
			return Result{}, err
		}
	}
	if err := s.createOutputDirs(); err != nil {
		return Result{}, err
	}
	s.slots = make([]id.CommandId, s.WorkerThreads)
	s.slotUsed = make([]bool, s.WorkerThreads)

	completions := make(chan completion, 32)
	s.startReadyCommands(ctx, completions)
	for len(s.ready)+s.running != 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case c := <-completions:
			s.onCommandFinished(ctx, c)
			s.startReadyCommands(ctx, completions)
		}
	}

	if s.Status != nil {
		s.Status.Flush()
	}
	return Result{
		Succeeded: len(s.succeeded),
		Failed:    len(s.failed),
		NotRun:    len(s.waiting) + len(s.ready),
	}, nil
}

// createOutputDirs pre-creates every file's parent directory, deduplicated
// and sorted, before dispatch starts, so no two workers race creating the
// same directory.
func (s *Scheduler) createOutputDirs() error {
	seen := make(map[string]struct{})
	var dirs []string
	s.files.Iter(func(f *file.File) {
		dir := filepath.Dir(filepath.Join(s.currentDir, f.Path))
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	})
	sort.Strings(dirs)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return xerrors.Errorf("create output directory %s: %w", dir, err)
		}
	}
	return nil
}

// startReadyCommands dispatches as many ready commands as WorkerThreads
// allows, each in its own goroutine that reports back on completions.
func (s *Scheduler) startReadyCommands(ctx context.Context, completions chan<- completion) {
	for s.running < s.WorkerThreads && len(s.ready) > 0 {
		cid := s.ready[0]
		s.ready = s.ready[1:]
		s.startOne(ctx, cid, completions)
	}
}

func (s *Scheduler) startOne(ctx context.Context, cid id.CommandId, completions chan<- completion) {
	s.running++
	cmd := s.commands.Get(cid)
	if cmd.ScheduleState != command.Ready || len(cmd.UnfinishedDeps) != 0 {
		panic("BUG: dispatched command is not actually ready")
	}
	s.Log.Printf("execute %s: %s", cmd.Name, cmd.Executor.CommandLine())

	slot := s.claimSlot(cid)
	if s.Status != nil {
		s.Status.Set(slot+1, "running "+cmd.Name)
	}

	exec := cmd.Executor.Clone()
	var sb sandbox.Sandbox
	if exec.UseSandbox() {
		sb = sandbox.New(cmd, s.files, s.SandboxRoot)
	}

	go func() {
		end := trace.Span("run "+cmd.Name, slot)
		result := s.execWithCache(ctx, cmd, exec, sb)
		end()
		select {
		case completions <- completion{id: cid, sandbox: sb, result: result}:
		case <-ctx.Done():
		}
	}()
}

// claimSlot reserves the first free worker slot for cid, for status display
// purposes only; it has no bearing on scheduling correctness.
func (s *Scheduler) claimSlot(cid id.CommandId) int {
	for i, used := range s.slotUsed {
		if !used {
			s.slotUsed[i] = true
			s.slots[i] = cid
			return i
		}
	}
	panic("BUG: no free worker slot, running exceeded WorkerThreads")
}

// releaseSlot frees the worker slot cid was occupying.
func (s *Scheduler) releaseSlot(cid id.CommandId) {
	for i, used := range s.slotUsed {
		if used && s.slots[i] == cid {
			s.slotUsed[i] = false
			if s.Status != nil {
				s.Status.Set(i+1, "idle")
			}
			return
		}
	}
}

// execWithCache is the optional action-cache integration point: it checks
// for a cache hit after action-key synthesis and before running the
// executor. A hit materializes the cached outputs and skips running the
// executor entirely, while still propagating success to the rest of the
// loop.
func (s *Scheduler) execWithCache(ctx context.Context, cmd *command.Command, exec executor.Executor, sb sandbox.Sandbox) executor.Result {
	useCache := s.CacheEnabled && s.Cache != nil && s.CAS != nil
	if useCache {
		if result, ok := s.tryCacheHit(ctx, cmd); ok {
			return result
		}
	}

	var result executor.Result
	if sb != nil {
		if err := sb.CreateAndProvideInputs(ctx); err != nil {
			return executor.Result{Err: xerrors.Errorf("sandbox stage: %w", err)}
		}
		result = exec.Exec(ctx, sb.Dir())
	} else {
		result = exec.Exec(ctx, "")
	}

	if result.Success() && useCache {
		s.storeCacheResult(ctx, cmd, result)
	}
	return result
}

// onCommandFinished harvests sandbox outputs (if any), unconditionally,
// then branches on success.
func (s *Scheduler) onCommandFinished(ctx context.Context, c completion) {
	s.running--
	s.releaseSlot(c.id)
	result := c.result
	if c.sandbox != nil {
		if err := c.sandbox.HandleOutputsAndDestroy(ctx); err != nil {
			// A harvest failure becomes a synthetic failed Result rather
			// than aborting the coordinator.
			s.Log.Printf("sandbox harvest failed for %s: %v", s.commands.Get(c.id).Name, err)
			result = executor.Result{Err: err}
		}
	}
	if result.Success() {
		s.onCommandSucceeded(c.id, result)
	} else {
		s.onCommandFailed(c.id, result)
	}
	if s.Status != nil {
		s.Status.Set(0, fmt.Sprintf("%d succeeded, %d failed, %d running",
			len(s.succeeded), len(s.failed), s.running))
	}
}

// onCommandSucceeded marks cid Succeeded, then for every reverse dep,
// swap-removes this command from its UnfinishedDeps and promotes it to
// Ready if that empties the set.
func (s *Scheduler) onCommandSucceeded(cid id.CommandId, result executor.Result) {
	s.succeeded = append(s.succeeded, cid)
	cmd := s.commands.Get(cid)
	cmd.ScheduleState = command.Succeeded
	s.Log.Printf("success %s: %v", cmd.Name, result)

	for _, rdepId := range cmd.ReverseDeps {
		rdep := s.commands.Get(rdepId)
		if rdep.ScheduleState != command.Waiting {
			panic("BUG: reverse dep was not Waiting")
		}
		rdep.UnfinishedDeps = swapRemove(rdep.UnfinishedDeps, cid)
		if len(rdep.UnfinishedDeps) == 0 {
			rdep.ScheduleState = command.Ready
			delete(s.waiting, rdepId)
			s.ready = append(s.ready, rdepId)
		}
	}
}

func (s *Scheduler) onCommandFailed(cid id.CommandId, result executor.Result) {
	s.failed = append(s.failed, cid)
	cmd := s.commands.Get(cid)
	cmd.ScheduleState = command.Failed
	s.Log.Printf("error %s: %v", cmd.Name, result)
	// Reverse deps are deliberately left Waiting: failure is not propagated
	// to them, so they eventually count toward NotRun.
}

// swapRemove removes the first occurrence of v from s by swapping in the
// last element (an O(1) removal once v is found), without preserving
// order — the multiset's order is never observed.
func swapRemove(s []id.CommandId, v id.CommandId) []id.CommandId {
	for i, x := range s {
		if x == v {
			last := len(s) - 1
			s[i] = s[last]
			return s[:last]
		}
	}
	panic("BUG: swapRemove: value not present")
}
