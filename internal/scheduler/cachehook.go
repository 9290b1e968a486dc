package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/razel-build/razel/internal/action"
	"github.com/razel-build/razel/internal/actioncache"
	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/digest"
	"github.com/razel-build/razel/internal/executor"
)

// tryCacheHit is the action-cache integration point: synthesize cmd's
// Action key, ask s.Cache whether it has seen it before,
// and, if so, materialize every declared output from s.CAS instead of
// running the executor at all. A miss at either layer, or any error, is
// reported as ok=false so the caller falls through to a normal execution.
func (s *Scheduler) tryCacheHit(ctx context.Context, cmd *command.Command) (executor.Result, bool) {
	_, key, err := action.For(cmd, s.files)
	if err != nil {
		s.Log.Printf("warning: action key for %s: %v", cmd.Name, err)
		return executor.Result{}, false
	}

	cached, ok, err := s.Cache.GetResult(ctx, key)
	if err != nil {
		s.Log.Printf("warning: cache lookup for %s: %v", cmd.Name, err)
		return executor.Result{}, false
	}
	if !ok {
		return executor.Result{}, false
	}

	for _, fid := range cmd.Outputs {
		f := s.files.Get(fid)
		d, ok := cached.OutputDigests[f.Path]
		if !ok {
			s.Log.Printf("warning: cache entry for %s missing digest for %s", cmd.Name, f.Path)
			return executor.Result{}, false
		}
		blob, ok, err := s.CAS.GetBlob(ctx, d)
		if err != nil || !ok {
			s.Log.Printf("warning: cache blob for %s (%s) unavailable: %v", cmd.Name, f.Path, err)
			return executor.Result{}, false
		}
		dst := filepath.Join(s.files.CurrentDir, f.Path)
		if err := renameio.WriteFile(dst, blob, 0644); err != nil {
			s.Log.Printf("warning: materialize cached output %s: %v", f.Path, err)
			return executor.Result{}, false
		}
		f.Digest = &d
	}

	s.Log.Printf("cache hit %s", cmd.Name)
	return executor.Result{ExitCode: cached.ExitCode}, true
}

// storeCacheResult pushes every declared output's bytes into s.CAS and
// records the resulting digests against cmd's Action key in s.Cache, so a
// future run with identical inputs can skip execution entirely.
func (s *Scheduler) storeCacheResult(ctx context.Context, cmd *command.Command, result executor.Result) {
	_, key, err := action.For(cmd, s.files)
	if err != nil {
		s.Log.Printf("warning: action key for %s: %v", cmd.Name, err)
		return
	}

	outputs := make(map[string]digest.Blob, len(cmd.Outputs))
	for _, fid := range cmd.Outputs {
		f := s.files.Get(fid)
		path := filepath.Join(s.files.CurrentDir, f.Path)
		d, err := digest.ForFile(path)
		if err != nil {
			s.Log.Printf("warning: digest output %s: %v", f.Path, err)
			return
		}
		blob, err := os.ReadFile(path)
		if err != nil {
			s.Log.Printf("warning: read output %s: %v", f.Path, err)
			return
		}
		if err := s.CAS.PushBlob(ctx, d, blob); err != nil {
			s.Log.Printf("warning: push blob for %s: %v", f.Path, err)
			return
		}
		f.Digest = &d
		outputs[f.Path] = d
	}

	cached := actioncache.Result{ExitCode: result.ExitCode, OutputDigests: outputs}
	if err := s.Cache.PushResult(ctx, key, cached); err != nil {
		s.Log.Printf("warning: push cache result for %s: %v", cmd.Name, err)
	}
}
