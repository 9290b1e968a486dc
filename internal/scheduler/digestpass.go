package scheduler

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	digestpkg "github.com/razel-build/razel/internal/digest"
)

// digestInputFiles is the input-digest pass: fan file digests out over an
// errgroup capped at WorkerThreads in flight. Every per-file error is
// logged as a warning and counted; only the aggregate count is fatal.
func (s *Scheduler) digestInputFiles(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.WorkerThreads)

	var mu sync.Mutex
	missing := 0

	cursor := s.files.FirstId()
	for {
		fi := s.files.GetAndIncId(&cursor)
		if fi == nil {
			break
		}
		if fi.CreatingCommand != nil {
			continue // outputs are not digested pre-run
		}
		fid := fi.Id
		absPath := pathJoinCurrentDir(s, fi.Path)

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			d, err := digestpkg.ForFile(absPath)
			if err != nil {
				s.Log.Printf("warning: %v", err)
				mu.Lock()
				missing++
				mu.Unlock()
				return nil
			}
			f := s.files.Get(fid)
			f.Digest = &d
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	if missing != 0 {
		return xerrors.Errorf("%d input files not found", missing)
	}
	return nil
}

func pathJoinCurrentDir(s *Scheduler, relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(s.currentDir, relPath)
}
