package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/razel-build/razel/internal/action"
	"github.com/razel-build/razel/internal/actioncache"
	"github.com/razel-build/razel/internal/atexit"
	"github.com/razel-build/razel/internal/config"
	"github.com/razel-build/razel/internal/id"
	"github.com/razel-build/razel/internal/oninterrupt"
	"github.com/razel-build/razel/internal/scheduler"
	"github.com/razel-build/razel/internal/status"
	"github.com/razel-build/razel/internal/tasks"
	"github.com/razel-build/razel/internal/trace"
)

func runCmd() *cobra.Command {
	var (
		jobs       int
		noCache    bool
		explain    bool
		traceFile  string
		workspace  string
		binDirFlag string
	)

	cmd := &cobra.Command{
		Use:   "run <tasks-file>",
		Short: "Build the dependency graph from a task manifest and run it",
		Long: `razel run reads a task manifest (.csv, .jsonl, or .textproto) and
runs every described command, respecting the dependency graph implied by
their declared inputs and outputs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRazel(runOpts{
				taskFile:  args[0],
				jobs:      jobs,
				noCache:   noCache,
				explain:   explain,
				traceFile: traceFile,
				workspace: workspace,
				binDir:    binDirFlag,
			})
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", runtime.NumCPU(), "number of commands to run concurrently")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the local action cache")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the canonical action record for every command before running it")
	cmd.Flags().StringVar(&traceFile, "trace", "", "write a chrome://tracing event file named <prefix>.<pid> under $TMPDIR/razel.traces")
	cmd.Flags().StringVar(&workspace, "workspace", "", "base directory relative paths resolve against (default: current directory)")
	cmd.Flags().StringVar(&binDirFlag, "bin-dir", "", "override the output directory name")
	return cmd
}

type runOpts struct {
	taskFile  string
	jobs      int
	noCache   bool
	explain   bool
	traceFile string
	workspace string
	binDir    string
}

func runRazel(opts runOpts) error {
	if opts.traceFile != "" {
		if err := trace.Enable(opts.traceFile); err != nil {
			log.Printf("warning: trace: %v", err)
		}
	}

	binDir := config.BinDir
	if opts.binDir != "" {
		binDir = opts.binDir
	}
	s, err := schedulerAt(binDir)
	if err != nil {
		return err
	}
	if opts.workspace != "" {
		s.SetWorkspaceDir(opts.workspace)
	}
	s.WorkerThreads = opts.jobs
	s.Status = status.New(opts.jobs)

	// On SIGINT, force the status board to its final position so the
	// terminal isn't left with a half-redrawn block of lines; the
	// coordinator itself is given no chance to finish cleanly.
	oninterrupt.Register(func() { s.Status.Flush() })
	atexit.Register(func() error { return os.RemoveAll(s.SandboxRoot) })

	loaded, err := loadTasks(s, opts.taskFile)
	if err != nil {
		return err
	}
	if opts.explain {
		for _, cid := range loaded {
			cmd := s.GetCommand(cid)
			text, err := action.Explain(cmd, s.Files())
			if err != nil {
				log.Printf("warning: explain %s: %v", cmd.Name, err)
				continue
			}
			fmt.Printf("# %s\n%s\n", cmd.Name, text)
		}
	}

	if !opts.noCache {
		store, err := actioncache.Open(filepath.Join(config.CacheDir, "local"))
		if err != nil {
			log.Printf("warning: action cache unavailable, running uncached: %v", err)
		} else {
			defer store.Close()
			s.Cache = store
			s.CAS = store
		}
	}

	result, err := s.Run(context.Background())
	if err != nil {
		return xerrors.Errorf("run: %w", err)
	}
	fmt.Printf("%d succeeded, %d failed, %d not run\n", result.Succeeded, result.Failed, result.NotRun)
	if err := atexit.Run(); err != nil {
		log.Printf("warning: cleanup: %v", err)
	}
	if result.Failed > 0 {
		return xerrors.New("one or more commands failed")
	}
	return nil
}

// schedulerAt builds a Scheduler rooted at the process's current directory
// with outputs under binDir.
func schedulerAt(binDir string) (*scheduler.Scheduler, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, xerrors.Errorf("run: %w", err)
	}
	return scheduler.NewAt(cwd, binDir), nil
}

// loadTasks dispatches to the right internal/tasks parser by file
// extension and pushes every resulting task.
func loadTasks(s *scheduler.Scheduler, path string) ([]id.CommandId, error) {
	var ts []tasks.Task
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		ts, err = tasks.ParseCSV(path)
	case ".jsonl":
		ts, err = tasks.ParseJSONL(path)
	case ".textproto":
		ts, err = tasks.ParseTextproto(path)
	default:
		return nil, xerrors.Errorf("run: %s: unrecognized task file extension %q (want .csv, .jsonl, or .textproto)", path, ext)
	}
	if err != nil {
		return nil, xerrors.Errorf("run: %w", err)
	}

	ids := make([]id.CommandId, 0, len(ts))
	for _, t := range ts {
		cid, err := s.PushTask(t)
		if err != nil {
			return nil, xerrors.Errorf("run: push %s: %w", t.Name, err)
		}
		ids = append(ids, cid)
	}
	return ids, nil
}
