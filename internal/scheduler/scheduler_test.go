package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	dir := t.TempDir()
	s := NewAt(dir, "bin")
	s.CacheEnabled = false // no cache store wired; avoid the digest pass noise in these tests
	return s
}

func TestRunEmptySchedulerErrors(t *testing.T) {
	s := newTestScheduler(t)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("Run with no commands pushed succeeded, want error")
	}
}

func TestRunParallelFanOut(t *testing.T) {
	s := newTestScheduler(t)
	s.WorkerThreads = 2
	const n = 6 // 3 x worker_threads
	for i := 0; i < n; i++ {
		if _, err := s.PushCustomCommand(fmt.Sprintf("sleeper-%d", i), "sh",
			[]string{"-c", "sleep 0.2"}, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	start := time.Now()
	result, err := s.Run(context.Background())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if result.Succeeded != n {
		t.Errorf("Succeeded = %d, want %d", result.Succeeded, n)
	}
	if result.Failed != 0 {
		t.Errorf("Failed = %d, want 0", result.Failed)
	}
	// fully serial would take n*0.2s = 1.2s; two workers should finish in
	// about ceil(n/2)*0.2s = 0.6s. Give wide margins to stay robust in CI.
	if elapsed >= time.Duration(n)*200*time.Millisecond {
		t.Errorf("elapsed %v shows no sign of concurrency (serial bound %v)", elapsed, time.Duration(n)*200*time.Millisecond)
	}
}

func TestRunLinearChain(t *testing.T) {
	s := newTestScheduler(t)
	s.WorkerThreads = 4
	dir := filepath.Join(s.currentDir, "bin")

	outA := filepath.Join(dir, "a.out")
	outB := filepath.Join(dir, "b.out")
	outC := filepath.Join(dir, "c.out")

	if _, err := s.PushCustomCommand("A", "sh",
		[]string{"-c", fmt.Sprintf("printf a > %s", outA)}, nil, []string{"a.out"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PushCustomCommand("B", "sh",
		[]string{"-c", fmt.Sprintf("cat %s > %s && printf b >> %s", outA, outB, outB)},
		[]string{"a.out"}, []string{"b.out"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PushCustomCommand("C", "sh",
		[]string{"-c", fmt.Sprintf("cat %s > %s && printf c >> %s", outB, outC, outC)},
		[]string{"b.out"}, []string{"c.out"}); err != nil {
		t.Fatal(err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Succeeded != 3 || result.Failed != 0 {
		t.Fatalf("result = %+v, want all 3 succeeded", result)
	}
	got, err := os.ReadFile(outC)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abc" {
		t.Errorf("c.out content = %q, want %q (proves A ran before B before C)", got, "abc")
	}
}

func TestRunFailureBlocksDescendants(t *testing.T) {
	s := newTestScheduler(t)
	s.WorkerThreads = 2

	if _, err := s.PushCustomCommand("A", "sh", []string{"-c", "exit 1"}, nil, []string{"a.out"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PushCustomCommand("B", "sh", []string{"-c", "exit 0"},
		[]string{"a.out"}, []string{"b.out"}); err != nil {
		t.Fatal(err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0", result.Succeeded)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if result.NotRun != 1 {
		t.Errorf("NotRun = %d, want 1 (B should remain waiting)", result.NotRun)
	}
}

func TestPushDuplicateOutputRejected(t *testing.T) {
	s := newTestScheduler(t)

	if _, err := s.PushCustomCommand("first", "sh", nil, nil, []string{"dup.out"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.PushCustomCommand("second", "sh", nil, nil, []string{"dup.out"})
	if err == nil {
		t.Fatal("second command with a colliding output succeeded, want error")
	}
}
