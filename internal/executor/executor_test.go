package executor

import (
	"context"
	"testing"
)

func TestCustomCommandExecSuccess(t *testing.T) {
	c := NewCustomCommand("true", nil, false)
	res := c.Exec(context.Background(), "")
	if !res.Success() {
		t.Errorf("Success() = false, want true: %v", res)
	}
}

func TestCustomCommandExecFailure(t *testing.T) {
	c := NewCustomCommand("sh", []string{"-c", "exit 3"}, false)
	res := c.Exec(context.Background(), "")
	if res.Success() {
		t.Error("Success() = true for an exit-3 command, want false")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewCustomCommand("sh", []string{"-c", "true"}, true)
	clone := c.Clone().(*CustomCommand)
	clone.Args[0] = "mutated"
	if c.Args[0] == "mutated" {
		t.Error("mutating the clone's Args mutated the original's backing array")
	}
	if clone.Sandboxed != c.Sandboxed {
		t.Errorf("Sandboxed = %v, want %v", clone.Sandboxed, c.Sandboxed)
	}
}

func TestArgsWithExecutablePrependsExecutable(t *testing.T) {
	c := NewCustomCommand("gcc", []string{"-c", "foo.c"}, false)
	got := c.ArgsWithExecutable()
	want := []string{"gcc", "-c", "foo.c"}
	if len(got) != len(want) {
		t.Fatalf("ArgsWithExecutable() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ArgsWithExecutable()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
