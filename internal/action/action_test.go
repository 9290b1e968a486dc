package action

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/digest"
	"github.com/razel-build/razel/internal/executor"
	"github.com/razel-build/razel/internal/file"
	"github.com/razel-build/razel/internal/id"
)

func buildTestCommand(t *testing.T, reg *file.Registry) *command.Command {
	t.Helper()
	b := command.NewBuilder("compile")
	if err := b.Inputs([]string{"foo.c", "bar.h"}, reg); err != nil {
		t.Fatal(err)
	}
	if err := b.Outputs([]string{"foo.o"}, reg, func(id.CommandId) string { return "" }); err != nil {
		t.Fatal(err)
	}
	b.WithExecutor(executor.NewCustomCommand("gcc", []string{"-c", "foo.c", "-o", "foo.o"}, false))
	cmd := b.Build(0)

	for _, fid := range cmd.Inputs {
		reg.Get(fid).Digest = &digest.Blob{Hash: strings.Repeat("a", 64), SizeBytes: 1}
	}
	return &cmd
}

func TestBuildCommandSortsAndDedupsOutputs(t *testing.T) {
	dir := t.TempDir()
	reg := file.NewRegistry(dir, "bin")
	cmd := buildTestCommand(t, reg)
	extra, err := reg.OutputFile("a.o", func(id.CommandId) string { return "" })
	if err != nil {
		t.Fatal(err)
	}
	// Unsorted, with foo.o listed twice.
	cmd.Outputs = append(cmd.Outputs, extra, cmd.Outputs[0])

	rec := BuildCommand(cmd, reg)
	want := []string{"bin/a.o", "bin/foo.o"}
	if diff := cmp.Diff(want, rec.OutputPaths); diff != "" {
		t.Errorf("OutputPaths mismatch (-want +got):\n%s", diff)
	}
	if rec.WorkingDirectory != "" {
		t.Errorf("WorkingDirectory = %q, want empty", rec.WorkingDirectory)
	}
}

func TestBuildInputRootSortsByName(t *testing.T) {
	dir := t.TempDir()
	reg := file.NewRegistry(dir, "bin")
	cmd := buildTestCommand(t, reg)

	root := BuildInputRoot(cmd, reg)
	if len(root.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(root.Files))
	}
	if root.Files[0].Name >= root.Files[1].Name {
		t.Errorf("Files not sorted: %q then %q", root.Files[0].Name, root.Files[1].Name)
	}
}

func TestForIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	reg := file.NewRegistry(dir, "bin")
	cmd := buildTestCommand(t, reg)

	_, keyA, err := For(cmd, reg)
	if err != nil {
		t.Fatal(err)
	}
	_, keyB, err := For(cmd, reg)
	if err != nil {
		t.Fatal(err)
	}
	if keyA != keyB {
		t.Errorf("For(cmd) produced different keys across calls: %v vs %v", keyA, keyB)
	}
}

func TestForDiffersOnArgumentChange(t *testing.T) {
	dir := t.TempDir()
	reg := file.NewRegistry(dir, "bin")
	cmd := buildTestCommand(t, reg)
	_, keyA, err := For(cmd, reg)
	if err != nil {
		t.Fatal(err)
	}

	cmd.Executor = executor.NewCustomCommand("gcc", []string{"-c", "foo.c", "-O2", "-o", "foo.o"}, false)
	_, keyB, err := For(cmd, reg)
	if err != nil {
		t.Fatal(err)
	}
	if keyA == keyB {
		t.Error("For(cmd) produced the same key after changing the command's arguments")
	}
}

func TestExplainProducesReadableTextproto(t *testing.T) {
	dir := t.TempDir()
	reg := file.NewRegistry(dir, "bin")
	cmd := buildTestCommand(t, reg)

	got, err := Explain(cmd, reg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# command", "# input_root", "gcc"} {
		if !strings.Contains(got, want) {
			t.Errorf("Explain output missing %q:\n%s", want, got)
		}
	}
}
