package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCSVSkipsHeaderAndSplitsFields(t *testing.T) {
	path := writeTemp(t, "tasks.csv", `name,executable,args,inputs,outputs
compile,gcc,-c foo.c,foo.c,foo.o
`)
	got, err := ParseCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Task{{
		Name:       "compile",
		Executable: "gcc",
		Args:       []string{"-c", "foo.c"},
		Inputs:     []string{"foo.c"},
		Outputs:    []string{"foo.o"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSVNoHeader(t *testing.T) {
	path := writeTemp(t, "tasks.csv", "compile,gcc\n")
	got, err := ParseCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "compile" || got[0].Executable != "gcc" {
		t.Errorf("ParseCSV = %+v, want a single compile/gcc task", got)
	}
}

func TestParseCSVRejectsShortRow(t *testing.T) {
	path := writeTemp(t, "tasks.csv", "onlyname\n")
	if _, err := ParseCSV(path); err == nil {
		t.Fatal("ParseCSV of a row missing executable succeeded, want error")
	}
}

func TestParseJSONLSkipsBlankLines(t *testing.T) {
	path := writeTemp(t, "tasks.jsonl", `{"name":"compile","executable":"gcc","args":["-c","foo.c"],"inputs":["foo.c"],"outputs":["foo.o"],"sandbox":true}

`)
	got, err := ParseJSONL(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Task{{
		Name:       "compile",
		Executable: "gcc",
		Args:       []string{"-c", "foo.c"},
		Inputs:     []string{"foo.c"},
		Outputs:    []string{"foo.o"},
		Sandboxed:  true,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseJSONL mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSONLRejectsMalformedLine(t *testing.T) {
	path := writeTemp(t, "tasks.jsonl", "not json\n")
	if _, err := ParseJSONL(path); err == nil {
		t.Fatal("ParseJSONL of a malformed line succeeded, want error")
	}
}

func TestParseTextprotoReadsRepeatedStanzas(t *testing.T) {
	path := writeTemp(t, "tasks.textproto", `task {
  name: "compile"
  executable: "gcc"
  args: "-c"
  args: "foo.c"
  inputs: "foo.c"
  outputs: "foo.o"
  sandbox: true
}
task {
  name: "link"
  executable: "ld"
  inputs: "foo.o"
  outputs: "a.out"
}
`)
	got, err := ParseTextproto(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Task{
		{
			Name:       "compile",
			Executable: "gcc",
			Args:       []string{"-c", "foo.c"},
			Inputs:     []string{"foo.c"},
			Outputs:    []string{"foo.o"},
			Sandboxed:  true,
		},
		{
			Name:       "link",
			Executable: "ld",
			Inputs:     []string{"foo.o"},
			Outputs:    []string{"a.out"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseTextproto mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTextprotoRejectsMissingFields(t *testing.T) {
	path := writeTemp(t, "tasks.textproto", `task {
  name: "compile"
}
`)
	if _, err := ParseTextproto(path); err == nil {
		t.Fatal("ParseTextproto of a task missing executable succeeded, want error")
	}
}
