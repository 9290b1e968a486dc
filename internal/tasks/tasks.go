// Package tasks ingests external task descriptions — CSV, JSONL, and a
// textproto batch format — into Task values ready for Scheduler.PushTask.
// The core scheduler treats these formats only at the Task interface level;
// everything format-specific lives here.
package tasks

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/protocolbuffers/txtpbfmt/ast"
	"github.com/protocolbuffers/txtpbfmt/parser"
	"golang.org/x/xerrors"
)

// Task is the format-agnostic shape every parser below produces.
// internal/scheduler's Scheduler.PushTask turns it into a command.Builder
// and resolves it the same way Scheduler.PushCustomCommand does.
type Task struct {
	Name       string
	Executable string
	Args       []string
	Inputs     []string
	Outputs    []string
	Sandboxed  bool
}

// ParseCSV reads rows of the form
// name,executable,args (space-separated),inputs (space-separated),outputs (space-separated)
// A leading header row ("name,executable,..." literally) is skipped.
func ParseCSV(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("tasks: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var tasks []Task
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("tasks: %s: %w", path, err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(rec[0], "name") {
				continue
			}
		}
		if len(rec) < 2 {
			return nil, xerrors.Errorf("tasks: %s: row %v: want at least name,executable", path, rec)
		}
		t := Task{Name: rec[0], Executable: rec[1]}
		if len(rec) > 2 {
			t.Args = splitFields(rec[2])
		}
		if len(rec) > 3 {
			t.Inputs = splitFields(rec[3])
		}
		if len(rec) > 4 {
			t.Outputs = splitFields(rec[4])
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func splitFields(s string) []string {
	return strings.Fields(s)
}

// jsonTask is the on-disk shape for one line of a JSONL task manifest.
type jsonTask struct {
	Name       string   `json:"name"`
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	Inputs     []string `json:"inputs"`
	Outputs    []string `json:"outputs"`
	Sandbox    bool     `json:"sandbox"`
}

// ParseJSONL reads one JSON task object per line, blank lines ignored.
func ParseJSONL(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("tasks: %w", err)
	}
	defer f.Close()

	var tasks []Task
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var jt jsonTask
		if err := json.Unmarshal([]byte(line), &jt); err != nil {
			return nil, xerrors.Errorf("tasks: %s:%d: %w", path, lineNo, err)
		}
		tasks = append(tasks, Task{
			Name:       jt.Name,
			Executable: jt.Executable,
			Args:       jt.Args,
			Inputs:     jt.Inputs,
			Outputs:    jt.Outputs,
			Sandboxed:  jt.Sandbox,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Errorf("tasks: %s: %w", path, err)
	}
	return tasks, nil
}

// ParseTextproto reads a sequence of `task { ... }` stanzas, generalized
// from one message per file to repeated sibling blocks, parsed generically
// (no compiled .proto schema) with txtpbfmt. Example:
//
//	task {
//	  name: "compile"
//	  executable: "gcc"
//	  args: "-c"
//	  args: "foo.c"
//	  inputs: "foo.c"
//	  outputs: "foo.o"
//	}
func ParseTextproto(path string) ([]Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("tasks: %w", err)
	}
	nodes, err := parser.Parse(b)
	if err != nil {
		return nil, xerrors.Errorf("tasks: %s: %w", path, err)
	}

	var tasks []Task
	for _, n := range ast.GetFromPath(nodes, []string{"task"}) {
		t := Task{
			Name:       fieldValue(n, "name"),
			Executable: fieldValue(n, "executable"),
			Args:       fieldValues(n, "args"),
			Inputs:     fieldValues(n, "inputs"),
			Outputs:    fieldValues(n, "outputs"),
		}
		if v := fieldValue(n, "sandbox"); v != "" {
			t.Sandboxed, _ = strconv.ParseBool(v)
		}
		if t.Name == "" || t.Executable == "" {
			return nil, xerrors.Errorf("tasks: %s: task missing name or executable", path)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// fieldValue returns the unquoted value of the first scalar field named
// name among node's children, or "" if absent.
func fieldValue(node *ast.Node, name string) string {
	for _, c := range node.Children {
		if c.Name == name && len(c.Values) > 0 {
			return unquote(c.Values[0].Value)
		}
	}
	return ""
}

// fieldValues returns the unquoted values of every field named name among
// node's children, in file order — the textproto idiom for a repeated
// scalar field.
func fieldValues(node *ast.Node, name string) []string {
	var out []string
	for _, c := range node.Children {
		if c.Name == name {
			for _, v := range c.Values {
				out = append(out, unquote(v.Value))
			}
		}
	}
	return out
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}
