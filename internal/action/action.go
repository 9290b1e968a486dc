// Package action builds the canonical Action record a command's work is
// identified by for caching purposes: a Command record (arguments, empty
// environment, sorted output paths) and an input root Directory record
// (one FileNode per input, sorted by name, carrying its pre-computed
// digest). Both conform to the Remote Execution API v2 schema, using the
// real generated Go types from bazelbuild/remote-apis so the wire encoding
// this package hashes is exactly the one real REAPI clients and servers
// would produce.
package action

import (
	"sort"

	repb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"github.com/protocolbuffers/txtpbfmt/parser"
	"golang.org/x/xerrors"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/digest"
	"github.com/razel-build/razel/internal/file"
)

// Key identifies a command's work: the digest of its canonical Action
// record. Two commands with identical arguments, output paths, and input
// digests produce bit-identical Keys.
type Key = digest.Blob

// Action is the canonical, REAPI-shaped description of a command's work.
type Action struct {
	CommandDigest   digest.Blob
	InputRootDigest digest.Blob
}

// Proto returns the REAPI wire representation of a.
func (a Action) Proto() *repb.Action {
	return &repb.Action{
		CommandDigest:   a.CommandDigest.Proto(),
		InputRootDigest: a.InputRootDigest.Proto(),
	}
}

// BuildCommand renders cmd's canonical Command record: arguments with the
// executable first, no environment variables (razel commands do not
// currently declare any), sorted and deduplicated output paths, and an
// empty working directory (sandboxing, when used, makes the working
// directory irrelevant to the cache key).
func BuildCommand(cmd *command.Command, reg *file.Registry) *repb.Command {
	outputs := make([]string, 0, len(cmd.Outputs))
	for _, fid := range cmd.Outputs {
		outputs = append(outputs, reg.Get(fid).Path)
	}
	sort.Strings(outputs)
	outputs = dedupSorted(outputs)

	return &repb.Command{
		Arguments:        cmd.Executor.ArgsWithExecutable(),
		OutputPaths:      outputs,
		WorkingDirectory: "",
	}
}

// BuildInputRoot renders cmd's input Directory record. Every input file
// must already carry a digest; a missing one is a program bug (the
// scheduler runs the digest pass before any command executes), so this
// panics rather than returning an error.
func BuildInputRoot(cmd *command.Command, reg *file.Registry) *repb.Directory {
	files := make([]*repb.FileNode, 0, len(cmd.Inputs))
	for _, fid := range cmd.Inputs {
		f := reg.Get(fid)
		if f.Digest == nil {
			panic("action: input file " + f.Path + " has no digest")
		}
		files = append(files, &repb.FileNode{
			Name:   f.Path,
			Digest: f.Digest.Proto(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return &repb.Directory{Files: files}
}

// For synthesizes the Action record and its key for cmd. It does not
// perform any cache lookup; it only produces a deterministic identifier.
func For(cmd *command.Command, reg *file.Registry) (Action, Key, error) {
	cmdRecord := BuildCommand(cmd, reg)
	cmdDigest, err := digest.ForMessage(cmdRecord)
	if err != nil {
		return Action{}, Key{}, err
	}

	inputRoot := BuildInputRoot(cmd, reg)
	inputRootDigest, err := digest.ForMessage(inputRoot)
	if err != nil {
		return Action{}, Key{}, err
	}

	a := Action{CommandDigest: cmdDigest, InputRootDigest: inputRootDigest}
	key, err := digest.ForMessage(a.Proto())
	if err != nil {
		return Action{}, Key{}, err
	}
	return a, key, nil
}

// Explain renders cmd's canonical Command and input-root Directory records
// as reformatted textproto, for `razel run -explain`. Each record marshals
// through prototext (the real message encoder), then gets reformatted with
// txtpbfmt's generic parser/pretty-printer to keep the output canonically
// indented.
func Explain(cmd *command.Command, reg *file.Registry) (string, error) {
	cmdText, err := explainOne(BuildCommand(cmd, reg))
	if err != nil {
		return "", err
	}
	inputText, err := explainOne(BuildInputRoot(cmd, reg))
	if err != nil {
		return "", err
	}
	return "# command\n" + cmdText + "\n# input_root\n" + inputText, nil
}

func explainOne(m proto.Message) (string, error) {
	b, err := prototext.MarshalOptions{Multiline: true}.Marshal(m)
	if err != nil {
		return "", xerrors.Errorf("action: explain: %w", err)
	}
	nodes, err := parser.Parse(b)
	if err != nil {
		return string(b), nil
	}
	return parser.Pretty(nodes, 0), nil
}

func dedupSorted(sorted []string) []string {
	out := sorted[:0]
	var prev string
	for i, s := range sorted {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}
