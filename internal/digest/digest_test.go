package digest

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	repb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
)

func TestForFileKnownVector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sixteen.bin")
	content := make([]byte, 16)
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	const want = "be45cb2605bf36bebde684841a28f0fd43c69850a3dce5fedba69928ee3a8991"
	if got.Hash != want {
		t.Errorf("Hash = %s, want %s", got.Hash, want)
	}
	if got.SizeBytes != 16 {
		t.Errorf("SizeBytes = %d, want 16", got.SizeBytes)
	}
}

func TestForFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	viaFile, err := ForFile(path)
	if err != nil {
		t.Fatal(err)
	}

	reread, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(reread)) != viaFile.SizeBytes {
		t.Fatalf("size mismatch: read %d bytes, digest reports %d", len(reread), viaFile.SizeBytes)
	}
	if len(reread) != len(content) {
		t.Fatalf("unexpected file length %d, want %d", len(reread), len(content))
	}
	sum := sha256.Sum256(reread)
	if got := hexDigest(sum[:]); got != viaFile.Hash {
		t.Errorf("in-memory hash %s, streamed hash %s", got, viaFile.Hash)
	}
}

func TestForFileMissing(t *testing.T) {
	if _, err := ForFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ForFile(missing) succeeded, want error")
	}
}

func TestForMessageDeterministic(t *testing.T) {
	cmd := &repb.Command{
		Arguments:   []string{"gcc", "-c", "foo.c"},
		OutputPaths: []string{"foo.o"},
	}
	a, err := ForMessage(cmd)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ForMessage(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("ForMessage not deterministic: %+v != %+v", a, b)
	}

	other := &repb.Command{
		Arguments:   []string{"gcc", "-c", "bar.c"},
		OutputPaths: []string{"bar.o"},
	}
	c, err := ForMessage(other)
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("distinct commands produced the same digest")
	}
}
