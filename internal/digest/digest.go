// Package digest computes the content-addresses used throughout razel: a
// streaming SHA-256 over file bytes, and a deterministic SHA-256 over the
// canonical protobuf encoding of the Remote Execution API v2 messages
// (Command, Directory, Action) that internal/action builds.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/xerrors"
	"google.golang.org/protobuf/proto"

	repb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
)

// bufSize is the chunk size used while streaming a file through the
// hasher. Any fixed size works; this one keeps a handful of in-flight
// digest goroutines from holding much memory at once.
const bufSize = 64 * 1024

// Blob is a content-address: the lowercase hex SHA-256 of some bytes, plus
// their length. Two Blobs are equal iff both fields match.
type Blob struct {
	Hash      string
	SizeBytes int64
}

// Proto returns the REAPI wire representation of d.
func (d Blob) Proto() *repb.Digest {
	return &repb.Digest{Hash: d.Hash, SizeBytes: d.SizeBytes}
}

func hexDigest(sum []byte) string {
	return hex.EncodeToString(sum)
}

// ForFile streams path through SHA-256 using a fixed-size buffer, never
// holding the whole file in memory. It fails if path cannot be opened or
// read; the caller decides whether that is fatal.
func ForFile(path string) (Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return Blob{}, xerrors.Errorf("digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, bufSize)
	var size int64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Blob{}, xerrors.Errorf("digest %s: %w", path, err)
		}
	}
	return Blob{Hash: hexDigest(h.Sum(nil)), SizeBytes: size}, nil
}

// ForMessage returns the digest of m's canonical, deterministic protobuf
// encoding. Determinism (stable field order for a given set of populated
// fields) is required so that two logically identical messages hash
// identically; the caller is responsible for sorting any repeated fields
// whose order is not itself meaningful (see internal/action).
func ForMessage(m proto.Message) (Blob, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	if err != nil {
		return Blob{}, xerrors.Errorf("digest: marshal: %w", err)
	}
	sum := sha256.Sum256(b)
	return Blob{Hash: hexDigest(sum[:]), SizeBytes: int64(len(b))}, nil
}
