// Package actioncache declares the ActionCache and ContentAddressableStorage
// contracts and ships one concrete local implementation. The core scheduler
// does not wire these in unconditionally; the integration point razel uses
// them from is internal/scheduler's optional cache-aware executor wrapper,
// after action-key synthesis and before executor.Exec, skippable with
// `-no-cache`.
package actioncache

import (
	"context"

	"github.com/razel-build/razel/internal/action"
	"github.com/razel-build/razel/internal/digest"
)

// Result is what gets cached against an action.Key: the exit code and the
// digest of every declared output, keyed by its workspace-relative path.
// The output bytes themselves live in a ContentAddressableStorage, found by
// that digest.
type Result struct {
	ExitCode      int
	OutputDigests map[string]digest.Blob
}

// ActionCache maps an action.Key (like a gRPC GetActionResult /
// UpdateActionResult pair in the real Remote Execution API) to a
// previously observed Result.
type ActionCache interface {
	GetResult(ctx context.Context, key action.Key) (Result, bool, error)
	PushResult(ctx context.Context, key action.Key, result Result) error
}

// ContentAddressableStorage maps a digest (like BatchReadBlobs /
// BatchUpdateBlobs) to the bytes it addresses.
type ContentAddressableStorage interface {
	GetBlob(ctx context.Context, d digest.Blob) ([]byte, bool, error)
	PushBlob(ctx context.Context, d digest.Blob, blob []byte) error
}
