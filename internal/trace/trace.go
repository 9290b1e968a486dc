// Package trace writes Chrome-tracing-format events (a flat JSON array of
// duration events) for razel's command dispatch/completion, so a run can be
// loaded into chrome://tracing to see the concurrency actually achieved.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = io.Discard
)

// Sink writes all following Events as a Chrome trace event file into w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	w.Write([]byte{'['}) // the closing ']' is optional in this format
}

// Enable is a convenience wrapper creating a file at
// $TMPDIR/razel.traces/prefix.$PID.
func Enable(prefix string) error {
	fn := filepath.Join(os.TempDir(), "razel.traces", fmt.Sprintf("%s.%d", prefix, os.Getpid()))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	Sink(f)
	return nil
}

type pendingEvent struct {
	Name           string      `json:"name"`
	Type           string      `json:"ph"`
	ClockTimestamp uint64      `json:"ts"`
	Duration       uint64      `json:"dur,omitempty"`
	Pid            uint64      `json:"pid"`
	Tid            uint64      `json:"tid"`
	Args           interface{} `json:"args,omitempty"`

	start time.Time
}

func (pe *pendingEvent) write() {
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink.Write(append(b, ','))
}

// Span starts a duration event named name on track tid and returns a
// function that closes it. Call the returned function exactly once.
func Span(name string, tid int) func() {
	pe := &pendingEvent{
		Name:           name,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(tid),
		start:          time.Now(),
	}
	return func() {
		pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
		pe.write()
	}
}
