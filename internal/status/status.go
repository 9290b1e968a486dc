// Package status renders an in-place, per-worker terminal status display
// via cursor-up escape sequences, generalized to an arbitrary number of
// tracked lines.
package status

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// IsTerminal reports whether stdout is attached to a terminal, checked once
// at process start.
var IsTerminal = func() bool {
	_, err := unix.IoctlGetTermios(int(os.Stdout.Fd()), unix.TCGETS)
	return err == nil
}()

// Board is a fixed set of status lines, one per worker slot plus a summary
// line at index 0, redrawn in place when attached to a terminal.
type Board struct {
	mu         sync.Mutex
	lines      []string
	lastRedraw time.Time
}

// New creates a Board with n worker lines plus a summary line.
func New(n int) *Board {
	return &Board{lines: make([]string, n+1)}
}

// Set updates line idx (0 is the summary line, 1..n are worker slots) and
// redraws, throttled to once per 100ms.
func (b *Board) Set(idx int, line string) {
	if !IsTerminal {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if diff := len(b.lines[idx]) - len(line); diff > 0 {
		line += strings.Repeat(" ", diff)
	}
	b.lines[idx] = line
	if time.Since(b.lastRedraw) < 100*time.Millisecond {
		return
	}
	b.redrawLocked()
}

// Flush force-redraws regardless of the throttle, meant for the final state
// after a run completes.
func (b *Board) Flush() {
	if !IsTerminal {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.redrawLocked()
}

func (b *Board) redrawLocked() {
	b.lastRedraw = time.Now()
	for _, line := range b.lines {
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(b.lines))
}
