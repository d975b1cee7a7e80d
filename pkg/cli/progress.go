package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressReporter is fed by loops that process a known number of items.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

const barWidth = 30

// Bar redraws a one-line bar in place with carriage returns.
type Bar struct {
	w    io.Writer
	unit string

	mu    sync.Mutex
	done  int64
	total int64
	since time.Time
}

// NewProgressReporter returns a Bar drawing to w (stderr when nil). Files
// that are not terminals get a no-op reporter.
func NewProgressReporter(w io.Writer, unit string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	if f, ok := w.(*os.File); ok && !IsTerminal(f) {
		return noProgress{}
	}
	if unit == "" {
		unit = "items"
	}
	return &Bar{w: w, unit: unit}
}

// IsTerminal reports whether f is attached to a terminal, Cygwin ptys
// included.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (b *Bar) Start(total int64) {
	b.mu.Lock()
	b.total, b.done, b.since = total, 0, time.Now()
	b.draw()
	b.mu.Unlock()
}

func (b *Bar) Update(current int64) {
	b.mu.Lock()
	b.done = current
	b.draw()
	b.mu.Unlock()
}

// Finish fills the bar and moves to the next line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.total <= 0 {
		return
	}
	b.done = b.total
	b.draw()
	io.WriteString(b.w, "\n")
}

func (b *Bar) Error(err error) {
	b.mu.Lock()
	fmt.Fprintf(b.w, "\nerror: %v\n", err)
	b.mu.Unlock()
}

func (b *Bar) draw() {
	if b.total <= 0 {
		return
	}
	done := min(max(b.done, 0), b.total)
	n := int(done * barWidth / b.total)
	fmt.Fprintf(b.w, "\r[%s%s] %d/%d %s %3d%% %s",
		strings.Repeat("=", n), strings.Repeat(" ", barWidth-n),
		done, b.total, b.unit, done*100/b.total,
		time.Since(b.since).Round(time.Millisecond))
}

type noProgress struct{}

func (noProgress) Start(int64)  {}
func (noProgress) Update(int64) {}
func (noProgress) Finish()      {}
func (noProgress) Error(error)  {}
