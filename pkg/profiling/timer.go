package profiling

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Stopper ends a span.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	children []*span
}

// recorder nests spans by start order: a span started while another is open
// becomes its child. Spans are stopped in reverse start order.
type recorder struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	top     []*span
	open    []*span
}

var global recorder

type stopFunc func()

func (f stopFunc) Stop() { f() }

var noop = stopFunc(func() {})

// Enable turns on span recording. Until then Start is a no-op.
func Enable() {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.enabled {
		global.enabled = true
		global.started = time.Now()
	}
}

// Reset disables recording and drops recorded spans.
func Reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.enabled = false
	global.started = time.Time{}
	global.top = nil
	global.open = nil
}

// Start begins a span, e.g. Start("serve/workspace"). Stop the returned
// Stopper when the stage ends.
func Start(name string) Stopper {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.enabled {
		return noop
	}

	s := &span{name: name, start: time.Now()}
	if n := len(global.open); n > 0 {
		parent := global.open[n-1]
		parent.children = append(parent.children, s)
	} else {
		global.top = append(global.top, s)
	}
	global.open = append(global.open, s)

	var once sync.Once
	return stopFunc(func() {
		once.Do(func() { global.stop(s) })
	})
}

func (r *recorder) stop(s *span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.duration = time.Since(s.start)
	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i] == s {
			r.open = r.open[:i]
			return
		}
	}
}

// Summarize writes the span tree with each span's share of the elapsed
// time since Enable. Nothing is written while recording is off.
func Summarize(w io.Writer) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.enabled {
		return
	}

	total := time.Since(global.started)
	fmt.Fprintf(w, "\nTiming (total %v)\n", total.Round(time.Millisecond))
	for _, s := range global.top {
		writeSpan(w, s, 0, total)
	}
}

func writeSpan(w io.Writer, s *span, depth int, total time.Duration) {
	pct := 0.0
	if total > 0 {
		pct = float64(s.duration) / float64(total) * 100
	}
	fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n", strings.Repeat("  ", depth), s.name, s.duration.Round(100*time.Microsecond), pct)
	for _, c := range s.children {
		writeSpan(w, c, depth+1, total)
	}
}
