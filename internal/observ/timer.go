// Package observ times the stages of archive processing so car can report
// where the time went.
package observ

import (
	"fmt"
	"strings"
	"time"
)

type phase struct {
	name string
	dur  time.Duration
	note string
}

// Timer accumulates named processing stages in the order they start.
type Timer struct {
	phases []phase
}

// NewTimer returns an empty timer.
func NewTimer() *Timer {
	return &Timer{}
}

// Phase starts timing a stage and returns a stop function that records the
// elapsed time with an optional note. Each stop function must be called at
// most once.
func (t *Timer) Phase(name string) func(note string) {
	idx := len(t.phases)
	t.phases = append(t.phases, phase{name: name})
	start := time.Now()
	return func(note string) {
		p := &t.phases[idx]
		p.dur = time.Since(start)
		p.note = note
	}
}

// Summary renders the recorded stages and their total as a human-readable
// block, one line per stage.
func (t *Timer) Summary() string {
	var b strings.Builder
	b.WriteString("timings:\n")
	var total time.Duration
	for _, p := range t.phases {
		total += p.dur
		fmt.Fprintf(&b, "  %-12s %8.2f ms", p.name, millis(p.dur))
		if p.note != "" {
			b.WriteString("  (" + p.note + ")")
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %-12s %8.2f ms\n", "total", millis(total))
	return b.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
