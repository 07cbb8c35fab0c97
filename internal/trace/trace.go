// Package trace implements structured compile-phase tracing (spec
// §A.2): one event per optimizer pass (including the closing
// required-columns pass), recorded during a single compile call and rendered on demand for verbose runs.
// Grounded on the teacher's annotation Collector
// (datalog/annotations/types.go), trimmed to this compiler's
// single-threaded, single-call concurrency model (spec §5): one Recorder
// is owned by one Compile call and never shared, so the teacher's
// locking around its event slice has no work to do here.
package trace

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Event is one recorded compile-phase transition.
type Event struct {
	Phase  string
	Before int
	After  int
	Detail string
	At     time.Time
}

// Recorder accumulates Events for one compile call. A nil *Recorder is
// valid and a no-op, so callers can pass one through unconditionally
// without a verbose/non-verbose branch at every call site.
type Recorder struct {
	enabled bool
	events  []Event
}

// NewRecorder returns a Recorder. When verbose is false, Record is a
// no-op and Events/Render return nothing, so the caller pays no
// allocation cost for tracing it never asked for.
func NewRecorder(verbose bool) *Recorder {
	if !verbose {
		return nil
	}
	return &Recorder{enabled: true, events: make([]Event, 0, 8)}
}

// Record appends one phase transition. Safe to call on a nil Recorder.
func (r *Recorder) Record(phase string, before, after int, detail string) {
	if r == nil || !r.enabled {
		return
	}
	r.events = append(r.events, Event{Phase: phase, Before: before, After: after, Detail: detail, At: time.Now()})
}

// Events returns the recorded events in order. Safe to call on a nil
// Recorder (returns nil).
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	return r.events
}

// Render formats the recorded events as plain text, one line per event,
// e.g. "optimize/dedup-projections: 14 -> 11 nodes (removed 3 duplicate
// projections)".
func (r *Recorder) Render() string {
	if r == nil || len(r.events) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range r.events {
		fmt.Fprintf(&b, "%s: %d -> %d nodes", e.Phase, e.Before, e.After)
		if e.Detail != "" {
			fmt.Fprintf(&b, " (%s)", e.Detail)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderANSI formats the recorded events with terminal coloring
// (mirroring the teacher's annotations.RelationRenderer convention):
// phase names in cyan, a shrinking node count in green, a growing or
// unchanged one in yellow.
func (r *Recorder) RenderANSI() string {
	if r == nil || len(r.events) == 0 {
		return ""
	}
	phaseColor := color.New(color.FgCyan)
	shrinkColor := color.New(color.FgGreen)
	steadyColor := color.New(color.FgYellow)

	var b strings.Builder
	for _, e := range r.events {
		countColor := steadyColor
		if e.After < e.Before {
			countColor = shrinkColor
		}
		b.WriteString(phaseColor.Sprint(e.Phase))
		b.WriteString(": ")
		b.WriteString(countColor.Sprintf("%d -> %d nodes", e.Before, e.After))
		if e.Detail != "" {
			fmt.Fprintf(&b, " (%s)", e.Detail)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
