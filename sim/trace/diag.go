package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Diagnostics writes operator-facing trace lines (BBV dumps, boundary info,
// history queue contents, chosen mode). The format is not a contract.
// A nil *Diagnostics discards everything.
type Diagnostics struct {
	w           io.Writer
	plain       *color.Color
	detailed    *color.Color
	fastForward *color.Color
}

// NewDiagnostics creates a Diagnostics stream. Colouring is applied only when
// colored is true, independent of whether w is a terminal.
func NewDiagnostics(w io.Writer, colored bool) *Diagnostics {
	d := &Diagnostics{
		w:           w,
		plain:       color.New(color.FgCyan),
		detailed:    color.New(color.FgYellow, color.Bold),
		fastForward: color.New(color.FgGreen),
	}
	for _, c := range []*color.Color{d.plain, d.detailed, d.fastForward} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return d
}

// GlobalBBV dumps a region BBV, separating thread slots with '|'.
func (d *Diagnostics) GlobalBBV(bbv []uint64, width int) {
	if d == nil || d.w == nil {
		return
	}
	var b strings.Builder
	b.WriteString("BBV:")
	for i, v := range bbv {
		fmt.Fprintf(&b, " %d", v)
		if width > 0 && (i+1)%width == 0 {
			b.WriteString(" |")
		}
	}
	fmt.Fprintln(d.w, b.String())
}

// Boundary reports a barrier-start event.
func (d *Diagnostics) Boundary(region uint64, pc uint64, threadID int) {
	if d == nil || d.w == nil {
		return
	}
	d.plain.Fprintf(d.w, "Barrier %d, Start PC %#x, Thread ID %d\n", region, pc, threadID)
}

// HistoryQueue reports the history window after a push.
func (d *Diagnostics) HistoryQueue(queue []uint64) {
	if d == nil || d.w == nil {
		return
	}
	fmt.Fprintf(d.w, "History Queue: %v\n", queue)
}

// Representative reports the resolved representative of a region.
func (d *Diagnostics) Representative(region, rep uint64) {
	if d == nil || d.w == nil {
		return
	}
	fmt.Fprintf(d.w, "Representative region Id for region %d: %d\n", region, rep)
}

// Mode reports the mode chosen for the region just started.
func (d *Diagnostics) Mode(m Mode) {
	if d == nil || d.w == nil {
		return
	}
	switch m {
	case ModeDetailed:
		d.detailed.Fprintln(d.w, "Running a detailed simulation")
	case ModeFastForward:
		d.fastForward.Fprintln(d.w, "Fast forwarding")
	default:
		fmt.Fprintln(d.w, "Mode undecided")
	}
}

// Finalized reports the statistics of a finalized region.
func (d *Diagnostics) Finalized(r *RegionRecord) {
	if d == nil || d.w == nil {
		return
	}
	fmt.Fprintf(d.w, "IPC: %g, Simulation time: %d, Total Instructions: %d for region %d\n\n",
		r.IPC, r.ActualTime, r.TotalInstructions, r.RegionID)
}
