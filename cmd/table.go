package main

import (
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/ratefit/internal/opt"
)

// iterTable renders optimizer events as a human-readable table. One
// header block is printed per outer iteration, then one row per inner
// gradient step; failures print N/A for the gradient plus an
// annotation line. Purely observational.
type iterTable struct {
	w io.Writer
}

func newIterTable(w io.Writer) *iterTable {
	return &iterTable{w: w}
}

// Observe is an opt.Observer.
func (t *iterTable) Observe(ev opt.Event) {
	switch ev.Kind {
	case opt.EventOuterStart:
		fmt.Fprintf(t.w, "\nCommencing optimisation routine:\n   h = %-12.6g\n   β = %-12.6g\n\n", ev.Stencil, ev.X)
		fmt.Fprintf(t.w, "%13s|%18s|%19s|\n", "β      ", "MSE        ", "‖∇ₕMSE‖      ")
		fmt.Fprintln(t.w, "==============================================================")

	case opt.EventIteration:
		fmt.Fprintf(t.w, "%+13.10f|%18.10f|%19.10f|\n", ev.X, ev.Loss, math.Abs(ev.Grad))

	case opt.EventStencilFailure:
		fmt.Fprintf(t.w, "%+13.10f|%18.10f|%19s|\n", ev.X, ev.Loss, "N/A")
		fmt.Fprintf(t.w, "\nStencil Failure: %s\n", ev.Msg)

	case opt.EventLineSearchFailure:
		fmt.Fprintf(t.w, "%+13.10f|%18.10f|%19s|\n", ev.X, ev.Loss, "N/A")
		fmt.Fprintf(t.w, "\nLine Search Failure: %s\n", ev.Msg)

	case opt.EventAccepted:
		fmt.Fprintf(t.w, "accepted: β = %-+12.10g (moved %.3g)\n", ev.X, ev.Diff)

	case opt.EventConverged:
		fmt.Fprintf(t.w, "converged: β = %-+12.10g (moved %.3g)\n", ev.X, ev.Diff)
	}
}
