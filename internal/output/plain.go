package output

import (
	"fmt"
	"io"
	"time"
)

const msRound = time.Millisecond

// PlainRenderer produces unformatted text output safe for piping.
type PlainRenderer struct {
	w io.Writer
}

func (r *PlainRenderer) RenderSummary(s Summary) {
	rep := s.Report
	if rep == nil {
		return
	}

	fmt.Fprintf(r.w, "=== utf8mb4-convert: Run Summary ===\n\n")
	fmt.Fprintf(r.w, "Run ID:        %s\n", rep.RunID)
	fmt.Fprintf(r.w, "Mode:          %s\n", mode(rep))
	if s.Addr != "" {
		fmt.Fprintf(r.w, "Server:        %s\n", s.Addr)
	}
	if s.Server != nil {
		fmt.Fprintf(r.w, "Version:       %s\n", s.Server.Version.String())
	}
	if s.Topology != nil {
		fmt.Fprintf(r.w, "Topology:      %s\n", s.Topology.Type)
		for _, w := range s.Topology.Warnings() {
			fmt.Fprintf(r.w, "Warning:       %s\n", w)
		}
	}
	fmt.Fprintf(r.w, "Bulk table:    %v\n", rep.BulkTable)
	fmt.Fprintf(r.w, "Printed:       %d\n", rep.Printed)
	fmt.Fprintf(r.w, "Executed:      %d\n", rep.Executed)
	fmt.Fprintf(r.w, "Duration:      %s\n", rep.Duration.Round(msRound))
	fmt.Fprintf(r.w, "Status:        %s\n", status(s.Err))
	fmt.Fprintln(r.w)

	fmt.Fprintf(r.w, "--- Stages ---\n")
	for _, st := range rep.Stages {
		fmt.Fprintf(r.w, "%-16s rows=%d statements=%d elapsed=%s\n", st.Name, st.Rows, st.Statements, st.Elapsed.Round(msRound))
	}
	for _, oc := range sortedOps(rep.Operations) {
		fmt.Fprintf(r.w, "%-16s %d\n", oc.Op, oc.Count)
	}

	if len(rep.ProblemColumns) > 0 {
		fmt.Fprintf(r.w, "\n--- Problem Columns ---\n")
		for _, p := range rep.ProblemColumns {
			fmt.Fprintf(r.w, "%s\n", p)
		}
	}

	if s.Err != nil {
		fmt.Fprintf(r.w, "\nERROR: %s\n", s.Err)
	}
}
