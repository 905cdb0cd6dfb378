package output

import (
	"fmt"
	"io"
)

// MarkdownRenderer produces markdown output for change tickets.
type MarkdownRenderer struct {
	w io.Writer
}

func (r *MarkdownRenderer) RenderSummary(s Summary) {
	rep := s.Report
	if rep == nil {
		return
	}

	fmt.Fprintf(r.w, "# utf8mb4-convert: Run Summary\n\n")
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Run ID | `%s` |\n", rep.RunID)
	fmt.Fprintf(r.w, "| Mode | **%s** |\n", mode(rep))
	if s.Addr != "" {
		fmt.Fprintf(r.w, "| Server | `%s` |\n", s.Addr)
	}
	if s.Server != nil {
		fmt.Fprintf(r.w, "| MySQL version | %s |\n", s.Server.Version.String())
	}
	if s.Topology != nil {
		fmt.Fprintf(r.w, "| Topology | %s |\n", s.Topology.Type)
	}
	fmt.Fprintf(r.w, "| Printed | %d |\n", rep.Printed)
	fmt.Fprintf(r.w, "| Executed | %d |\n", rep.Executed)
	fmt.Fprintf(r.w, "| Duration | %s |\n", rep.Duration.Round(msRound))
	fmt.Fprintf(r.w, "| Status | %s |\n\n", status(s.Err))

	fmt.Fprintf(r.w, "## Stages\n\n")
	fmt.Fprintf(r.w, "| Stage | Rows | Statements | Elapsed |\n|---|---|---|---|\n")
	for _, st := range rep.Stages {
		fmt.Fprintf(r.w, "| %s | %d | %d | %s |\n", st.Name, st.Rows, st.Statements, st.Elapsed.Round(msRound))
	}
	fmt.Fprintln(r.w)

	if len(rep.ProblemColumns) > 0 {
		fmt.Fprintf(r.w, "## ⚠ Problem Columns\n\n")
		for _, p := range rep.ProblemColumns {
			fmt.Fprintf(r.w, "- `%s`\n", p)
		}
		fmt.Fprintln(r.w)
	}

	if s.Topology != nil {
		if warnings := s.Topology.Warnings(); len(warnings) > 0 {
			fmt.Fprintf(r.w, "## ⚠ Topology\n\n")
			for _, w := range warnings {
				fmt.Fprintf(r.w, "- %s\n", w)
			}
			fmt.Fprintln(r.w)
		}
	}

	if s.Err != nil {
		fmt.Fprintf(r.w, "## ❌ Error\n\n```\n%s\n```\n", s.Err)
	}
}
