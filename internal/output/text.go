package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TextRenderer produces Lip Gloss styled terminal output.
type TextRenderer struct {
	w io.Writer
}

func (r *TextRenderer) RenderSummary(s Summary) {
	width := 60
	rep := s.Report
	if rep == nil {
		return
	}

	header := headingStyle.Render("utf8mb4-convert: Run Summary")
	fmt.Fprintln(r.w)

	lines := []string{
		r.labelValue("Run ID:", rep.RunID),
		r.labelValue("Mode:", r.colorMode(mode(rep))),
	}
	if s.Addr != "" {
		lines = append(lines, r.labelValue("Server:", s.Addr))
	}
	if s.Server != nil {
		lines = append(lines, r.labelValue("Version:", s.Server.Version.String()))
	}
	if s.Topology != nil {
		lines = append(lines, r.labelValue("Topology:", string(s.Topology.Type)))
	}
	if rep.BulkTable {
		lines = append(lines, r.labelValue("Tables:", "CONVERT TO (bulk)"))
	}
	lines = append(lines,
		r.labelValue("Statements:", fmt.Sprintf("%d printed, %d executed", rep.Printed, rep.Executed)),
		r.labelValue("Duration:", rep.Duration.Round(msRound).String()),
	)
	fmt.Fprintln(r.w, summaryBox.Width(width).Render(header+"\n"+strings.Join(lines, "\n")))

	r.renderStages(s, width)

	if s.Topology != nil {
		if warnings := s.Topology.Warnings(); len(warnings) > 0 {
			var content strings.Builder
			content.WriteString(warningText.Render(iconWarning + " Topology"))
			for _, w := range warnings {
				content.WriteString("\n" + w)
			}
			fmt.Fprintln(r.w, warningBox.Width(width).Render(content.String()))
		}
	}

	if len(rep.ProblemColumns) > 0 {
		var content strings.Builder
		content.WriteString(warningText.Render(fmt.Sprintf("%s %d problem columns", iconWarning, len(rep.ProblemColumns))))
		content.WriteString("\n")
		for _, p := range rep.ProblemColumns {
			content.WriteString("\n" + p.String())
		}
		fmt.Fprintln(r.w, warningBox.Width(width).Render(content.String()))
	}

	r.renderOutcome(s, width)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) renderStages(s Summary, width int) {
	var lines []string
	for _, st := range s.Report.Stages {
		lines = append(lines, r.labelValue(st.Name+":",
			fmt.Sprintf("%d rows, %d statements, %s", st.Rows, st.Statements, st.Elapsed.Round(msRound))))
	}
	for _, oc := range sortedOps(s.Report.Operations) {
		lines = append(lines, r.labelValue(string(oc.Op)+":", fmt.Sprintf("%d", oc.Count)))
	}
	if len(lines) == 0 {
		return
	}
	title := headingStyle.Render("Stages")
	fmt.Fprintln(r.w, summaryBox.Width(width).Render(title+"\n"+strings.Join(lines, "\n")))
}

func (r *TextRenderer) renderOutcome(s Summary, width int) {
	var icon, label string
	var style lipgloss.Style

	switch {
	case s.Err != nil:
		icon, label, style = iconFailed, "Run failed: "+s.Err.Error(), failedBox
	case !s.Report.Committed && s.Report.Printed > 0:
		icon, label, style = iconWarning, "Dry run. Re-run with --make-it-so to apply.", warningBox
	default:
		icon, label, style = iconDone, "Done.", doneBox
	}
	fmt.Fprintln(r.w, style.Width(width).Render(icon+" "+label))
}

// helpers

func (r *TextRenderer) labelValue(label, value string) string {
	return labelStyle.Render(label) + " " + value
}

func (r *TextRenderer) colorMode(m string) string {
	if m == "make-it-so" {
		return makeItSoText.Render(m)
	}
	return dryRunText.Render(m)
}
