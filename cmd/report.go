package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nextlevelbuilder/rodchain/internal/scenario"
	"github.com/nextlevelbuilder/rodchain/internal/tracing"
)

var (
	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true)
	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"})
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

const maxOutputLen = 60

// renderReport writes one scenario report and, when stats is non-empty, the
// per-operation timing table gathered from spans.
func renderReport(w io.Writer, rep *scenario.Report, stats []tracing.OpStats) {
	name := rep.Scenario
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintln(w, headerStyle.Render("Scenario "+name))

	for _, s := range rep.Steps {
		mark := statusMark(s.Status)
		line := fmt.Sprintf("  %s %2d. %s", mark, s.Index, s.Label)
		if s.Status != scenario.StatusSkipped {
			line += " " + dimStyle.Render(fmt.Sprintf("(%s, %s)", s.Kind, s.Duration.Round(time.Millisecond)))
		}
		fmt.Fprintln(w, line)
		if s.Output != "" {
			fmt.Fprintf(w, "       %s\n", dimStyle.Render("= "+clip(s.Output)))
		}
		if s.Err != nil {
			fmt.Fprintf(w, "       %s\n", failStyle.Render(s.Err.Error()))
		}
	}

	summary := fmt.Sprintf("%d steps in %s", len(rep.Steps), rep.Duration.Round(time.Millisecond))
	if rep.Passed() {
		fmt.Fprintln(w, passStyle.Render("PASS")+" "+summary)
	} else {
		fmt.Fprintln(w, failStyle.Render("FAIL")+" "+summary)
	}

	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  %-24s %6s %6s %10s %10s", "operation", "count", "errors", "avg", "max")))
	for _, st := range stats {
		avg := time.Duration(0)
		if st.Count > 0 {
			avg = st.Total / time.Duration(st.Count)
		}
		fmt.Fprintf(w, "  %-24s %6d %6d %10s %10s\n", st.Name, st.Count, st.Errors,
			avg.Round(time.Microsecond), st.Max.Round(time.Microsecond))
	}
}

func statusMark(s scenario.Status) string {
	switch s {
	case scenario.StatusPassed:
		return passStyle.Render("ok  ")
	case scenario.StatusFailed:
		return failStyle.Render("FAIL")
	}
	return skipStyle.Render("skip")
}

func clip(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxOutputLen {
		return s[:maxOutputLen] + "..."
	}
	return s
}
