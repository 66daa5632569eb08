// Package render prints a batch report to the terminal, styled with
// lipgloss. The report body itself (summaries, violation details) is
// already redacted plain text; lipgloss styles the presentation layer
// only, never the content.
package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/lattice-iac/conductor/report"
	"github.com/lattice-iac/conductor/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render writes a human-readable rendering of doc to w.
func Render(w io.Writer, doc *report.Document) error {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("run %s (%s) — requester %s", doc.RunID, doc.Action, doc.RequesterID)))
	fmt.Fprintln(w)

	phases := make([]types.Phase, 0, len(doc.CountsByPhase))
	for p := range doc.CountsByPhase {
		phases = append(phases, p)
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
	for _, p := range phases {
		style := okStyle
		if p.IsErrorPhase() {
			style = errStyle
		}
		fmt.Fprintf(w, "  %s  %d\n", style.Render(string(p)), doc.CountsByPhase[p])
	}
	fmt.Fprintln(w)

	for _, u := range doc.Units {
		style := okStyle
		if u.PhaseReached.IsErrorPhase() {
			style = errStyle
		}
		fmt.Fprintf(w, "%s  %s\n", style.Render(string(u.PhaseReached)), u.StateKey)
		if u.Summary != "" {
			fmt.Fprintf(w, "    %s\n", dimStyle.Render(u.Summary))
		}
	}

	for _, g := range doc.GateViolations {
		fmt.Fprintf(w, "%s  %s\n", errStyle.Render("gated"), g.StateKey)
		for _, v := range g.Violations {
			fmt.Fprintf(w, "    %s\n", dimStyle.Render(v.Code+": "+v.Detail))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "audit store: %s\n", dimStyle.Render(doc.AuditStorePath))
	fmt.Fprintf(w, "exit code: %d\n", doc.ExitCode)

	return nil
}
