package doctor

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Output renders a report as text. The lipgloss renderer picks the color
// profile of the writer, so pipes and buffers get plain text.
type Output struct {
	w      io.Writer
	title  lipgloss.Style
	dim    lipgloss.Style
	status map[Status]lipgloss.Style
}

func NewOutput(w io.Writer) *Output {
	r := lipgloss.NewRenderer(w)
	return &Output{
		w:     w,
		title: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Faint(true),
		status: map[Status]lipgloss.Style{
			StatusOK:      r.NewStyle().Foreground(lipgloss.Color("10")),
			StatusWarning: r.NewStyle().Foreground(lipgloss.Color("11")),
			StatusError:   r.NewStyle().Foreground(lipgloss.Color("9")),
			StatusSkipped: r.NewStyle().Faint(true),
		},
	}
}

var statusIcons = map[Status]string{
	StatusOK:      "✓",
	StatusWarning: "!",
	StatusError:   "✗",
	StatusSkipped: "-",
}

// Report writes the header, one block per category and the summary line.
func (o *Output) Report(report *Report) {
	fmt.Fprintln(o.w)
	fmt.Fprintln(o.w, o.title.Render("HakiChain Doctor"))
	fmt.Fprintln(o.w, strings.Repeat("=", 16))

	var current Category
	for _, r := range report.Checks {
		if r.Category != current {
			current = r.Category
			fmt.Fprintf(o.w, "\n%s\n", o.title.Render(strings.ToUpper(string(current))))
		}
		o.result(r)
	}

	o.summary(report.Summary)
}

func (o *Output) result(r CheckResult) {
	icon := o.status[r.Status].Render(statusIcons[r.Status])
	fmt.Fprintf(o.w, "  %s %s\n", icon, r.Message)
	if r.Details != "" {
		fmt.Fprintf(o.w, "    %s\n", o.dim.Render(r.Details))
	}
	if r.Status != StatusOK && r.FixCommand != "" {
		fmt.Fprintf(o.w, "    Fix: %s\n", r.FixCommand)
	}
}

func (o *Output) summary(s Summary) {
	parts := []string{
		o.status[StatusOK].Render(fmt.Sprintf("%d passed", s.Passed)),
		fmt.Sprintf("%d failed", s.Failed),
	}
	if s.Failed > 0 {
		parts[1] = o.status[StatusError].Render(parts[1])
	}
	if s.Warned > 0 {
		parts = append(parts, o.status[StatusWarning].Render(fmt.Sprintf("%d warnings", s.Warned)))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	fmt.Fprintf(o.w, "\nSummary: %s\n", strings.Join(parts, ", "))
}
