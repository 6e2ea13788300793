// Package report renders an analysis report for the terminal and stores it as
// JSON, Parquet tables and PNG figures.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/willbeason/progresa/pkg/analysis"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
)

var (
	colorTitle   = lipgloss.Color("#2CD7C7")
	colorAccent  = lipgloss.Color("#16858E")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
}

// Text writes a human-readable rendering of report to w.
func Text(w io.Writer, report *analysis.Report) error {
	p := &printer{w: w}

	p.println(styles.Title.Render("Progresa analysis"))
	p.println(styles.Muted.Render(fmt.Sprintf("run %s, %d observations, %s",
		report.RunID, report.Rows, report.Duration.Round(1e6))))

	for _, r := range report.Results {
		p.result(r)
	}

	if len(report.Errors) > 0 {
		p.println("")
		p.println(styles.Error.Render(fmt.Sprintf("%d steps failed", len(report.Errors))))
		for _, err := range report.Errors {
			p.println(styles.Error.Render("  " + err.Error()))
		}
	}
	return p.err
}

// printer remembers the first write error so rendering code can ignore them.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) println(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) result(r *analysis.Result) {
	p.println("")
	p.println(styles.Title.Render(r.Step) + " " + r.Description)
	for _, s := range r.Subsets {
		p.println(styles.Muted.Render("  rows: " + s))
	}

	if len(r.Summary) > 0 {
		p.println(SummaryTable(r.Summary))
	}
	if len(r.Tests) > 0 {
		p.println(TestsTable(r.Tests))
	}
	for _, panel := range r.Panels {
		p.println(PanelTable(panel))
	}
	for _, m := range r.Models {
		p.println(ModelTable(m))
	}
	if r.DiD != nil {
		p.println(DiDTable(r))
	}
	for _, note := range r.Notes {
		p.println(styles.Warning.Render("  note: " + note))
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorAccent)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		})
}

// SummaryTable renders descriptive statistics.
func SummaryTable(summary []stats.Summary) string {
	t := newTable("column", "n", "missing", "mean", "std dev")
	for _, s := range summary {
		t.Row(s.Column, strconv.Itoa(s.N), strconv.Itoa(s.Missing), num(s.Mean), num(s.Std))
	}
	return t.Render()
}

// TestsTable renders t-tests of treatment (A) against control (B).
func TestsTable(tests []stats.TestResult) string {
	t := newTable("column", "mean A", "mean B", "diff", "t", "df", "p-value", "significant")
	for _, r := range tests {
		t.Row(r.Column, num(r.MeanA), num(r.MeanB), num(r.Diff), num(r.Statistic),
			strconv.FormatFloat(r.DF, 'f', 1, 64), pValue(r.PValue), strconv.FormatBool(r.Significant))
	}
	return t.Render()
}

// PanelTable renders group means.
func PanelTable(panel analysis.Panel) string {
	t := newTable(panel.By, "n", "mean "+panel.Outcome)
	for _, g := range panel.Groups {
		t.Row(g.Label, strconv.Itoa(g.N), num(g.Mean))
	}
	return styles.Muted.Render("  "+panel.Name) + "\n" + t.Render()
}

// ModelTable renders a regression in the layout of a statistics package
// summary: fit statistics followed by the coefficient table.
func ModelTable(m *regress.Model) string {
	header := fmt.Sprintf("  %s\n  N = %d (%d dropped), R² = %s, adj. R² = %s, F(%d, %d) = %s, p = %s, %s standard errors",
		m.Formula, m.N, m.Dropped, num(m.R2), num(m.AdjR2), m.DFModel, m.DFResid,
		num(m.FStat), pValue(m.FPValue), m.SE)

	level := strconv.FormatFloat(100*regress.ConfidenceLevel, 'f', -1, 64)
	t := newTable("term", "coef", "std err", "t", "P>|t|", "["+level+"% low", "high]")
	for _, c := range m.Terms {
		t.Row(c.Name, num(c.Estimate), num(c.StdErr), num(c.T), pValue(c.PValue), num(c.CILow), num(c.CIHigh))
	}
	return styles.Muted.Render(header) + "\n" + t.Render()
}

// DiDTable renders the four cell means of a tabular difference-in-differences
// estimate and, when present, its agreement with the regression estimate.
func DiDTable(r *analysis.Result) string {
	d := r.DiD
	t := newTable("cell", "n", "mean "+d.Outcome)
	for _, m := range d.Means {
		t.Row(m.Cell, strconv.Itoa(m.N), num(m.Value))
	}
	t.Row("treated change", "", num(d.DiffTreated))
	t.Row("control change", "", num(d.DiffControl))
	t.Row("estimate", "", num(d.Estimate))

	out := t.Render()
	if a := r.Agreement; a != nil {
		style := styles.Muted
		verdict := "agree"
		if !a.Agree {
			style = styles.Warning
			verdict = "disagree"
		}
		out += "\n" + style.Render(fmt.Sprintf("  tabular %s and regression %s %s within %g",
			num(a.Tabular), num(a.Regression), verdict, a.Tolerance))
	}
	return out
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func pValue(p float64) string {
	if p < 1e-4 && p > 0 {
		return strconv.FormatFloat(p, 'e', 2, 64)
	}
	return num(p)
}
