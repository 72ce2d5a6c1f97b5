// Package report renders the end-of-run summary block.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"converge/internal/model"
)

// Palette — muted, dark-terminal friendly.
var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	labelStyle   = lipgloss.NewStyle().Foreground(dim)
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// Render produces the human-readable summary for a finished run.
func Render(plan string, run model.RunState) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Convergence summary"))
	if plan != "" {
		b.WriteString(labelStyle.Render(" — " + plan))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("result:"), termination(run)))
	b.WriteString(fmt.Sprintf("%s %d/%d\n", labelStyle.Render("cycles:"), run.CyclesUsed, run.MaxCycles))

	applied, satisfied, skipped, failed := run.Totals()
	b.WriteString(fmt.Sprintf("%s applied %d, already satisfied %d, skipped %d, failed %d\n",
		labelStyle.Render("steps: "), applied, satisfied, skipped, failed))

	for _, cycle := range run.Cycles {
		line := fmt.Sprintf("  cycle %d: applied %d, satisfied %d, skipped %d, failed %d",
			cycle.Cycle, cycle.Applied, cycle.AlreadySatisfied, cycle.Skipped, cycle.Failed)
		if cycle.RebootRequired {
			line += warnStyle.Render(" [reboot required]")
		}
		b.WriteString(line + "\n")
	}

	if failed > 0 {
		b.WriteString(labelStyle.Render("failures:") + "\n")
		for _, cycle := range run.Cycles {
			for _, res := range cycle.Results {
				if res.IsFailure() {
					b.WriteString(fmt.Sprintf("  %s %s: %s\n", errorStyle.Render("✗"), res.StepID, res.Message))
				}
			}
		}
	}

	if run.Err != nil {
		b.WriteString(fmt.Sprintf("%s %v\n", errorStyle.Render("error:"), run.Err))
	}

	return b.String()
}

func termination(run model.RunState) string {
	switch run.Termination {
	case model.TerminationConverged:
		return successStyle.Render("✓ converged")
	case model.TerminationRebootPending:
		return warnStyle.Render("! reboot required before further progress")
	case model.TerminationBudgetExhausted:
		return warnStyle.Render("! cycle budget exhausted without convergence")
	case model.TerminationFatalError:
		return errorStyle.Render("✗ fatal error")
	default:
		return string(run.Termination)
	}
}
