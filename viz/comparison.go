// ABOUTME: Terminal rendering of deal and task comparisons
// ABOUTME: Category deltas are listed largest change first
package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/crmpulse/diff"
)

var (
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// RenderDealComparison renders a deal comparison.
func RenderDealComparison(cmp diff.DealComparison) string {
	var out strings.Builder

	out.WriteString(headerStyle.Render("СРАВНЕНИЕ СДЕЛОК"))
	out.WriteString("\n")
	fmt.Fprintf(&out, "  Было: %d  Стало: %d  %s\n", cmp.OldCount, cmp.NewCount, signed(cmp.NewCount-cmp.OldCount))
	fmt.Fprintf(&out, "  Новых: %d  Удалённых: %d  Смен этапа: %d\n", len(cmp.Added), len(cmp.Removed), len(cmp.Transitions))

	renderDeltas(&out, "По этапам", cmp.StageChanges)
	renderDeltas(&out, "По отделам", cmp.DepartmentChanges)
	renderDeltas(&out, "По ответственным", cmp.ResponsibleChanges)

	if len(cmp.Transitions) > 0 {
		out.WriteString(sectionStyle.Render("Переходы"))
		out.WriteString("\n")
		for _, t := range cmp.Transitions {
			fmt.Fprintf(&out, "  %s: %s → %s %s\n", t.DealID, t.OldStage, t.NewStage,
				dimStyle.Render(fmt.Sprintf("(%s, %s)", t.CurrentResponsible, t.CurrentDepartment)))
		}
	}
	return out.String()
}

// RenderTaskComparison renders a task comparison.
func RenderTaskComparison(cmp diff.TaskComparison) string {
	var out strings.Builder

	out.WriteString(headerStyle.Render("СРАВНЕНИЕ ЗАДАЧ"))
	out.WriteString("\n")
	fmt.Fprintf(&out, "  Было: %d  Стало: %d  %s\n", cmp.OldCount, cmp.NewCount, signed(cmp.NewCount-cmp.OldCount))
	fmt.Fprintf(&out, "  Новых: %d  Удалённых: %d\n", len(cmp.Added), len(cmp.Removed))

	renderDeltas(&out, "По статусам", cmp.StatusChanges)
	renderDeltas(&out, "По исполнителям", cmp.AssigneeChanges)
	renderDeltas(&out, "По постановщикам", cmp.CreatorChanges)
	return out.String()
}

// renderDeltas lists non-zero deltas only.
func renderDeltas(out *strings.Builder, title string, deltas map[string]int) {
	entries := diff.SortedDeltas(deltas)
	var changed []diff.DeltaEntry
	for _, e := range entries {
		if e.Delta != 0 {
			changed = append(changed, e)
		}
	}
	if len(changed) == 0 {
		return
	}

	out.WriteString(sectionStyle.Render(title))
	out.WriteString("\n")
	for _, e := range changed {
		fmt.Fprintf(out, "  %-24s %s\n", e.Key, signed(e.Delta))
	}
}

func signed(n int) string {
	switch {
	case n > 0:
		return upStyle.Render(fmt.Sprintf("+%d", n))
	case n < 0:
		return downStyle.Render(fmt.Sprintf("%d", n))
	default:
		return "0"
	}
}
