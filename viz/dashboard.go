// ABOUTME: Dashboard aggregates over the canonical deal and task collections
// ABOUTME: Stage funnel with amounts, staleness, and responsible/stage department mismatches
package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
)

// DefaultStaleDays is how long a deal may go unmodified, or a task stay
// open, before it needs attention.
const DefaultStaleDays = 14

type DashboardStats struct {
	Funnel      []StageStats
	TotalDeals  int
	TotalAmount float64
	TotalTasks  int
	OpenTasks   int

	StaleDays  int
	StaleDeals []StaleDeal
	StaleTasks []StaleTask
	Mismatches []RoleMismatch
}

type StageStats struct {
	Stage  string
	Count  int
	Amount float64
}

type StaleDeal struct {
	DealID      string
	Title       string
	Responsible string
	DaysSince   int
}

type StaleTask struct {
	ID       string
	Title    string
	Assignee string
	DaysOpen int
}

// RoleMismatch is a deal whose stage belongs to another department than
// the one its responsible works in.
type RoleMismatch struct {
	DealID          string
	Title           string
	Stage           string
	Responsible     string
	Department      string
	OwnerDepartment string
}

// closedStatuses are task statuses that are no longer open.
var closedStatuses = map[string]bool{
	normalize.StatusCompleted: true,
	normalize.StatusDeclined:  true,
}

// GenerateDashboardStats aggregates the collections as of now.
func GenerateDashboardStats(deals []models.Deal, tasks []models.Task, vocab *normalize.Vocabulary, now time.Time, staleDays int) *DashboardStats {
	if vocab == nil {
		vocab = normalize.NewVocabulary(normalize.DefaultVocabularyFile())
	}
	if staleDays <= 0 {
		staleDays = DefaultStaleDays
	}

	stats := &DashboardStats{
		TotalDeals: len(deals),
		TotalTasks: len(tasks),
		StaleDays:  staleDays,
	}
	stats.Funnel = funnel(deals, vocab.Stages())

	for _, d := range deals {
		stats.TotalAmount += d.Amount

		if days, ok := daysSince(now, d.ModifiedAt, d.CreatedAt); ok && days > staleDays {
			stats.StaleDeals = append(stats.StaleDeals, StaleDeal{
				DealID: d.DealID, Title: d.Title, Responsible: d.Responsible, DaysSince: days,
			})
		}

		owner, ok := vocab.StageDepartment(d.Stage)
		if ok && d.Department != "" && d.Department != models.UnknownLabel && d.Department != owner {
			stats.Mismatches = append(stats.Mismatches, RoleMismatch{
				DealID: d.DealID, Title: d.Title, Stage: d.Stage, Responsible: d.Responsible,
				Department: d.Department, OwnerDepartment: owner,
			})
		}
	}

	for _, t := range tasks {
		if t.ClosedAt != nil || closedStatuses[t.Status] {
			continue
		}
		stats.OpenTasks++
		if days, ok := daysSince(now, t.CreatedAt); ok && days > staleDays {
			stats.StaleTasks = append(stats.StaleTasks, StaleTask{
				ID: t.ID, Title: t.Title, Assignee: t.Assignee, DaysOpen: days,
			})
		}
	}

	sort.SliceStable(stats.StaleDeals, func(i, j int) bool { return stats.StaleDeals[i].DaysSince > stats.StaleDeals[j].DaysSince })
	sort.SliceStable(stats.StaleTasks, func(i, j int) bool { return stats.StaleTasks[i].DaysOpen > stats.StaleTasks[j].DaysOpen })
	return stats
}

// funnel counts deals per stage in funnel order. Stages outside the
// vocabulary follow, alphabetically.
func funnel(deals []models.Deal, order []string) []StageStats {
	byStage := make(map[string]*StageStats)
	for _, d := range deals {
		stage := d.Stage
		if stage == "" {
			stage = models.UnknownLabel
		}
		s, ok := byStage[stage]
		if !ok {
			s = &StageStats{Stage: stage}
			byStage[stage] = s
		}
		s.Count++
		s.Amount += d.Amount
	}

	out := make([]StageStats, 0, len(byStage))
	for _, stage := range order {
		if s, ok := byStage[stage]; ok {
			out = append(out, *s)
			delete(byStage, stage)
		}
	}
	rest := make([]string, 0, len(byStage))
	for stage := range byStage {
		rest = append(rest, stage)
	}
	sort.Strings(rest)
	for _, stage := range rest {
		out = append(out, *byStage[stage])
	}
	return out
}

// daysSince uses the first parseable date.
func daysSince(now time.Time, dates ...*string) (int, bool) {
	for _, d := range dates {
		if d == nil {
			continue
		}
		if t, ok := normalize.ParseCanonical(*d); ok {
			return int(now.Sub(t).Hours() / 24), true
		}
	}
	return 0, false
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Border(lipgloss.DoubleBorder(), false, false, true, false)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")).
			MarginTop(1)

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderDashboard renders the stats for a terminal.
func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString(headerStyle.Render("CRM DASHBOARD"))
	out.WriteString("\n")

	out.WriteString(sectionStyle.Render("ВОРОНКА"))
	out.WriteString("\n")
	renderFunnel(&out, stats.Funnel)

	out.WriteString(sectionStyle.Render("ИТОГО"))
	out.WriteString("\n")
	fmt.Fprintf(&out, "  💼 %d сделок на %s  📋 %d задач, открыто %d\n",
		stats.TotalDeals, FormatAmount(stats.TotalAmount), stats.TotalTasks, stats.OpenTasks)

	if len(stats.StaleDeals) == 0 && len(stats.StaleTasks) == 0 && len(stats.Mismatches) == 0 {
		return out.String()
	}

	out.WriteString(sectionStyle.Render("ТРЕБУЕТ ВНИМАНИЯ"))
	out.WriteString("\n")
	if n := len(stats.StaleDeals); n > 0 {
		out.WriteString(warnStyle.Render(fmt.Sprintf("  ⚠ %d сделок без изменений более %d дн.", n, stats.StaleDays)))
		out.WriteString("\n")
		for _, d := range head(stats.StaleDeals, 5) {
			fmt.Fprintf(&out, "    %s %s (%s) %s\n", d.DealID, d.Title, d.Responsible, dimStyle.Render(fmt.Sprintf("%d дн.", d.DaysSince)))
		}
	}
	if n := len(stats.StaleTasks); n > 0 {
		out.WriteString(warnStyle.Render(fmt.Sprintf("  ⚠ %d задач открыто более %d дн.", n, stats.StaleDays)))
		out.WriteString("\n")
		for _, t := range head(stats.StaleTasks, 5) {
			fmt.Fprintf(&out, "    %s %s (%s) %s\n", t.ID, t.Title, t.Assignee, dimStyle.Render(fmt.Sprintf("%d дн.", t.DaysOpen)))
		}
	}
	if n := len(stats.Mismatches); n > 0 {
		out.WriteString(warnStyle.Render(fmt.Sprintf("  ⚠ %d сделок на этапе чужого отдела", n)))
		out.WriteString("\n")
		for _, m := range head(stats.Mismatches, 5) {
			fmt.Fprintf(&out, "    %s %s: %s (%s), этап «%s» ведёт %s\n",
				m.DealID, m.Title, m.Responsible, m.Department, m.Stage, m.OwnerDepartment)
		}
	}
	return out.String()
}

func renderFunnel(out *strings.Builder, funnel []StageStats) {
	maxCount := 1
	width := 0
	for _, s := range funnel {
		maxCount = max(maxCount, s.Count)
		width = max(width, lipgloss.Width(s.Stage))
	}

	for _, s := range funnel {
		barLength := (s.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		pad := strings.Repeat(" ", width-lipgloss.Width(s.Stage))
		fmt.Fprintf(out, "  %s%s %s %3d  %s\n", s.Stage, pad, bar, s.Count, FormatAmount(s.Amount))
	}
}

// FormatAmount renders a whole amount with space-separated thousands.
func FormatAmount(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	whole := fmt.Sprintf("%.0f", amount)

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
