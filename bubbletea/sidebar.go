package bubbletea

import (
	"strings"

	"github.com/fwojciec/converse"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

const (
	maxSidebarWidth = 32
	ellipsis        = "…"
)

// truncate shortens s to at most width terminal columns, cutting on
// grapheme cluster boundaries and marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	limit := width - runewidth.StringWidth(ellipsis)
	var b strings.Builder
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Str()
		w := runewidth.StringWidth(cluster)
		if used+w > limit {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	return b.String() + ellipsis
}

func sidebarWidth(total int) int {
	return min(maxSidebarWidth, total/3)
}

// renderSidebar lists sessions in server order. The active session is
// accented; the cursor row is highlighted while the sidebar has focus.
func (m Model) renderSidebar(width, height int) string {
	inner := width - 1 // right border
	rows := []string{m.styles.Accent.Render(truncate("Sessions", inner)), ""}

	sessions := m.state.Sessions
	if len(sessions) == 0 {
		rows = append(rows, m.styles.Muted.Render(truncate("no sessions yet", inner)))
	}
	for i, s := range sessions {
		title := truncate(s.DisplayTitle(), inner-2)
		marker := "  "
		if m.state.Active != nil && m.state.Active.ID == s.ID {
			marker = "• "
		}
		row := marker + title
		switch {
		case m.focus == focusSidebar && i == m.cursor:
			row = m.styles.Selected.Render(row)
		case marker != "  ":
			row = m.styles.Accent.Render(row)
		case s.Title == "":
			row = m.styles.Muted.Render(row)
		}
		rows = append(rows, row)
	}

	return m.styles.Sidebar.
		Width(inner).
		Height(height).
		MaxHeight(height).
		Render(strings.Join(rows, "\n"))
}

// sessionAt returns the session under the sidebar cursor.
func (m Model) sessionAt(i int) (converse.Session, bool) {
	if i < 0 || i >= len(m.state.Sessions) {
		return converse.Session{}, false
	}
	return m.state.Sessions[i], true
}

func clampCursor(cursor, n int) int {
	return max(0, min(cursor, n-1))
}
