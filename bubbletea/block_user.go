package bubbletea

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*UserMessageBlock)(nil)

const userMarker = "› "

// UserMessageBlock renders a user message behind a colored marker.
type UserMessageBlock struct {
	text   string
	styles Styles
}

// NewUserMessageBlock creates a UserMessageBlock.
func NewUserMessageBlock(text string, styles Styles) *UserMessageBlock {
	return &UserMessageBlock{text: text, styles: styles}
}

func (b *UserMessageBlock) View(width int) string {
	markerWidth := lipgloss.Width(userMarker)
	body := lipgloss.NewStyle().Width(max(width-markerWidth, 1)).Render(b.text)
	lines := strings.Split(body, "\n")
	indent := strings.Repeat(" ", markerWidth)
	for i := range lines {
		if i == 0 {
			lines[i] = b.styles.User.Render(userMarker) + lines[i]
		} else {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
