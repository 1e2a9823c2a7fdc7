package bubbletea

// Truncate exports truncate for testing.
func Truncate(s string, width int) string {
	return truncate(s, width)
}

// RenderTranscript exports renderTranscript for testing.
func RenderTranscript(m Model) string {
	return m.renderTranscript()
}

// Notice exports the current notice for testing.
func Notice(m Model) error {
	return m.notice
}
