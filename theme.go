package converse

// Theme maps interface roles to ANSI color indices (0-15) so the terminal's
// own palette decides the actual colors. A negative index means no color.
type Theme struct {
	User      int // user message marker
	Assistant int // assistant message marker
	Error     int // notices and failed replies
	Muted     int // placeholders, timestamps, status line
	Accent    int // headings, links, active session
	Selected  int // sidebar cursor
	Code      int // code block gutter
}

// DefaultTheme returns the default color mapping.
func DefaultTheme() Theme {
	return Theme{
		User:      4,
		Assistant: 2,
		Error:     1,
		Muted:     8,
		Accent:    5,
		Selected:  6,
		Code:      8,
	}
}
