package bubbletea

import (
	"strings"

	"github.com/fwojciec/converse/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// pendingText stands in for a reply that has not produced any content yet.
const pendingText = "…"

// AssistantTextBlock renders an assistant reply as markdown. While a reply
// streams, everything up to the last paragraph break outside a code fence
// is rendered once per width and cached; only the tail is re-rendered when
// the content grows.
type AssistantTextBlock struct {
	content  string
	renderer *goldmark.Renderer
	styles   Styles

	finalizedRaw     string
	finalizedByWidth map[int]string
}

// NewAssistantTextBlock creates a block rendering with r.
func NewAssistantTextBlock(r *goldmark.Renderer, styles Styles) *AssistantTextBlock {
	return &AssistantTextBlock{
		renderer:         r,
		styles:           styles,
		finalizedByWidth: make(map[int]string),
	}
}

// SetContent replaces the reply text. Growth that extends the previous
// content keeps the cached prefix.
func (b *AssistantTextBlock) SetContent(content string) {
	if content == b.content {
		return
	}
	if !strings.HasPrefix(content, b.finalizedRaw) {
		b.finalizedRaw = ""
		clear(b.finalizedByWidth)
	}
	b.content = content
	b.promoteFinalized()
}

// Content returns the raw reply text.
func (b *AssistantTextBlock) Content() string { return b.content }

func (b *AssistantTextBlock) View(width int) string {
	if strings.TrimSpace(b.content) == "" {
		return b.styles.Muted.Render(pendingText)
	}
	head := b.renderFinalized(width)
	tail := b.trailingRaw()
	if hasUnclosedFence(tail) {
		// Close the fence for display so a partial code block renders as code.
		tail += "\n```"
	}
	tailRendered := b.renderer.Render(tail, width)
	switch {
	case tailRendered == "":
		return head
	case head == "":
		return tailRendered
	default:
		return head + "\n\n" + tailRendered
	}
}

// promoteFinalized moves the finalized boundary to the last "\n\n" whose
// prefix has every code fence closed.
func (b *AssistantTextBlock) promoteFinalized() {
	raw := b.content
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderFinalized(width int) string {
	if b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := b.renderer.Render(b.finalizedRaw, width)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *AssistantTextBlock) trailingRaw() string {
	if b.finalizedRaw == "" {
		return b.content
	}
	return strings.TrimPrefix(b.content, b.finalizedRaw+"\n\n")
}

// hasUnclosedFence reports whether s has an odd number of "```" markers.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
