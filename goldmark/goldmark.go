// Package goldmark renders assistant replies written in markdown as
// ANSI-styled terminal text.
package goldmark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/converse"
	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const defaultWidth = 80

// Renderer converts markdown to styled text. It is safe for concurrent use.
type Renderer struct {
	parser parser.Parser

	strong lipgloss.Style
	em     lipgloss.Style
	mono   lipgloss.Style
	accent lipgloss.Style
	muted  lipgloss.Style
	link   lipgloss.Style
	gutter string
}

// New returns a Renderer using theme's colors.
func New(theme converse.Theme) *Renderer {
	muted := lipgloss.NewStyle().Foreground(color(theme.Muted))
	return &Renderer{
		parser: goldmark.DefaultParser(),
		strong: lipgloss.NewStyle().Bold(true),
		em:     lipgloss.NewStyle().Italic(true),
		mono:   lipgloss.NewStyle().Foreground(color(theme.Accent)),
		accent: lipgloss.NewStyle().Foreground(color(theme.Accent)).Bold(true),
		muted:  muted,
		link:   lipgloss.NewStyle().Underline(true),
		gutter: lipgloss.NewStyle().Foreground(color(theme.Code)).Render("│") + " ",
	}
}

// Render returns source rendered for a terminal width columns wide.
// Prose is reflowed to width; code is kept verbatim.
func (r *Renderer) Render(source string, width int) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	src := []byte(source)
	doc := r.parser.Parse(text.NewReader(src))

	w := writer{Renderer: r, src: src}
	w.blocks(doc, width, "")
	return strings.TrimRight(w.out.String(), "\n")
}

func color(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// writer accumulates the output of a single Render call.
type writer struct {
	*Renderer
	src []byte
	out strings.Builder
}

// blocks renders the block children of parent, separated by blank lines.
// Every output line is prefixed with prefix.
func (w *writer) blocks(parent ast.Node, width int, prefix string) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, width, prefix)
		if n.NextSibling() != nil {
			w.out.WriteString(strings.TrimRight(prefix, " ") + "\n")
		}
	}
}

func (w *writer) block(n ast.Node, width int, prefix string) {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		w.wrapped(w.inline(n), width, prefix, prefix)
	case *ast.Heading:
		w.wrapped(w.accent.Render(w.inline(n)), width, prefix, prefix)
	case *ast.FencedCodeBlock:
		if lang := string(n.Language(w.src)); lang != "" {
			w.line(prefix, w.muted.Render(lang))
		}
		w.code(n, prefix)
	case *ast.CodeBlock:
		w.code(n, prefix)
	case *ast.Blockquote:
		w.blocks(n, width, prefix+w.muted.Render("> "))
	case *ast.List:
		w.list(n, width, prefix)
	case *ast.ThematicBreak:
		w.line(prefix, w.muted.Render(strings.Repeat("─", min(width, defaultWidth)/2)))
	case *ast.HTMLBlock:
		for i := 0; i < n.Lines().Len(); i++ {
			seg := n.Lines().At(i)
			w.line(prefix, strings.TrimRight(string(seg.Value(w.src)), "\n"))
		}
	default:
		w.blocks(n, width, prefix)
	}
}

func (w *writer) code(n ast.Node, prefix string) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		w.line(prefix, w.gutter+strings.TrimRight(string(seg.Value(w.src)), "\n"))
	}
}

func (w *writer) list(l *ast.List, width int, prefix string) {
	num := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		indent := strings.Repeat(" ", runewidth.StringWidth(marker))
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				lead := prefix + indent
				if first {
					lead = prefix + marker
				}
				w.wrapped(w.inline(c), width, lead, prefix+indent)
			case *ast.List:
				if first {
					w.line(prefix, marker)
				}
				w.list(c, width, prefix+indent)
			default:
				w.block(c, width, prefix+indent)
			}
			first = false
		}
	}
}

// wrapped reflows s to width and writes it with lead before the first line
// and rest before the others.
func (w *writer) wrapped(s string, width int, lead, rest string) {
	avail := width - lipgloss.Width(lead)
	if avail < 10 {
		avail = 10
	}
	lines := strings.Split(lipgloss.NewStyle().Width(avail).Render(s), "\n")
	for i, l := range lines {
		p := rest
		if i == 0 {
			p = lead
		}
		w.line(p, strings.TrimRight(l, " "))
	}
}

func (w *writer) line(prefix, s string) {
	w.out.WriteString(prefix)
	w.out.WriteString(s)
	w.out.WriteByte('\n')
}

func (w *writer) inline(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.span(c, &b)
	}
	return b.String()
}

func (w *writer) span(n ast.Node, b *strings.Builder) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.src))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Emphasis:
		if n.Level >= 2 {
			b.WriteString(w.strong.Render(w.inline(n)))
		} else {
			b.WriteString(w.em.Render(w.inline(n)))
		}
	case *ast.CodeSpan:
		b.WriteString(w.mono.Render(w.inline(n)))
	case *ast.Link:
		b.WriteString(w.link.Render(w.inline(n)))
		b.WriteString(w.muted.Render(" (" + string(n.Destination) + ")"))
	case *ast.AutoLink:
		b.WriteString(w.link.Render(string(n.URL(w.src))))
	case *ast.Image:
		b.WriteString(w.link.Render(w.inline(n)))
		b.WriteString(w.muted.Render(" (" + string(n.Destination) + ")"))
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.src))
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.span(c, b)
		}
	}
}
