package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one key/value row
type Param struct {
	Key   string
	Value string
	Style *lipgloss.Style // Optional value style
}

// Header is a title banner with ordered key/value rows.
type Header struct {
	Title   string  // e.g., "ORIG EARBUDS"
	Command string  // e.g., "origctl status"
	Params  []Param // Rows, rendered in order
	Width   int     // Terminal width for responsive rendering
	Plain   bool    // Render without borders or colors
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params []Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// SetPlain switches plain text rendering on or off
func (h *Header) SetPlain(plain bool) *Header {
	h.Plain = plain
	return h
}

// Render returns the header as a string
func (h *Header) Render() string {
	if h.Plain {
		return h.renderPlain()
	}

	width := clampWidth(h.Width)

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	top := titleLine
	if h.Command != "" {
		top = lipgloss.JoinVertical(lipgloss.Left, titleLine, HeaderCommandStyle.Render(h.Command))
	}

	content := top
	if len(h.Params) > 0 {
		rows := make([]string, 0, len(h.Params))
		for _, p := range h.Params {
			rows = append(rows, renderRow(p))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, top, divider(width), strings.Join(rows, "\n"))
	}

	return boxStyle(width, PrimaryColor).Render(content)
}

func (h *Header) renderPlain() string {
	var b strings.Builder
	b.WriteString(h.Title)
	b.WriteString("\n")
	for _, p := range h.Params {
		fmt.Fprintf(&b, "%-*s %s\n", KeyWidth, p.Key+":", p.Value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderRow(p Param) string {
	value := ValueStyle
	if p.Style != nil {
		value = *p.Style
	}
	return KeyStyle.Render(p.Key+":") + value.Render(p.Value)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
