package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
)

// Result is the outcome box printed after a command
type Result struct {
	Type            ResultType
	Title           string   // e.g., "ANC set to normal"
	Details         []Param  // Rows to display
	Error           error    // Error (for failure results)
	Troubleshooting []string // Tips (for failure results)
	Width           int
	Plain           bool
}

// NewSuccessResult creates a success result
func NewSuccessResult(title string, details []Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// SetPlain switches plain text rendering on or off
func (r *Result) SetPlain(plain bool) *Result {
	r.Plain = plain
	return r
}

// AddDetail appends a detail row
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Param{Key: key, Value: value})
	return r
}

// Render returns the result as a string
func (r *Result) Render() string {
	if r.Plain {
		return r.renderPlain()
	}

	width := clampWidth(r.Width)
	color := SuccessColor
	var lines []string

	if r.Type == ResultFailure {
		color = ErrorColor
		lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf(" %s  %s", FailureMarker, r.Title)))
		if r.Error != nil {
			lines = append(lines, ErrorMessageStyle.Render("    Error: "+r.Error.Error()))
		}
		if len(r.Troubleshooting) > 0 {
			lines = append(lines, "")
			for _, tip := range r.Troubleshooting {
				lines = append(lines, TroubleshootingItemStyle.Render("    • "+tip))
			}
		}
	} else {
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf(" %s  %s", SuccessMarker, r.Title)))
		for _, p := range r.Details {
			lines = append(lines, renderRow(p))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) renderPlain() string {
	var b strings.Builder
	if r.Type == ResultFailure {
		fmt.Fprintf(&b, "%s %s\n", FailureMarker, r.Title)
		if r.Error != nil {
			fmt.Fprintf(&b, "  Error: %v\n", r.Error)
		}
		for _, tip := range r.Troubleshooting {
			fmt.Fprintf(&b, "  - %s\n", tip)
		}
	} else {
		fmt.Fprintf(&b, "%s %s\n", SuccessMarker, r.Title)
		for _, p := range r.Details {
			fmt.Fprintf(&b, "%-*s %s\n", KeyWidth, p.Key+":", p.Value)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
