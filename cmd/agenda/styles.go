package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Brand color palette
var (
	colorPrimary      = lipgloss.Color("#3B82F6") // schedule blue
	colorPrimaryLight = lipgloss.Color("#60A5FA")
	colorPrimaryDark  = lipgloss.Color("#1D4ED8")

	colorText  = lipgloss.Color("#F3F4F6")
	colorMuted = lipgloss.Color("240")

	// State Colors
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

// Styles
var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorPrimary) // Uses brand color
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Foreground(colorPrimaryLight).Bold(true)
)

// Icons
const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "⚠"
	iconInfo    = "●"
)

// Tests force styled or plain output through testIsTTYOverride.
var (
	testIsTTYMutex    sync.Mutex
	testIsTTYOverride *bool
)

// isTTY returns true if stdout is a terminal
func isTTY() bool {
	testIsTTYMutex.Lock()
	override := testIsTTYOverride
	testIsTTYMutex.Unlock()
	if override != nil {
		return *override
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printStyled prints a message with an icon, applying style only in TTY mode
func printStyled(w io.Writer, icon string, style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isTTY() {
		fmt.Fprintf(w, "%s %s\n", style.Render(icon), msg)
	} else {
		fmt.Fprintf(w, "%s %s\n", icon, msg)
	}
}

// printSuccess prints a success message with green checkmark
func printSuccess(w io.Writer, format string, args ...any) {
	printStyled(w, iconSuccess, successStyle, format, args...)
}

// printError prints an error message with red X
func printError(w io.Writer, format string, args ...any) {
	printStyled(w, iconError, errorStyle, format, args...)
}

// printWarning prints a warning message with amber warning sign
func printWarning(w io.Writer, format string, args ...any) {
	printStyled(w, iconWarning, warningStyle, format, args...)
}

// printInfo prints an info message with brand-colored dot
func printInfo(w io.Writer, format string, args ...any) {
	printStyled(w, iconInfo, infoStyle, format, args...)
}

// printMuted prints muted/secondary text
func printMuted(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isTTY() {
		fmt.Fprintln(w, mutedStyle.Render(msg))
	} else {
		fmt.Fprintln(w, msg)
	}
}

// printLabel prints a styled label
func printLabel(w io.Writer, label string) {
	if isTTY() {
		fmt.Fprint(w, labelStyle.Render(label))
	} else {
		fmt.Fprint(w, label)
	}
}

// renderMarkdown renders markdown content with glamour
func renderMarkdown(content string) string {
	if !isTTY() {
		return content
	}

	// Check if content looks like it has markdown
	if !hasMarkdown(content) {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimSpace(rendered)
}

// hasMarkdown checks if content contains markdown-like syntax
// Ordered from most specific to least to reduce false positives
func hasMarkdown(content string) bool {
	markers := []string{
		"```",    // code blocks (most specific)
		"## ",    // headers
		"# ",     // headers
		"**",     // bold
		"1. ",    // numbered lists
		"- ",     // list items
		"* ",     // list items
		"](http", // links with URL (more specific than just `](`)
		"`",      // inline code (last - most prone to false positives)
	}
	for _, marker := range markers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

var panelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)

var (
	panelTitleStyle = lipgloss.NewStyle().Foreground(colorPrimaryLight).Bold(true)
	tableHeadStyle  = lipgloss.NewStyle().Foreground(colorPrimaryLight).Bold(true)
)

// renderPanel frames content with a title. Plain output keeps the title as a
// heading line.
func renderPanel(title, content string) string {
	if !isTTY() {
		if title == "" {
			return content
		}
		return title + "\n" + strings.Repeat("-", len(title)) + "\n" + content
	}
	body := content
	if title != "" {
		body = panelTitleStyle.Render(title) + "\n\n" + content
	}
	return panelStyle.Render(body)
}

// renderErrorPanel renders an error with optional context and suggestion.
func renderErrorPanel(msg, context, suggestion string) string {
	var b strings.Builder
	b.WriteString(msg)
	if context != "" {
		b.WriteString("\n\nContext: " + context)
	}
	if suggestion != "" {
		b.WriteString("\nSuggestion: " + suggestion)
	}
	if !isTTY() {
		return b.String()
	}
	return panelStyle.BorderForeground(colorError).Render(errorStyle.Render(iconError) + " " + b.String())
}

// renderTable lays out rows under headers. TTY output gets a bordered table,
// plain output space-padded columns.
func renderTable(headers []string, rows [][]string) string {
	cols := len(headers)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	measure := func(r []string) {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	line := func(r []string, style *lipgloss.Style) string {
		cells := make([]string, cols)
		for i := range cells {
			var cell string
			if i < len(r) {
				cell = r[i]
			}
			cell += strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if style != nil {
				cell = style.Render(cell)
			}
			cells[i] = cell
		}
		if isTTY() {
			return "│ " + strings.Join(cells, " │ ") + " │"
		}
		return strings.TrimRight(strings.Join(cells, "  "), " ")
	}

	var out []string
	if !isTTY() {
		if len(headers) > 0 {
			out = append(out, line(headers, nil))
		}
		for _, r := range rows {
			out = append(out, line(r, nil))
		}
		return strings.Join(out, "\n")
	}

	segs := make([]string, cols)
	for i, w := range widths {
		segs[i] = strings.Repeat("─", w+2)
	}
	out = append(out, "╭"+strings.Join(segs, "┬")+"╮")
	if len(headers) > 0 {
		out = append(out, line(headers, &tableHeadStyle))
		out = append(out, "├"+strings.Join(segs, "┼")+"┤")
	}
	for _, r := range rows {
		out = append(out, line(r, nil))
	}
	out = append(out, "╰"+strings.Join(segs, "┴")+"╯")
	return strings.Join(out, "\n")
}
