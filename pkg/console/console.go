// Package console renders styled diagnostics for the CLI. Output is
// colored only when stdout is a terminal; piped output stays plain so
// it remains IDE- and grep-friendly.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Position is a location in a source file. Line and Column are
// 1-based; zero means unknown.
type Position struct {
	File   string
	Line   int
	Column int
}

// Diagnostic is a structured message about a document, with optional
// source context for compiler-style rendering.
type Diagnostic struct {
	Position Position
	Severity string // "error", "warning", "info"
	Message  string
	// Context holds source lines around the position; ContextStart is
	// the 1-based line number of Context[0].
	Context      []string
	ContextStart int
	Hint         string
}

var (
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	infoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	filePathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#BD93F9"))

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	contextLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F8F8F2"))

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#FF5555")).
			Foreground(lipgloss.Color("#282A36"))

	hintStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#50FA7B"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#50FA7B"))
)

// isTTY checks if stdout is a terminal
func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// applyStyle conditionally applies styling based on TTY status
func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// ToRelativePath converts an absolute path to a path relative to the
// current working directory, falling back to the input on error.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	relPath, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return relPath
}

// FormatDiagnostic renders a diagnostic in the familiar
// file:line:column: severity: message form, followed by source
// context when available.
func FormatDiagnostic(d Diagnostic) string {
	var output strings.Builder

	var severityStyle lipgloss.Style
	var prefix string
	switch d.Severity {
	case "warning":
		severityStyle = warningStyle
		prefix = "warning"
	case "info":
		severityStyle = infoStyle
		prefix = "info"
	default:
		severityStyle = errorStyle
		prefix = "error"
	}

	if d.Position.File != "" {
		location := fmt.Sprintf("%s:%d:%d:",
			ToRelativePath(d.Position.File),
			d.Position.Line,
			d.Position.Column)
		output.WriteString(applyStyle(filePathStyle, location))
		output.WriteString(" ")
	}

	output.WriteString(applyStyle(severityStyle, prefix+":"))
	output.WriteString(" ")
	output.WriteString(d.Message)
	output.WriteString("\n")

	if len(d.Context) > 0 && d.Position.Line > 0 {
		output.WriteString(renderContext(d))
	}

	if d.Hint != "" {
		output.WriteString(applyStyle(hintStyle, "hint: "))
		output.WriteString(d.Hint)
		output.WriteString("\n")
	}

	return output.String()
}

// renderContext renders source lines with line numbers, highlighting
// the character the diagnostic points at and adding a caret below it.
func renderContext(d Diagnostic) string {
	var output strings.Builder

	start := d.ContextStart
	if start < 1 {
		start = 1
	}
	lineNumWidth := len(fmt.Sprintf("%d", start+len(d.Context)-1))

	for i, line := range d.Context {
		lineNum := start + i

		output.WriteString(applyStyle(lineNumberStyle, fmt.Sprintf("%*d", lineNumWidth, lineNum)))
		output.WriteString(" | ")

		if lineNum == d.Position.Line && d.Position.Column > 0 && d.Position.Column <= len(line) {
			before := line[:d.Position.Column-1]
			errorChar := string(line[d.Position.Column-1])
			after := ""
			if d.Position.Column < len(line) {
				after = line[d.Position.Column:]
			}
			output.WriteString(applyStyle(contextLineStyle, before))
			output.WriteString(applyStyle(highlightStyle, errorChar))
			output.WriteString(applyStyle(contextLineStyle, after))
		} else if lineNum == d.Position.Line {
			output.WriteString(applyStyle(highlightStyle, line))
		} else {
			output.WriteString(applyStyle(contextLineStyle, line))
		}
		output.WriteString("\n")

		if lineNum == d.Position.Line && d.Position.Column > 0 {
			padding := strings.Repeat(" ", lineNumWidth+3+d.Position.Column-1)
			output.WriteString(padding)
			output.WriteString(applyStyle(errorStyle, "^"))
			output.WriteString("\n")
		}
	}

	return output.String()
}

// FormatErrorMessage formats a simple error message (for stderr output)
func FormatErrorMessage(message string) string {
	return applyStyle(errorStyle, "✗ ") + message
}

// FormatSuccessMessage formats a success message with styling
func FormatSuccessMessage(message string) string {
	return applyStyle(successStyle, "✓ ") + message
}

// FormatInfoMessage formats an informational message
func FormatInfoMessage(message string) string {
	return applyStyle(infoStyle, "ℹ ") + message
}

// FormatWarningMessage formats a warning message
func FormatWarningMessage(message string) string {
	return applyStyle(warningStyle, "⚠ ") + message
}
