package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"roast-api/internal/classifier"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorRoast = lipgloss.AdaptiveColor{Light: "#6f4e37", Dark: "#c8a27a"}
	colorPass  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorFail  = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

var (
	Success = lipgloss.NewStyle().Foreground(colorPass).Bold(true)
	Failure = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	BarFill = lipgloss.NewStyle().Foreground(colorRoast)
	Dim     = lipgloss.NewStyle().Foreground(colorMuted)
)

// SetColorMode forces colors on or off; "auto" leaves terminal detection alone.
func SetColorMode(mode string) {
	switch mode {
	case "never":
		_ = os.Setenv("NO_COLOR", "1")
		Success = lipgloss.NewStyle()
		Failure = lipgloss.NewStyle()
		BarFill = lipgloss.NewStyle()
		Dim = lipgloss.NewStyle()
	case "always":
		_ = os.Unsetenv("NO_COLOR")
		_ = os.Setenv("CLICOLOR_FORCE", "1")
		Success = lipgloss.NewStyle().Foreground(colorPass).Bold(true)
		Failure = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
		BarFill = lipgloss.NewStyle().Foreground(colorRoast)
		Dim = lipgloss.NewStyle().Foreground(colorMuted)
	}
}

// WriteTerminal prints the result the same way the page shows it, with text
// bars of at most width cells.
func WriteTerminal(w io.Writer, res *classifier.Result, width int) error {
	if width < 1 {
		width = 30
	}
	bars := Bars(res)

	labelWidth := 0
	for _, b := range bars {
		labelWidth = max(labelWidth, lipgloss.Width(b.Label))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", Success.Render("Prediction: "+res.Top.Label))
	fmt.Fprintf(&sb, "Confidence: %s\n\n", Percent(res.Top.Probability))
	sb.WriteString("Confidence per class:\n")
	for _, b := range bars {
		filled := int(clamp(b.Probability)*float64(width) + 0.5)
		bar := BarFill.Render(strings.Repeat("█", filled)) + Dim.Render(strings.Repeat("░", width-filled))
		fmt.Fprintf(&sb, "  %-*s  %s  %7s\n", labelWidth, b.Label, bar, b.Percent)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteTerminalFailure prints the message shown when no prediction came back.
func WriteTerminalFailure(w io.Writer, err error) error {
	msg := Failure.Render("Could not get a prediction.")
	reason := classifier.ReasonOf(err)
	detail := err.Error()
	if reason != "" {
		detail = fmt.Sprintf("%s (%s)", detail, reason)
	}
	_, werr := fmt.Fprintf(w, "%s\n%s\n", msg, Dim.Render(detail))
	return werr
}
