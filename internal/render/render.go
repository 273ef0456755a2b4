package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/firefart/dmarcviewer/internal/styled"
	"github.com/muesli/termenv"
)

// Options controls how documents are written to a terminal.
type Options struct {
	// SeparatorWidth is the number of columns a separator line spans.
	SeparatorWidth int
	// NoColor disables all escape sequences.
	NoColor bool
	// ForceColor emits true color sequences even if w is not a terminal.
	ForceColor bool
}

// Terminal writes doc to w. Bold and color spans become ANSI attributes,
// separator glyphs become horizontal lines and small text is rendered
// faint.
func Terminal(w io.Writer, doc styled.Document, opts Options) error {
	r := lipgloss.NewRenderer(w)
	switch {
	case opts.NoColor:
		r.SetColorProfile(termenv.Ascii)
	case opts.ForceColor:
		r.SetColorProfile(termenv.TrueColor)
	}
	if opts.SeparatorWidth <= 0 {
		opts.SeparatorWidth = 72
	}

	var sb strings.Builder
	for _, run := range doc.Runs() {
		sb.WriteString(renderRun(r, run, opts))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func separatorLine(sep styled.Span, width int) string {
	if sep.Stroke >= 2 {
		return strings.Repeat("━", width)
	}
	return strings.Repeat("─", width)
}

func renderRun(r *lipgloss.Renderer, run styled.Run, opts Options) string {
	if run.Separator != nil {
		line := separatorLine(*run.Separator, opts.SeparatorWidth)
		if run.Separator.Color == "" {
			return line
		}
		return r.NewStyle().Foreground(lipgloss.Color(string(run.Separator.Color))).Render(line)
	}

	style := r.NewStyle()
	plain := true
	if run.Bold {
		style = style.Bold(true)
		plain = false
	}
	if run.Color != "" {
		style = style.Foreground(lipgloss.Color(string(run.Color)))
		plain = false
	}
	if run.Size < 1 {
		style = style.Faint(true)
		plain = false
	}
	if plain {
		return run.Text
	}

	// style every line on its own, lipgloss pads multi line blocks to a
	// common width
	lines := strings.Split(run.Text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
