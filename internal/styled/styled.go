package styled

import (
	"fmt"
	"sort"
	"strings"
)

// Placeholder is the glyph a separator line span is anchored to.
const Placeholder = "\uFFFC"

// Kind is the type of a style span.
type Kind int

const (
	Bold Kind = iota
	ForegroundColor
	SeparatorLine
	Monospace
	RelativeSize
)

func (k Kind) String() string {
	switch k {
	case Bold:
		return "bold"
	case ForegroundColor:
		return "foreground_color"
	case SeparatorLine:
		return "separator_line"
	case Monospace:
		return "monospace"
	case RelativeSize:
		return "relative_size"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Color is an opaque color token, usually a #rrggbb hex string.
type Color string

// Span styles the half-open byte range [Start, End) of a Document.
// Color is set for ForegroundColor and SeparatorLine, Stroke for
// SeparatorLine and Factor for RelativeSize.
type Span struct {
	Kind   Kind
	Start  int
	End    int
	Color  Color
	Stroke float64
	Factor float64
}

// Document is the finished output of a Builder.
type Document struct {
	Text  string
	Spans []Span
}

// Slice returns the text covered by the span.
func (d Document) Slice(s Span) string {
	return d.Text[s.Start:s.End]
}

// SpansOf returns all spans of the given kind in insertion order.
func (d Document) SpansOf(k Kind) []Span {
	var ret []Span
	for _, s := range d.Spans {
		if s.Kind == k {
			ret = append(ret, s)
		}
	}
	return ret
}

// Builder accumulates text and style spans. The zero value is ready to use.
// A Builder must not be used concurrently.
type Builder struct {
	sb    strings.Builder
	spans []Span
}

func (b *Builder) WriteString(s string) {
	b.sb.WriteString(s)
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	return b.sb.Len()
}

func (b *Builder) mark(s Span) {
	if s.Start < 0 || s.End < s.Start || s.End > b.sb.Len() {
		panic(fmt.Sprintf("styled: invalid %s span [%d,%d) for length %d", s.Kind, s.Start, s.End, b.sb.Len()))
	}
	b.spans = append(b.spans, s)
}

func (b *Builder) Bold(start, end int) {
	b.mark(Span{Kind: Bold, Start: start, End: end})
}

func (b *Builder) WarningColor(start, end int, c Color) {
	b.mark(Span{Kind: ForegroundColor, Start: start, End: end, Color: c})
}

func (b *Builder) Separator(start, end int, c Color, stroke float64) {
	b.mark(Span{Kind: SeparatorLine, Start: start, End: end, Color: c, Stroke: stroke})
}

func (b *Builder) Monospace(start, end int) {
	b.mark(Span{Kind: Monospace, Start: start, End: end})
}

func (b *Builder) RelativeSize(start, end int, factor float64) {
	b.mark(Span{Kind: RelativeSize, Start: start, End: end, Factor: factor})
}

// AppendSeparator writes the placeholder glyph and marks it as a separator line.
func (b *Builder) AppendSeparator(c Color, stroke float64) {
	start := b.sb.Len()
	b.sb.WriteString(Placeholder)
	b.Separator(start, b.sb.Len(), c, stroke)
}

// Finish returns the document built so far.
func (b *Builder) Finish() Document {
	spans := make([]Span, len(b.spans))
	copy(spans, b.spans)
	return Document{Text: b.sb.String(), Spans: spans}
}

// Run is a maximal segment of a Document with a constant set of styles.
type Run struct {
	Text      string
	Start     int
	End       int
	Bold      bool
	Color     Color
	Separator *Span
	Monospace bool
	Size      float64
}

// Runs splits the document into runs. Segments not covered by any span
// are returned as plain runs with Size 1. Where several spans of the same
// kind overlap the one inserted last wins.
func (d Document) Runs() []Run {
	if d.Text == "" {
		return nil
	}

	bounds := []int{0, len(d.Text)}
	for _, s := range d.Spans {
		if s.Start == s.End {
			continue
		}
		bounds = append(bounds, s.Start, s.End)
	}
	sort.Ints(bounds)

	// spans sorted by start so the active set can be swept
	order := make([]int, 0, len(d.Spans))
	for i, s := range d.Spans {
		if s.Start != s.End {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return d.Spans[order[i]].Start < d.Spans[order[j]].Start
	})

	var runs []Run
	var active []int
	next := 0
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		if start == end {
			continue
		}

		for next < len(order) && d.Spans[order[next]].Start <= start {
			active = append(active, order[next])
			next++
		}
		kept := active[:0]
		for _, idx := range active {
			if d.Spans[idx].End > start {
				kept = append(kept, idx)
			}
		}
		active = kept
		sort.Ints(active)

		r := Run{Text: d.Text[start:end], Start: start, End: end, Size: 1}
		for _, idx := range active {
			s := d.Spans[idx]
			switch s.Kind {
			case Bold:
				r.Bold = true
			case ForegroundColor:
				r.Color = s.Color
			case SeparatorLine:
				sep := s
				r.Separator = &sep
			case Monospace:
				r.Monospace = true
			case RelativeSize:
				r.Size = s.Factor
			}
		}
		runs = append(runs, r)
	}
	return runs
}
