package styled

import (
	"testing"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	var b Builder
	b.WriteString("spf=")
	start := b.Len()
	b.WriteString("fail")
	b.Bold(start, b.Len())
	b.WarningColor(start, b.Len(), "#ff0000")
	b.WriteString(" ")
	b.AppendSeparator("#cccccc", 2)

	doc := b.Finish()
	if doc.Text != "spf=fail "+Placeholder {
		t.Fatalf("unexpected text %q", doc.Text)
	}
	if len(doc.Spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(doc.Spans))
	}
	if got := doc.Slice(doc.Spans[0]); got != "fail" {
		t.Fatalf("bold span covers %q", got)
	}
	if doc.Spans[1].Kind != ForegroundColor || doc.Spans[1].Color != "#ff0000" {
		t.Fatalf("unexpected color span %+v", doc.Spans[1])
	}
	sep := doc.SpansOf(SeparatorLine)
	if len(sep) != 1 {
		t.Fatalf("expected one separator, got %d", len(sep))
	}
	if doc.Slice(sep[0]) != Placeholder || sep[0].Stroke != 2 {
		t.Fatalf("unexpected separator span %+v", sep[0])
	}
}

func TestBuilderFinishIsSnapshot(t *testing.T) {
	t.Parallel()

	var b Builder
	b.WriteString("abc")
	b.Bold(0, 3)
	doc := b.Finish()
	b.WriteString("def")
	b.Monospace(3, 6)
	if doc.Text != "abc" || len(doc.Spans) != 1 {
		t.Fatalf("document changed after Finish: %+v", doc)
	}
}

func TestBuilderInvalidRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end int
	}{
		{"negative", -1, 1},
		{"inverted", 2, 1},
		{"past end", 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			var b Builder
			b.WriteString("abc")
			b.Bold(tt.start, tt.end)
		})
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()

	var b Builder
	b.WriteString("header\n")
	b.Bold(0, 6)
	start := b.Len()
	b.WriteString("<x/>")
	b.Monospace(start, b.Len())
	b.RelativeSize(start, b.Len(), 0.8)
	b.Bold(start+1, start+2)
	doc := b.Finish()

	runs := doc.Runs()
	want := []Run{
		{Text: "header", Start: 0, End: 6, Bold: true, Size: 1},
		{Text: "\n", Start: 6, End: 7, Size: 1},
		{Text: "<", Start: 7, End: 8, Monospace: true, Size: 0.8},
		{Text: "x", Start: 8, End: 9, Bold: true, Monospace: true, Size: 0.8},
		{Text: "/>", Start: 9, End: 11, Monospace: true, Size: 0.8},
	}
	if len(runs) != len(want) {
		t.Fatalf("expected %d runs, got %d: %+v", len(want), len(runs), runs)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("run %d: got %+v want %+v", i, runs[i], want[i])
		}
	}
}

func TestRunsSeparator(t *testing.T) {
	t.Parallel()

	var b Builder
	b.AppendSeparator("#999999", 1)
	b.WriteString("\nrow")
	runs := b.Finish().Runs()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Separator == nil || runs[0].Text != Placeholder {
		t.Fatalf("first run is not a separator: %+v", runs[0])
	}
	if runs[0].Separator.Color != "#999999" {
		t.Fatalf("wrong separator color %q", runs[0].Separator.Color)
	}
	if runs[1].Separator != nil {
		t.Fatalf("second run has a separator: %+v", runs[1])
	}
}

func TestRunsEmpty(t *testing.T) {
	t.Parallel()

	if runs := (Document{}).Runs(); runs != nil {
		t.Fatalf("expected no runs, got %+v", runs)
	}
}
