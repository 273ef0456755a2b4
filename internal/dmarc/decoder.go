package dmarc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/firefart/dmarcviewer/internal/styled"
)

const prettyIndent = 2

type decoder struct {
	ctx  context.Context
	opts Options
	log  *slog.Logger
	src  *source
	reg  regions
	out  styled.Builder
}

func newDecoder(ctx context.Context, data []byte, opts Options) *decoder {
	opts = opts.withDefaults()
	return &decoder{
		ctx:  ctx,
		opts: opts,
		log:  opts.Logger,
		src:  newSource(data),
	}
}

// Decode reads a DMARC aggregate report from r and renders it as a styled
// document. Partial output is discarded on error.
func Decode(ctx context.Context, r io.Reader, opts Options) (*styled.Document, error) {
	if r == nil {
		return nil, ErrMissingInput
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputUnreadable, err)
	}
	return DecodeBytes(ctx, data, opts)
}

// DecodeFile decodes the report stored at path.
func DecodeFile(ctx context.Context, path string, opts Options) (*styled.Document, error) {
	if path == "" {
		return nil, ErrMissingInput
	}
	f, err := os.Open(path) // nolint: gosec
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputUnreadable, err)
	}
	defer f.Close()
	return Decode(ctx, f, opts)
}

// DecodeBytes renders an in-memory report.
func DecodeBytes(ctx context.Context, data []byte, opts Options) (*styled.Document, error) {
	d := newDecoder(ctx, data, opts)
	if err := d.walk(); err != nil {
		return nil, err
	}
	d.appendPretty(data)
	doc := d.out.Finish()
	return &doc, nil
}

func (d *decoder) walk() error {
	for {
		select {
		case <-d.ctx.Done():
			return d.ctx.Err()
		default:
		}

		kind, err := d.src.next()
		if err != nil {
			return err
		}
		switch kind {
		case eventEndDocument:
			return nil
		case eventStartTag:
			if err := d.startTag(d.src.name); err != nil {
				return err
			}
		case eventEndTag:
			d.endTag(d.src.name)
		}
	}
}

func isSection(name string) bool {
	switch name {
	case "report_metadata", "policy_published", "row", "identifiers", "auth_results":
		return true
	}
	return false
}

func (d *decoder) startTag(name string) error {
	d.reg.open(name)

	switch name {
	case "row":
		d.out.AppendSeparator(d.opts.SeparatorColor, d.opts.SeparatorStroke)
		d.out.WriteString("\n")
	case "auth_results":
		d.out.WriteString("\n")
	}

	if err := d.extract(name); err != nil {
		return err
	}

	if isSection(name) {
		start := d.out.Len()
		d.out.WriteString(name)
		d.out.Bold(start, d.out.Len())
		d.out.WriteString("\n")
	}
	return nil
}

func (d *decoder) endTag(name string) {
	d.reg.close(name)

	switch name {
	case "report_metadata", "policy_published", "row":
		if d.reg.feedback {
			d.out.WriteString("\n\n")
		}
	case "identifiers", "auth_results":
		if d.reg.feedback {
			d.out.WriteString("\n")
		}
	case "dkim", "spf":
		if d.reg.feedback && d.reg.authResults {
			d.reg.pendingAuthMethod = ""
			d.out.WriteString("\n")
		}
	}
}

// appendPretty adds the separator and the indented copy of the raw report.
func (d *decoder) appendPretty(data []byte) {
	d.out.AppendSeparator(d.opts.SeparatorColor, d.opts.SeparatorStroke)
	d.out.WriteString("\n")

	if d.opts.PrettyPrint == nil {
		return
	}
	pretty, err := d.opts.PrettyPrint(data, prettyIndent)
	if err != nil {
		d.log.Warn("could not pretty print report", "error", err)
		return
	}

	start := d.out.Len()
	d.out.WriteString(pretty)
	d.out.Monospace(start, d.out.Len())
	d.out.RelativeSize(start, d.out.Len(), d.opts.SmallSize)
}
