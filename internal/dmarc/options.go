package dmarc

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/firefart/dmarcviewer/internal/styled"
	"github.com/firefart/dmarcviewer/internal/xmlfmt"
	"golang.org/x/text/language"
)

// Organization is the owner of an IP address.
type Organization struct {
	Name string
}

// OrganizationLookup resolves the organization an IP address belongs to.
type OrganizationLookup interface {
	LookupOrganization(ctx context.Context, addr netip.Addr) (Organization, error)
}

// OrganizationLookupFunc adapts a function to OrganizationLookup.
type OrganizationLookupFunc func(ctx context.Context, addr netip.Addr) (Organization, error)

func (f OrganizationLookupFunc) LookupOrganization(ctx context.Context, addr netip.Addr) (Organization, error) {
	return f(ctx, addr)
}

// PrettyPrinter re-indents a raw XML document.
type PrettyPrinter func(data []byte, indent int) (string, error)

// Options carries everything a decode needs besides the report itself.
type Options struct {
	Dates           DateFormatter
	WarningColor    styled.Color
	SeparatorColor  styled.Color
	SeparatorStroke float64
	SmallSize       float64
	// Lookup annotates source IPs with their organization. Nil disables it.
	Lookup OrganizationLookup
	// PrettyPrint renders the appendix. Nil omits it.
	PrettyPrint PrettyPrinter
	Logger      *slog.Logger
}

// DefaultOptions returns options with UTC ISO-like dates, the default
// palette and the etree based pretty printer.
func DefaultOptions() Options {
	return Options{
		Dates:           ShortDateTime(language.Und, time.UTC),
		WarningColor:    "#e53935",
		SeparatorColor:  "#9e9e9e",
		SeparatorStroke: 1,
		SmallSize:       0.8,
		PrettyPrint:     xmlfmt.Indent,
		Logger:          slog.New(slog.DiscardHandler),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Dates == nil {
		o.Dates = d.Dates
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.SeparatorStroke == 0 {
		o.SeparatorStroke = d.SeparatorStroke
	}
	if o.SmallSize == 0 {
		o.SmallSize = d.SmallSize
	}
	return o
}
