package dmarc

import (
	"time"

	"golang.org/x/text/language"
)

// DateFormatter renders a report timestamp.
type DateFormatter func(t time.Time) string

// short date and time layouts per locale
var dateLayouts = []struct {
	tag    language.Tag
	layout string
}{
	{language.Und, "2006-01-02 15:04"},
	{language.AmericanEnglish, "1/2/06, 3:04 PM"},
	{language.English, "02/01/2006, 15:04"},
	{language.German, "02.01.06, 15:04"},
	{language.French, "02/01/2006 15:04"},
	{language.Spanish, "02/01/2006 15:04"},
	{language.Italian, "02/01/2006 15:04"},
	{language.Portuguese, "02/01/2006 15:04"},
	{language.Dutch, "02-01-2006 15:04"},
	{language.Japanese, "2006/01/02 15:04"},
	{language.Chinese, "2006/01/02 15:04"},
}

var dateMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(dateLayouts))
	for i, l := range dateLayouts {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// DateLayout returns the short date and time layout for a locale.
// Unknown locales get an ISO-like layout.
func DateLayout(tag language.Tag) string {
	if tag == language.Und {
		return dateLayouts[0].layout
	}
	_, idx, conf := dateMatcher.Match(tag)
	if conf == language.No {
		return dateLayouts[0].layout
	}
	return dateLayouts[idx].layout
}

// ShortDateTime formats times with the short layout of tag in loc.
func ShortDateTime(tag language.Tag, loc *time.Location) DateFormatter {
	if loc == nil {
		loc = time.UTC
	}
	layout := DateLayout(tag)
	return func(t time.Time) string {
		return t.In(loc).Format(layout)
	}
}
