package xmlfmt

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/emersion/go-message/charset"
)

// Indent re-indents an XML document with the given number of spaces per
// level. Whitespace-only text between elements is replaced, all other
// content is kept as is.
func Indent(data []byte, spaces int) (string, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.Reader
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("could not parse xml: %w", err)
	}
	if doc.Root() == nil {
		return "", errors.New("document has no root element")
	}

	doc.Indent(spaces)

	s, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("could not write xml: %w", err)
	}
	return s, nil
}
