package dmarc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/charset"
)

type eventKind int

const (
	eventStartTag eventKind = iota
	eventEndTag
	eventText
	eventEndDocument
)

// source is a pull parser over a report. It keeps the current event and
// allows pushing it back once. Comments, processing instructions and
// directives are skipped, adjacent text and CDATA sections form one text
// event.
type source struct {
	dec      *xml.Decoder
	kind     eventKind
	name     string
	text     string
	unread   bool
	sawRoot  bool
	finished bool

	// token read past the end of a merged text event
	ahead    xml.Token
	aheadErr error
	hasAhead bool
}

func newSource(data []byte) *source {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charset.Reader
	return &source{dec: dec}
}

// next advances to the following event and returns its kind.
func (s *source) next() (eventKind, error) {
	if s.unread {
		s.unread = false
		return s.kind, nil
	}
	if s.finished {
		return eventEndDocument, nil
	}

	tok, err := s.token()
	if errors.Is(err, io.EOF) {
		if !s.sawRoot {
			return 0, fmt.Errorf("%w: document has no root element", ErrXMLSyntax)
		}
		s.finished = true
		s.kind, s.name, s.text = eventEndDocument, "", ""
		return s.kind, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrXMLSyntax, err)
	}

	s.name, s.text = "", ""
	switch t := tok.(type) {
	case xml.StartElement:
		s.sawRoot = true
		s.kind = eventStartTag
		s.name = t.Name.Local
	case xml.EndElement:
		s.kind = eventEndTag
		s.name = t.Name.Local
	case xml.CharData:
		s.kind = eventText
		s.text = s.mergeText(t)
	}
	return s.kind, nil
}

// token returns the next token that is an element boundary or text.
func (s *source) token() (xml.Token, error) {
	if s.hasAhead {
		s.hasAhead = false
		return s.ahead, s.aheadErr
	}
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, err
		}
		switch tok.(type) {
		case xml.StartElement, xml.EndElement, xml.CharData:
			return tok, nil
		}
	}
}

// mergeText joins first with all directly following character data. The
// first token that is not text is kept for the next call to token.
func (s *source) mergeText(first xml.CharData) string {
	var sb strings.Builder
	sb.Write(first)
	for {
		tok, err := s.token()
		cd, ok := tok.(xml.CharData)
		if err != nil || !ok {
			s.ahead, s.aheadErr, s.hasAhead = tok, err, true
			return sb.String()
		}
		sb.Write(cd)
	}
}

// pushBack makes the next call to next return the current event again.
func (s *source) pushBack() {
	s.unread = true
}
