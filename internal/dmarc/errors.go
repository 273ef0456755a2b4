package dmarc

import "errors"

var (
	// ErrMissingInput is returned when no report stream was supplied.
	ErrMissingInput = errors.New("no report input supplied")
	// ErrInputUnreadable is returned when the report could not be opened or read.
	ErrInputUnreadable = errors.New("report input unreadable")
	// ErrXMLSyntax is returned when the report is not well-formed XML.
	ErrXMLSyntax = errors.New("malformed report xml")
)
