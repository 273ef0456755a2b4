package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/firefart/dmarcviewer/internal/helper"

	gomail "github.com/emersion/go-message/mail"
	"github.com/hashicorp/go-multierror"

	// needed to handle other charsets too
	_ "github.com/emersion/go-message/charset"
)

// Attachment is a report file found in a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// ErrNoReport is returned for messages without any report attachment.
var ErrNoReport = errors.New("message does not contain a dmarc report")

// ExtractReports returns all report attachments of an RFC 5322 message.
// Broken parts are collected into the returned error while the remaining
// parts are still processed.
func ExtractReports(ctx context.Context, r io.Reader, log *slog.Logger) ([]Attachment, error) {
	m, err := gomail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create reader: %w", err)
	}
	defer m.Close()

	log.Debug("reader created",
		"date", m.Header.Get("Date"),
		"from", m.Header.Get("From"),
		"subject", m.Header.Get("Subject"))

	var attachments []Attachment
	var result *multierror.Error
outer:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			p, err := m.NextPart()
			if errors.Is(err, io.EOF) {
				break outer
			} else if err != nil {
				result = multierror.Append(result, fmt.Errorf("could not get next part: %w", err))
				break outer
			}

			switch h := p.Header.(type) {
			case *gomail.InlineHeader:
				b, err := io.ReadAll(p.Body)
				if err != nil {
					result = multierror.Append(result, fmt.Errorf("could not read inline body: %w", err))
					continue
				}

				// sometimes the attachment is inlined so we check the magic bytes
				if !helper.IsSupportedArchive(b) && !isXMLPart(h) {
					log.Debug("skipping inline part", "content_type", h.Get("Content-Type"))
					continue
				}
				_, params, err := h.ContentDisposition()
				filename := params["filename"]
				if err != nil || filename == "" {
					_, ctParams, _ := h.ContentType()
					filename = ctParams["name"]
				}
				if filename == "" {
					result = multierror.Append(result, errors.New("could not determine filename of inline report"))
					continue
				}
				log.Info("found inline attachment", "filename", filename)
				attachments = append(attachments, Attachment{Filename: filename, Content: b})
			case *gomail.AttachmentHeader:
				filename, err := h.Filename()
				if err != nil {
					result = multierror.Append(result, fmt.Errorf("could not get attachment filename: %w", err))
					continue
				}

				b, err := io.ReadAll(p.Body)
				if err != nil {
					result = multierror.Append(result, fmt.Errorf("could not read attachment %s: %w", filename, err))
					continue
				}
				log.Info("found attachment", "filename", filename)
				attachments = append(attachments, Attachment{Filename: filename, Content: b})
			default:
				log.Info("no header type implemented", "header", fmt.Sprintf("%T", p.Header))
			}
		}
	}

	if len(attachments) == 0 && result == nil {
		return nil, ErrNoReport
	}
	return attachments, result.ErrorOrNil()
}

func isXMLPart(h *gomail.InlineHeader) bool {
	ct, _, err := h.ContentType()
	if err != nil {
		return false
	}
	return ct == "text/xml" || ct == "application/xml"
}
