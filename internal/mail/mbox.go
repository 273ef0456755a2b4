package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/emersion/go-mbox"
	"github.com/hashicorp/go-multierror"
)

// ExtractMbox returns the report attachments of every message in an mbox
// file. Messages without a report are skipped.
func ExtractMbox(ctx context.Context, r io.Reader, log *slog.Logger) ([]Attachment, error) {
	reader := mbox.NewReader(r)

	var attachments []Attachment
	var result *multierror.Error
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msg, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not read message %d: %w", i, err))
			break
		}

		found, err := ExtractReports(ctx, msg, log)
		if errors.Is(err, ErrNoReport) {
			log.Debug("skipping message without report", "message", i)
			continue
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("message %d: %w", i, err))
		}
		attachments = append(attachments, found...)
	}

	if len(attachments) == 0 && result == nil {
		return nil, ErrNoReport
	}
	return attachments, result.ErrorOrNil()
}
