package mail

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const report = `<feedback><report_metadata><org_name>example.net</org_name></report_metadata></feedback>`

func gzipBase64(t *testing.T, s string) string {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("could not write gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close gzip: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func message(parts ...string) string {
	var sb strings.Builder
	sb.WriteString("From: noreply-dmarc-support@google.com\r\n")
	sb.WriteString("To: dmarc@example.com\r\n")
	sb.WriteString("Subject: Report domain: example.com\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/mixed; boundary=\"b1\"\r\n\r\n")
	for _, p := range parts {
		sb.WriteString("--b1\r\n")
		sb.WriteString(p)
		sb.WriteString("\r\n")
	}
	sb.WriteString("--b1--\r\n")
	return sb.String()
}

func TestExtractReports(t *testing.T) {
	t.Parallel()

	msg := message(
		"Content-Type: text/plain; charset=utf-8\r\n\r\nThis is an aggregate report.",
		"Content-Type: application/gzip\r\n"+
			"Content-Disposition: attachment; filename=\"google.com!example.com!1577836800!1577923199.xml.gz\"\r\n"+
			"Content-Transfer-Encoding: base64\r\n\r\n"+gzipBase64(t, report),
		"Content-Type: text/xml\r\n"+
			"Content-Disposition: inline; filename=\"second.xml\"\r\n\r\n"+report,
	)

	attachments, err := ExtractReports(context.Background(), strings.NewReader(msg), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(attachments))
	}
	if attachments[0].Filename != "google.com!example.com!1577836800!1577923199.xml.gz" {
		t.Fatalf("unexpected filename %q", attachments[0].Filename)
	}
	if !bytes.HasPrefix(attachments[0].Content, []byte{31, 139}) {
		t.Fatal("attachment content is not the decoded gzip data")
	}
	if attachments[1].Filename != "second.xml" || string(attachments[1].Content) != report {
		t.Fatalf("unexpected inline report %+v", attachments[1])
	}
}

func TestExtractReportsNoReport(t *testing.T) {
	t.Parallel()

	msg := message("Content-Type: text/plain\r\n\r\nhello")
	_, err := ExtractReports(context.Background(), strings.NewReader(msg), slog.New(slog.DiscardHandler))
	if !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected no report error, got %v", err)
	}
}

func TestExtractReportsCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg := message("Content-Type: text/plain\r\n\r\nhello")
	if _, err := ExtractReports(ctx, strings.NewReader(msg), slog.New(slog.DiscardHandler)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestExtractMbox(t *testing.T) {
	t.Parallel()

	withReport := message("Content-Type: text/xml\r\n" +
		"Content-Disposition: attachment; filename=\"report.xml\"\r\n\r\n" + report)
	withoutReport := message("Content-Type: text/plain\r\n\r\nhello")

	var sb strings.Builder
	for _, m := range []string{withReport, withoutReport, withReport} {
		sb.WriteString("From noreply-dmarc-support@google.com Thu Jan  2 00:00:00 2020\n")
		sb.WriteString(m)
		sb.WriteString("\n")
	}

	attachments, err := ExtractMbox(context.Background(), strings.NewReader(sb.String()), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(attachments))
	}
	for _, a := range attachments {
		if a.Filename != "report.xml" || !strings.Contains(string(a.Content), "example.net") {
			t.Fatalf("unexpected attachment %+v", a)
		}
	}
}

func TestExtractMboxEmpty(t *testing.T) {
	t.Parallel()

	_, err := ExtractMbox(context.Background(), strings.NewReader(""), slog.New(slog.DiscardHandler))
	if !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected no report error, got %v", err)
	}
}
