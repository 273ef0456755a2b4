package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/firefart/dmarcviewer/internal/config"
)

// Message is a fetched mail.
type Message struct {
	UID     uint32
	Subject string
	Body    []byte
}

func Connect(conf config.IMAPConfig, logger imap.Logger) (*client.Client, error) {
	tlsConfig := tls.Config{} // nolint: gosec
	if conf.IgnoreCert {
		tlsConfig.InsecureSkipVerify = true // nolint:gosec
	}
	if conf.SSL {
		c, err := client.DialTLS(conf.Host, &tlsConfig)
		if err != nil {
			return nil, err
		}
		c.Timeout = conf.Timeout.Duration
		c.ErrorLog = logger
		return c, nil
	}
	c, err := client.Dial(conf.Host)
	if err != nil {
		return nil, err
	}
	c.ErrorLog = logger
	c.Timeout = conf.Timeout.Duration
	support, err := c.SupportStartTLS()
	if err != nil {
		return nil, err
	}
	if support {
		if err := c.StartTLS(&tlsConfig); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func HasImapFolder(c *client.Client, folderName string) (bool, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	hasFolder := false
	for m := range mailboxes {
		if m.Name == folderName {
			hasFolder = true
		}
	}

	if err := <-done; err != nil {
		return false, err
	}

	return hasFolder, nil
}

// newest returns the last limit ids in ascending order.
func newest(ids []uint32, limit int) []uint32 {
	sorted := make([]uint32, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

// FetchNewest opens folder read-only and returns the newest limit messages
// that are not marked as deleted.
func FetchNewest(c *client.Client, folder string, limit int, log *slog.Logger) ([]Message, error) {
	hasFolder, err := HasImapFolder(c, folder)
	if err != nil {
		return nil, fmt.Errorf("could not check if folder %s exists: %w", folder, err)
	}
	if !hasFolder {
		return nil, fmt.Errorf("imap folder %s not found in account", folder)
	}

	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("could not select folder %s: %w", folder, err)
	}
	log.Info("opened folder", "folder", mbox.Name, "messages", mbox.Messages, "unseen", mbox.Unseen)

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search for mails: %w", err)
	}
	log.Debug("found mails without the DELETED flag", "count", len(ids))
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(newest(ids, limit)...)
	log.Debug("fetching messages", "seqset", seqset.String())

	// BODY.PEEK so reports stay unseen
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		section.FetchItem(),
		imap.FetchEnvelope,
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var ret []Message
	var readErr error
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			log.Warn("server didn't return message body", "uid", msg.Uid)
			continue
		}
		body, err := io.ReadAll(r)
		if err != nil {
			if readErr == nil {
				readErr = fmt.Errorf("could not read message %d: %w", msg.Uid, err)
			}
			continue
		}
		subject := ""
		if msg.Envelope != nil {
			subject = msg.Envelope.Subject
		}
		ret = append(ret, Message{UID: msg.Uid, Subject: subject, Body: body})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error on fetch: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return ret, nil
}
