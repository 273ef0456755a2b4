package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/firefart/dmarcviewer/internal/config"
	"github.com/firefart/dmarcviewer/internal/dmarc"
	"github.com/firefart/dmarcviewer/internal/dns"
	"github.com/firefart/dmarcviewer/internal/helper"
	"github.com/firefart/dmarcviewer/internal/imap"
	"github.com/firefart/dmarcviewer/internal/mail"
	"github.com/firefart/dmarcviewer/internal/render"
	"github.com/firefart/dmarcviewer/internal/styled"
	"github.com/firefart/dmarcviewer/internal/xmlfmt"

	charmlog "github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
)

type app struct {
	config *config.Configuration
	opts   dmarc.Options
	render render.Options
	out    io.Writer
	logger *slog.Logger
	debug  bool
}

var (
	log = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	})
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func main() {
	debug := flag.Bool("debug", false, "Print debug output")
	noColor := flag.Bool("no-color", false, "do not color the output")
	fromIMAP := flag.Bool("imap", false, "show the newest reports of the configured imap folder")
	configFile := flag.String("config", "", "Config File to use")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [report.xml|report.xml.gz|report.zip|mail.eml|mailbox.mbox|-] ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetLevel(charmlog.InfoLevel)
	if *debug {
		log.SetLevel(charmlog.DebugLevel)
	}
	if !isTerminal(os.Stderr) {
		log.SetFormatter(charmlog.LogfmtFormatter)
	}

	settings := config.Defaults()
	if *configFile != "" {
		s, err := config.GetConfig(settings, *configFile)
		if err != nil {
			log.Errorf("could not read %s: %v", *configFile, err)
			os.Exit(1)
		}
		settings = *s
	}

	if !*fromIMAP && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// trap Ctrl+C and call cancel on the context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer func() {
		signal.Stop(c)
		cancel()
	}()

	go func() {
		select {
		case <-c:
			log.Info("CTRL+C received")
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(&settings, *debug, *noColor || !isTerminal(os.Stdout))
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	if *fromIMAP {
		err = a.showIMAP(ctx)
	} else {
		err = a.showPaths(ctx, flag.Args())
	}
	if err != nil {
		log.Error(err)
		cancel()
		os.Exit(1)
	}
}

func newApp(settings *config.Configuration, debug, noColor bool) (*app, error) {
	logger := slog.New(log)

	tag, err := language.Parse(settings.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %s: %w", settings.Locale, err)
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", settings.Timezone, err)
	}

	opts := dmarc.Options{
		Dates:           dmarc.ShortDateTime(tag, loc),
		WarningColor:    styled.Color(settings.WarningColor),
		SeparatorColor:  styled.Color(settings.SeparatorColor),
		SeparatorStroke: settings.SeparatorStroke,
		SmallSize:       settings.SmallTextFactor,
		PrettyPrint:     xmlfmt.Indent,
		Logger:          logger,
	}

	switch settings.OrgLookup {
	case "cymru":
		client := dns.NewClient(settings.DnsServer, settings.DnsConnectTimeout.Duration)
		opts.Lookup = dns.NewCymruResolver(client, settings.DnsTimeout.Duration, settings.DnsCacheTimeout.Duration, logger)
	case "ptr":
		opts.Lookup = dns.NewCachedDNSResolver(settings.DnsServer, settings.DnsConnectTimeout.Duration, settings.DnsTimeout.Duration, settings.DnsCacheTimeout.Duration, logger)
	}

	return &app{
		config: settings,
		opts:   opts,
		render: render.Options{
			SeparatorWidth: settings.SeparatorWidth,
			NoColor:        noColor,
		},
		out:    os.Stdout,
		logger: logger,
		debug:  debug,
	}, nil
}

func (a *app) showPaths(ctx context.Context, paths []string) error {
	var result *multierror.Error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var content []byte
		var err error
		name := p
		if p == "-" {
			name = "stdin"
			content, err = io.ReadAll(os.Stdin)
		} else {
			content, err = os.ReadFile(p) // nolint: gosec
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %w", dmarc.ErrInputUnreadable, err))
			continue
		}
		if err := a.showFile(ctx, name, content); err != nil {
			log.Errorf("could not show %s: %v", p, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", p, err))
		}
	}
	return result.ErrorOrNil()
}

func isMail(filename string, content []byte) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".eml":
		return true
	case ".xml", ".gz", ".zip", ".mbox":
		return false
	}
	return !helper.IsSupportedArchive(content) && !helper.LooksLikeXML(content)
}

// showFile renders a report file or every report attached to a mail.
func (a *app) showFile(ctx context.Context, filename string, content []byte) error {
	if strings.EqualFold(filepath.Ext(filename), ".mbox") {
		return a.showMbox(ctx, content)
	}
	if isMail(filename, content) {
		return a.showMail(ctx, content)
	}
	xmlFilename, xmlContent, err := dmarc.ReadFile(filename, content)
	if err != nil {
		return fmt.Errorf("could not read file %s: %w", filename, err)
	}
	return a.showReport(ctx, xmlFilename, xmlContent)
}

func (a *app) showMail(ctx context.Context, body []byte) error {
	attachments, err := mail.ExtractReports(ctx, bytes.NewReader(body), a.logger)
	if errors.Is(err, mail.ErrNoReport) {
		return err
	}
	return a.showAttachments(ctx, attachments, err)
}

// showAttachments renders every attachment and adds their errors to the
// extraction error.
func (a *app) showAttachments(ctx context.Context, attachments []mail.Attachment, err error) error {
	var result *multierror.Error
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, att := range attachments {
		if err := a.showFile(ctx, att.Filename, att.Content); err != nil {
			result = multierror.Append(result, fmt.Errorf("attachment %s: %w", att.Filename, err))
		}
	}
	return result.ErrorOrNil()
}

func (a *app) showMbox(ctx context.Context, content []byte) error {
	attachments, err := mail.ExtractMbox(ctx, bytes.NewReader(content), a.logger)
	if errors.Is(err, mail.ErrNoReport) {
		return err
	}
	return a.showAttachments(ctx, attachments, err)
}

func (a *app) showReport(ctx context.Context, filename string, content []byte) error {
	if rf, err := dmarc.ParseReportFilename(filename); err == nil {
		log.Info("showing report", "receiver", rf.Receiver, "domain", rf.PolicyDomain, "file", filename)
	} else {
		log.Debug("showing report", "file", filename, "name", err)
	}

	doc, err := dmarc.DecodeBytes(ctx, content, a.opts)
	if err != nil {
		return err
	}
	if err := render.Terminal(a.out, *doc, a.render); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	_, err = fmt.Fprintln(a.out)
	return err
}

func (a *app) showIMAP(ctx context.Context) error {
	conf := a.config.ImapConfig
	if conf.Host == "" {
		return errors.New("no imap host configured")
	}

	c, err := imap.Connect(conf, log.StandardLog())
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", conf.Host, err)
	}
	log.Debug("connected to imap server")

	// also log IMAP messages in debug mode
	if a.debug {
		c.SetDebug(log.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.DebugLevel}).Writer())
	}

	if err := c.Login(conf.User, conf.Pass); err != nil {
		return fmt.Errorf("could not login: %w", err)
	}
	log.Debug("successful login")

	defer func() {
		if err := c.Logout(); err != nil {
			log.Errorf("Error on logout: %v", err)
		}
	}()

	messages, err := imap.FetchNewest(c, conf.Folder, a.config.BatchSize, a.logger)
	if err != nil {
		return err
	}
	log.Infof("fetched %d messages", len(messages))

	var result *multierror.Error
	for _, msg := range messages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		log.Info("processing email", "subject", msg.Subject, "uid", msg.UID)
		if err := a.showMail(ctx, msg.Body); err != nil {
			if errors.Is(err, mail.ErrNoReport) {
				log.Infof("Message %s does not seem to be a valid dmarc report", msg.Subject)
				continue
			}
			result = multierror.Append(result, fmt.Errorf("message %d: %w", msg.UID, err))
		}
	}
	return result.ErrorOrNil()
}
