package dmarc

import (
	"net/netip"
	"strconv"
	"strings"
	"time"
)

const nullText = "<null>"

// readTextChild consumes the text directly following a start tag. Any
// other event is left for the walk.
func (d *decoder) readTextChild() (string, bool, error) {
	kind, err := d.src.next()
	if err != nil {
		return "", false, err
	}
	if kind != eventText {
		d.src.pushBack()
		return "", false, nil
	}
	if d.src.text == "" {
		return nullText, true, nil
	}
	return d.src.text, true, nil
}

func isPass(value string) bool {
	return strings.ToLower(value) == "pass"
}

// extract renders the value of a leaf element when it appears in a context
// it is shown in.
func (d *decoder) extract(name string) error {
	r := &d.reg
	if !r.feedback {
		return nil
	}

	switch name {
	case "org_name", "begin", "end":
		if r.reportMetadata {
			return d.metadata(name)
		}
	case "domain":
		if r.policyPublished || r.authResults {
			text, ok, err := d.readTextChild()
			if err != nil || !ok {
				return err
			}
			d.out.WriteString(text + " ")
		}
	case "adkim", "aspf", "p", "sp", "fo":
		if r.policyPublished {
			return d.policy(name)
		}
	case "pct":
		if r.policyPublished {
			return d.percentage(name)
		}
	case "source_ip", "count":
		if r.record && r.row {
			return d.rowField(name)
		}
	case "disposition", "dkim", "spf", "header_from", "envelope_from", "envelope_to":
		if !r.record {
			return nil
		}
		if r.policyEvaluated || r.identifiers {
			return d.evaluated(name)
		}
		if r.authResults && (name == "dkim" || name == "spf") {
			r.pendingAuthMethod = name
		}
	case "result":
		if r.authResults {
			return d.authResult()
		}
	case "selector", "scope":
		if r.authResults {
			return d.keyValue(name)
		}
	}
	return nil
}

func (d *decoder) keyValue(name string) error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	d.out.WriteString(name + "=" + text + " ")
	return nil
}

func (d *decoder) metadata(name string) error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	if name == "org_name" {
		d.out.WriteString(text + " ")
		return nil
	}
	d.out.WriteString(name + "=" + d.timestamp(name, text) + " ")
	return nil
}

// timestamp formats unix seconds, falling back to the raw value.
func (d *decoder) timestamp(name, text string) string {
	text = strings.TrimSpace(text)
	secs, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		d.log.Warn("invalid report timestamp", "element", name, "value", text, "error", err)
		return text
	}
	return d.opts.Dates(time.Unix(secs, 0))
}

func (d *decoder) policy(name string) error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	if name == "adkim" || name == "aspf" {
		switch text {
		case "r":
			text = "relaxed"
		case "s":
			text = "strict"
		}
	}
	d.out.WriteString(name + "=" + text + " ")
	return nil
}

func (d *decoder) percentage(name string) error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	if _, err := strconv.Atoi(text); err != nil {
		d.log.Warn("invalid policy percentage", "value", text, "error", err)
		d.out.WriteString(name + "=" + text + " ")
		return nil
	}
	d.out.WriteString(text + "% ")
	return nil
}

func (d *decoder) rowField(name string) error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	d.out.WriteString(name + "=" + text + " ")
	if name == "source_ip" {
		d.annotateOrganization(text)
	}
	return nil
}

func (d *decoder) annotateOrganization(text string) {
	if d.opts.Lookup == nil {
		return
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(text))
	if err != nil {
		d.log.Warn("invalid source ip", "value", text, "error", err)
		return
	}
	org, err := d.opts.Lookup.LookupOrganization(d.ctx, addr)
	if err != nil {
		d.log.Warn("could not look up organization", "ip", addr.String(), "error", err)
		return
	}
	if org.Name == "" {
		return
	}
	d.out.WriteString("(" + org.Name + ") ")
}

// writeResult writes a value and highlights it unless it is a pass.
func (d *decoder) writeResult(value string, highlight bool) {
	start := d.out.Len()
	d.out.WriteString(value)
	if highlight && !isPass(value) {
		d.out.WarningColor(start, d.out.Len(), d.opts.WarningColor)
		d.out.Bold(start, d.out.Len())
	}
	d.out.WriteString(" ")
}

func (d *decoder) evaluated(name string) error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	d.out.WriteString(name + "=")
	d.writeResult(text, name == "dkim" || name == "spf")
	return nil
}

func (d *decoder) authResult() error {
	text, ok, err := d.readTextChild()
	if err != nil || !ok {
		return err
	}
	method := d.reg.pendingAuthMethod
	if method == "" {
		method = "?"
	}
	d.out.WriteString(method + "=")
	d.writeResult(text, true)
	return nil
}
