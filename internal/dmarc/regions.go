package dmarc

// regions records which parts of the feedback schema are currently open.
// https://tools.ietf.org/id/draft-kucherawy-dmarc-base-13.xml#xml_schema
type regions struct {
	feedback        bool
	reportMetadata  bool
	policyPublished bool
	record          bool
	row             bool
	policyEvaluated bool
	identifiers     bool
	authResults     bool

	// method name (dkim or spf) the next auth_results result belongs to
	pendingAuthMethod string
}

func (r *regions) flag(name string) *bool {
	switch name {
	case "feedback":
		return &r.feedback
	case "report_metadata":
		return &r.reportMetadata
	case "policy_published":
		return &r.policyPublished
	case "record":
		return &r.record
	case "row":
		return &r.row
	case "policy_evaluated":
		return &r.policyEvaluated
	case "identifiers":
		return &r.identifiers
	case "auth_results":
		return &r.authResults
	}
	return nil
}

// open marks a region as entered. Regions other than feedback are only
// entered inside a feedback element.
func (r *regions) open(name string) {
	f := r.flag(name)
	if f == nil {
		return
	}
	if name != "feedback" && !r.feedback {
		return
	}
	*f = true
}

// close marks a region as left.
func (r *regions) close(name string) {
	f := r.flag(name)
	if f == nil {
		return
	}
	*f = false
	if name == "auth_results" {
		r.pendingAuthMethod = ""
	}
}

func (r *regions) balanced() bool {
	return !r.feedback && !r.reportMetadata && !r.policyPublished && !r.record &&
		!r.row && !r.policyEvaluated && !r.identifiers && !r.authResults
}
