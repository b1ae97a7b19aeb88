package posture

import (
	"regexp"
	"strconv"
	"strings"
)

// Header names, lowercased as captured from the browser.
const (
	HeaderHSTS              = "strict-transport-security"
	HeaderCSP               = "content-security-policy"
	HeaderFrameOptions      = "x-frame-options"
	HeaderContentTypeOpts   = "x-content-type-options"
	HeaderReferrerPolicy    = "referrer-policy"
	HeaderPermissionsPolicy = "permissions-policy"
	HeaderXSSProtection     = "x-xss-protection"
)

// headerCheck describes one header of the baseline.
type headerCheck struct {
	name string
	// required headers are listed in HeadersAnalysis.Missing when absent.
	required bool
	// penalty is deducted from the security score when the header is absent.
	penalty float64
	// weak returns a reason when a present value is misconfigured.
	weak func(value string) string
}

// baseline is the fixed header checklist, in report order.
var baseline = []headerCheck{
	{name: HeaderHSTS, required: true, penalty: 10, weak: weakHSTS},
	{name: HeaderCSP, required: true, penalty: 10, weak: weakCSP},
	{name: HeaderFrameOptions, required: true, penalty: 5, weak: weakFrameOptions},
	{name: HeaderContentTypeOpts, required: true, penalty: 5, weak: weakContentTypeOptions},
	{name: HeaderReferrerPolicy, penalty: 3, weak: weakReferrerPolicy},
	{name: HeaderPermissionsPolicy, penalty: 3, weak: nil},
	{name: HeaderXSSProtection, penalty: 0, weak: nil},
}

var maxAgeRe = regexp.MustCompile(`(?i)max-age\s*=\s*"?(\d+)"?`)

func weakHSTS(v string) string {
	m := maxAgeRe.FindStringSubmatch(v)
	if m == nil {
		return "missing max-age directive"
	}
	if age, err := strconv.ParseInt(m[1], 10, 64); err == nil && age == 0 {
		return "max-age is 0, which disables HSTS"
	}
	return ""
}

func weakCSP(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "empty policy"
	}
	for _, directive := range strings.Split(v, ";") {
		fields := strings.Fields(strings.ToLower(directive))
		if len(fields) == 0 {
			continue
		}
		if fields[0] != "default-src" && fields[0] != "script-src" {
			continue
		}
		for _, src := range fields[1:] {
			if src == "*" {
				return fields[0] + " allows any origin"
			}
		}
	}
	return ""
}

func weakFrameOptions(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "DENY", "SAMEORIGIN":
		return ""
	default:
		return "value should be DENY or SAMEORIGIN"
	}
}

func weakContentTypeOptions(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), "nosniff") {
		return ""
	}
	return "value should be nosniff"
}

func weakReferrerPolicy(v string) string {
	for _, p := range strings.Split(strings.ToLower(v), ",") {
		switch strings.TrimSpace(p) {
		case "unsafe-url", "no-referrer-when-downgrade":
			return "policy leaks full URLs to other origins"
		}
	}
	return ""
}
