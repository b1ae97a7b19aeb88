package posture

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/nao1215/urlrisk/internal/model"
)

// Score deductions.
const (
	penaltyInvalidTLS     = 40
	penaltyExpiringSoon   = 10 // fewer than 7 days left
	penaltyExpiring       = 5  // fewer than 30 days left
	penaltyCookieSecure   = 10 // scaled by the share of cookies without Secure
	penaltyCookieHTTPOnly = 5  // scaled by the share of cookies without HttpOnly
	penaltyMixedEach      = 3
	penaltyMixedCap       = 15
	penaltyWeakPort       = 5
	penaltyVeryNewDomain  = 20 // younger than 30 days
	penaltyNewDomain      = 10 // younger than 90 days

	// httpOnlyThreshold is the HttpOnly ratio below which cookies are penalized.
	httpOnlyThreshold = 0.8
)

// Input is the evidence evaluated by Analyze.
type Input struct {
	// Headers are the main document response headers with lowercased names.
	Headers map[string]string

	// Cookies are all cookies present after the page loaded.
	Cookies []model.Cookie

	// SSL is the certificate evaluation. A failed TLS probe is an invalid certificate.
	SSL model.SSLInfo

	// LegacyTLS is true when TLS 1.1 or older was negotiated.
	LegacyTLS bool

	// MixedContent is the inspector's mixed content report.
	MixedContent model.MixedContent

	// WeakPorts are open ports classified as weak.
	WeakPorts []int

	// DomainAgeDays is nil when the age is unknown.
	DomainAgeDays *int

	// InsecureLoginForm is true when credentials would travel over plain http.
	InsecureLoginForm bool
}

// Assessment is the posture evaluation.
type Assessment struct {
	HeadersAnalysis model.HeadersAnalysis
	Cookies         model.CookieStats
	Vulnerabilities []model.Finding
	Score           int
}

// Analyze evaluates in against the security baseline.
func Analyze(in Input) Assessment {
	a := Assessment{
		HeadersAnalysis: model.HeadersAnalysis{Present: []string{}, Missing: []string{}, Weak: []string{}},
		Vulnerabilities: []model.Finding{},
	}
	score := float64(model.MaxSecurityScore)

	score -= a.evaluateHeaders(in.Headers)
	score -= a.evaluateCookies(in.Cookies)
	score -= a.evaluateTLS(in.SSL, in.LegacyTLS)
	score -= mixedContentPenalty(in.MixedContent.Count)
	score -= weakPortPenalty(in.WeakPorts)
	score -= domainAgePenalty(in.DomainAgeDays)

	if in.InsecureLoginForm {
		a.add(model.SeverityHigh, "Credentials sent over plain HTTP",
			"A password field is served over HTTP or submits to an http:// address, so credentials can be intercepted in transit.")
	}

	a.Score = clampScore(score)
	return a
}

// evaluateHeaders fills HeadersAnalysis and returns the score deduction.
func (a *Assessment) evaluateHeaders(headers map[string]string) float64 {
	var penalty float64
	for _, check := range baseline {
		value, present := lookupHeader(headers, check.name)
		if !present {
			penalty += check.penalty
			if check.required {
				a.HeadersAnalysis.Missing = append(a.HeadersAnalysis.Missing, check.name)
			}
			continue
		}
		if check.weak != nil {
			if reason := check.weak(value); reason != "" {
				a.HeadersAnalysis.Weak = append(a.HeadersAnalysis.Weak, check.name)
				a.add(model.SeverityLow, "Weak "+canonicalHeader(check.name)+" header",
					fmt.Sprintf("%s is set to %q: %s.", canonicalHeader(check.name), value, reason))
				continue
			}
		}
		a.HeadersAnalysis.Present = append(a.HeadersAnalysis.Present, check.name)
	}
	return penalty
}

// evaluateCookies fills Cookies and returns the score deduction.
func (a *Assessment) evaluateCookies(cookies []model.Cookie) float64 {
	stats := model.CookieStats{Total: len(cookies)}
	for _, c := range cookies {
		if c.Secure {
			stats.Secure++
		}
		if c.HTTPOnly {
			stats.HTTPOnly++
		}
		if strings.EqualFold(c.SameSite, "Strict") || strings.EqualFold(c.SameSite, "Lax") {
			stats.SameSite++
		}
	}
	a.Cookies = stats
	if stats.Total == 0 {
		return 0
	}

	var penalty float64
	total := float64(stats.Total)
	if secureRatio := float64(stats.Secure) / total; secureRatio < 1 {
		penalty += penaltyCookieSecure * (1 - secureRatio)
	}
	if httpOnlyRatio := float64(stats.HTTPOnly) / total; httpOnlyRatio < httpOnlyThreshold {
		penalty += penaltyCookieHTTPOnly * (1 - httpOnlyRatio)
		a.add(model.SeverityMedium, "Cookies readable by scripts",
			fmt.Sprintf("%d of %d cookies lack the HttpOnly flag and can be read by injected scripts.",
				stats.Total-stats.HTTPOnly, stats.Total))
	}
	return penalty
}

// evaluateTLS reports a legacy protocol and returns the score deduction.
// An invalid certificate is a threat signal of its own and is not repeated
// as a finding.
func (a *Assessment) evaluateTLS(ssl model.SSLInfo, legacy bool) float64 {
	if legacy {
		a.add(model.SeverityMedium, "Legacy TLS protocol",
			fmt.Sprintf("The server negotiated %s, which is deprecated and vulnerable to downgrade attacks.", ssl.Protocol))
	}
	switch {
	case !ssl.Valid:
		return penaltyInvalidTLS
	case ssl.DaysRemaining < 7:
		return penaltyExpiringSoon
	case ssl.DaysRemaining < 30:
		return penaltyExpiring
	default:
		return 0
	}
}

// weakPortPenalty is the score deduction for open weak ports. Weak ports
// are scored as a threat signal and carry no finding.
func weakPortPenalty(weak []int) float64 {
	return float64(penaltyWeakPort * len(weak))
}

func (a *Assessment) add(sev model.Severity, title, description string) {
	a.Vulnerabilities = append(a.Vulnerabilities, model.Finding{Severity: sev, Title: title, Description: description})
}

func mixedContentPenalty(count int) float64 {
	return float64(min(penaltyMixedEach*count, penaltyMixedCap))
}

func domainAgePenalty(age *int) float64 {
	switch {
	case age == nil:
		return 0
	case *age < 30:
		return penaltyVeryNewDomain
	case *age < 90:
		return penaltyNewDomain
	default:
		return 0
	}
}

func clampScore(score float64) int {
	return int(math.Round(math.Max(0, math.Min(float64(model.MaxSecurityScore), score))))
}

// lookupHeader finds name case-insensitively.
func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// canonicalHeader returns the display form of a lowercased header name.
func canonicalHeader(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// RequiredHeaders returns the headers counted in HeadersAnalysis.Missing.
func RequiredHeaders() []string {
	var names []string
	for _, c := range baseline {
		if c.required {
			names = append(names, c.name)
		}
	}
	return slices.Clip(names)
}
