package model

import (
	"maps"
	"slices"
	"time"
)

const (
	// MaxThreatScore is the upper bound of ScanResult.ThreatScore.
	MaxThreatScore = 10
	// MaxSecurityScore is the upper bound of SecurityInfo.Score.
	MaxSecurityScore = 100
	// FullConfidence is the confidence attached to completed and degraded scans.
	FullConfidence = 100
)

// ScanResult is the outcome of one deep URL scan.
//
// A ScanResult is built once per scan and treated as immutable afterwards.
// The cache and the history store keep deep copies (see Clone), so callers
// may freely modify the value they receive.
type ScanResult struct {
	// URL is the normalized URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after redirects. Equal to URL when nothing redirected.
	FinalURL string `json:"finalUrl"`

	// ScanDate is when the scan started.
	ScanDate time.Time `json:"scanDate"`

	// Screenshot is a PNG of the rendered viewport. Best effort; nil when capture failed.
	Screenshot []byte `json:"screenshot,omitempty"`

	// Domain holds registration and resolution data for the final host.
	Domain DomainInfo `json:"domain"`

	// Security holds the posture evaluation.
	Security SecurityInfo `json:"security"`

	// Network summarizes the traffic observed during page load.
	Network NetworkInfo `json:"network"`

	// Technologies lists heuristically detected technologies.
	Technologies []Technology `json:"technologies"`

	// Page summarizes the rendered document.
	Page PageInfo `json:"page"`

	// ThreatLevel is the verdict bucket.
	ThreatLevel ThreatLevel `json:"threatLevel"`

	// ThreatScore is the 0-10 risk magnitude behind ThreatLevel.
	ThreatScore int `json:"threatScore"`

	// Confidence is 0-100.
	Confidence int `json:"confidence"`

	// Indicators are the human-readable reasons behind ThreatScore.
	Indicators []string `json:"indicators"`

	// Recommendations are actions for the visitor.
	Recommendations []string `json:"recommendations"`

	// Error is set only on degraded results produced by the failure classifier.
	Error string `json:"error,omitempty"`
}

// DomainInfo describes the scanned host. Nil fields mean the data was unavailable.
type DomainInfo struct {
	Name      string  `json:"name"`
	AgeDays   *int    `json:"ageDays"`
	Registrar *string `json:"registrar"`
	IP        *string `json:"ip"`
}

// SSLInfo describes the certificate presented by the host.
type SSLInfo struct {
	Valid         bool   `json:"valid"`
	DaysRemaining int    `json:"daysRemaining"`
	Issuer        string `json:"issuer"`
	Protocol      string `json:"protocol,omitempty"`
	Cipher        string `json:"cipher,omitempty"`
}

// HeadersAnalysis groups security headers by their state.
type HeadersAnalysis struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
	Weak    []string `json:"weak"`
}

// CookieStats counts cookie flags across all cookies set on the page.
type CookieStats struct {
	Secure   int `json:"secure"`
	HTTPOnly int `json:"httpOnly"`
	SameSite int `json:"sameSite"`
	Total    int `json:"total"`
}

// Insecure returns the number of cookies without the Secure flag.
func (c CookieStats) Insecure() int {
	if c.Total <= c.Secure {
		return 0
	}
	return c.Total - c.Secure
}

// MixedContent lists plain HTTP resources referenced by an HTTPS page.
type MixedContent struct {
	Count     int      `json:"count"`
	Resources []string `json:"resources"`
}

// PortSummary lists open ports on the resolved address.
// Weak and Secure are disjoint subsets of Open.
type PortSummary struct {
	Open   []int `json:"open"`
	Weak   []int `json:"weak"`
	Secure []int `json:"secure"`
}

// SecurityInfo is the security posture of the page and its host.
type SecurityInfo struct {
	SSL             SSLInfo           `json:"ssl"`
	Headers         map[string]string `json:"headers"`
	HeadersAnalysis HeadersAnalysis   `json:"headersAnalysis"`
	Cookies         CookieStats       `json:"cookies"`
	MixedContent    MixedContent      `json:"mixedContent"`
	Ports           PortSummary       `json:"ports"`
	Vulnerabilities []Finding         `json:"vulnerabilities"`
	Score           int               `json:"score"`
}

// NetworkInfo summarizes requests observed while the page loaded.
type NetworkInfo struct {
	Requests int            `json:"requests"`
	Bytes    int64          `json:"bytes"`
	Types    map[string]int `json:"types"`
	Domains  []string       `json:"domains"`
}

// Technology is a detected server, framework, or third-party service.
type Technology struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PageInfo summarizes the rendered document.
type PageInfo struct {
	Title         string   `json:"title"`
	Cookies       int      `json:"cookies"`
	ConsoleLogs   int      `json:"consoleLogs"`
	HasLoginForm  bool     `json:"hasLoginForm"`
	ExternalLinks []string `json:"externalLinks"`
	Scripts       []string `json:"scripts"`
	Iframes       int      `json:"iframes"`
	Forms         int      `json:"forms"`

	// Warnings are suspicious markup patterns. They are reported but do
	// not change the threat score.
	Warnings []Finding `json:"warnings"`
}

// NewScanResult creates a ScanResult for url with every field set to its
// default: empty slices and maps, nil nullable domain fields, a perfect
// security score, a safe verdict and full confidence.
func NewScanResult(url string, scanDate time.Time) *ScanResult {
	return &ScanResult{
		URL:      url,
		FinalURL: url,
		ScanDate: scanDate,
		Security: SecurityInfo{
			Headers: make(map[string]string),
			HeadersAnalysis: HeadersAnalysis{
				Present: []string{},
				Missing: []string{},
				Weak:    []string{},
			},
			MixedContent:    MixedContent{Resources: []string{}},
			Ports:           PortSummary{Open: []int{}, Weak: []int{}, Secure: []int{}},
			Vulnerabilities: []Finding{},
			Score:           MaxSecurityScore,
		},
		Network: NetworkInfo{
			Types:   make(map[string]int),
			Domains: []string{},
		},
		Technologies: []Technology{},
		Page: PageInfo{
			ExternalLinks: []string{},
			Scripts:       []string{},
			Warnings:      []Finding{},
		},
		ThreatLevel:     ThreatSafe,
		Confidence:      FullConfidence,
		Indicators:      []string{},
		Recommendations: []string{},
	}
}

// Degraded reports whether the result was synthesized from a failed scan.
func (r *ScanResult) Degraded() bool {
	return r.Error != ""
}

// Clone returns a deep copy of r.
func (r *ScanResult) Clone() *ScanResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Screenshot = slices.Clone(r.Screenshot)
	c.Domain = DomainInfo{
		Name:      r.Domain.Name,
		AgeDays:   clonePtr(r.Domain.AgeDays),
		Registrar: clonePtr(r.Domain.Registrar),
		IP:        clonePtr(r.Domain.IP),
	}
	c.Security.Headers = maps.Clone(r.Security.Headers)
	c.Security.HeadersAnalysis = HeadersAnalysis{
		Present: slices.Clone(r.Security.HeadersAnalysis.Present),
		Missing: slices.Clone(r.Security.HeadersAnalysis.Missing),
		Weak:    slices.Clone(r.Security.HeadersAnalysis.Weak),
	}
	c.Security.MixedContent.Resources = slices.Clone(r.Security.MixedContent.Resources)
	c.Security.Ports = PortSummary{
		Open:   slices.Clone(r.Security.Ports.Open),
		Weak:   slices.Clone(r.Security.Ports.Weak),
		Secure: slices.Clone(r.Security.Ports.Secure),
	}
	c.Security.Vulnerabilities = slices.Clone(r.Security.Vulnerabilities)
	c.Network.Types = maps.Clone(r.Network.Types)
	c.Network.Domains = slices.Clone(r.Network.Domains)
	c.Technologies = slices.Clone(r.Technologies)
	c.Page.ExternalLinks = slices.Clone(r.Page.ExternalLinks)
	c.Page.Scripts = slices.Clone(r.Page.Scripts)
	c.Page.Warnings = slices.Clone(r.Page.Warnings)
	c.Indicators = slices.Clone(r.Indicators)
	c.Recommendations = slices.Clone(r.Recommendations)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. It is used to fill nullable DomainInfo fields.
func Ptr[T any](v T) *T {
	return &v
}

// Cookie is a cookie observed in the browser after the page loaded.
// Only the attributes relevant to posture analysis are kept.
type Cookie struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
	// SameSite is "Strict", "Lax", "None" or empty when unset.
	SameSite string `json:"sameSite"`
}
