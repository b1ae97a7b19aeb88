package inspect

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/urlrisk/internal/model"
)

const (
	// DefaultMaxExternalLinks caps Report.ExternalLinks.
	DefaultMaxExternalLinks = 20
	// DefaultMaxScripts caps Report.Scripts.
	DefaultMaxScripts = 20
)

// Input is the captured page to inspect.
type Input struct {
	// PageURL is the final URL of the document.
	PageURL string

	// HTML is the serialized DOM.
	HTML string

	// Headers are the main document response headers with lowercased names.
	Headers map[string]string
}

// Report is the result of inspecting one page.
type Report struct {
	// Title is the document title.
	Title string

	// Technologies are deduplicated by (Name, Type).
	Technologies []model.Technology

	// MixedContent is empty for pages not served over https.
	MixedContent model.MixedContent

	// HasLoginForm is true when the page contains a password input.
	HasLoginForm bool

	// InsecureLoginForm is true when a login form is served over http or posts to an http:// action.
	InsecureLoginForm bool

	// ExternalLinks are absolute links to other hosts.
	ExternalLinks []string

	// Scripts are absolute script sources.
	Scripts []string

	// Iframes and Forms count elements in the document.
	Iframes int
	Forms   int

	// Warnings are suspicious markup patterns, at most one per kind.
	Warnings []model.Finding
}

// Inspector extracts signals from captured pages.
type Inspector struct {
	maxLinks   int
	maxScripts int
	signatures []signature
	logger     *slog.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithMaxExternalLinks sets the external link cap.
func WithMaxExternalLinks(n int) Option {
	return func(i *Inspector) {
		i.maxLinks = n
	}
}

// WithMaxScripts sets the script source cap.
func WithMaxScripts(n int) Option {
	return func(i *Inspector) {
		i.maxScripts = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		i.logger = logger
	}
}

// New creates an Inspector with the built-in technology signatures.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		maxLinks:   DefaultMaxExternalLinks,
		maxScripts: DefaultMaxScripts,
		signatures: defaultSignatures,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect analyzes in and returns what it found.
func (i *Inspector) Inspect(in Input) Report {
	rep := Report{
		Technologies:  []model.Technology{},
		MixedContent:  model.MixedContent{Resources: []string{}},
		ExternalLinks: []string{},
		Scripts:       []string{},
		Warnings:      []model.Finding{},
	}

	base, err := url.Parse(in.PageURL)
	if err != nil {
		i.logger.Debug("page url unparsable, links left relative", "url", in.PageURL, "error", err)
		base = &url.URL{}
	}
	https := strings.EqualFold(base.Scheme, "https")

	if https {
		rep.MixedContent = FindMixedContent(in.HTML)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		i.logger.Debug("html parse failed", "url", in.PageURL, "error", err)
		rep.Technologies = i.detect(in.Headers, strings.ToLower(in.HTML), nil)
		return rep
	}

	rep.Title = strings.TrimSpace(doc.Find("title").First().Text())
	rep.Iframes = doc.Find("iframe").Length()
	rep.Forms = doc.Find("form").Length()
	rep.HasLoginForm, rep.InsecureLoginForm = findLoginForm(doc, base, https)
	rep.ExternalLinks = i.externalLinks(doc, base)
	rep.Scripts = i.scripts(doc, base)
	rep.Technologies = i.detect(in.Headers, strings.ToLower(in.HTML), doc)
	rep.Warnings = findContentWarnings(doc, base)

	return rep
}

// findLoginForm reports whether any password input exists, and whether one
// is exposed over plain http.
func findLoginForm(doc *goquery.Document, base *url.URL, https bool) (found, insecure bool) {
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "password") {
			return
		}
		found = true
		if !https {
			insecure = true
			return
		}
		action := strings.TrimSpace(s.Closest("form").AttrOr("action", ""))
		if action == "" {
			return
		}
		if u, err := base.Parse(action); err == nil && strings.EqualFold(u.Scheme, "http") {
			insecure = true
		}
	})
	return found, insecure
}

// externalLinks returns up to maxLinks distinct absolute link targets whose
// host differs from the page host.
func (i *Inspector) externalLinks(doc *goquery.Document, base *url.URL) []string {
	pageHost := strings.ToLower(base.Hostname())
	seen := make(map[string]struct{})
	links := []string{}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		u, ok := resolve(base, s.AttrOr("href", ""))
		if !ok || (u.Scheme != "http" && u.Scheme != "https") {
			return true
		}
		host := strings.ToLower(u.Hostname())
		if host == "" || host == pageHost {
			return true
		}
		link := u.String()
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)
		return len(links) < i.maxLinks
	})
	return links
}

// scripts returns up to maxScripts absolute script sources.
func (i *Inspector) scripts(doc *goquery.Document, base *url.URL) []string {
	srcs := []string{}
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		u, ok := resolve(base, s.AttrOr("src", ""))
		if !ok {
			return true
		}
		srcs = append(srcs, u.String())
		return len(srcs) < i.maxScripts
	})
	return srcs
}

// resolve turns ref into an absolute URL relative to base, dropping the fragment.
func resolve(base *url.URL, ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil, false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return nil, false
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	return u, true
}
