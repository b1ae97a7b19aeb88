package inspect

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/urlrisk/internal/model"
)

// obfuscationPatterns match inline script shapes used to hide payloads.
var obfuscationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`eval\s*\(\s*(atob|unescape|decodeURIComponent|String\.fromCharCode)`),
	regexp.MustCompile(`(\\x[0-9a-fA-F]{2}){10,}`),
	regexp.MustCompile(`document\.write\s*\(\s*(unescape|atob|decodeURIComponent)`),
	regexp.MustCompile(`new\s+Function\s*\(\s*['"][^'"]{50,}['"]\s*\)`),
	// p,a,c,k,e,d packer
	regexp.MustCompile(`eval\s*\(\s*function\s*\(\s*p\s*,\s*a\s*,\s*c\s*,\s*k\s*,\s*e\s*,\s*[dr]\s*\)`),
	regexp.MustCompile(`\[\s*!\s*\+\s*\[\s*\]\s*\]`),
	regexp.MustCompile(`String\.fromCharCode\s*\([^)]{50,}\)`),
}

// scriptRedirectPatterns capture the target of a scripted navigation.
var scriptRedirectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`location\.href\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`location\.replace\s*\(\s*["']([^"']+)["']\s*\)`),
}

// errorDisclosurePatterns match stack traces and server paths in page text.
var errorDisclosurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Fatal error|Parse error):\s+[^\n]+\s+in\s+/\S+\s+on\s+line\s+\d+`),
	regexp.MustCompile(`Traceback \(most recent call last\):`),
	regexp.MustCompile(`(?:java\.|javax\.|org\.springframework\.)[a-zA-Z.]+Exception`),
	regexp.MustCompile(`System\.[A-Za-z]+Exception:`),
	regexp.MustCompile(`at [A-Za-z.]+\s+\([^)]+\.js:\d+:\d+\)`),
}

var metaRefreshURL = regexp.MustCompile(`(?i)^\s*\d+\s*;\s*url\s*=\s*['"]?([^'"]+)`)

// findContentWarnings looks for markup used by phishing kits, drive-by
// downloads and carelessly deployed sites. It returns at most one finding
// per kind.
func findContentWarnings(doc *goquery.Document, base *url.URL) []model.Finding {
	warnings := []model.Finding{}
	add := func(f *model.Finding) {
		if f != nil {
			warnings = append(warnings, *f)
		}
	}

	var inline strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); !external {
			inline.WriteString(s.Text())
			inline.WriteByte('\n')
		}
	})
	scripts := inline.String()

	add(checkObfuscation(scripts))
	add(checkForeignFormAction(doc, base))
	add(checkForeignRedirect(doc, base, scripts))
	add(checkHiddenIframe(doc))
	add(checkErrorDisclosure(doc))
	return warnings
}

func checkObfuscation(scripts string) *model.Finding {
	for _, p := range obfuscationPatterns {
		if p.MatchString(scripts) {
			return &model.Finding{
				Severity:    model.SeverityHigh,
				Title:       "Obfuscated JavaScript",
				Description: "Inline scripts decode and evaluate hidden code, a pattern used by credential stealers and exploit kits.",
			}
		}
	}
	return nil
}

// checkForeignFormAction reports forms that submit to another registrable
// domain. Phishing pages post harvested credentials to the attacker's host.
func checkForeignFormAction(doc *goquery.Document, base *url.URL) *model.Finding {
	var target string
	doc.Find("form[action]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		u, ok := resolve(base, s.AttrOr("action", ""))
		if !ok || (u.Scheme != "http" && u.Scheme != "https") {
			return true
		}
		if !sameSite(base, u) {
			target = u.Host
			return false
		}
		return true
	})
	if target == "" {
		return nil
	}
	return &model.Finding{
		Severity:    model.SeverityHigh,
		Title:       "Form submits to another site",
		Description: "A form sends its data to " + target + ", which is not the site being visited.",
	}
}

func checkForeignRedirect(doc *goquery.Document, base *url.URL, scripts string) *model.Finding {
	var targets []string
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		if m := metaRefreshURL.FindStringSubmatch(s.AttrOr("content", "")); m != nil {
			targets = append(targets, m[1])
		}
	})
	for _, p := range scriptRedirectPatterns {
		for _, m := range p.FindAllStringSubmatch(scripts, -1) {
			targets = append(targets, m[1])
		}
	}

	for _, t := range targets {
		u, ok := resolve(base, t)
		if !ok || (u.Scheme != "http" && u.Scheme != "https") || sameSite(base, u) {
			continue
		}
		return &model.Finding{
			Severity:    model.SeverityMedium,
			Title:       "Redirect to another site",
			Description: "The page navigates visitors to " + u.Host + " without their action.",
		}
	}
	return nil
}

func checkHiddenIframe(doc *goquery.Document) *model.Finding {
	found := false
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = isHidden(s)
		return !found
	})
	if !found {
		return nil
	}
	return &model.Finding{
		Severity:    model.SeverityHigh,
		Title:       "Hidden iframe",
		Description: "The page embeds an invisible frame, a vector for clickjacking, drive-by downloads and ad fraud.",
	}
}

func isHidden(s *goquery.Selection) bool {
	for _, attr := range []string{"width", "height"} {
		if v, ok := s.Attr(attr); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px")); err == nil && n <= 1 {
				return true
			}
		}
	}
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") ||
		strings.Contains(style, "visibility:hidden") ||
		(strings.Contains(style, "left:-") && strings.Contains(style, "position:absolute"))
}

// sameSite reports whether a and b share a registrable domain.
func sameSite(a, b *url.URL) bool {
	ha, hb := strings.ToLower(a.Hostname()), strings.ToLower(b.Hostname())
	if ha == hb {
		return true
	}
	da, errA := publicsuffix.EffectiveTLDPlusOne(ha)
	db, errB := publicsuffix.EffectiveTLDPlusOne(hb)
	return errA == nil && errB == nil && da == db
}

func checkErrorDisclosure(doc *goquery.Document) *model.Finding {
	text := doc.Find("body").Text()
	for _, p := range errorDisclosurePatterns {
		if p.MatchString(text) {
			return &model.Finding{
				Severity:    model.SeverityMedium,
				Title:       "Error details exposed",
				Description: "The page shows a stack trace or server error, a sign of an unmaintained or broken site.",
			}
		}
	}
	return nil
}
