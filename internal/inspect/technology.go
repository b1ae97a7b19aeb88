package inspect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/urlrisk/internal/model"
)

// Technology types.
const (
	TypeServer      = "server"
	TypeCDN         = "cdn"
	TypeCMS         = "cms"
	TypeFramework   = "framework"
	TypeJavaScript  = "javascript"
	TypeLanguage    = "language"
	TypeAnalytics   = "analytics"
	TypeAdvertising = "advertising"
	TypeSecurity    = "security"
	TypeHosting     = "hosting"
	TypeEcommerce   = "ecommerce"
)

// signature describes how to recognize one technology.
// A signature matches when any of its markers is found.
type signature struct {
	name    string
	typ     string
	headers map[string]string // header name -> lowercase substring ("" matches presence)
	body    []string          // lowercase substrings of the markup
}

var defaultSignatures = []signature{
	// Servers
	{name: "Nginx", typ: TypeServer, headers: map[string]string{"server": "nginx"}},
	{name: "OpenResty", typ: TypeServer, headers: map[string]string{"server": "openresty"}},
	{name: "Apache", typ: TypeServer, headers: map[string]string{"server": "apache"}},
	{name: "Microsoft IIS", typ: TypeServer, headers: map[string]string{"server": "microsoft-iis"}},
	{name: "LiteSpeed", typ: TypeServer, headers: map[string]string{"server": "litespeed"}},
	{name: "Caddy", typ: TypeServer, headers: map[string]string{"server": "caddy"}},
	{name: "Express", typ: TypeFramework, headers: map[string]string{"x-powered-by": "express"}},

	// Languages
	{name: "PHP", typ: TypeLanguage, headers: map[string]string{"x-powered-by": "php"}},
	{name: "ASP.NET", typ: TypeFramework, headers: map[string]string{"x-powered-by": "asp.net", "x-aspnet-version": ""}},

	// CDN and hosting
	{name: "Cloudflare", typ: TypeCDN, headers: map[string]string{"cf-ray": "", "server": "cloudflare"}},
	{name: "Amazon CloudFront", typ: TypeCDN, headers: map[string]string{"x-amz-cf-id": "", "via": "cloudfront"}},
	{name: "Fastly", typ: TypeCDN, headers: map[string]string{"x-fastly-request-id": "", "x-served-by": "cache-"}},
	{name: "Akamai", typ: TypeCDN, headers: map[string]string{"x-akamai-transformed": "", "server": "akamaighost"}},
	{name: "Vercel", typ: TypeHosting, headers: map[string]string{"x-vercel-id": "", "server": "vercel"}},
	{name: "Netlify", typ: TypeHosting, headers: map[string]string{"x-nf-request-id": "", "server": "netlify"}},
	{name: "GitHub Pages", typ: TypeHosting, headers: map[string]string{"server": "github.com"}},

	// Security services
	{name: "Sucuri", typ: TypeSecurity, headers: map[string]string{"x-sucuri-id": ""}},
	{name: "reCAPTCHA", typ: TypeSecurity, body: []string{"google.com/recaptcha", "grecaptcha"}},
	{name: "hCaptcha", typ: TypeSecurity, body: []string{"hcaptcha.com/1/api.js", "h-captcha"}},

	// CMS and e-commerce
	{name: "WordPress", typ: TypeCMS, body: []string{"/wp-content/", "/wp-includes/"}},
	{name: "Joomla", typ: TypeCMS, body: []string{"/media/jui/", "joomla!"}},
	{name: "Drupal", typ: TypeCMS, headers: map[string]string{"x-drupal-cache": "", "x-generator": "drupal"}, body: []string{"drupal-settings-json", "/sites/default/files/"}},
	{name: "Wix", typ: TypeCMS, body: []string{"static.wixstatic.com", "wix-code"}},
	{name: "Squarespace", typ: TypeCMS, body: []string{"static1.squarespace.com"}},
	{name: "Shopify", typ: TypeEcommerce, headers: map[string]string{"x-shopid": ""}, body: []string{"cdn.shopify.com"}},
	{name: "Magento", typ: TypeEcommerce, body: []string{"mage/cookies", "/static/version"}},

	// JavaScript frameworks and libraries
	{name: "React", typ: TypeJavaScript, body: []string{"data-reactroot", "react-dom"}},
	{name: "Next.js", typ: TypeFramework, headers: map[string]string{"x-powered-by": "next.js"}, body: []string{"__next_data__", "/_next/static/"}},
	{name: "Vue.js", typ: TypeJavaScript, body: []string{"data-v-app", "vue.min.js", "vue.global"}},
	{name: "Nuxt.js", typ: TypeFramework, body: []string{"__nuxt__", "/_nuxt/"}},
	{name: "Angular", typ: TypeJavaScript, body: []string{"ng-version=", "ng-app"}},
	{name: "jQuery", typ: TypeJavaScript, body: []string{"jquery.min.js", "jquery.js", "/jquery-"}},
	{name: "Bootstrap", typ: TypeFramework, body: []string{"bootstrap.min.css", "bootstrap.bundle"}},

	// Analytics and advertising
	{name: "Google Analytics", typ: TypeAnalytics, body: []string{"google-analytics.com/", "gtag('config'", "gtag(\"config\""}},
	{name: "Google Tag Manager", typ: TypeAnalytics, body: []string{"googletagmanager.com/gtm.js", "googletagmanager.com/ns.html"}},
	{name: "Meta Pixel", typ: TypeAnalytics, body: []string{"connect.facebook.net", "fbq('init'"}},
	{name: "Hotjar", typ: TypeAnalytics, body: []string{"static.hotjar.com"}},
	{name: "Yandex Metrica", typ: TypeAnalytics, body: []string{"mc.yandex.ru/metrika"}},
	{name: "Google AdSense", typ: TypeAdvertising, body: []string{"pagead2.googlesyndication.com", "adsbygoogle"}},
	{name: "DoubleClick", typ: TypeAdvertising, body: []string{"doubleclick.net"}},
}

// detect matches every signature against the headers and lowercased markup,
// and adds the CMS named by a <meta name="generator"> tag when doc is set.
func (i *Inspector) detect(headers map[string]string, lowerHTML string, doc *goquery.Document) []model.Technology {
	set := newTechSet()
	for _, sig := range i.signatures {
		if sig.matches(headers, lowerHTML) {
			set.add(sig.name, sig.typ)
		}
	}

	if doc != nil {
		doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
			if !strings.EqualFold(s.AttrOr("name", ""), "generator") {
				return
			}
			if name := generatorName(s.AttrOr("content", "")); name != "" {
				set.add(name, TypeCMS)
			}
		})
	}
	return set.list
}

func (s signature) matches(headers map[string]string, lowerHTML string) bool {
	for name, marker := range s.headers {
		v, ok := headers[name]
		if !ok {
			continue
		}
		if marker == "" || strings.Contains(strings.ToLower(v), marker) {
			return true
		}
	}
	for _, marker := range s.body {
		if strings.Contains(lowerHTML, marker) {
			return true
		}
	}
	return false
}

// generatorName returns the product name of a generator meta value,
// dropping a trailing version ("WordPress 6.4.2" -> "WordPress").
func generatorName(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 1 && isVersion(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func isVersion(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "v")
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// techSet keeps technologies unique by (name, type) in first-seen order.
// Names are compared case-insensitively.
type techSet struct {
	seen map[[2]string]struct{}
	list []model.Technology
}

func newTechSet() *techSet {
	return &techSet{seen: make(map[[2]string]struct{}), list: []model.Technology{}}
}

func (t *techSet) add(name, typ string) {
	key := [2]string{strings.ToLower(name), typ}
	if _, ok := t.seen[key]; ok {
		return
	}
	t.seen[key] = struct{}{}
	t.list = append(t.list, model.Technology{Name: name, Type: typ})
}
