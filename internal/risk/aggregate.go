package risk

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/urlrisk/internal/model"
)

// Points added to the threat score per signal.
const (
	pointsNewDomain      = 4
	pointsInvalidTLS     = 3
	pointsExpiringTLS    = 2
	pointsYoungLoginForm = 5
	pointsMissingHSTS    = 2
	pointsMissingCSP     = 2
	pointsInsecureCookie = 2 // per cookie
	pointsMixedContent   = 3 // per resource
	pointsWeakPort       = 2 // per port
	pointsFinding        = 2 // per finding
	pointsManyLinks      = 1
)

const (
	newDomainDays     = 30
	youngDomainDays   = 90
	expiringTLSDays   = 7
	manyExternalLinks = 10

	headerHSTS = "strict-transport-security"
	headerCSP  = "content-security-policy"

	defaultRecommendation = "No significant risks detected. Stay cautious when entering personal or payment information."
)

// Verdict is the outcome of Aggregate.
type Verdict struct {
	Score           int
	Level           model.ThreatLevel
	Indicators      []string
	Recommendations []string
}

// Aggregate computes the verdict for r. Each signal adds a fixed number of
// points; the total is capped at 10. Adding a signal never lowers the score.
func Aggregate(r *model.ScanResult) Verdict {
	var (
		score int
		ind   []string
		recs  = newRecommendations()
	)
	add := func(points int, indicator string) {
		score += points
		ind = append(ind, indicator)
	}

	age := r.Domain.AgeDays
	if age != nil && *age < newDomainDays {
		add(pointsNewDomain, fmt.Sprintf("New Domain: registered %d days ago", *age))
		recs.add("Be wary of recently registered domains; scam sites rarely live longer than a few weeks.")
	}

	ssl := r.Security.SSL
	switch {
	case !ssl.Valid:
		add(pointsInvalidTLS, "Invalid SSL certificate")
		recs.add("Do not enter any information: the connection is not protected by a valid certificate.")
	case ssl.DaysRemaining < expiringTLSDays:
		add(pointsExpiringTLS, fmt.Sprintf("SSL certificate expires in %d days", ssl.DaysRemaining))
		recs.add("The certificate is about to expire; legitimate sites renew certificates well in advance.")
	}

	if r.Page.HasLoginForm && age != nil && *age < youngDomainDays {
		add(pointsYoungLoginForm, fmt.Sprintf("Login form on a domain registered %d days ago", *age))
		recs.add("Never enter credentials on a young site; open the service by typing its official address instead.")
	}

	if slices.Contains(r.Security.HeadersAnalysis.Missing, headerHSTS) {
		add(pointsMissingHSTS, "Missing HSTS header")
	}
	if slices.Contains(r.Security.HeadersAnalysis.Missing, headerCSP) {
		add(pointsMissingCSP, "Missing Content-Security-Policy header")
	}
	if len(r.Security.HeadersAnalysis.Missing) > 0 {
		recs.add("The site lacks basic security headers; treat it with extra caution.")
	}

	if n := r.Security.Cookies.Insecure(); n > 0 {
		add(pointsInsecureCookie*n, fmt.Sprintf("%d insecure cookies", n))
		recs.add("Cookies are sent without the Secure flag and may leak over unencrypted connections.")
	}

	if n := r.Security.MixedContent.Count; n > 0 {
		add(pointsMixedContent*n, fmt.Sprintf("%d mixed content resources", n))
		recs.add("The page loads resources over plain HTTP, which can be tampered with in transit.")
	}

	if weak := r.Security.Ports.Weak; len(weak) > 0 {
		add(pointsWeakPort*len(weak), fmt.Sprintf("%d weak ports open: %s", len(weak), joinInts(weak)))
		recs.add("The host exposes unencrypted or administrative services, a sign of poor maintenance or compromise.")
	}

	for _, f := range r.Security.Vulnerabilities {
		add(pointsFinding, fmt.Sprintf("Security weakness (%s): %s", f.Severity, f.Title))
	}

	if n := len(r.Page.ExternalLinks); n > manyExternalLinks {
		add(pointsManyLinks, fmt.Sprintf("%d external links", n))
		recs.add("The page links to many other sites; check where links lead before clicking.")
	}

	score = min(score, model.MaxThreatScore)
	if len(recs.list) == 0 {
		recs.add(defaultRecommendation)
	}
	if ind == nil {
		ind = []string{}
	}

	return Verdict{
		Score:           score,
		Level:           model.LevelForScore(score),
		Indicators:      ind,
		Recommendations: recs.list,
	}
}

// Apply runs Aggregate and stores the verdict in r.
func Apply(r *model.ScanResult) {
	v := Aggregate(r)
	r.ThreatScore = v.Score
	r.ThreatLevel = v.Level
	r.Indicators = v.Indicators
	r.Recommendations = v.Recommendations
	r.Confidence = model.FullConfidence
}

// recommendations is an ordered set of advice strings.
type recommendations struct {
	list []string
}

func newRecommendations() *recommendations {
	return &recommendations{list: []string{}}
}

func (r *recommendations) add(s string) {
	if !slices.Contains(r.list, s) {
		r.list = append(r.list, s)
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
