package risk

import (
	"time"

	"github.com/nao1215/urlrisk/internal/model"
)

// degradedVerdict is the fixed verdict for one failure kind.
type degradedVerdict struct {
	level           model.ThreatLevel
	score           int
	indicators      []string
	recommendations []string
}

var degradedVerdicts = map[model.FailureKind]degradedVerdict{
	model.FailureNameNotResolved: {
		level: model.ThreatDangerous,
		score: 9,
		indicators: []string{
			"Domain does not resolve",
			"Possible typosquatting or non-existent domain",
		},
		recommendations: []string{
			"Check the address for misspellings; scam links often imitate well-known domains.",
			"Do not trust messages that sent you to this address.",
		},
	},
	model.FailureConnectionRefused: {
		level: model.ThreatSuspicious,
		score: 6,
		indicators: []string{
			"Connection refused by the server",
			"Site may be offline or blocking scanners",
		},
		recommendations: []string{
			"Avoid the site until it can be verified; refusing scanners is common for short-lived scam pages.",
		},
	},
	model.FailureTimeout: {
		level: model.ThreatSuspicious,
		score: 4,
		indicators: []string{
			"Connection timed out",
			"Site did not respond in time",
		},
		recommendations: []string{
			"Try again later and verify the site through an independent source before using it.",
		},
	},
	model.FailureOther: {
		level: model.ThreatSuspicious,
		score: 5,
		indicators: []string{
			"Scan failed",
			"Unable to fully analyze the site",
		},
		recommendations: []string{
			"Proceed with caution; the site could not be analyzed.",
		},
	},
}

// Classify builds the degraded ScanResult for a scan of url that stopped
// with err. The result carries the error text, full confidence in the
// failure itself, and a verdict determined only by the failure kind.
func Classify(url string, err error, scanDate time.Time) *model.ScanResult {
	kind := model.FailureKindOf(err)
	v, ok := degradedVerdicts[kind]
	if !ok {
		v = degradedVerdicts[model.FailureOther]
	}

	r := model.NewScanResult(url, scanDate)
	r.Domain.Name = model.Hostname(url)
	r.Security.Score = 0
	r.ThreatLevel = v.level
	r.ThreatScore = v.score
	r.Confidence = model.FullConfidence
	r.Indicators = append([]string{}, v.indicators...)
	r.Recommendations = append([]string{}, v.recommendations...)
	r.Error = errorText(err, kind)
	return r
}

func errorText(err error, kind model.FailureKind) string {
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return kind.Error().Error()
}
