package inspect

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/urlrisk/internal/model"
)

const (
	// maxMixedMatches caps how many insecure references are counted.
	maxMixedMatches = 20
	// maxMixedResources caps how many insecure references are listed.
	maxMixedResources = 10
)

// mixedAttrs are the attributes that load or submit to a URL.
var mixedAttrs = map[string]bool{"src": true, "href": true, "action": true}

// FindMixedContent scans markup for src, href and action attributes whose
// value is a literal http:// URL. It counts at most 20 matches and lists
// the first 10. The caller decides whether the page was served over https.
func FindMixedContent(markup string) model.MixedContent {
	mc := model.MixedContent{Resources: []string{}}

	z := html.NewTokenizer(strings.NewReader(markup))
	for mc.Count < maxMixedMatches {
		switch z.Next() {
		case html.ErrorToken:
			return mc
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			for hasAttr && mc.Count < maxMixedMatches {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if !mixedAttrs[strings.ToLower(string(key))] {
					continue
				}
				ref := strings.TrimSpace(string(val))
				if len(ref) < len("http://") || !strings.EqualFold(ref[:len("http://")], "http://") {
					continue
				}
				mc.Count++
				if len(mc.Resources) < maxMixedResources {
					mc.Resources = append(mc.Resources, ref)
				}
			}
		}
	}
	return mc
}
