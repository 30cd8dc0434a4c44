package biz

import (
	"math"
	"net/url"
	"strings"
	"unicode"

	ctypes "github.com/lk2023060901/serp-gateway/internal/compat/types"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

// Search volume estimate weights. The upstream has no volume metric; the
// estimate is a deterministic proxy built from SERP features.
const (
	volumeBase           = 1000
	volumePerOrganic     = 100
	volumePerRelated     = 50
	volumePerPeopleAsk   = 75
	volumeCeiling        = 100000
	difficultyTopResults = 10

	weightHighAuthority = 8
	weightOtherDomain   = 2
	weightRichSnippet   = 3
	weightSitelinks     = 2
	weightMaxPerResult  = weightHighAuthority + weightRichSnippet + weightSitelinks
)

var highAuthorityDomains = map[string]struct{}{
	"wikipedia.org":     {},
	"youtube.com":       {},
	"amazon.com":        {},
	"facebook.com":      {},
	"twitter.com":       {},
	"x.com":             {},
	"linkedin.com":      {},
	"reddit.com":        {},
	"instagram.com":     {},
	"pinterest.com":     {},
	"quora.com":         {},
	"medium.com":        {},
	"github.com":        {},
	"apple.com":         {},
	"microsoft.com":     {},
	"google.com":        {},
	"nytimes.com":       {},
	"forbes.com":        {},
	"bbc.com":           {},
	"bbc.co.uk":         {},
	"cnn.com":           {},
	"theguardian.com":   {},
	"webmd.com":         {},
	"healthline.com":    {},
	"mayoclinic.org":    {},
	"imdb.com":          {},
	"ebay.com":          {},
	"walmart.com":       {},
	"etsy.com":          {},
	"yelp.com":          {},
	"tripadvisor.com":   {},
	"investopedia.com":  {},
	"britannica.com":    {},
	"stackoverflow.com": {},
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"vs": {}, "do": {}, "does": {}, "can": {}, "i": {}, "my": {}, "your": {},
}

// EstimateSearchVolume returns a search volume proxy in [volumeBase, volumeCeiling].
func EstimateSearchVolume(r *types.SearchResult) int {
	if r == nil {
		return volumeBase
	}
	v := volumeBase + len(r.Organic)*volumePerOrganic
	if r.KnowledgeGraph != nil {
		v *= 2
	}
	v += len(r.RelatedSearches)*volumePerRelated + len(r.PeopleAlsoAsk)*volumePerPeopleAsk
	if v > volumeCeiling {
		v = volumeCeiling
	}
	return v
}

// KeywordDifficulty scores the first ten organic results on a 0-100 scale.
func KeywordDifficulty(organic []types.OrganicResult) int {
	if len(organic) > difficultyTopResults {
		organic = organic[:difficultyTopResults]
	}
	if len(organic) == 0 {
		return 0
	}

	sum := 0
	for i := range organic {
		if IsHighAuthority(Domain(organic[i].Link)) {
			sum += weightHighAuthority
		} else {
			sum += weightOtherDomain
		}
		if organic[i].HasRichSnippet() {
			sum += weightRichSnippet
		}
		if len(organic[i].Sitelinks) > 0 {
			sum += weightSitelinks
		}
	}

	score := int(math.Round(float64(sum) / float64(len(organic)) / weightMaxPerResult * 100))
	return clamp(score, 0, 100)
}

// CompetitionLevel buckets a difficulty score
func CompetitionLevel(difficulty int) string {
	switch {
	case difficulty < 34:
		return ctypes.CompetitionLow
	case difficulty < 67:
		return ctypes.CompetitionMedium
	default:
		return ctypes.CompetitionHigh
	}
}

// Domain returns the host of link without a leading www.
func Domain(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsHighAuthority matches domain or any of its parents against the authority list.
// Government and education domains always count.
func IsHighAuthority(domain string) bool {
	if domain == "" {
		return false
	}
	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".edu") {
		return true
	}
	for d := domain; d != ""; {
		if _, ok := highAuthorityDomains[d]; ok {
			return true
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return false
}

// Highlighted returns the non stop-word keyword tokens appearing in any of texts,
// in keyword order, without duplicates.
func Highlighted(keyword string, texts ...string) []string {
	haystack := make(map[string]struct{})
	for _, t := range texts {
		for _, tok := range tokenize(t) {
			haystack[tok] = struct{}{}
		}
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, tok := range tokenize(keyword) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		if _, ok := haystack[tok]; ok {
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sameURL(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
