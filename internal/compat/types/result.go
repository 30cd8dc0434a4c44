package types

// Competition levels
const (
	CompetitionLow    = "LOW"
	CompetitionMedium = "MEDIUM"
	CompetitionHigh   = "HIGH"
)

// KeywordResult is the keyword research result. SearchVolume is derived from
// SERP features, not measured; SearchVolumeIsEstimated is always true.
type KeywordResult struct {
	Keyword                 string   `json:"keyword"`
	LocationCode            int      `json:"location_code"`
	LocationName            string   `json:"location_name"`
	LanguageCode            string   `json:"language_code"`
	LanguageName            string   `json:"language_name"`
	SearchVolume            int      `json:"search_volume"`
	SearchVolumeIsEstimated bool     `json:"search_volume_is_estimated"`
	KeywordDifficulty       int      `json:"keyword_difficulty"`
	CPC                     *float64 `json:"cpc"`
	Competition             float64  `json:"competition"`
	CompetitionLevel        string   `json:"competition_level"`
	RelatedKeywords         []string `json:"related_keywords"`
	RelatedKeywordsTotal    int      `json:"related_keywords_total"`
}

// SerpResult is the organic SERP analysis result
type SerpResult struct {
	Keyword         string     `json:"keyword"`
	Type            string     `json:"type"`
	SeDomain        string     `json:"se_domain"`
	LocationCode    int        `json:"location_code"`
	LocationName    string     `json:"location_name"`
	LanguageCode    string     `json:"language_code"`
	LanguageName    string     `json:"language_name"`
	Device          string     `json:"device"`
	CheckURL        string     `json:"check_url"`
	Datetime        string     `json:"datetime"`
	ItemTypes       []string   `json:"item_types"`
	ItemsCount      int        `json:"items_count"`
	Items           []SerpItem `json:"items"`
	RelatedSearches []string   `json:"related_searches"`
}

// SerpItem is one organic result
type SerpItem struct {
	Type              string     `json:"type"`
	RankGroup         int        `json:"rank_group"`
	RankAbsolute      int        `json:"rank_absolute"`
	Domain            string     `json:"domain"`
	Title             string     `json:"title"`
	URL               string     `json:"url"`
	Description       string     `json:"description"`
	Highlighted       []string   `json:"highlighted"`
	IsFeaturedSnippet bool       `json:"is_featured_snippet"`
	Links             []SerpLink `json:"links,omitempty"`
}

// SerpLink is a sitelink of an organic result
type SerpLink struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
