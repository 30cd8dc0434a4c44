package types

// KeywordResearchRequest is a keyword research task
type KeywordResearchRequest struct {
	Keyword      string   `json:"keyword"`
	Keywords     []string `json:"keywords,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	LocationCode int      `json:"location_code,omitempty"`
	LanguageName string   `json:"language_name,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
	Depth        int      `json:"depth,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	Offset       int      `json:"offset,omitempty"`
	Tag          string   `json:"tag,omitempty"`
}

// SeedKeyword returns keyword, or the first of keywords
func (r *KeywordResearchRequest) SeedKeyword() string {
	if r.Keyword != "" || len(r.Keywords) == 0 {
		return r.Keyword
	}
	return r.Keywords[0]
}

// SerpAnalysisRequest is an organic SERP task
type SerpAnalysisRequest struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name,omitempty"`
	LocationCode int    `json:"location_code,omitempty"`
	LanguageName string `json:"language_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Device       string `json:"device,omitempty"`
	Depth        int    `json:"depth,omitempty"`
	Tag          string `json:"tag,omitempty"`
}
