package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SearchType selects the upstream endpoint
type SearchType string

const (
	SearchTypeWeb     SearchType = "search"
	SearchTypeImages  SearchType = "images"
	SearchTypeVideos  SearchType = "videos"
	SearchTypeNews    SearchType = "news"
	SearchTypePlaces  SearchType = "places"
	SearchTypeScholar SearchType = "scholar"
)

// Request defaults
const (
	DefaultCountry  = "us"
	DefaultLanguage = "en"
	DefaultNum      = 10
	MaxNum          = 100
	MaxQueryLength  = 2048
)

var validSearchTypes = map[SearchType]bool{
	SearchTypeWeb:     true,
	SearchTypeImages:  true,
	SearchTypeVideos:  true,
	SearchTypeNews:    true,
	SearchTypePlaces:  true,
	SearchTypeScholar: true,
}

// ParseSearchType returns the search type for s, or false if s is not one
func ParseSearchType(s string) (SearchType, bool) {
	t := SearchType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return SearchTypeWeb, true
	}
	return t, validSearchTypes[t]
}

// SearchParams represents a native search request
type SearchParams struct {
	Q    string     `json:"q"`
	GL   string     `json:"gl,omitempty"`
	HL   string     `json:"hl,omitempty"`
	Num  int        `json:"num,omitempty"`
	Type SearchType `json:"type,omitempty"`
	Page int        `json:"page,omitempty"`
}

// Normalize returns a copy with the query lower-cased and defaults applied.
// Num is clamped to [1, MaxNum].
func (p SearchParams) Normalize() SearchParams {
	n := SearchParams{
		Q:    strings.ToLower(strings.Join(strings.Fields(p.Q), " ")),
		GL:   strings.ToLower(strings.TrimSpace(p.GL)),
		HL:   strings.ToLower(strings.TrimSpace(p.HL)),
		Num:  p.Num,
		Type: SearchType(strings.ToLower(strings.TrimSpace(string(p.Type)))),
		Page: p.Page,
	}
	if n.GL == "" {
		n.GL = DefaultCountry
	}
	if n.HL == "" {
		n.HL = DefaultLanguage
	}
	if n.Num <= 0 {
		n.Num = DefaultNum
	}
	if n.Num > MaxNum {
		n.Num = MaxNum
	}
	if n.Type == "" {
		n.Type = SearchTypeWeb
	}
	if n.Page <= 0 {
		n.Page = 1
	}
	return n
}

// Validate checks a normalized request
func (p SearchParams) Validate() error {
	if p.Q == "" {
		return ErrEmptyQuery
	}
	if len(p.Q) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if !validSearchTypes[p.Type] {
		return ErrInvalidSearchType
	}
	return nil
}

// CacheKey derives the cache key of a normalized request:
// search:<type>:<first 16 bytes of sha256(json) in hex>
func (p SearchParams) CacheKey() string {
	// struct fields marshal in declaration order, so the encoding is canonical
	data, _ := json.Marshal(struct {
		Q    string     `json:"q"`
		GL   string     `json:"gl"`
		HL   string     `json:"hl"`
		Num  int        `json:"num"`
		Type SearchType `json:"type"`
		Page int        `json:"page"`
	}(p))
	sum := sha256.Sum256(data)
	return "search:" + string(p.Type) + ":" + hex.EncodeToString(sum[:16])
}

// UpstreamBody is the JSON payload sent to the provider; type is carried in the path
func (p SearchParams) UpstreamBody() map[string]interface{} {
	body := map[string]interface{}{
		"q":   p.Q,
		"gl":  p.GL,
		"hl":  p.HL,
		"num": p.Num,
	}
	if p.Page > 1 {
		body["page"] = p.Page
	}
	return body
}
