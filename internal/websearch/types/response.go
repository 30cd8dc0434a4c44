package types

// SearchResult is the provider response as returned to native callers and cached
type SearchResult struct {
	SearchParameters *SearchParameters `json:"searchParameters,omitempty"`
	KnowledgeGraph   *KnowledgeGraph   `json:"knowledgeGraph,omitempty"`
	AnswerBox        *AnswerBox        `json:"answerBox,omitempty"`
	Organic          []OrganicResult   `json:"organic"`
	PeopleAlsoAsk    []PeopleAlsoAsk   `json:"peopleAlsoAsk"`
	RelatedSearches  []RelatedSearch   `json:"relatedSearches"`
	Images           []ImageResult     `json:"images,omitempty"`
	Videos           []VideoResult     `json:"videos,omitempty"`
	News             []NewsResult      `json:"news,omitempty"`
	Places           []PlaceResult     `json:"places,omitempty"`
	Credits          int               `json:"credits,omitempty"`
}

type SearchParameters struct {
	Q      string `json:"q"`
	GL     string `json:"gl,omitempty"`
	HL     string `json:"hl,omitempty"`
	Num    int    `json:"num,omitempty"`
	Type   string `json:"type,omitempty"`
	Page   int    `json:"page,omitempty"`
	Engine string `json:"engine,omitempty"`
}

type KnowledgeGraph struct {
	Title             string            `json:"title"`
	Type              string            `json:"type,omitempty"`
	Website           string            `json:"website,omitempty"`
	ImageURL          string            `json:"imageUrl,omitempty"`
	Description       string            `json:"description,omitempty"`
	DescriptionSource string            `json:"descriptionSource,omitempty"`
	DescriptionLink   string            `json:"descriptionLink,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

type AnswerBox struct {
	Title              string   `json:"title,omitempty"`
	Answer             string   `json:"answer,omitempty"`
	Snippet            string   `json:"snippet,omitempty"`
	SnippetHighlighted []string `json:"snippetHighlighted,omitempty"`
	Link               string   `json:"link,omitempty"`
}

// OrganicResult covers web results and scholar items
type OrganicResult struct {
	Position    int                    `json:"position"`
	Title       string                 `json:"title"`
	Link        string                 `json:"link"`
	Snippet     string                 `json:"snippet,omitempty"`
	Date        string                 `json:"date,omitempty"`
	Sitelinks   []Sitelink             `json:"sitelinks,omitempty"`
	Attributes  map[string]string      `json:"attributes,omitempty"`
	Rating      float64                `json:"rating,omitempty"`
	RatingCount int                    `json:"ratingCount,omitempty"`
	RichSnippet map[string]interface{} `json:"richSnippet,omitempty"`

	// scholar
	PublicationInfo string `json:"publicationInfo,omitempty"`
	Year            int    `json:"year,omitempty"`
	CitedBy         int    `json:"citedBy,omitempty"`
	PDFURL          string `json:"pdfUrl,omitempty"`
	ID              string `json:"id,omitempty"`
}

// HasRichSnippet reports whether the result carries structured snippet data
func (r *OrganicResult) HasRichSnippet() bool {
	return len(r.RichSnippet) > 0 || len(r.Attributes) > 0 || r.Rating > 0
}

type Sitelink struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type PeopleAlsoAsk struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet,omitempty"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link,omitempty"`
}

type RelatedSearch struct {
	Query string `json:"query"`
}

type ImageResult struct {
	Position        int    `json:"position"`
	Title           string `json:"title"`
	ImageURL        string `json:"imageUrl"`
	ImageWidth      int    `json:"imageWidth,omitempty"`
	ImageHeight     int    `json:"imageHeight,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	ThumbnailWidth  int    `json:"thumbnailWidth,omitempty"`
	ThumbnailHeight int    `json:"thumbnailHeight,omitempty"`
	Source          string `json:"source,omitempty"`
	Domain          string `json:"domain,omitempty"`
	Link            string `json:"link,omitempty"`
}

type VideoResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Duration string `json:"duration,omitempty"`
	Source   string `json:"source,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Date     string `json:"date,omitempty"`
}

type NewsResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Date     string `json:"date,omitempty"`
	Source   string `json:"source,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type PlaceResult struct {
	Position    int     `json:"position"`
	Title       string  `json:"title"`
	Address     string  `json:"address,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	RatingCount int     `json:"ratingCount,omitempty"`
	Category    string  `json:"category,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Website     string  `json:"website,omitempty"`
	CID         string  `json:"cid,omitempty"`
}
