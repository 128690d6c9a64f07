// Package metadata classifies content URLs and extracts a normalized
// description of the content behind them.
package metadata

// ContentType tags which detector produced a piece of metadata.
type ContentType string

const (
	TypeCast   ContentType = "Cast"
	TypeTweet  ContentType = "Tweet"
	TypeURL    ContentType = "URL"
	TypeDOI    ContentType = "DOI"
	TypeISBN   ContentType = "ISBN"
	TypeCustom ContentType = "Custom"
)

// ContentMetadata is the normalized description of preserved content.
// Extended holds the detector-specific payload; its concrete type follows
// ContentType (CastData, TweetData, PaperData, BookData, WebData).
type ContentMetadata struct {
	Title       string      `json:"title"`
	Author      string      `json:"author,omitempty"`
	Description string      `json:"description,omitempty"`
	ContentType ContentType `json:"contentType"`
	SourceURL   string      `json:"sourceUrl"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Extended    any         `json:"extendedMetadata,omitempty"`
}

// CastData is the extended payload for Farcaster casts.
type CastData struct {
	CastHash    string     `json:"castHash"`
	Username    string     `json:"username"`
	Content     string     `json:"content"`
	Timestamp   string     `json:"timestamp"`
	Channel     string     `json:"channel,omitempty"`
	Placeholder bool       `json:"placeholder,omitempty"`
	Engagement  Engagement `json:"engagement"`
}

// Engagement holds social interaction counts at extraction time.
type Engagement struct {
	Likes   int `json:"likes"`
	Recasts int `json:"recasts"`
	Replies int `json:"replies"`
}

// TweetData is the extended payload for Twitter/X posts.
type TweetData struct {
	TweetID  string `json:"tweetId"`
	Username string `json:"username"`
}

// PaperData is the extended payload for DOI-identified academic papers.
type PaperData struct {
	DOI string `json:"doi"`
}

// BookData is the extended payload for ISBN-identified books.
type BookData struct {
	ISBN string `json:"isbn"`
}

// WebData is the extended payload for generic web pages.
type WebData struct {
	SiteName string `json:"siteName,omitempty"`
	Scraped  bool   `json:"scraped"`
}
