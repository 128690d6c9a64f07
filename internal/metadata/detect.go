package metadata

import (
	"context"
	"net/http"
	"time"
)

// Detector pairs a URL predicate with the extractor to run when it matches.
// Detectors are evaluated in registration order; the first match wins.
type Detector struct {
	Type    ContentType
	Match   func(url string) bool
	Extract func(ctx context.Context, url string) (ContentMetadata, error)
}

// CastFetcher looks up a Farcaster cast by hash.
type CastFetcher interface {
	FetchCast(ctx context.Context, hash string) (Cast, error)
}

// Cast mirrors the fields of a fetched Farcaster cast that extraction needs.
type Cast struct {
	Hash        string
	Text        string
	Timestamp   string
	AuthorName  string
	Username    string
	AuthorFID   int64
	Channel     string
	Likes       int
	Recasts     int
	Replies     int
	EmbedURLs   []string
	AuthorImage string
}

// Extractor routes URLs through an ordered detector list. New content types
// are added by registering a detector; the dispatch loop never changes.
type Extractor struct {
	detectors  []Detector
	httpClient *http.Client
}

// NewExtractor builds the default detector chain: Farcaster casts, tweets,
// DOIs, ISBNs, PDFs, then the generic web fallback (which matches anything).
func NewExtractor(casts CastFetcher, httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	e := &Extractor{httpClient: httpClient}
	e.Register(Detector{Type: TypeCast, Match: IsFarcasterInput, Extract: castExtractor(casts)})
	e.Register(Detector{Type: TypeTweet, Match: isTweetURL, Extract: extractTweet})
	e.Register(Detector{Type: TypeDOI, Match: isDOIInput, Extract: extractDOI})
	e.Register(Detector{Type: TypeISBN, Match: isISBNInput, Extract: extractISBN})
	e.Register(Detector{Type: TypeCustom, Match: isPDFURL, Extract: e.extractPDF})
	e.Register(Detector{Type: TypeURL, Match: matchAny, Extract: e.extractWeb})
	return e
}

// Register appends a detector to the chain. Order encodes priority.
func (e *Extractor) Register(d Detector) {
	e.detectors = append(e.detectors, d)
}

// DetectType classifies a URL without extracting anything. Pure function of
// the input string.
func (e *Extractor) DetectType(url string) ContentType {
	for _, d := range e.detectors {
		if d.Match(url) {
			return d.Type
		}
	}
	return TypeURL
}

// Extract runs the first matching detector's extractor against the URL.
func (e *Extractor) Extract(ctx context.Context, url string) (ContentMetadata, error) {
	for _, d := range e.detectors {
		if d.Match(url) {
			return d.Extract(ctx, url)
		}
	}
	// Unreachable with the default chain; the web fallback matches anything.
	return e.extractWeb(ctx, url)
}

func matchAny(string) bool { return true }
