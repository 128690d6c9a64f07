package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakeCastFetcher struct {
	cast Cast
	err  error
}

func (f *fakeCastFetcher) FetchCast(ctx context.Context, hash string) (Cast, error) {
	return f.cast, f.err
}

func TestDetectType(t *testing.T) {
	e := NewExtractor(nil, nil)

	cases := []struct {
		input string
		want  ContentType
	}{
		{"https://warpcast.com/alice/0xabcdef12", TypeCast},
		{"https://farcaster.xyz/bob/0x1234abcd", TypeCast},
		{"https://supercast.xyz/carol/0xdeadbeef", TypeCast},
		{"0xabcdef1234567890", TypeCast},
		{"https://twitter.com/someone/status/1234567890", TypeTweet},
		{"https://x.com/someone/status/1234567890", TypeTweet},
		{"https://doi.org/10.1000/journal.v1", TypeDOI},
		{"https://dx.doi.org/10.5555/12345678", TypeDOI},
		{"ISBN 978-0-13-468599-1", TypeISBN},
		{"https://example.com/paper.pdf", TypeCustom},
		{"https://example.com/paper.PDF", TypeCustom},
		{"https://example.com/article", TypeURL},
		{"https://twitter.com/someone", TypeURL},
		{"https://example.com/10.1000/fake", TypeURL},
	}

	for _, tc := range cases {
		if got := e.DetectType(tc.input); got != tc.want {
			t.Errorf("DetectType(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestExtractCastHash(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"https://warpcast.com/alice/0xabcdef12", "0xabcdef12"},
		{"0xabcdef1234567890", "0xabcdef1234567890"},
		{"https://mobile.farcaster.xyz/bob/0x12345678", "0x12345678"},
		{"https://example.com/article", ""},
		{"0xzz", ""},
	}
	for _, tc := range cases {
		if got := ExtractCastHash(tc.input); got != tc.want {
			t.Errorf("ExtractCastHash(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestExtractCast(t *testing.T) {
	fetcher := &fakeCastFetcher{cast: Cast{
		Hash:       "0xabcdef12",
		Text:       "gm everyone, shipping today",
		Username:   "alice",
		AuthorName: "Alice",
		Channel:    "dev",
		Likes:      12,
		Recasts:    3,
		Replies:    4,
		Timestamp:  "2026-08-30T10:00:00Z",
	}}
	e := NewExtractor(fetcher, nil)

	meta, err := e.Extract(context.Background(), "https://warpcast.com/alice/0xabcdef12")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.ContentType != TypeCast {
		t.Errorf("ContentType = %q", meta.ContentType)
	}
	if meta.Title != "Cast by Alice: gm everyone, shipping today" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Author != "Alice" {
		t.Errorf("Author = %q", meta.Author)
	}

	wantTags := []string{"farcaster", "cast", "channel-dev", "author-alice"}
	if len(meta.Tags) != len(wantTags) {
		t.Fatalf("Tags = %v", meta.Tags)
	}
	for i, tag := range wantTags {
		if meta.Tags[i] != tag {
			t.Errorf("Tags[%d] = %q, want %q", i, meta.Tags[i], tag)
		}
	}

	ext, ok := meta.Extended.(CastData)
	if !ok {
		t.Fatalf("Extended is %T", meta.Extended)
	}
	if ext.CastHash != "0xabcdef12" || ext.Engagement.Likes != 12 {
		t.Errorf("Extended = %+v", ext)
	}
	if ext.Placeholder {
		t.Error("fetched cast should not be marked placeholder")
	}
}

func TestExtractCast_FetchFailureFallsBackToPlaceholder(t *testing.T) {
	fetcher := &fakeCastFetcher{err: errors.New("neynar unavailable")}
	e := NewExtractor(fetcher, nil)

	meta, err := e.Extract(context.Background(), "https://warpcast.com/alice/0xabcdef12")
	if err != nil {
		t.Fatalf("Extract should degrade, not fail: %v", err)
	}
	if meta.Author != "Farcaster User" {
		t.Errorf("Author = %q", meta.Author)
	}
	ext, ok := meta.Extended.(CastData)
	if !ok {
		t.Fatalf("Extended is %T", meta.Extended)
	}
	if !ext.Placeholder {
		t.Error("degraded cast should be marked placeholder")
	}
}

func TestCastTitleTruncation(t *testing.T) {
	long := "this cast text is definitely longer than fifty characters in total"
	got := castTitle(Cast{AuthorName: "Bob", Text: long})
	want := "Cast by Bob: " + long[:47] + "..."
	if got != want {
		t.Errorf("castTitle = %q, want %q", got, want)
	}

	if got := castTitle(Cast{Username: "carol"}); got != "Cast by carol" {
		t.Errorf("textless castTitle = %q", got)
	}

	// Truncation must not split a multi-byte rune.
	emoji := strings.Repeat("x", 45) + "🎯🎯🎯🎯🎯🎯🎯🎯"
	got = castTitle(Cast{AuthorName: "Bob", Text: emoji})
	if !utf8.ValidString(got) {
		t.Errorf("castTitle produced invalid UTF-8: %q", got)
	}
	if want := "Cast by Bob: " + strings.Repeat("x", 45) + "🎯🎯..."; got != want {
		t.Errorf("castTitle = %q, want %q", got, want)
	}
}

func TestExtractTweet(t *testing.T) {
	e := NewExtractor(nil, nil)
	meta, err := e.Extract(context.Background(), "https://x.com/builder/status/99887766")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Title != "Tweet by @builder" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Author != "@builder" {
		t.Errorf("Author = %q", meta.Author)
	}
	ext, ok := meta.Extended.(TweetData)
	if !ok {
		t.Fatalf("Extended is %T", meta.Extended)
	}
	if ext.TweetID != "99887766" || ext.Username != "builder" {
		t.Errorf("Extended = %+v", ext)
	}
}

func TestExtractDOI(t *testing.T) {
	e := NewExtractor(nil, nil)
	meta, err := e.Extract(context.Background(), "https://doi.org/10.1000/journal.v2.31")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.ContentType != TypeDOI {
		t.Errorf("ContentType = %q", meta.ContentType)
	}
	ext, ok := meta.Extended.(PaperData)
	if !ok {
		t.Fatalf("Extended is %T", meta.Extended)
	}
	if ext.DOI != "10.1000/journal.v2.31" {
		t.Errorf("DOI = %q", ext.DOI)
	}
}

func TestExtractISBN(t *testing.T) {
	e := NewExtractor(nil, nil)
	meta, err := e.Extract(context.Background(), "ISBN 978-0-13-468599-1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	ext, ok := meta.Extended.(BookData)
	if !ok {
		t.Fatalf("Extended is %T", meta.Extended)
	}
	if ext.ISBN != "9780134685991" {
		t.Errorf("ISBN = %q, separators should be stripped", ext.ISBN)
	}
}

func TestFindISBN(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"ISBN 978-0-13-468599-1", "9780134685991"},
		{"ISBN 0-306-40615-2", "0306406152"},
		{"ISBN 0-8044-2957-X", "080442957X"},
		{"isbn 9780134685991", "9780134685991"},
		{"ISBN 123-456-789", ""},      // nine digits is not an ISBN
		{"ISBN 0-30X-40615-2", ""},    // X only ends an ISBN-10
		{"ISBN 978-0-13-46859X-1", ""}, // no X in an ISBN-13
	}
	for _, tc := range cases {
		if got := findISBN(tc.input); got != tc.want {
			t.Errorf("findISBN(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestExtractISBN10(t *testing.T) {
	e := NewExtractor(nil, nil)
	if got := e.DetectType("ISBN 0-306-40615-2"); got != TypeISBN {
		t.Fatalf("DetectType = %q, want %q", got, TypeISBN)
	}
	meta, err := e.Extract(context.Background(), "ISBN 0-306-40615-2")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	ext, ok := meta.Extended.(BookData)
	if !ok {
		t.Fatalf("Extended is %T", meta.Extended)
	}
	if ext.ISBN != "0306406152" {
		t.Errorf("ISBN = %q", ext.ISBN)
	}
}

func TestCalculateStorageCost(t *testing.T) {
	cost := CalculateStorageCost(2 * 1024 * 1024)
	if cost.Bytes != 2*1024*1024 {
		t.Errorf("Bytes = %d", cost.Bytes)
	}
	if cost.CostUSD != 0.02 {
		t.Errorf("CostUSD = %v", cost.CostUSD)
	}
	if cost.Provider != "arweave" || cost.Currency != "USD" {
		t.Errorf("cost = %+v", cost)
	}
}
