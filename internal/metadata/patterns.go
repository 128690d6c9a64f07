package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Tweets.

var tweetURLRe = regexp.MustCompile(`^https://(www\.)?(twitter|x)\.com/[^/]+/status/(\d+)`)

func isTweetURL(url string) bool {
	return tweetURLRe.MatchString(url)
}

func extractTweet(_ context.Context, url string) (ContentMetadata, error) {
	m := tweetURLRe.FindStringSubmatch(url)
	if m == nil {
		return ContentMetadata{}, fmt.Errorf("not a tweet url: %q", url)
	}
	username := strings.Split(strings.TrimPrefix(url, "https://"), "/")[1]
	id := m[3]

	return ContentMetadata{
		Title:       fmt.Sprintf("Tweet by @%s", username),
		Author:      "@" + username,
		Description: fmt.Sprintf("Tweet %s preserved from %s", id, url),
		ContentType: TypeTweet,
		SourceURL:   url,
		Tags:        []string{"twitter", "tweet", "author-" + username},
		Extended:    TweetData{TweetID: id, Username: username},
	}, nil
}

// DOIs.

var doiRe = regexp.MustCompile(`10\.\d+/[\w.\-/()]+`)

func isDOIInput(url string) bool {
	if strings.Contains(url, "doi.org/") || strings.Contains(url, "dx.doi.org/") {
		return doiRe.MatchString(url)
	}
	return false
}

func extractDOI(_ context.Context, url string) (ContentMetadata, error) {
	doi := doiRe.FindString(url)
	if doi == "" {
		return ContentMetadata{}, fmt.Errorf("no DOI in %q", url)
	}

	return ContentMetadata{
		Title:       fmt.Sprintf("Academic Paper (%s)", doi),
		Description: "Academic paper referenced by DOI " + doi,
		ContentType: TypeDOI,
		SourceURL:   url,
		Tags:        []string{"academic", "doi"},
		Extended:    PaperData{DOI: doi},
	}, nil
}

// ISBNs. The candidate pattern collects digit runs with optional hyphen or
// space separators; findISBN keeps only runs that normalize to an ISBN-10
// (which may end in X) or ISBN-13.

var isbnCandidateRe = regexp.MustCompile(`(?i)\b\d(?:[-\s]?[\dXx]){9,16}\b`)

func findISBN(input string) string {
	for _, cand := range isbnCandidateRe.FindAllString(input, -1) {
		isbn := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(cand))
		x := strings.Count(isbn, "X")
		if x > 1 || (x == 1 && !strings.HasSuffix(isbn, "X")) {
			continue
		}
		if len(isbn) == 10 || (len(isbn) == 13 && x == 0) {
			return isbn
		}
	}
	return ""
}

func isISBNInput(input string) bool {
	return strings.Contains(strings.ToLower(input), "isbn") && findISBN(input) != ""
}

func extractISBN(_ context.Context, input string) (ContentMetadata, error) {
	isbn := findISBN(input)
	if isbn == "" {
		return ContentMetadata{}, fmt.Errorf("no ISBN in %q", input)
	}

	return ContentMetadata{
		Title:       "Book (ISBN " + isbn + ")",
		Description: "Book identified by ISBN " + isbn,
		ContentType: TypeISBN,
		SourceURL:   input,
		Tags:        []string{"book", "isbn"},
		Extended:    BookData{ISBN: isbn},
	}, nil
}
