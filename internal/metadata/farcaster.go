package metadata

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

var castURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://warpcast\.com/[^/]+/0x[a-fA-F0-9]+`),
	regexp.MustCompile(`^https://farcaster\.xyz/[^/]+/0x[a-fA-F0-9]+`),
	regexp.MustCompile(`^https://supercast\.xyz/[^/]+/0x[a-fA-F0-9]+`),
	regexp.MustCompile(`^https://mobile\.farcaster\.xyz/[^/]+/0x[a-fA-F0-9]+`),
}

var (
	castHashRe     = regexp.MustCompile(`0x[a-fA-F0-9]{8,64}`)
	bareCastHashRe = regexp.MustCompile(`^0x[a-fA-F0-9]{8,64}$`)
)

// IsFarcasterInput reports whether the input is a Farcaster cast URL or a
// bare cast hash.
func IsFarcasterInput(input string) bool {
	if bareCastHashRe.MatchString(input) {
		return true
	}
	for _, re := range castURLPatterns {
		if re.MatchString(input) {
			return true
		}
	}
	return false
}

// ExtractCastHash pulls the cast hash out of a Farcaster URL or returns the
// input when it already is a bare hash. Empty string when nothing matches.
func ExtractCastHash(input string) string {
	if bareCastHashRe.MatchString(input) {
		return input
	}
	for _, re := range castURLPatterns {
		if re.MatchString(input) {
			return castHashRe.FindString(input)
		}
	}
	return ""
}

// castExtractor builds cast metadata via the Neynar API. A failed lookup
// never aborts extraction: the bot must stay best-effort, so the extractor
// substitutes clearly-marked placeholder metadata instead.
func castExtractor(casts CastFetcher) func(ctx context.Context, url string) (ContentMetadata, error) {
	return func(ctx context.Context, url string) (ContentMetadata, error) {
		hash := ExtractCastHash(url)
		if hash == "" {
			return ContentMetadata{}, fmt.Errorf("no cast hash in %q", url)
		}

		var cast Cast
		var err error
		if casts != nil {
			cast, err = casts.FetchCast(ctx, hash)
		} else {
			err = fmt.Errorf("cast lookup not configured")
		}
		if err != nil {
			cast = placeholderCast(hash)
		}

		return castMetadata(cast, url), nil
	}
}

func placeholderCast(hash string) Cast {
	return Cast{
		Hash:       hash,
		Text:       "Cast content will be displayed when available",
		AuthorName: "Farcaster User",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func castMetadata(cast Cast, sourceURL string) ContentMetadata {
	tags := []string{"farcaster", "cast"}
	if cast.Channel != "" {
		tags = append(tags, "channel-"+cast.Channel)
	}
	if cast.Username != "" {
		tags = append(tags, "author-"+cast.Username)
	}

	return ContentMetadata{
		Title:       castTitle(cast),
		Author:      castAuthor(cast),
		Description: castDescription(cast),
		ContentType: TypeCast,
		SourceURL:   sourceURL,
		ImageURL:    cast.AuthorImage,
		Tags:        tags,
		Extended: CastData{
			CastHash:    cast.Hash,
			Username:    cast.Username,
			Content:     cast.Text,
			Timestamp:   cast.Timestamp,
			Channel:     cast.Channel,
			Placeholder: cast.AuthorName == "Farcaster User" && cast.Username == "",
			Engagement: Engagement{
				Likes:   cast.Likes,
				Recasts: cast.Recasts,
				Replies: cast.Replies,
			},
		},
	}
}

func castAuthor(cast Cast) string {
	if cast.AuthorName != "" {
		return cast.AuthorName
	}
	if cast.Username != "" {
		return cast.Username
	}
	return "Unknown Farcaster User"
}

// castTitle uses the first 50 characters of the cast text, or a plain
// "Cast by" form when the cast has no text.
func castTitle(cast Cast) string {
	author := castAuthor(cast)
	if cast.Text == "" {
		return "Cast by " + author
	}
	text := cast.Text
	if runes := []rune(text); len(runes) > 50 {
		text = string(runes[:47]) + "..."
	}
	return fmt.Sprintf("Cast by %s: %s", author, text)
}

func castDescription(cast Cast) string {
	desc := cast.Text
	if desc == "" {
		desc = "Farcaster cast content"
	}
	desc += "\n\nPosted " + cast.Timestamp
	desc += fmt.Sprintf("\n%d likes, %d recasts, %d replies", cast.Likes, cast.Recasts, cast.Replies)
	if cast.Channel != "" {
		desc += "\nChannel: " + cast.Channel
	}
	return desc
}
