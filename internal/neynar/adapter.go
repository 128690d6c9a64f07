package neynar

import (
	"context"

	"github.com/ipfsnut/everd/internal/bot"
	"github.com/ipfsnut/everd/internal/metadata"
)

// CastSource adapts a Client to the metadata.CastFetcher interface.
type CastSource struct {
	Client *Client
}

func (s CastSource) FetchCast(ctx context.Context, hash string) (metadata.Cast, error) {
	cast, err := s.Client.FetchCast(ctx, hash)
	if err != nil {
		return metadata.Cast{}, err
	}

	embeds := make([]string, 0, len(cast.Embeds))
	for _, e := range cast.Embeds {
		if e.URL != "" {
			embeds = append(embeds, e.URL)
		}
	}

	out := metadata.Cast{
		Hash:        cast.Hash,
		Text:        cast.Text,
		Timestamp:   cast.Timestamp,
		AuthorName:  cast.Author.DisplayName,
		Username:    cast.Author.Username,
		AuthorFID:   cast.Author.FID,
		Likes:       cast.Reactions.LikesCount,
		Recasts:     cast.Reactions.RecastsCount,
		Replies:     cast.Replies.Count,
		EmbedURLs:   embeds,
		AuthorImage: cast.Author.PfpURL,
	}
	if out.AuthorName == "" {
		out.AuthorName = cast.Author.Username
	}
	if cast.Channel != nil {
		out.Channel = cast.Channel.Name
	}
	return out, nil
}

// FetchCastRef loads the lightweight cast reference used by bot commands
// that act on a reply's parent.
func (s CastSource) FetchCastRef(ctx context.Context, hash string) (*bot.CastRef, error) {
	cast, err := s.Client.FetchCast(ctx, hash)
	if err != nil {
		return nil, err
	}

	embeds := make([]string, 0, len(cast.Embeds))
	for _, e := range cast.Embeds {
		if e.URL != "" {
			embeds = append(embeds, e.URL)
		}
	}

	return &bot.CastRef{
		Hash:      cast.Hash,
		Username:  cast.Author.Username,
		FID:       cast.Author.FID,
		Text:      cast.Text,
		EmbedURLs: embeds,
	}, nil
}
