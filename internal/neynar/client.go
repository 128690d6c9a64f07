// Package neynar is a thin client for the Neynar Farcaster API: cast lookup
// for metadata extraction and cast publishing for bot replies.
package neynar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.neynar.com"

// Cast is the subset of Neynar cast data the service needs.
type Cast struct {
	Hash      string      `json:"hash"`
	Text      string      `json:"text"`
	Timestamp string      `json:"timestamp"`
	Author    CastAuthor  `json:"author"`
	Reactions Reactions   `json:"reactions"`
	Replies   RepliesCount `json:"replies"`
	Channel   *Channel    `json:"channel"`
	Embeds    []Embed     `json:"embeds"`
	ParentURL string      `json:"parent_url"`
}

type CastAuthor struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

type Reactions struct {
	LikesCount   int `json:"likes_count"`
	RecastsCount int `json:"recasts_count"`
}

type RepliesCount struct {
	Count int `json:"count"`
}

type Channel struct {
	Name string `json:"name"`
}

type Embed struct {
	URL string `json:"url"`
}

// Client communicates with the Neynar API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	signerUUID string
	httpClient *http.Client
}

// New creates a Client. apiKey may be empty; FetchCast then fails and callers
// fall back to placeholder metadata. signerUUID is required only for publishing.
func New(apiKey, signerUUID string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		signerUUID: signerUUID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint (used by tests).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// FetchCast looks up a cast by its hash.
func (c *Client) FetchCast(ctx context.Context, hash string) (Cast, error) {
	if c.apiKey == "" {
		return Cast{}, fmt.Errorf("neynar api key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/v2/farcaster/cast?identifier=%s&type=hash", c.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Cast{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Cast{}, fmt.Errorf("fetching cast %s: %w", hash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Cast{}, fmt.Errorf("neynar cast lookup returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Cast Cast `json:"cast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Cast{}, fmt.Errorf("decoding cast response: %w", err)
	}
	if out.Cast.Hash == "" {
		return Cast{}, fmt.Errorf("neynar response missing cast data")
	}
	return out.Cast, nil
}

// PublishCast posts a new cast. parentHash may be empty for a top-level cast;
// when set the cast is a reply. Returns the hash of the published cast.
func (c *Client) PublishCast(ctx context.Context, text, parentHash string) (string, error) {
	if c.apiKey == "" || c.signerUUID == "" {
		return "", fmt.Errorf("neynar publishing not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	payload := map[string]any{
		"signer_uuid": c.signerUUID,
		"text":        text,
	}
	if parentHash != "" {
		payload["parent"] = parentHash
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/farcaster/cast", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publishing cast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("neynar publish returned %d: %s", resp.StatusCode, string(errBody))
	}

	var out struct {
		Cast struct {
			Hash string `json:"hash"`
		} `json:"cast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding publish response: %w", err)
	}
	return out.Cast.Hash, nil
}
