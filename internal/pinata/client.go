// Package pinata uploads evermark metadata to IPFS through the Pinata
// pinning service.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ipfsnut/everd/internal/metadata"
)

const defaultBaseURL = "https://api.pinata.cloud"

// NFTMetadata is the fixed on-chain attribute schema an evermark is
// serialized into before pinning.
type NFTMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Attributes  []Attribute    `json:"attributes"`
	Evermark    EvermarkExtras `json:"evermark"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// EvermarkExtras carries service-specific data alongside the standard NFT fields.
type EvermarkExtras struct {
	Version     string          `json:"version"`
	SourceURL   string          `json:"sourceUrl"`
	ContentType string          `json:"contentType"`
	Tags        []string        `json:"tags"`
	Extended    json.RawMessage `json:"extendedMetadata,omitempty"`
}

// BuildNFTMetadata maps extracted content metadata onto the NFT schema:
// name, description, image, and one attribute each for content type, author,
// source URL, and every tag.
func BuildNFTMetadata(m metadata.ContentMetadata) NFTMetadata {
	author := m.Author
	if author == "" {
		author = "Unknown"
	}

	attrs := []Attribute{
		{TraitType: "Content Type", Value: string(m.ContentType)},
		{TraitType: "Author", Value: author},
		{TraitType: "Source URL", Value: m.SourceURL},
	}
	for _, tag := range m.Tags {
		attrs = append(attrs, Attribute{TraitType: "Tag", Value: tag})
	}

	var extended json.RawMessage
	if m.Extended != nil {
		if data, err := json.Marshal(m.Extended); err == nil {
			extended = data
		}
	}

	return NFTMetadata{
		Name:        m.Title,
		Description: m.Description,
		Image:       m.ImageURL,
		Attributes:  attrs,
		Evermark: EvermarkExtras{
			Version:     "1.0",
			SourceURL:   m.SourceURL,
			ContentType: string(m.ContentType),
			Tags:        m.Tags,
			Extended:    extended,
		},
	}
}

// Client pins JSON content via the Pinata API.
type Client struct {
	baseURL    string
	jwt        string
	httpClient *http.Client
}

// New creates a Client. An empty jwt disables uploads; PinMetadata then
// returns an error and the pipeline records the evermark in a degraded state.
func New(jwt string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		jwt:        jwt,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint (used by tests).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// PinMetadata serializes the evermark into the NFT schema and pins it,
// returning the IPFS hash.
func (c *Client) PinMetadata(ctx context.Context, m metadata.ContentMetadata) (string, error) {
	if c.jwt == "" {
		return "", fmt.Errorf("pinata jwt not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	name := m.Title
	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}
	payload := map[string]any{
		"pinataContent": BuildNFTMetadata(m),
		"pinataMetadata": map[string]any{
			"name": "evermark-" + name,
			"keyvalues": map[string]string{
				"contentType": string(m.ContentType),
				"author":      m.Author,
				"createdAt":   time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinning metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("pinata upload returned %d: %s", resp.StatusCode, string(errBody))
	}

	var out struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pinata response missing hash")
	}
	return out.IpfsHash, nil
}
