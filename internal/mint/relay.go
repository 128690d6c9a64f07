package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ipfsnut/everd/internal/storage"
)

// RelayMinter submits mint requests to an external transaction relay that
// holds the signing key and pays gas.
type RelayMinter struct {
	endpoint   string
	httpClient *http.Client
}

// NewRelayMinter creates a minter for the given relay endpoint. An empty
// endpoint produces a minter whose Mint always fails, which keeps mint jobs
// in the queue until a relay is configured.
func NewRelayMinter(endpoint string) *RelayMinter {
	return &RelayMinter{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type mintRequest struct {
	TokenID     int64  `json:"tokenId"`
	MetadataURI string `json:"metadataUri"`
	SourceURL   string `json:"sourceUrl"`
}

type mintResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

// Mint asks the relay to mint an NFT pointing at the evermark's IPFS
// metadata and returns the resulting transaction hash.
func (m *RelayMinter) Mint(ctx context.Context, e storage.Evermark) (string, error) {
	if m.endpoint == "" {
		return "", fmt.Errorf("mint relay not configured")
	}

	body, err := json.Marshal(mintRequest{
		TokenID:     e.TokenID,
		MetadataURI: "ipfs://" + e.IPFSHash,
		SourceURL:   e.SourceURL,
	})
	if err != nil {
		return "", fmt.Errorf("encoding mint request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/mint", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling mint relay: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading relay response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mint relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out mintResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding relay response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("mint relay error: %s", out.Error)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("mint relay returned no transaction hash")
	}
	return out.TxHash, nil
}
