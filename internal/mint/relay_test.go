package mint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ipfsnut/everd/internal/storage"
)

func TestRelayMint(t *testing.T) {
	var got mintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mint" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(mintResponse{TxHash: "0xfeedbeef"})
	}))
	defer srv.Close()

	m := NewRelayMinter(srv.URL)
	tx, err := m.Mint(context.Background(), storage.Evermark{
		TokenID:   5,
		IPFSHash:  "QmMeta",
		SourceURL: "https://example.com/page",
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if tx != "0xfeedbeef" {
		t.Errorf("tx = %q", tx)
	}
	if got.TokenID != 5 || got.MetadataURI != "ipfs://QmMeta" || got.SourceURL != "https://example.com/page" {
		t.Errorf("request = %+v", got)
	}
}

func TestRelayMint_NotConfigured(t *testing.T) {
	m := NewRelayMinter("")
	if _, err := m.Mint(context.Background(), storage.Evermark{TokenID: 1, IPFSHash: "Qm"}); err == nil {
		t.Fatal("expected error without an endpoint")
	}
}

func TestRelayMint_RelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mintResponse{Error: "nonce conflict"})
	}))
	defer srv.Close()

	m := NewRelayMinter(srv.URL)
	if _, err := m.Mint(context.Background(), storage.Evermark{TokenID: 1, IPFSHash: "Qm"}); err == nil {
		t.Fatal("expected error from relay error field")
	}
}

func TestRelayMint_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewRelayMinter(srv.URL)
	if _, err := m.Mint(context.Background(), storage.Evermark{TokenID: 1, IPFSHash: "Qm"}); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestRelayMint_EmptyTxHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := NewRelayMinter(srv.URL)
	if _, err := m.Mint(context.Background(), storage.Evermark{TokenID: 1, IPFSHash: "Qm"}); err == nil {
		t.Fatal("expected error on empty tx hash")
	}
}
