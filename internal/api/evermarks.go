package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ipfsnut/everd/internal/evermark"
	"github.com/ipfsnut/everd/internal/metadata"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Service *evermark.Service
	Webhook *WebhookHandler // optional; nil disables the bot webhook route
	Token   string          // optional; empty disables bearer auth on the API
}

// NewHandler returns the everd HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	if deps.Webhook != nil {
		r.Post("/webhook/neynar", deps.Webhook.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/evermarks", handleCreateEvermark(deps))
		r.Post("/evermarks/batch", handleCreateBatch(deps))
		r.Get("/evermarks", handleListEvermarks(deps))
		r.Get("/evermarks/search", handleSearchEvermarks(deps))
		r.Get("/evermarks/{tokenId}", handleGetEvermark(deps))
		r.Get("/collections", handleCollections(deps))
		r.Get("/content-types", handleContentTypes(deps))
		r.Get("/users/{fid}/stats", handleUserStats(deps))
		r.Post("/storage/estimate", handleStorageEstimate)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createEvermarkRequest struct {
	URL     string `json:"url"`
	UserFID int64  `json:"userFid"`
}

func handleCreateEvermark(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createEvermarkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body: %v", err)
			return
		}

		res, err := deps.Service.Create(r.Context(), req.URL, req.UserFID)
		if err != nil {
			serviceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"tokenId":  res.TokenID,
			"status":   res.Status,
			"ipfsHash": res.IPFSHash,
			"metadata": res.Metadata,
		})
	}
}

type createBatchRequest struct {
	URLs    []string `json:"urls"`
	UserFID int64    `json:"userFid"`
}

const maxBatchURLs = 20

func handleCreateBatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body: %v", err)
			return
		}
		if len(req.URLs) == 0 {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "urls is required")
			return
		}
		if len(req.URLs) > maxBatchURLs {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at most %d urls per batch", maxBatchURLs)
			return
		}

		items := deps.Service.CreateBatch(r.Context(), req.URLs, req.UserFID)

		type batchResult struct {
			URL     string `json:"url"`
			TokenID int64  `json:"tokenId,omitempty"`
			Status  string `json:"status,omitempty"`
			Error   string `json:"error,omitempty"`
		}
		results := make([]batchResult, len(items))
		for i, item := range items {
			results[i] = batchResult{URL: item.URL}
			if item.Err != nil {
				results[i].Error = item.Err.Error()
				continue
			}
			results[i].TokenID = item.Result.TokenID
			results[i].Status = item.Result.Status
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func handleListEvermarks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parseIntParam(r, "page", 1, 0)
		if page < 1 {
			page = 1
		}
		limit := parseIntParam(r, "limit", 20, 100)

		items, total, err := deps.Service.Recent(page, limit)
		if err != nil {
			serviceError(w, err)
			return
		}

		totalPages := 0
		if limit > 0 {
			totalPages = (total + limit - 1) / limit
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"evermarks": items,
			"pagination": map[string]int{
				"page":       page,
				"limit":      limit,
				"total":      total,
				"totalPages": totalPages,
			},
		})
	}
}

func handleSearchEvermarks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		items, err := deps.Service.Search(query, limit)
		if err != nil {
			serviceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"query":     query,
			"evermarks": items,
		})
	}
}

func handleGetEvermark(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenID, err := strconv.ParseInt(chi.URLParam(r, "tokenId"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tokenId must be an integer")
			return
		}

		e, err := deps.Service.Get(tokenID)
		if err != nil {
			serviceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, e)
	}
}

func handleCollections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Service.Collections()
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"collections": counts})
	}
}

func handleContentTypes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Service.TypeBreakdown()
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"contentTypes": counts})
	}
}

func handleUserStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fid, err := strconv.ParseInt(chi.URLParam(r, "fid"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "fid must be an integer")
			return
		}

		stats, err := deps.Service.Stats(fid)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

type storageEstimateRequest struct {
	Content   string `json:"content"` // base64-encoded payload
	SizeBytes int64  `json:"sizeBytes"`
}

// handleStorageEstimate prices permanent storage for a payload, supplied
// either as base64 content or as an explicit size.
func handleStorageEstimate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req storageEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body: %v", err)
		return
	}

	size := req.SizeBytes
	if size <= 0 && req.Content != "" {
		size = decodedBase64Size(req.Content)
	}
	if size <= 0 {
		httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "content or sizeBytes is required")
		return
	}

	writeJSON(w, http.StatusOK, metadata.CalculateStorageCost(size))
}

// decodedBase64Size computes the decoded length without decoding the payload.
func decodedBase64Size(content string) int64 {
	n := int64(len(content))
	padding := int64(0)
	for i := len(content) - 1; i >= 0 && content[i] == '='; i-- {
		padding++
	}
	return n/4*3 - padding
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
