package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ipfsnut/everd/internal/evermark"
)

func httpError(w http.ResponseWriter, status int, code string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":     true,
		"code":      code,
		"message":   fmt.Sprintf(format, args...),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// serviceError maps evermark service errors onto the API error envelope,
// preserving their status and code. Duplicate errors additionally carry the
// token id of the existing record.
func serviceError(w http.ResponseWriter, err error) {
	var svcErr *evermark.Error
	if !errors.As(err, &svcErr) {
		httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}

	body := map[string]any{
		"error":     true,
		"code":      svcErr.Code,
		"message":   svcErr.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if svcErr.Code == "DUPLICATE_CONTENT" {
		body["existingTokenId"] = svcErr.ExistingTokenID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.Status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
