package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ipfsnut/everd/internal/bot"
)

const signatureHeader = "X-Neynar-Signature"

// ContextFetcher loads the parent cast a bot command refers to.
type ContextFetcher interface {
	FetchCastRef(ctx context.Context, hash string) (*bot.CastRef, error)
}

// Replier posts command results back to the triggering cast.
type Replier interface {
	Reply(ctx context.Context, parentHash string, res bot.Result) error
	SendWelcome(ctx context.Context, username string) error
}

// WebhookHandler receives Neynar webhook events and routes mentions of the
// bot through the command processor.
type WebhookHandler struct {
	secret      string
	botFID      int64
	botUsername string
	processor   *bot.Processor
	replier     Replier
	casts       ContextFetcher
	logger      *slog.Logger
}

func NewWebhookHandler(secret string, botFID int64, botUsername string, processor *bot.Processor, replier Replier, casts ContextFetcher) *WebhookHandler {
	return &WebhookHandler{
		secret:      secret,
		botFID:      botFID,
		botUsername: strings.ToLower(strings.TrimPrefix(botUsername, "@")),
		processor:   processor,
		replier:     replier,
		casts:       casts,
		logger:      slog.Default(),
	}
}

type webhookEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type webhookCast struct {
	Hash       string `json:"hash"`
	Text       string `json:"text"`
	ParentHash string `json:"parent_hash"`
	Author     struct {
		FID      int64  `json:"fid"`
		Username string `json:"username"`
	} `json:"author"`
	MentionedProfiles []struct {
		FID int64 `json:"fid"`
	} `json:"mentioned_profiles"`
}

type webhookFollow struct {
	User struct {
		FID      int64  `json:"fid"`
		Username string `json:"username"`
	} `json:"user"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "failed to read body: %v", err)
		return
	}

	// Signature check happens on the raw bytes, before any parsing.
	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		httpError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook signature")
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid webhook payload: %v", err)
		return
	}

	switch env.Type {
	case "cast.created":
		h.handleCastCreated(r.Context(), env.Data)
	case "user.followed":
		h.handleUserFollowed(r.Context(), env.Data)
	case "reaction.created":
		// Reactions are acknowledged but not acted on.
	default:
		h.logger.Debug("ignoring webhook event", "type", env.Type)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// verifySignature checks the HMAC-SHA512 hex digest Neynar sends with each
// delivery. An empty configured secret disables verification, which is only
// acceptable for local development.
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *WebhookHandler) handleCastCreated(ctx context.Context, data json.RawMessage) {
	var cast webhookCast
	if err := json.Unmarshal(data, &cast); err != nil {
		h.logger.Warn("invalid cast payload", "error", err)
		return
	}

	// Never react to the bot's own casts.
	if cast.Author.FID == h.botFID {
		return
	}
	if !h.mentionsBot(cast) {
		return
	}

	var ref *bot.CastRef
	if cast.ParentHash != "" {
		var err error
		ref, err = h.casts.FetchCastRef(ctx, cast.ParentHash)
		if err != nil {
			h.logger.Warn("failed to fetch parent cast", "hash", cast.ParentHash, "error", err)
			ref = nil
		}
	}

	cmd := bot.Parse(cast.Text, cast.Author.FID, ref)
	if cmd == nil {
		// A mention the parser can't place still deserves an answer, so the
		// fallback is the help text.
		h.logger.Debug("unrecognized command, replying with help", "hash", cast.Hash, "text", cast.Text)
		cmd = &bot.Command{Kind: bot.KindHelp, UserFID: cast.Author.FID, RawText: cast.Text}
	}

	res := h.processor.Execute(ctx, cmd)
	if err := h.replier.Reply(ctx, cast.Hash, res); err != nil {
		h.logger.Warn("failed to reply", "hash", cast.Hash, "error", err)
	}
}

func (h *WebhookHandler) handleUserFollowed(ctx context.Context, data json.RawMessage) {
	var follow webhookFollow
	if err := json.Unmarshal(data, &follow); err != nil {
		h.logger.Warn("invalid follow payload", "error", err)
		return
	}
	if follow.User.Username == "" {
		return
	}
	if err := h.replier.SendWelcome(ctx, follow.User.Username); err != nil {
		h.logger.Warn("failed to send welcome", "username", follow.User.Username, "error", err)
	}
}

func (h *WebhookHandler) mentionsBot(cast webhookCast) bool {
	for _, p := range cast.MentionedProfiles {
		if p.FID == h.botFID {
			return true
		}
	}
	return h.botUsername != "" && strings.Contains(strings.ToLower(cast.Text), "@"+h.botUsername)
}
