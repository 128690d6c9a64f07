package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// maxCastLength bounds a single reply; longer results get threaded.
const maxCastLength = 300

// threadSuffixReserve leaves room in each chunk for the " (i/n)" position
// suffix so a suffixed part never exceeds maxCastLength.
const threadSuffixReserve = 10

// Publisher posts a cast, optionally as a reply, and returns the new hash.
type Publisher interface {
	PublishCast(ctx context.Context, text, parentHash string) (string, error)
}

// Responder turns command results into cast replies.
type Responder struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewResponder(publisher Publisher) *Responder {
	return &Responder{publisher: publisher, logger: slog.Default()}
}

// Reply posts the result under the triggering cast. Results marked
// ShouldThread are split on line boundaries into a chain of casts.
func (r *Responder) Reply(ctx context.Context, parentHash string, res Result) error {
	if !res.ShouldThread || len(res.Message) <= maxCastLength {
		_, err := r.publisher.PublishCast(ctx, res.Message, parentHash)
		if err != nil {
			return fmt.Errorf("publish reply: %w", err)
		}
		return nil
	}

	parts := splitForThread(res.Message, maxCastLength-threadSuffixReserve)
	parent := parentHash
	for i, part := range parts {
		if len(parts) > 1 {
			part = fmt.Sprintf("%s (%d/%d)", part, i+1, len(parts))
		}
		hash, err := r.publisher.PublishCast(ctx, part, parent)
		if err != nil {
			return fmt.Errorf("publish thread part %d: %w", i+1, err)
		}
		parent = hash
	}
	return nil
}

// SendError posts a generic failure reply, swallowing publish errors so a
// down publisher cannot cascade out of the webhook handler.
func (r *Responder) SendError(ctx context.Context, parentHash string) {
	_, err := r.publisher.PublishCast(ctx, "Sorry, something went wrong on my end. Please try again!", parentHash)
	if err != nil {
		r.logger.Warn("failed to send error reply", "parent", parentHash, "error", err)
	}
}

// SendWelcome greets a new follower.
func (r *Responder) SendWelcome(ctx context.Context, username string) error {
	text := fmt.Sprintf("👋 Welcome @%s! I'm the Evermark bot.\n\nReply to any cast with \"evermark this\" to save it forever, or mention me with \"help\" to see everything I can do.", username)
	_, err := r.publisher.PublishCast(ctx, text, "")
	if err != nil {
		return fmt.Errorf("publish welcome: %w", err)
	}
	return nil
}

// splitForThread breaks text into chunks of at most max bytes, preferring
// line boundaries and falling back to word boundaries for oversized lines.
func splitForThread(text string, max int) []string {
	var parts []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > max {
			cut := strings.LastIndex(line[:max], " ")
			if cut <= 0 {
				cut = max
			}
			if cur.Len() > 0 {
				flush()
			}
			parts = append(parts, strings.TrimSpace(line[:cut]))
			line = strings.TrimSpace(line[cut:])
		}
		if cur.Len()+len(line)+1 > max {
			flush()
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()

	if len(parts) == 0 {
		parts = []string{""}
	}
	return parts
}
