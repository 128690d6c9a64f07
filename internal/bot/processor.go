package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ipfsnut/everd/internal/evermark"
	"github.com/ipfsnut/everd/internal/storage"
)

// Archive is the slice of the evermark service the command handlers need.
type Archive interface {
	Create(ctx context.Context, url string, fid int64) (evermark.Result, error)
	Search(query string, limit int) ([]storage.Evermark, error)
	Recent(page, limit int) ([]storage.Evermark, int, error)
	Stats(fid int64) (storage.UserStats, error)
	Tag(url string, tags []string) error
	Collections() (map[string]int, error)
	TypeBreakdown() (map[string]int, error)
}

// Processor dispatches parsed commands to their handlers.
type Processor struct {
	archive Archive
	logger  *slog.Logger
}

func NewProcessor(archive Archive) *Processor {
	return &Processor{archive: archive, logger: slog.Default()}
}

// Execute runs the handler for the command's kind. Every fault is converted
// into a user-facing Result; nothing propagates past this method.
func (p *Processor) Execute(ctx context.Context, cmd *Command) Result {
	switch cmd.Kind {
	case KindSave:
		return p.handleSave(ctx, cmd)
	case KindSearch:
		return p.handleSearch(cmd)
	case KindRecent:
		return p.handleRecent(cmd)
	case KindStats:
		return p.handleStats(cmd)
	case KindTag:
		return p.handleTag(cmd)
	case KindCollections:
		return p.handleCollections()
	case KindInsights:
		return p.handleInsights()
	case KindHelp:
		return p.handleHelp()
	case KindEvermarkCast:
		return p.handleEvermarkCast(ctx, cmd)
	case KindMarkEvermark:
		return p.handleMarkEvermark(cmd)
	default:
		// Unreachable with Parse's closed kind set.
		return Result{
			Success: false,
			Message: `I didn't understand that. Try saying "evermark this cast" or mention me with "help" to see what I can do!`,
		}
	}
}

func (p *Processor) handleSave(ctx context.Context, cmd *Command) Result {
	if len(cmd.Args) == 0 {
		return Result{Success: false, Message: "Please provide a URL to save. Example: /save https://example.com"}
	}

	url := cmd.Args[0]
	if err := evermark.ValidateURL(url); err != nil {
		return Result{Success: false, Message: "Please provide a valid URL."}
	}

	res, err := p.archive.Create(ctx, url, cmd.UserFID)
	if err != nil {
		var svcErr *evermark.Error
		if errors.As(err, &svcErr) && svcErr.Code == "DUPLICATE_CONTENT" {
			return Result{
				Success: false,
				Message: fmt.Sprintf("That content is already in the archive as token %d. Use /search to find it!", svcErr.ExistingTokenID),
			}
		}
		p.logger.Warn("save failed", "url", url, "error", err)
		return Result{Success: false, Message: "Failed to extract metadata from that URL. Please check the link and try again."}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("✅ Saved to your archive!\n\n📝 \"%s\"\n🔗 %s\n🏷️ Tags: %s\n💾 Token #%d, stored on IPFS\n🎯 Use /search to find it anytime!",
			res.Metadata.Title, url, strings.Join(res.Metadata.Tags, ", "), res.TokenID),
		Data: res,
	}
}

func (p *Processor) handleSearch(cmd *Command) Result {
	if len(cmd.Args) == 0 {
		return Result{Success: false, Message: "Please provide a search query. Example: search blockchain articles"}
	}

	query := strings.Join(cmd.Args, " ")
	results, err := p.archive.Search(query, 5)
	if err != nil {
		p.logger.Warn("search failed", "query", query, "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble searching the archive. Please try again."}
	}

	if len(results) == 0 {
		return Result{
			Success: true,
			Message: fmt.Sprintf("🔍 No results found for \"%s\"\n\n💡 Try different keywords or save more content to build the archive!", query),
		}
	}

	lines := make([]string, 0, len(results))
	for i, e := range results {
		lines = append(lines, fmt.Sprintf("%d. \"%s\" (%s)\n   %s", i+1, e.Title, timeAgo(e.CreatedAt), excerpt(e.Description, 100)))
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("🔍 Found %d results for \"%s\":\n\n%s\n\n💡 Use /recent to see more saves",
			len(results), query, strings.Join(lines, "\n\n")),
		ShouldThread: true,
	}
}

func (p *Processor) handleRecent(cmd *Command) Result {
	count := 5
	if len(cmd.Args) > 0 {
		if n, err := strconv.Atoi(cmd.Args[0]); err == nil && n > 0 {
			count = n
		}
	}
	if count > 10 {
		count = 10
	}

	items, _, err := p.archive.Recent(1, count)
	if err != nil {
		p.logger.Warn("recent failed", "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble getting the recent saves. Please try again."}
	}

	if len(items) == 0 {
		return Result{
			Success: true,
			Message: "📚 The archive is empty!\n\n💡 Try saying \"save [URL]\" or \"evermark this cast\" to start building your digital memory!",
		}
	}

	lines := make([]string, 0, len(items))
	for i, e := range items {
		lines = append(lines, fmt.Sprintf("%d. \"%s\" (%s)", i+1, e.Title, timeAgo(e.CreatedAt)))
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("📚 The %d most recent saves:\n\n%s\n\n💡 Use /search to find specific content",
			len(items), strings.Join(lines, "\n")),
		ShouldThread: true,
	}
}

func (p *Processor) handleStats(cmd *Command) Result {
	stats, err := p.archive.Stats(cmd.UserFID)
	if err != nil {
		p.logger.Warn("stats failed", "fid", cmd.UserFID, "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble getting your statistics. Please try again."}
	}

	topDomain := stats.TopDomain
	if topDomain == "" {
		topDomain = "n/a"
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("📊 Your Evermark Stats:\n\n💾 Total Saves: %d\n📅 This Month: %d\n🏷️ Tags Used: %d\n🔗 Most Saved Domain: %s\n\n🎯 Keep building your digital memory!",
			stats.TotalSaves, stats.ThisMonth, stats.TagsUsed, topDomain),
	}
}

func (p *Processor) handleTag(cmd *Command) Result {
	if len(cmd.Args) < 2 {
		return Result{Success: false, Message: "Please provide a URL and tags. Example: /tag https://example.com blockchain, web3"}
	}

	url := cmd.Args[0]
	var tags []string
	for _, part := range strings.Split(strings.Join(cmd.Args[1:], " "), ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}

	if err := p.archive.Tag(url, tags); err != nil {
		var svcErr *evermark.Error
		if errors.As(err, &svcErr) && svcErr.Code == "NOT_FOUND" {
			return Result{Success: false, Message: "I couldn't find that URL in the archive. Save it first with /save."}
		}
		p.logger.Warn("tag failed", "url", url, "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble updating the tags. Please try again."}
	}

	hashed := make([]string, len(tags))
	for i, t := range tags {
		hashed[i] = "#" + t
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("🏷️ Added tags to %s:\n%s", url, strings.Join(hashed, ", ")),
	}
}

func (p *Processor) handleCollections() Result {
	counts, err := p.archive.Collections()
	if err != nil {
		p.logger.Warn("collections failed", "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble loading the collections. Please try again."}
	}

	if len(counts) == 0 {
		return Result{Success: true, Message: "📂 No collections yet. Tags become collections as the archive grows!"}
	}

	lines := make([]string, 0, len(counts))
	for _, tc := range sortedCounts(counts, 8) {
		lines = append(lines, fmt.Sprintf("🔗 %s (%d items)", tc.name, tc.count))
	}

	return Result{
		Success:      true,
		Message:      fmt.Sprintf("📂 Collections:\n\n%s\n\nUse /search [collection name] to explore", strings.Join(lines, "\n")),
		ShouldThread: true,
	}
}

func (p *Processor) handleInsights() Result {
	types, err := p.archive.TypeBreakdown()
	if err != nil {
		p.logger.Warn("insights failed", "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble analyzing the archive. Please try again."}
	}

	total := 0
	for _, n := range types {
		total += n
	}
	if total == 0 {
		return Result{Success: true, Message: "🧠 Nothing to analyze yet. Save some content first!"}
	}

	lines := make([]string, 0, len(types))
	for _, tc := range sortedCounts(types, 6) {
		lines = append(lines, fmt.Sprintf("• %s: %d%% of saves", tc.name, tc.count*100/total))
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("🧠 Insights from the archive:\n\n%s\n\n🎯 Your digital memory is growing stronger!",
			strings.Join(lines, "\n")),
		ShouldThread: true,
	}
}

func (p *Processor) handleHelp() Result {
	return Result{
		Success: true,
		Message: "🤖 Evermark Bot - Save anything to your digital memory!\n\n" +
			"💬 Natural Commands:\n" +
			"• \"evermark this cast\" - Save the cast you're replying to\n" +
			"• \"mark this evermark to memory\" - Save content permanently\n" +
			"• \"save https://example.com\" - Save any URL\n" +
			"• \"search for blockchain articles\" - Find saved content\n\n" +
			"⚡ Quick Commands:\n" +
			"• /recent - Latest saves\n" +
			"• /stats - Your archive stats\n" +
			"• /collections - Browse by tag\n" +
			"• /insights - Analysis of saved content\n\n" +
			"💡 Just mention me and tell me what you want to do!",
		ShouldThread: true,
	}
}

func (p *Processor) handleEvermarkCast(ctx context.Context, cmd *Command) Result {
	if cmd.ContextCast == nil {
		return Result{
			Success: false,
			Message: `I need you to reply to a specific cast to evermark it. Try replying to a cast and saying "evermark this cast".`,
		}
	}

	cast := cmd.ContextCast
	saveURL := castSourceURL(cast)

	res, err := p.archive.Create(ctx, saveURL, cmd.UserFID)
	if err != nil {
		var svcErr *evermark.Error
		if errors.As(err, &svcErr) && svcErr.Code == "DUPLICATE_CONTENT" {
			return Result{
				Success: false,
				Message: fmt.Sprintf("That cast is already evermarked as token %d!", svcErr.ExistingTokenID),
			}
		}
		p.logger.Warn("evermark cast failed", "hash", cast.Hash, "error", err)
		return Result{Success: false, Message: "Had trouble processing that cast. Make sure it contains valid content and try again!"}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("✅ Evermarked cast!\n\n📝 \"%s\"\n👤 by @%s\n🔗 %s\n🏷️ Tagged: %s\n\n💾 Saved to the permanent archive as token #%d!",
			res.Metadata.Title, cast.Username, saveURL, strings.Join(res.Metadata.Tags, ", "), res.TokenID),
		Data: res,
	}
}

func (p *Processor) handleMarkEvermark(cmd *Command) Result {
	if cmd.ContextCast == nil {
		return Result{Success: false, Message: "I need you to reply to an evermark or specific content to mark it to memory."}
	}

	saveURL := castSourceURL(cmd.ContextCast)
	if err := p.archive.Tag(saveURL, []string{"important"}); err != nil {
		var svcErr *evermark.Error
		if errors.As(err, &svcErr) && svcErr.Code == "NOT_FOUND" {
			return Result{Success: false, Message: `That content isn't evermarked yet. Reply with "evermark this cast" first!`}
		}
		p.logger.Warn("mark evermark failed", "url", saveURL, "error", err)
		return Result{Success: false, Message: "Sorry, I had trouble marking that to memory. Please try again."}
	}

	return Result{
		Success: true,
		Message: "🧠 Marked to permanent memory!\n\n🏷️ Auto-tagged as \"important\"\n\nYou can find it anytime with /search or /insights",
	}
}

// castSourceURL picks the URL a cast-context command should preserve: the
// cast's first embedded link when present, otherwise the cast itself.
func castSourceURL(cast *CastRef) string {
	if len(cast.EmbedURLs) > 0 && cast.EmbedURLs[0] != "" {
		return cast.EmbedURLs[0]
	}
	hash := cast.Hash
	if len(hash) > 10 {
		hash = hash[:10]
	}
	return fmt.Sprintf("https://warpcast.com/%s/%s", cast.Username, hash)
}

type namedCount struct {
	name  string
	count int
}

func sortedCounts(counts map[string]int, limit int) []namedCount {
	out := make([]namedCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, namedCount{name: name, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	// Cut on rune boundaries so a trailing emoji never splits.
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}

// timeAgo renders a created-at timestamp the way people read it in chat.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Hour:
		return plural(int(d.Minutes()), "min")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 28*24*time.Hour:
		return plural(int(d.Hours()/(24*7)), "week")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
