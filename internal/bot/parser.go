package bot

import (
	"regexp"
	"strings"
)

// pattern pairs a predicate regexp with the constructor run on its match.
// The patterns slice is evaluated in order and the first match wins, so
// order encodes priority.
type pattern struct {
	re    *regexp.Regexp
	build func(match []string) (Kind, []string, bool)
}

var slashCommands = map[string]Kind{
	"save":        KindSave,
	"search":      KindSearch,
	"recent":      KindRecent,
	"stats":       KindStats,
	"tag":         KindTag,
	"collections": KindCollections,
	"insights":    KindInsights,
	"help":        KindHelp,
}

var patterns = []pattern{
	// "evermark this cast", "evermark this", "evermark it"
	{
		re: regexp.MustCompile(`evermark\s+(this|cast|it)`),
		build: func([]string) (Kind, []string, bool) {
			return KindEvermarkCast, nil, true
		},
	},
	// "mark this evermark", "save this evermark", "save to memory"
	{
		re: regexp.MustCompile(`(mark|save)\s+(this\s+)?(evermark|to\s+memory)`),
		build: func([]string) (Kind, []string, bool) {
			return KindMarkEvermark, nil, true
		},
	},
	// "save <url>" or "evermark <url>"
	{
		re: regexp.MustCompile(`(save|evermark)\s+(https?://\S+)`),
		build: func(match []string) (Kind, []string, bool) {
			return KindSave, []string{match[2]}, true
		},
	},
	// "search for <query>" or "find <query>"
	{
		re: regexp.MustCompile(`(search|find)\s+(for\s+)?(.+)`),
		build: func(match []string) (Kind, []string, bool) {
			return KindSearch, strings.Fields(match[3]), true
		},
	},
	// slash-style commands; only the allow-listed words match, anything
	// else falls through to the no-match outcome
	{
		re: regexp.MustCompile(`/(\w+)(.*)$`),
		build: func(match []string) (Kind, []string, bool) {
			kind, ok := slashCommands[match[1]]
			if !ok {
				return "", nil, false
			}
			return kind, strings.Fields(match[2]), true
		},
	},
}

var mentionRe = regexp.MustCompile(`@\w+`)

// normalize strips mentions, collapses whitespace, and lowercases the input.
func normalize(text string) string {
	text = mentionRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return strings.ToLower(text)
}

// Parse matches text against the ordered pattern list and returns the
// resulting command, or nil when nothing matches. A nil return is the
// "unknown input" outcome, not an error; the caller decides whether to
// stay quiet or reply with help text.
//
// contextCast may be nil; commands that require it fail at execution time,
// not at parse time.
func Parse(text string, userFID int64, contextCast *CastRef) *Command {
	clean := normalize(text)

	for _, p := range patterns {
		match := p.re.FindStringSubmatch(clean)
		if match == nil {
			continue
		}
		kind, args, ok := p.build(match)
		if !ok {
			continue
		}
		if args == nil {
			args = []string{}
		}
		return &Command{
			Kind:        kind,
			Args:        args,
			UserFID:     userFID,
			RawText:     text,
			ContextCast: contextCast,
		}
	}
	return nil
}
