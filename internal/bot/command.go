// Package bot interprets free-form mention text into typed commands and
// executes them against the archive.
package bot

// Kind identifies a parsed user intent.
type Kind string

const (
	KindSave         Kind = "save"
	KindSearch       Kind = "search"
	KindRecent       Kind = "recent"
	KindStats        Kind = "stats"
	KindTag          Kind = "tag"
	KindCollections  Kind = "collections"
	KindInsights     Kind = "insights"
	KindHelp         Kind = "help"
	KindEvermarkCast Kind = "evermark_cast"
	KindMarkEvermark Kind = "mark_evermark"
)

// CastRef references the cast a command was issued in reply to. Commands
// that operate on "this cast" (evermark_cast, mark_evermark) require it at
// execution time.
type CastRef struct {
	Hash      string
	Username  string
	FID       int64
	Text      string
	EmbedURLs []string
}

// Command is a parsed user intent. Constructed once per inbound message,
// immutable, consumed exactly once by the dispatcher.
type Command struct {
	Kind        Kind
	Args        []string
	UserFID     int64
	RawText     string
	ContextCast *CastRef
}

// Result is what command execution hands back to the responder. Execution
// never returns an error: a conversational interface always produces a
// reply, so every fault becomes a Result with Success=false.
type Result struct {
	Success      bool
	Message      string
	Data         any
	ShouldThread bool
}
