package bot

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ipfsnut/everd/internal/evermark"
	"github.com/ipfsnut/everd/internal/metadata"
	"github.com/ipfsnut/everd/internal/storage"
)

type fakeArchive struct {
	createRes  evermark.Result
	createErr  error
	createURLs []string

	searchRes []storage.Evermark
	searchErr error

	recentRes []storage.Evermark

	stats storage.UserStats

	tagErr  error
	tagURL  string
	tagTags []string

	collections map[string]int
	types       map[string]int
}

func (f *fakeArchive) Create(ctx context.Context, url string, fid int64) (evermark.Result, error) {
	f.createURLs = append(f.createURLs, url)
	return f.createRes, f.createErr
}

func (f *fakeArchive) Search(query string, limit int) ([]storage.Evermark, error) {
	return f.searchRes, f.searchErr
}

func (f *fakeArchive) Recent(page, limit int) ([]storage.Evermark, int, error) {
	return f.recentRes, len(f.recentRes), nil
}

func (f *fakeArchive) Stats(fid int64) (storage.UserStats, error) {
	return f.stats, nil
}

func (f *fakeArchive) Tag(url string, tags []string) error {
	f.tagURL = url
	f.tagTags = tags
	return f.tagErr
}

func (f *fakeArchive) Collections() (map[string]int, error) {
	return f.collections, nil
}

func (f *fakeArchive) TypeBreakdown() (map[string]int, error) {
	return f.types, nil
}

func savedResult() evermark.Result {
	return evermark.Result{
		TokenID: 7,
		Metadata: metadata.ContentMetadata{
			Title: "A Great Article",
			Tags:  []string{"web", "article"},
		},
		IPFSHash: "QmTest",
		Status:   storage.StatusMetadataUploaded,
	}
}

func TestExecute_Save(t *testing.T) {
	archive := &fakeArchive{createRes: savedResult()}
	p := NewProcessor(archive)

	res := p.Execute(context.Background(), &Command{
		Kind: KindSave, Args: []string{"https://example.com/post"}, UserFID: 42,
	})
	if !res.Success {
		t.Fatalf("save failed: %s", res.Message)
	}
	if !strings.Contains(res.Message, "A Great Article") || !strings.Contains(res.Message, "Token #7") {
		t.Errorf("message missing title or token: %q", res.Message)
	}
	if len(archive.createURLs) != 1 || archive.createURLs[0] != "https://example.com/post" {
		t.Errorf("Create called with %v", archive.createURLs)
	}
}

func TestExecute_SaveNoURL(t *testing.T) {
	p := NewProcessor(&fakeArchive{})
	res := p.Execute(context.Background(), &Command{Kind: KindSave, Args: []string{}})
	if res.Success {
		t.Fatal("expected failure without a URL")
	}
}

func TestExecute_SaveInvalidURL(t *testing.T) {
	archive := &fakeArchive{}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{Kind: KindSave, Args: []string{"not-a-url"}})
	if res.Success {
		t.Fatal("expected failure for invalid URL")
	}
	if len(archive.createURLs) != 0 {
		t.Error("Create should not be called for an invalid URL")
	}
}

func TestExecute_SaveDuplicate(t *testing.T) {
	archive := &fakeArchive{createErr: evermark.NewDuplicateError(99)}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{Kind: KindSave, Args: []string{"https://example.com"}})
	if res.Success {
		t.Fatal("duplicate save should not report success")
	}
	if !strings.Contains(res.Message, "token 99") {
		t.Errorf("message should name the existing token: %q", res.Message)
	}
}

func TestExecute_SearchEmpty(t *testing.T) {
	p := NewProcessor(&fakeArchive{})
	res := p.Execute(context.Background(), &Command{Kind: KindSearch, Args: []string{"nothing"}})
	if !res.Success {
		t.Fatalf("empty search is not an error: %s", res.Message)
	}
	if !strings.Contains(res.Message, "No results") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecute_SearchResults(t *testing.T) {
	archive := &fakeArchive{searchRes: []storage.Evermark{
		{Title: "First Hit", Description: "about things", CreatedAt: time.Now()},
		{Title: "Second Hit", CreatedAt: time.Now().Add(-48 * time.Hour)},
	}}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{Kind: KindSearch, Args: []string{"things"}})
	if !res.Success {
		t.Fatalf("search failed: %s", res.Message)
	}
	if !strings.Contains(res.Message, "Found 2 results") {
		t.Errorf("message = %q", res.Message)
	}
	if !res.ShouldThread {
		t.Error("result lists should be threadable")
	}
}

func TestExecute_StatsTopDomainFallback(t *testing.T) {
	p := NewProcessor(&fakeArchive{stats: storage.UserStats{TotalSaves: 3}})
	res := p.Execute(context.Background(), &Command{Kind: KindStats, UserFID: 42})
	if !res.Success {
		t.Fatalf("stats failed: %s", res.Message)
	}
	if !strings.Contains(res.Message, "n/a") {
		t.Errorf("empty top domain should render as n/a: %q", res.Message)
	}
}

func TestExecute_TagSplitsCommaList(t *testing.T) {
	archive := &fakeArchive{}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{
		Kind: KindTag, Args: []string{"https://example.com", "web3,", "research"},
	})
	if !res.Success {
		t.Fatalf("tag failed: %s", res.Message)
	}
	want := []string{"web3", "research"}
	if len(archive.tagTags) != len(want) {
		t.Fatalf("tags = %v, want %v", archive.tagTags, want)
	}
	for i := range want {
		if archive.tagTags[i] != want[i] {
			t.Errorf("tags = %v, want %v", archive.tagTags, want)
		}
	}
}

func TestExecute_TagNotFound(t *testing.T) {
	p := NewProcessor(&fakeArchive{tagErr: evermark.NewNotFoundError("evermark")})
	res := p.Execute(context.Background(), &Command{
		Kind: KindTag, Args: []string{"https://example.com", "web3"},
	})
	if res.Success {
		t.Fatal("expected not-found failure")
	}
	if !strings.Contains(res.Message, "Save it first") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecute_EvermarkCastRequiresContext(t *testing.T) {
	archive := &fakeArchive{}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{Kind: KindEvermarkCast})
	if res.Success {
		t.Fatal("expected failure without a reply context")
	}
	if len(archive.createURLs) != 0 {
		t.Error("Create should not run without a context cast")
	}
}

func TestExecute_EvermarkCastUsesEmbedURL(t *testing.T) {
	archive := &fakeArchive{createRes: savedResult()}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{
		Kind: KindEvermarkCast,
		ContextCast: &CastRef{
			Hash:      "0xabcdef0123456789",
			Username:  "alice",
			EmbedURLs: []string{"https://example.com/embedded"},
		},
	})
	if !res.Success {
		t.Fatalf("evermark cast failed: %s", res.Message)
	}
	if archive.createURLs[0] != "https://example.com/embedded" {
		t.Errorf("saved %q, want the embedded URL", archive.createURLs[0])
	}
}

func TestExecute_EvermarkCastFallsBackToCastURL(t *testing.T) {
	archive := &fakeArchive{createRes: savedResult()}
	p := NewProcessor(archive)
	p.Execute(context.Background(), &Command{
		Kind:        KindEvermarkCast,
		ContextCast: &CastRef{Hash: "0xabcdef0123456789", Username: "alice"},
	})
	want := "https://warpcast.com/alice/0xabcdef01"
	if archive.createURLs[0] != want {
		t.Errorf("saved %q, want %q", archive.createURLs[0], want)
	}
}

func TestExecute_MarkEvermarkNotSaved(t *testing.T) {
	p := NewProcessor(&fakeArchive{tagErr: evermark.NewNotFoundError("evermark")})
	res := p.Execute(context.Background(), &Command{
		Kind:        KindMarkEvermark,
		ContextCast: &CastRef{Hash: "0xabc", Username: "bob"},
	})
	if res.Success {
		t.Fatal("expected failure when the cast is not evermarked yet")
	}
	if !strings.Contains(res.Message, "evermark this cast") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecute_MarkEvermarkTagsImportant(t *testing.T) {
	archive := &fakeArchive{}
	p := NewProcessor(archive)
	res := p.Execute(context.Background(), &Command{
		Kind:        KindMarkEvermark,
		ContextCast: &CastRef{Hash: "0xabc", Username: "bob", EmbedURLs: []string{"https://example.com/x"}},
	})
	if !res.Success {
		t.Fatalf("mark failed: %s", res.Message)
	}
	if archive.tagURL != "https://example.com/x" || len(archive.tagTags) != 1 || archive.tagTags[0] != "important" {
		t.Errorf("Tag(%q, %v)", archive.tagURL, archive.tagTags)
	}
}

func TestSortedCounts(t *testing.T) {
	counts := map[string]int{"b": 3, "a": 3, "c": 10, "d": 1}
	got := sortedCounts(counts, 3)
	want := []namedCount{{"c", 10}, {"a", 3}, {"b", 3}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sortedCounts[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("short and sweet", 100); got != "short and sweet" {
		t.Errorf("excerpt = %q", got)
	}

	long := strings.Repeat("a", 95) + "🎯 and more trailing text"
	got := excerpt(long, 100)
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt = %q, want ... suffix", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("excerpt rune count = %d, want 100", n)
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Now()
	cases := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-time.Minute), "1 min ago"},
		{now.Add(-5 * time.Minute), "5 mins ago"},
		{now.Add(-3 * time.Hour), "3 hours ago"},
		{now.Add(-2 * 24 * time.Hour), "2 days ago"},
		{now.Add(-10 * 24 * time.Hour), "1 week ago"},
	}
	for _, tc := range cases {
		if got := timeAgo(tc.t); got != tc.want {
			t.Errorf("timeAgo(%v) = %q, want %q", tc.t, got, tc.want)
		}
	}
}
