package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const maxPageFetchSize = 2 << 20 // 2MB

// extractWeb is the fallback extractor for generic web content. It fetches
// the page and reads <title>, Open Graph, and author tags. When the fetch
// fails the extractor degrades to hostname-derived metadata rather than
// failing the pipeline.
func (e *Extractor) extractWeb(ctx context.Context, rawURL string) (ContentMetadata, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ContentMetadata{}, fmt.Errorf("invalid url %q", rawURL)
	}
	host := parsed.Hostname()

	page, fetchErr := e.fetchPage(ctx, rawURL)
	meta := ContentMetadata{
		Title:       "Web Content from " + host,
		Description: "Web content from " + rawURL,
		ContentType: TypeURL,
		SourceURL:   rawURL,
		Tags:        []string{"web", "url", strings.ReplaceAll(host, ".", "-")},
		Extended:    WebData{SiteName: host, Scraped: fetchErr == nil},
	}
	if fetchErr != nil {
		return meta, nil
	}

	if page.title != "" {
		meta.Title = page.title
	}
	if page.description != "" {
		meta.Description = page.description
	}
	meta.Author = page.author
	meta.ImageURL = page.image
	if page.siteName != "" {
		meta.Extended = WebData{SiteName: page.siteName, Scraped: true}
	}
	return meta, nil
}

type pageMeta struct {
	title       string
	description string
	author      string
	image       string
	siteName    string
}

func (e *Extractor) fetchPage(ctx context.Context, rawURL string) (pageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return pageMeta{}, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return pageMeta{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pageMeta{}, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageFetchSize))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parsing html: %w", err)
	}
	return parsePageMeta(doc), nil
}

// parsePageMeta walks the parsed document collecting <title> and the usual
// meta tags. Open Graph values win over the plain title element.
func parsePageMeta(doc *html.Node) pageMeta {
	var meta pageMeta
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && meta.title == "" {
					meta.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				key := attr(n, "property")
				if key == "" {
					key = attr(n, "name")
				}
				content := strings.TrimSpace(attr(n, "content"))
				if content == "" {
					break
				}
				switch key {
				case "og:title":
					meta.title = content
				case "og:description", "description":
					if meta.description == "" || key == "og:description" {
						meta.description = content
					}
				case "og:image":
					meta.image = content
				case "og:site_name":
					meta.siteName = content
				case "author":
					meta.author = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
