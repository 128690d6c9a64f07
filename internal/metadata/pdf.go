package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxPDFFetchSize = 10 << 20 // 10MB

func isPDFURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf")
}

// extractPDF downloads a PDF (size-capped) and derives a title from the
// first page's text. Download or parse failures degrade to URL-derived
// metadata; documents behind a broken link still get archived.
func (e *Extractor) extractPDF(ctx context.Context, rawURL string) (ContentMetadata, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ContentMetadata{}, fmt.Errorf("invalid url %q", rawURL)
	}

	meta := ContentMetadata{
		Title:       "PDF Document from " + parsed.Hostname(),
		Description: "PDF document preserved from " + rawURL,
		ContentType: TypeCustom,
		SourceURL:   rawURL,
		Tags:        []string{"pdf", "document"},
	}

	if title, err := e.fetchPDFTitle(ctx, rawURL); err == nil && title != "" {
		meta.Title = title
	}
	return meta, nil
}

func (e *Extractor) fetchPDFTitle(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("pdf fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFFetchSize))
	if err != nil {
		return "", err
	}
	return pdfTitle(data)
}

// pdfTitle reads the first page and takes its first text line as the title.
func pdfTitle(data []byte) (title string, err error) {
	// The pdf package panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	if reader.NumPage() == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return "", fmt.Errorf("pdf first page unreadable")
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return titleLine(text)
}

// titleLine picks the first non-blank line of page text, truncated on rune
// boundaries.
func titleLine(text string) (string, error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > 120 {
			line = string(runes[:117]) + "..."
		}
		return line, nil
	}
	return "", fmt.Errorf("pdf first page has no text")
}
