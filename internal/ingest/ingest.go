// Package ingest turns local files and web pages into note text. Plain
// text and markdown pass through, PDFs get their text extracted, and
// HTML pages are reduced to their visible text.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const maxFetchSize = 5 << 20 // 5MB

// Source is the extracted text of a file or URL, with a best-effort title.
type Source struct {
	Title   string
	Content string
}

// ReadFile extracts note text from a local file. Supported extensions
// are .txt, .md, and .pdf.
func ReadFile(path string) (Source, error) {
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return Source{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return Source{Title: title, Content: string(data)}, nil
	case ".pdf":
		content, err := extractPDF(path)
		if err != nil {
			return Source{}, err
		}
		return Source{Title: title, Content: content}, nil
	}
	return Source{}, fmt.Errorf("unsupported file type %q (want .txt, .md, or .pdf)", filepath.Ext(path))
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Some pages fail to parse; keep what we can.
			continue
		}
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in %s (%d pages)", path, numPages)
	}
	return b.String(), nil
}

// FetchURL downloads a web page and extracts its title and visible text.
func FetchURL(ctx context.Context, client *http.Client, rawURL string) (Source, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Source{}, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Source{}, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Source{}, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Source{}, fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return Source{}, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	title, content := extractHTML(body)
	if title == "" {
		title = parsed.Host
	}
	if strings.TrimSpace(content) == "" {
		return Source{}, fmt.Errorf("no text content at %s", rawURL)
	}
	return Source{Title: title, Content: content}, nil
}

// extractHTML walks the parsed document collecting the <title> and the
// visible text, skipping script and style subtrees.
func extractHTML(data []byte) (title, content string) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", string(data)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, b.String()
}
