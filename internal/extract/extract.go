package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrFetch covers network failures and non-success HTTP statuses.
	ErrFetch = errors.New("fetch failed")
	// ErrParse is returned when a page body cannot be parsed into text.
	ErrParse = errors.New("parse failed")
)

// Document is the plain-text content pulled from one URL.
type Document struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// Empty reports whether the document carries no usable text.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// Extractor fetches pages and extracts bounded plain text.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
	maxChars   int
	maxSizeMB  int
}

// NewExtractor creates an extractor. maxChars bounds the length of
// extracted text per document; maxSizeMB bounds the fetched body size.
func NewExtractor(timeout time.Duration, userAgent string, maxChars, maxSizeMB int) *Extractor {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; go-research/1.0)"
	}
	if maxChars <= 0 {
		maxChars = 8000
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 2
	}
	return &Extractor{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxChars:  maxChars,
		maxSizeMB: maxSizeMB,
	}
}

// MaxChars returns the configured truncation bound.
func (e *Extractor) MaxChars() int {
	return e.maxChars
}

// Extract fetches a URL and returns its cleaned, truncated text content.
func (e *Extractor) Extract(ctx context.Context, urlStr string) (Document, error) {
	doc := Document{URL: urlStr}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return doc, fmt.Errorf("%w: invalid url: %v", ErrFetch, err)
	}

	data, contentType, err := e.fetch(ctx, urlStr)
	if err != nil {
		return doc, err
	}

	var title, text string
	if strings.Contains(contentType, "application/pdf") {
		title, text, err = extractPDFText(parsedURL, data)
	} else {
		title, text, err = e.extractHTMLText(parsedURL, data)
	}
	if err != nil {
		return doc, err
	}

	text = collapseWhitespace(text)
	text = truncate(text, e.maxChars)

	doc.Title = title
	doc.Text = text
	doc.WordCount = len(strings.Fields(text))
	return doc, nil
}

// fetch retrieves a page body with browser headers and a size limit.
func (e *Extractor) fetch(ctx context.Context, urlStr string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to create request: %v", ErrFetch, err)
	}

	// Standard browser headers to avoid trivial 403 blocks
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}

	maxBytes := int64(e.maxSizeMB) * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read body: %v", ErrFetch, err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// extractHTMLText runs readability first and falls back to a goquery pass
// over headings and paragraphs when readability yields nothing usable.
func (e *Extractor) extractHTMLText(pageURL *url.URL, data []byte) (string, string, error) {
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err == nil && len(strings.TrimSpace(article.TextContent)) >= 200 {
		return article.Title, article.TextContent, nil
	}

	return fallbackHTMLText(data)
}

// fallbackHTMLText concatenates heading and paragraph text, dropping
// script/style/nav and other boilerplate elements.
func fallbackHTMLText(data []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, header, footer, nav, aside, noscript, iframe, svg, form").Remove()

	var builder strings.Builder
	doc.Find("h1, h2, h3, h4, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	})

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return title, "", fmt.Errorf("%w: no readable content found", ErrParse)
	}
	return title, text, nil
}

// extractPDFText pulls page-by-page plain text out of a PDF body.
func extractPDFText(pageURL *url.URL, data []byte) (string, string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to open PDF: %v", ErrParse, err)
	}

	var builder strings.Builder
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("[Extract] failed to read PDF page %d of %s: %v", i, pageURL, err)
			continue
		}
		builder.WriteString(txt)
		builder.WriteString("\n")
	}

	if strings.TrimSpace(builder.String()) == "" {
		return "", "", fmt.Errorf("%w: no text in PDF", ErrParse)
	}
	return "PDF Document: " + pageURL.Path, builder.String(), nil
}

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

func collapseWhitespace(text string) string {
	text = spaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// truncate bounds text to max characters without splitting a rune.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
