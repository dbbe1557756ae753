// Package seed turns a web page into a cycle topic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

// MaxTopicLen caps the topic built from a page, in runes.
const MaxTopicLen = 1000

const maxPageBytes = 4 << 20

var ErrNoContent = errors.New("page has no readable content")

// Page is the readable part of a fetched document.
type Page struct {
	URL     string
	Title   string
	Excerpt string
	Text    string
}

// Topic renders the page as "<title>: <excerpt>", falling back to the start
// of the text when the page has no excerpt.
func (p Page) Topic() string {
	body := strings.TrimSpace(p.Excerpt)
	if body == "" {
		body = strings.Join(strings.Fields(p.Text), " ")
	}
	topic := body
	if t := strings.TrimSpace(p.Title); t != "" {
		topic = t + ": " + body
	}
	return truncate(topic, MaxTopicLen)
}

// Fetcher downloads pages over plain HTTP.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "mindloop/1.0 (+topic seeding)",
	}
}

// Fetch downloads link and extracts its main content.
func (f *Fetcher) Fetch(ctx context.Context, link string) (Page, error) {
	canonical, err := CanonicalURL(link)
	if err != nil {
		return Page{}, fmt.Errorf("invalid url %q: %w", link, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, canonical, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", canonical, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("fetch %s: status %d", canonical, resp.StatusCode)
	}

	u, _ := url.Parse(canonical)
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return Page{}, fmt.Errorf("extract %s: %w", canonical, err)
	}
	p := Page{
		URL:     canonical,
		Title:   strings.TrimSpace(article.Title),
		Excerpt: strings.TrimSpace(article.Excerpt),
		Text:    strings.TrimSpace(article.TextContent),
	}
	if p.Title == "" && p.Excerpt == "" && p.Text == "" {
		return Page{}, ErrNoContent
	}
	return p, nil
}

// FromURL fetches link with a default fetcher and returns its topic.
func FromURL(ctx context.Context, link string) (string, error) {
	p, err := NewFetcher(0).Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	return p.Topic(), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
