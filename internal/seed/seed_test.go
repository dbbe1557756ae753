package seed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const article = `<!doctype html>
<html><head><title>Tidal Locking</title>
<meta name="description" content="Why the Moon always shows the same face.">
</head><body>
<nav>menu</nav>
<article>
<h1>Tidal Locking</h1>
<p>Tidal locking happens when an orbiting body always shows the same side to the body it orbits. The gravitational gradient raises tidal bulges that exert a torque until the rotation period matches the orbital period.</p>
<p>Most large moons in the Solar System are tidally locked to their planets, and the process also shapes the rotation of close-in exoplanets around red dwarfs.</p>
</article>
</body></html>`

func TestFetchExtractsTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(article))
	}))
	defer srv.Close()

	p, err := NewFetcher(0).Fetch(context.Background(), srv.URL+"/moon?utm_source=x")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Title != "Tidal Locking" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if strings.Contains(p.URL, "utm_source") {
		t.Fatalf("tracking parameter kept in %q", p.URL)
	}
	topic := p.Topic()
	if !strings.HasPrefix(topic, "Tidal Locking: ") {
		t.Fatalf("unexpected topic %q", topic)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	if _, err := FromURL(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for 410")
	}
}

func TestTopicIsCapped(t *testing.T) {
	p := Page{Title: "T", Text: strings.Repeat("word ", 500)}
	topic := p.Topic()
	if n := len([]rune(topic)); n != MaxTopicLen {
		t.Fatalf("expected %d runes, got %d", MaxTopicLen, n)
	}
	if !strings.HasPrefix(topic, "T: word word") {
		t.Fatalf("unexpected topic start %q", topic[:20])
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Example.com/news/../tech/latest", "https://example.com/tech/latest"},
		{"http://news.example.com:80/article?id=123&utm_source=rss#section", "http://news.example.com/article?id=123"},
		{"https://example.com/path/?b=2&a=1&fbclid=xyz", "https://example.com/path/?a=1&b=2"},
		{"//blog.example.com/post/42?utm_medium=email", "https://blog.example.com/post/42"},
		{"http://127.0.0.1:8080/x", "http://127.0.0.1:8080/x"},
	}
	for _, tt := range tests {
		got, err := CanonicalURL(tt.in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "ftp://example.com/file"} {
		if _, err := CanonicalURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
