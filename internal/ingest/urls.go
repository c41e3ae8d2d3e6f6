package ingest

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
)

// ReadURLs reads one URL per line. Blank lines and lines starting with # are
// skipped; duplicates keep their first position.
func ReadURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading urls: %w", err)
	}
	defer f.Close()

	var (
		urls []string
		seen = make(map[string]bool)
	)
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %s:%d: not an http(s) url: %q", ErrInvalidInput, path, n, line)
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading urls: %w", err)
	}
	return urls, nil
}

// ImageURLs returns the absolute image addresses of the elements parsed
// under field, resolved against the page URL. Lazy-loaded images fall back
// to data-src.
func ImageURLs(data *parse.ParsedData, field string) []string {
	base, err := url.Parse(data.URL)
	if err != nil {
		base = nil
	}

	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, el := range data.Get(field) {
		src, _ := el.Attr("src")
		if strings.TrimSpace(src) == "" || strings.HasPrefix(src, "data:") {
			src, _ = el.Attr("data-src")
		}
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		if ref, err := url.Parse(src); err == nil && base != nil {
			src = base.ResolveReference(ref).String()
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
