package parse

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"go.uber.org/zap"
)

// Element is a single matched HTML node.
type Element struct {
	sel *goquery.Selection
}

// NewElement wraps the first node of sel.
func NewElement(sel *goquery.Selection) Element {
	return Element{sel: sel.First()}
}

// Name returns the lowercase tag name.
func (e Element) Name() string {
	return goquery.NodeName(e.sel)
}

// Text returns the combined text of the element and its descendants.
func (e Element) Text() string {
	return e.sel.Text()
}

// Attr returns an attribute value.
func (e Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// HTML returns the inner HTML.
func (e Element) HTML() (string, error) {
	return e.sel.Html()
}

// Selection exposes the underlying goquery selection.
func (e Element) Selection() *goquery.Selection {
	return e.sel
}

// ParsedData holds the elements found for each configured name.
type ParsedData struct {
	URL string

	names []string
	data  map[string][]Element
}

func newParsedData(url string) *ParsedData {
	return &ParsedData{URL: url, data: make(map[string][]Element)}
}

func (p *ParsedData) set(name string, elems []Element) {
	if _, ok := p.data[name]; !ok {
		p.names = append(p.names, name)
	}
	p.data[name] = elems
}

// Get returns the elements parsed under name, or nil.
func (p *ParsedData) Get(name string) []Element {
	return p.data[name]
}

// Has reports whether name was part of the parser config.
func (p *ParsedData) Has(name string) bool {
	_, ok := p.data[name]
	return ok
}

// Names returns the parsed names in configuration order.
func (p *ParsedData) Names() []string {
	return append([]string(nil), p.names...)
}

// All returns every element, grouped by name in configuration order.
func (p *ParsedData) All() []Element {
	var out []Element
	for _, name := range p.names {
		out = append(out, p.data[name]...)
	}
	return out
}

func (p *ParsedData) String() string {
	return fmt.Sprintf("ParsedData(url=%s, parsed_tags=%v)", p.URL, p.names)
}

// Parser extracts configured elements from a fetch result.
type Parser interface {
	Parse(ctx context.Context, res *fetch.Result, cfg ParserConfig) (*ParsedData, error)
}

// GoqueryParser parses HTML with goquery.
type GoqueryParser struct {
	logger *logging.Logger
}

var _ Parser = (*GoqueryParser)(nil)

// NewGoqueryParser returns a parser. A nil logger disables logging.
func NewGoqueryParser(logger *logging.Logger) *GoqueryParser {
	if logger == nil {
		logger = logging.Nop()
	}
	return &GoqueryParser{logger: logger.Named("parse")}
}

func (p *GoqueryParser) String() string {
	return "GoqueryParser"
}

// Parse runs every tag of cfg against the fetched page.
func (p *GoqueryParser) Parse(ctx context.Context, res *fetch.Result, cfg ParserConfig) (*ParsedData, error) {
	if res == nil || !res.Success {
		return nil, ErrFetchUnsuccessful
	}
	if cfg.Len() == 0 {
		return nil, fmt.Errorf("%w: empty config", ErrInvalidConfig)
	}

	body := res.Body
	if body == nil {
		body = []byte(res.Data)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.logger.Error(ctx, "parsing html", zap.String("url", res.URL), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrParsing, res.URL, err)
	}

	out := newParsedData(res.URL)
	for name, tag := range cfg.Pairs() {
		elems := findAll(doc, tag)
		out.set(name, elems)
		p.logger.Debug(ctx, "parsed tag",
			zap.String("name", name),
			zap.String("selector", tag.Selector()),
			zap.Int("matches", len(elems)),
		)
	}
	p.logger.Info(ctx, "parsed page", zap.String("url", res.URL), zap.Int("tags", cfg.Len()))
	return out, nil
}

func findAll(doc *goquery.Document, tag Tag) []Element {
	var sel *goquery.Selection
	if tag.Recursive {
		sel = doc.Find(tag.Selector())
	} else {
		sel = doc.Children().Filter(tag.Selector())
	}
	if tag.Limit > 0 && sel.Length() > tag.Limit {
		sel = sel.Slice(0, tag.Limit)
	}

	elems := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elems = append(elems, Element{sel: s})
	})
	return elems
}
