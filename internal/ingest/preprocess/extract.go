package preprocess

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
)

// TextExtractor flattens parsed elements into a single string.
type TextExtractor interface {
	Extract(elements []parse.Element) (string, error)
}

// SimpleTextExtractor collects the text nodes under each element.
type SimpleTextExtractor struct {
	// Separator joins text nodes within one element.
	Separator string
	// Strip trims each text node and drops empty ones.
	Strip bool
	// Join joins the text of different elements.
	Join string
}

var _ TextExtractor = SimpleTextExtractor{}

// NewSimpleTextExtractor returns an extractor that joins text nodes with a
// space and elements with a newline.
func NewSimpleTextExtractor() SimpleTextExtractor {
	return SimpleTextExtractor{Separator: " ", Strip: true, Join: "\n"}
}

// Extract returns the text of every element, in order.
func (e SimpleTextExtractor) Extract(elements []parse.Element) (string, error) {
	parts := make([]string, 0, len(elements))
	for i, el := range elements {
		sel := el.Selection()
		if sel == nil || sel.Length() == 0 {
			return "", fmt.Errorf("%w: element %d is empty", ErrTextExtraction, i)
		}
		var nodes []string
		e.collect(sel, &nodes)
		parts = append(parts, strings.Join(nodes, e.Separator))
	}
	return strings.Join(parts, e.Join), nil
}

func (e SimpleTextExtractor) collect(sel *goquery.Selection, out *[]string) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			text := c.Text()
			if e.Strip {
				text = strings.TrimSpace(text)
				if text == "" {
					return
				}
			}
			*out = append(*out, text)
		case "#comment", "script", "style", "noscript", "template":
		default:
			e.collect(c, out)
		}
	})
}
