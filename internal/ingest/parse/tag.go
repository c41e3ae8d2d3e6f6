// Package parse extracts tagged HTML elements from fetched pages.
package parse

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidConfig indicates a malformed Tag or ParserConfig.
	ErrInvalidConfig = errors.New("invalid parser config")

	// ErrFetchUnsuccessful is returned when asked to parse a failed fetch.
	ErrFetchUnsuccessful = errors.New("cannot parse unsuccessful fetch result")

	// ErrParsing indicates the document could not be parsed.
	ErrParsing = errors.New("parsing failed")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Tag selects elements by tag name and attribute values.
type Tag struct {
	Name string `validate:"required,oneof=a abbr address area article aside audio b base bdi bdo blockquote body br button canvas caption cite code col colgroup data datalist dd del details dfn dialog div dl dt em embed fieldset figcaption figure footer form h1 h2 h3 h4 h5 h6 head header hr html i iframe img input ins kbd label legend li link main map mark meta meter nav noscript object ol optgroup option output p param picture pre progress q rp rt ruby s samp script section select small source span strong style sub summary sup table tbody td template textarea tfoot th thead time title tr track u ul var video wbr"`
	// Attrs must all match. A "class" value matches any one of the element's
	// classes.
	Attrs map[string]string
	// Recursive searches the whole document. Otherwise only children of the
	// document root are considered.
	Recursive bool
	// Limit caps the number of matches; 0 means unlimited.
	Limit int `validate:"gte=0"`
}

// NewTag returns a recursive, unlimited tag.
func NewTag(name string, attrs map[string]string) Tag {
	return Tag{Name: name, Attrs: attrs, Recursive: true}
}

// Validate checks the tag name and limit.
func (t Tag) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: tag %q: %w", ErrInvalidConfig, t.Name, err)
	}
	return nil
}

// Selector renders the tag as a CSS selector, e.g. span[class~="author"].
func (t Tag) Selector() string {
	var b strings.Builder
	b.WriteString(t.Name)

	keys := make([]string, 0, len(t.Attrs))
	for k := range t.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		op := "="
		if k == "class" {
			op = "~="
		}
		fmt.Fprintf(&b, "[%s%s%s]", k, op, strconv.Quote(t.Attrs[k]))
	}
	return b.String()
}

func (t Tag) String() string {
	return fmt.Sprintf("Tag(%s, recursive=%t, limit=%d)", t.Selector(), t.Recursive, t.Limit)
}
