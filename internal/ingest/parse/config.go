package parse

import (
	"fmt"
	"iter"
	"strings"
)

// ParserConfig maps output names to tags, in order.
type ParserConfig struct {
	names []string
	tags  []Tag
}

// NewParserConfig pairs parsedTags[i] with tags[i]. Names are lowercased and
// must be unique.
func NewParserConfig(parsedTags []string, tags []Tag) (ParserConfig, error) {
	if len(parsedTags) != len(tags) {
		return ParserConfig{}, fmt.Errorf("%w: parsed tags and tags must have the same length (%d != %d)",
			ErrInvalidConfig, len(parsedTags), len(tags))
	}
	if len(parsedTags) == 0 {
		return ParserConfig{}, fmt.Errorf("%w: neither parsed tags nor tags can be empty", ErrInvalidConfig)
	}

	names := make([]string, len(parsedTags))
	seen := make(map[string]bool, len(parsedTags))
	for i, name := range parsedTags {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return ParserConfig{}, fmt.Errorf("%w: parsed tag %d is empty", ErrInvalidConfig, i)
		}
		if seen[name] {
			return ParserConfig{}, fmt.Errorf("%w: duplicate parsed tag %q", ErrInvalidConfig, name)
		}
		seen[name] = true
		names[i] = name

		if err := tags[i].Validate(); err != nil {
			return ParserConfig{}, err
		}
	}

	return ParserConfig{names: names, tags: append([]Tag(nil), tags...)}, nil
}

// Len returns the number of configured tags.
func (c ParserConfig) Len() int {
	return len(c.names)
}

// Pairs yields (name, tag) in configuration order.
func (c ParserConfig) Pairs() iter.Seq2[string, Tag] {
	return func(yield func(string, Tag) bool) {
		for i, name := range c.names {
			if !yield(name, c.tags[i]) {
				return
			}
		}
	}
}

func (c ParserConfig) String() string {
	sels := make([]string, len(c.tags))
	for i, t := range c.tags {
		sels[i] = t.Selector()
	}
	return fmt.Sprintf("ParserConfig(parsed_tags=%v, tags=%v)", c.names, sels)
}

// NewsArticleConfig extracts the parts of a news article page.
func NewsArticleConfig() ParserConfig {
	cfg, err := NewParserConfig(
		[]string{
			"article_title",
			"publication_date",
			"author_name",
			"main_content",
			"images",
			"captions",
			"tags",
			"paragraph",
		},
		[]Tag{
			NewTag("h1", nil),
			NewTag("time", nil),
			NewTag("span", map[string]string{"class": "author"}),
			NewTag("div", nil),
			NewTag("img", nil),
			NewTag("figcaption", nil),
			NewTag("a", map[string]string{"class": "tag"}),
			NewTag("p", nil),
		},
	)
	if err != nil {
		panic(err)
	}
	return cfg
}
