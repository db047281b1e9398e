// Package feeds is the fetch capability behind the ingestion pipeline: it
// discovers article URLs from RSS/Atom feeds and fetches one readable
// article per source URL. The pipeline only sees the Fetch method.
package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"newspulse/errs"
	"newspulse/types"
)

const extractTimeout = 30 * time.Second

// FeedPresets maps friendly keys to feed URLs.
var FeedPresets = map[string]string{
	"cna": "https://www.channelnewsasia.com/api/v1/rss-outbound-feed?_format=xml",
	"st":  "https://www.straitstimes.com/news/singapore/rss.xml",
	"hn":  "https://hnrss.org/newest",
	"tr":  "https://www.technologyreview.com/feed/",
}

// DefaultFeedPreset is used when no feed is specified.
const DefaultFeedPreset = "st"

// ResolveFeedURL maps a preset name to its URL; anything else is treated as
// a URL already.
func ResolveFeedURL(nameOrURL string) string {
	if url, ok := FeedPresets[nameOrURL]; ok {
		return url
	}
	return nameOrURL
}

// itemMeta carries feed-level metadata readability cannot recover.
type itemMeta struct {
	title       string
	author      string
	description string
	publishedAt time.Time
}

// Client fetches feeds and articles. Safe for concurrent use.
type Client struct {
	parser *gofeed.Parser

	mu   sync.RWMutex
	meta map[string]itemMeta
}

// NewClient builds a feed client.
func NewClient() *Client {
	return &Client{
		parser: gofeed.NewParser(),
		meta:   make(map[string]itemMeta),
	}
}

// Discover parses a feed and returns up to maxCount article URLs, recording
// per-item metadata for later Fetch calls.
func (c *Client) Discover(ctx context.Context, feedURL string, maxCount int) ([]string, error) {
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	count := len(feed.Items)
	if maxCount > 0 && count > maxCount {
		count = maxCount
	}

	sources := make([]string, 0, count)
	for _, item := range feed.Items[:count] {
		if item.Link == "" {
			continue
		}

		meta := itemMeta{
			title:       item.Title,
			description: item.Description,
		}
		if meta.description == "" {
			meta.description = item.Content
		}
		if item.Author != nil {
			meta.author = item.Author.Name
		}
		if item.PublishedParsed != nil {
			meta.publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			meta.publishedAt = *item.UpdatedParsed
		}

		c.mu.Lock()
		c.meta[item.Link] = meta
		c.mu.Unlock()

		sources = append(sources, item.Link)
	}
	return sources, nil
}

// Fetch retrieves one article and extracts its readable content. Feed
// metadata recorded by Discover fills the fields extraction cannot provide.
func (c *Client) Fetch(ctx context.Context, sourceURL string) (types.RawArticle, error) {
	c.mu.RLock()
	meta := c.meta[sourceURL]
	c.mu.RUnlock()

	article := types.RawArticle{
		SourceURL:   sourceURL,
		Title:       meta.title,
		Author:      meta.author,
		PublishedAt: meta.publishedAt,
		FetchedAt:   time.Now().UTC(),
	}

	timeout := extractTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	extracted, err := readability.FromURL(sourceURL, timeout)
	if err != nil {
		// The feed description is an acceptable fallback body when the
		// article page cannot be extracted.
		if meta.description != "" {
			article.Body = meta.description
			return article, nil
		}
		return types.RawArticle{}, errs.FetchFailed(fmt.Errorf("extract %s: %w", sourceURL, err))
	}

	if article.Title == "" {
		article.Title = extracted.Title
	}
	if article.Author == "" {
		article.Author = extracted.Byline
	}
	article.Body = extracted.TextContent
	if article.Body == "" {
		article.Body = meta.description
	}
	if article.Title == "" && article.Body == "" {
		return types.RawArticle{}, errs.FetchFailed(fmt.Errorf("no content extracted from %s", sourceURL))
	}
	return article, nil
}
