// Package render memoizes the segmentation of message content into
// UI-agnostic segments, keyed by message id and content fingerprint with
// bounded LRU eviction.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/acrispim/mdchat/internal/markup"
	"github.com/acrispim/mdchat/internal/message"
)

// DefaultCapacity bounds the cache when no explicit capacity is configured.
const DefaultCapacity = 128

// SegmentType distinguishes inline text from block content.
type SegmentType string

const (
	SegmentText  SegmentType = "text"
	SegmentBlock SegmentType = "block"
)

// Segment is one ordered piece of a rendered message.
type Segment struct {
	Type       SegmentType
	Value      string
	Attributes map[string]string
}

// Request describes the content to render. Fingerprint may be left empty;
// it is then computed from the content triple.
type Request struct {
	MessageID   string
	Fingerprint string
	Markdown    string
	PlainText   string
	HTML        string
	Culture     string
}

// Result is an immutable rendered representation. A content change yields a
// new cache key rather than mutating an existing entry.
type Result struct {
	Segments []Segment
	Culture  string
}

// Cache is a bounded, strictly LRU render cache. A single mutex guards the
// LRU structure and the per-message key index; rendering happens outside
// the critical section.
type Cache struct {
	renderer *markup.Renderer

	mu        sync.Mutex
	lru       *simplelru.LRU[string, *Result]
	byMessage map[string]map[string]struct{}
}

// NewCache creates a render cache with the given capacity (DefaultCapacity
// when non-positive).
func NewCache(renderer *markup.Renderer, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		renderer:  renderer,
		byMessage: make(map[string]map[string]struct{}),
	}
	lru, err := simplelru.NewLRU(capacity, func(key string, _ *Result) {
		c.dropIndex(key)
	})
	if err != nil {
		return nil, fmt.Errorf("render cache: %w", err)
	}
	c.lru = lru
	return c, nil
}

func cacheKey(messageID, fingerprint string) string {
	return messageID + ":" + fingerprint
}

// dropIndex removes an evicted key from the per-message index. Called with
// c.mu held (the LRU is only touched under the mutex).
func (c *Cache) dropIndex(key string) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return
	}
	messageID := key[:i]
	if keys := c.byMessage[messageID]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byMessage, messageID)
		}
	}
}

// Render returns the cached result for (message id, fingerprint), promoting
// it to most recently used, or renders, stores and returns a fresh one.
func (c *Cache) Render(req Request) (*Result, error) {
	fingerprint := req.Fingerprint
	if fingerprint == "" {
		fingerprint = message.Fingerprint(req.Markdown, req.PlainText, req.HTML)
	}
	key := cacheKey(req.MessageID, fingerprint)

	c.mu.Lock()
	if res, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()

	res, err := c.render(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent caller may have rendered the same content meanwhile;
	// keep whichever entry landed first.
	if existing, ok := c.lru.Get(key); ok {
		return existing, nil
	}
	c.lru.Add(key, res)
	keys := c.byMessage[req.MessageID]
	if keys == nil {
		keys = make(map[string]struct{})
		c.byMessage[req.MessageID] = keys
	}
	keys[key] = struct{}{}
	return res, nil
}

// TryGetCached probes the cache without rendering. A hit promotes the entry.
func (c *Cache) TryGetCached(messageID, fingerprint string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(cacheKey(messageID, fingerprint))
}

// Invalidate removes every cached entry for the message id, regardless of
// fingerprint. A confirmed edit naturally misses the cache under its new
// fingerprint; this cleans up orphaned prior-fingerprint entries.
func (c *Cache) Invalidate(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.byMessage[messageID] {
		c.lru.Remove(key)
	}
	delete(c.byMessage, messageID)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// render computes the segment list: markdown renders to an HTML block plus
// plain text, bare HTML is tag-stripped for the text segment, and plain
// text passes through. At least one segment is always present.
func (c *Cache) render(req Request) (*Result, error) {
	htmlBody := req.HTML
	plain := req.PlainText

	switch {
	case req.Markdown != "":
		rendered, extracted, err := c.renderer.Render(req.Markdown)
		if err != nil {
			return nil, err
		}
		htmlBody = rendered
		if extracted != "" {
			plain = extracted
		} else if plain == "" {
			plain = req.Markdown
		}
	case htmlBody != "" && plain == "":
		plain = markup.PlainFromHTML(htmlBody)
	}

	var segments []Segment
	if htmlBody != "" {
		segments = append(segments, Segment{
			Type:       SegmentBlock,
			Value:      htmlBody,
			Attributes: map[string]string{"format": "html"},
		})
	}
	if plain != "" {
		segments = append(segments, Segment{Type: SegmentText, Value: plain})
	}
	if len(segments) == 0 {
		segments = append(segments, Segment{Type: SegmentText, Value: ""})
	}

	return &Result{Segments: segments, Culture: req.Culture}, nil
}
