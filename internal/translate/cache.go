// Package translate provides a memoizing client for the remote translation
// service. The cache is process-wide: one instance is shared by every active
// session and concurrent lookups for the same (text, language) key coalesce
// into a single network call.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

// Cache memoizes translations keyed by (source text, target language).
// A failed translation returns the source text unchanged and is not cached.
type Cache struct {
	endpoint string
	httpc    *http.Client
	logger   zerolog.Logger

	mu      sync.RWMutex
	entries map[cacheKey]string
	group   singleflight.Group
}

type cacheKey struct {
	text string
	lang string
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Cache) { c.httpc = httpc }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// NewCache builds a cache talking to the translation service rooted at
// baseURL (the service exposes POST {baseURL}/api/translate).
func NewCache(baseURL string, opts ...Option) *Cache {
	c := &Cache{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/translate",
		httpc:    &http.Client{Timeout: 15 * time.Second},
		logger:   zerolog.Nop(),
		entries:  make(map[cacheKey]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeLang reduces a BCP-47 tag to its primary subtag: "en-US" -> "en".
// Unparseable tags fall back to a lowercased prefix so a bad tag degrades to
// a harmless cache key instead of an error.
func NormalizeLang(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		if i := strings.IndexAny(tag, "-_"); i > 0 {
			tag = tag[:i]
		}
		return strings.ToLower(tag)
	}
	base, _ := t.Base()
	return base.String()
}

// TranslateOne returns text translated into target, serving repeats from the
// cache. English is the canonical source language and is a no-op. On any
// failure the original text comes back unchanged; errors are logged, never
// surfaced.
func (c *Cache) TranslateOne(ctx context.Context, text, target string) string {
	target = NormalizeLang(target)
	if text == "" || target == "" || target == "en" {
		return text
	}

	key := cacheKey{text: text, lang: target}
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	// Concurrent misses for the same key share one in-flight request.
	v, err, _ := c.group.Do(text+"\x00"+target, func() (any, error) {
		translated, err := c.fetchOne(ctx, text, target)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = translated
		c.mu.Unlock()
		return translated, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("module", "translate").Str("lang", target).Msg("translation failed, passing through")
		return text
	}
	return v.(string)
}

// TranslateBatch translates a static vocabulary in one request. If the
// remote response cannot be correlated 1:1 with the input, it falls back to
// translating every string individually, so the returned mapping always
// covers all inputs.
func (c *Cache) TranslateBatch(ctx context.Context, texts []string, target string) map[string]string {
	target = NormalizeLang(target)
	out := make(map[string]string, len(texts))
	if target == "" || target == "en" {
		for _, t := range texts {
			out[t] = t
		}
		return out
	}

	var missing []string
	c.mu.RLock()
	for _, t := range texts {
		if cached, ok := c.entries[cacheKey{text: t, lang: target}]; ok {
			out[t] = cached
		} else {
			missing = append(missing, t)
		}
	}
	c.mu.RUnlock()
	if len(missing) == 0 {
		return out
	}

	translated, err := c.fetchBatch(ctx, missing, target)
	if err != nil || len(translated) != len(missing) {
		if err != nil {
			c.logger.Warn().Err(err).Str("module", "translate").Msg("batch translation failed, falling back to per-string calls")
		} else {
			c.logger.Warn().Str("module", "translate").Int("want", len(missing)).Int("got", len(translated)).Msg("batch response length mismatch, falling back")
		}
		for _, t := range missing {
			out[t] = c.TranslateOne(ctx, t, target)
		}
		return out
	}

	c.mu.Lock()
	for i, t := range missing {
		c.entries[cacheKey{text: t, lang: target}] = translated[i]
		out[t] = translated[i]
	}
	c.mu.Unlock()
	return out
}

func (c *Cache) fetchOne(ctx context.Context, text, target string) (string, error) {
	var resp struct {
		TranslatedText string `json:"translatedText"`
	}
	err := c.post(ctx, map[string]any{"text": text, "targetLanguage": target}, &resp)
	if err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

func (c *Cache) fetchBatch(ctx context.Context, texts []string, target string) ([]string, error) {
	var resp struct {
		TranslatedTexts []string `json:"translatedTexts"`
	}
	err := c.post(ctx, map[string]any{"texts": texts, "targetLanguage": target}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.TranslatedTexts, nil
}

func (c *Cache) post(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("translate service returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
