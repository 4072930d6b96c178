package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

var ErrSearchFailed = errors.New("track search failed")

const (
	youtubeSearchEndpoint = "https://www.googleapis.com/youtube/v3/search"
	maxSearchResults      = 10
)

// YouTubeSearcher queries the YouTube Data API. It backs the autoplay
// keyword fallback and is entirely optional: callers get a nil searcher
// when no API key is configured.
type YouTubeSearcher struct {
	apiKey     string
	httpClient *http.Client
}

func NewYouTubeSearcher(apiKey string) *YouTubeSearcher {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &YouTubeSearcher{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (y *YouTubeSearcher) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrSearchFailed)
	}
	if maxResults <= 0 || maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("q", query)
	params.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeSearchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: youtube api status %d", ErrSearchFailed, resp.StatusCode)
	}

	var payload youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrSearchFailed, err)
	}

	candidates := make([]Candidate, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			VideoID: item.ID.VideoID,
			Title:   item.Snippet.Title,
			Channel: item.Snippet.ChannelTitle,
			URL:     "https://www.youtube.com/watch?v=" + item.ID.VideoID,
		})
	}
	return candidates, nil
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

const (
	searchCacheKeyPrefix = "music:search:"
	searchCacheTTL       = 5 * time.Minute
)

// CachedSearcher wraps a Searcher with a redis result cache. Cache
// failures fall through to the inner searcher.
type CachedSearcher struct {
	inner  Searcher
	client *redislib.Client
}

func NewCachedSearcher(inner Searcher, client *redislib.Client) *CachedSearcher {
	return &CachedSearcher{inner: inner, client: client}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	key := cacheKey(query, maxResults)

	if c.client != nil {
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			var cached []Candidate
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	results, err := c.inner.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if c.client != nil && len(results) > 0 {
		if payload, err := json.Marshal(results); err == nil {
			_ = c.client.Set(ctx, key, payload, searchCacheTTL).Err()
		}
	}
	return results, nil
}

func cacheKey(query string, maxResults int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return searchCacheKeyPrefix + strconv.Itoa(maxResults) + ":" + normalized
}
