package mentions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ca-monitor/shared/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited signals the search provider rejected the request with 429.
// Sessions treat a rate-limited cycle as a zero-result cycle; their polling
// cadence already respects the provider's limits.
var ErrRateLimited = errors.New("mention search rate limit exceeded (429)")

// Client queries an X/Twitter search API over HTTP. Paging continues until
// the requested limit is reached or the provider stops returning a cursor.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewClient(baseURL, apiKey string, appLogger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		log:     appLogger,
	}
}

type searchResponse struct {
	Tweets     []tweetPayload `json:"tweets"`
	NextCursor string         `json:"next_cursor"`
}

type tweetPayload struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	URL          string `json:"url"`
	CreatedAt    string `json:"createdAt"`
	LikeCount    int    `json:"likeCount"`
	RetweetCount int    `json:"retweetCount"`
	ReplyCount   int    `json:"replyCount"`
	Author       struct {
		UserName       string `json:"userName"`
		IsBlueVerified bool   `json:"isBlueVerified"`
		IsVerified     bool   `json:"isVerified"`
	} `json:"author"`
}

// Search runs the query and returns up to limit mentions. On a mid-stream
// failure the mentions gathered so far are returned alongside the error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Mention, error) {
	var results []Mention
	cursor := ""

	for len(results) < limit {
		if err := c.limiter.Wait(ctx); err != nil {
			return results, err
		}

		page, nextCursor, err := c.fetchPage(ctx, query, cursor)
		if err != nil {
			return results, err
		}

		for _, tw := range page {
			results = append(results, toMention(tw))
			if len(results) >= limit {
				break
			}
		}

		if nextCursor == "" || len(page) == 0 {
			break
		}
		cursor = nextCursor
	}

	return results, nil
}

func (c *Client) fetchPage(ctx context.Context, query, cursor string) ([]tweetPayload, string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("queryType", "Latest")
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.Warn("Search API non-OK status", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, "", fmt.Errorf("search API request failed with status %s", resp.Status)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("failed to decode search response: %w", err)
	}
	return payload.Tweets, payload.NextCursor, nil
}

func toMention(tw tweetPayload) Mention {
	postedAt, err := time.Parse(time.RubyDate, tw.CreatedAt)
	if err != nil {
		postedAt = time.Time{}
	}
	id := tw.ID
	if id == "" {
		id = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return Mention{
		ID:        id,
		Author:    tw.Author.UserName,
		Text:      tw.Text,
		Permalink: tw.URL,
		Verified:  tw.Author.IsVerified || tw.Author.IsBlueVerified,
		PostedAt:  postedAt,
		Likes:     tw.LikeCount,
		Reposts:   tw.RetweetCount,
		Replies:   tw.ReplyCount,
	}
}
