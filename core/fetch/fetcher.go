// Package fetch implements the Fetcher interface against the Confluence
// REST API (v1, Data Center flavor).
// It requests body.view (the rendered HTML a reader sees) rather than the
// raw storage format, paginates content listings with start/limit, and
// retries rate-limit and server errors with exponential backoff.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/confchunk/core"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	defaultPageLimit = 100
	defaultUserAgent = "ConfChunk/1.0 (https://github.com/gaurav-prasanna/confchunk)"
)

// Config holds client settings.
type Config struct {
	BaseURL    string
	AuthToken  string // full Authorization header value, e.g. "Bearer …"
	Timeout    time.Duration
	MaxRetries int
	PageLimit  int    // pagination window for content listings
	SpaceKey   string // restrict listing to one space when set
}

// Client talks to the Confluence REST API. One Client serves the whole
// run; the underlying http.Client pools connections.
type Client struct {
	baseURL    string
	authToken  string
	maxRetries int
	pageLimit  int
	spaceKey   string
	client     *http.Client
	log        *logrus.Entry
}

// New creates a Client for the given instance.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultRetries
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authToken:  cfg.AuthToken,
		maxRetries: retries,
		pageLimit:  limit,
		spaceKey:   cfg.SpaceKey,
		client:     &http.Client{Timeout: timeout},
		log:        logrus.WithField("component", "fetch"),
	}
}

// statusError carries an HTTP status through the retry loop so callers can
// distinguish 404 from genuine failures.
type statusError struct {
	status int
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.status, e.url)
}

// contentListing is the shape of GET /rest/api/content.
type contentListing struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
	Size int `json:"size"`
}

// contentPage is the shape of GET /rest/api/content/{id} with
// expand=body.view,version,space.
type contentPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"space"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
	} `json:"version"`
	Body struct {
		View struct {
			Value string `json:"value"`
		} `json:"view"`
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// ListPageIDs pages through the content listing and returns every page id
// visible to the client, in listing order.
func (c *Client) ListPageIDs(ctx context.Context) ([]string, error) {
	var pageIDs []string
	start := 0

	c.log.Info("listing available pages")
	for {
		params := url.Values{}
		params.Set("type", "page")
		params.Set("limit", strconv.Itoa(c.pageLimit))
		params.Set("start", strconv.Itoa(start))
		params.Set("expand", "space")
		if c.spaceKey != "" {
			params.Set("spaceKey", c.spaceKey)
		}

		body, err := c.get(ctx, "/rest/api/content", params)
		if err != nil {
			return nil, fmt.Errorf("listing pages at start=%d: %w", start, err)
		}

		var listing contentListing
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, fmt.Errorf("decoding content listing: %w", err)
		}
		if len(listing.Results) == 0 {
			break
		}
		for _, r := range listing.Results {
			pageIDs = append(pageIDs, r.ID)
		}
		if len(listing.Results) < c.pageLimit {
			break
		}
		start += c.pageLimit
	}

	c.log.WithField("pages", len(pageIDs)).Info("page listing complete")
	return pageIDs, nil
}

// FetchPage retrieves one page with its rendered HTML. A missing page
// returns (nil, nil) so callers can skip it without aborting the run.
func (c *Client) FetchPage(ctx context.Context, pageID string) (*core.Page, error) {
	params := url.Values{}
	params.Set("expand", "body.view,version,space")

	body, err := c.get(ctx, "/rest/api/content/"+pageID, params)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			c.log.WithField("page_id", pageID).Warn("page not found")
			return nil, nil
		}
		return nil, fmt.Errorf("fetching page %s: %w", pageID, err)
	}

	var cp contentPage
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, fmt.Errorf("decoding page %s: %w", pageID, err)
	}

	// Prefer the rendered view; fall back to storage format.
	html := cp.Body.View.Value
	if html == "" {
		html = cp.Body.Storage.Value
	}

	pageURL := cp.Links.WebUI
	if pageURL != "" && !strings.HasPrefix(pageURL, "http") {
		pageURL = c.baseURL + pageURL
	}

	version := cp.Version.Number
	if version == 0 {
		version = 1
	}

	return &core.Page{
		ID:           cp.ID,
		Title:        cp.Title,
		SpaceKey:     cp.Space.Key,
		SpaceName:    cp.Space.Name,
		Version:      version,
		LastModified: cp.Version.When,
		URL:          pageURL,
		BodyHTML:     html,
	}, nil
}

// get performs one GET with retry on 429, 5xx and transport errors.
// Delays grow exponentially (2s, 4s, 8s, …) with a little jitter so
// parallel workers do not retry in lockstep.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := c.doOnce(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		var se *statusError
		if errors.As(err, &se) {
			retryable := se.status == http.StatusTooManyRequests || se.status >= 500
			if !retryable {
				return nil, err
			}
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}
		delay := backoffDelay(attempt)
		c.log.WithFields(logrus.Fields{
			"url":     reqURL,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &statusError{status: resp.StatusCode, url: reqURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func backoffDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return base + jitter
}
