package stac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/observability"
)

var (
	// ErrCatalogUnavailable signals that the catalog endpoint could not
	// be opened at all.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrCollectionNotFound signals that the endpoint is reachable but
	// does not contain the requested collection.
	ErrCollectionNotFound = errors.New("collection not found")
)

// maxItemPages bounds link-following so a misbehaving catalog cannot
// loop the pager forever.
const maxItemPages = 10000

// Client resolves collections and items from a STAC endpoint. Remote
// endpoints speak the STAC API over HTTP; local endpoints are a static
// catalog document with collections (and their items) embedded.
//
// The client holds no cache: every session construction re-resolves,
// so catalog edits are picked up on the next session.
type Client struct {
	base    *url.URL
	static  *staticCatalog
	httpc   *http.Client
	log     zerolog.Logger
	timeout time.Duration
}

type staticCatalog struct {
	Collections []Collection `json:"collections"`
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// Open connects to a catalog endpoint. HTTP(S) endpoints are probed
// with a GET of the landing page; anything else is treated as a path
// to a static catalog document.
func Open(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	cl := &Client{
		httpc:   http.DefaultClient,
		log:     zerolog.Nop(),
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(cl)
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: parse endpoint %q: %v", ErrCatalogUnavailable, endpoint, err)
		}
		cl.base = u
		if err := cl.probe(ctx); err != nil {
			return nil, err
		}
		cl.log.Info().Str("endpoint", endpoint).Msg("opened STAC API endpoint")
		return cl, nil
	}

	path := strings.TrimPrefix(endpoint, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read catalog file %q: %v", ErrCatalogUnavailable, endpoint, err)
	}
	var sc staticCatalog
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: parse catalog file %q: %v", ErrCatalogUnavailable, endpoint, err)
	}
	cl.static = &sc
	cl.log.Info().Str("endpoint", endpoint).Int("collections", len(sc.Collections)).
		Msg("opened static catalog")
	return cl, nil
}

func (c *Client) probe(ctx context.Context) error {
	start := time.Now()
	body, status, err := c.get(ctx, c.base.String())
	observability.ObserveCatalogOp("probe", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: landing page returned %d", ErrCatalogUnavailable, status)
	}
	_ = body
	return nil
}

// GetCollection fetches the collection descriptor for id.
func (c *Client) GetCollection(ctx context.Context, id string) (*Collection, error) {
	if c.static != nil {
		for i := range c.static.Collections {
			if c.static.Collections[i].ID == id {
				col := c.static.Collections[i]
				return &col, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, id)
	}

	start := time.Now()
	u := c.base.JoinPath("collections", id)
	body, status, err := c.get(ctx, u.String())
	observability.ObserveCatalogOp("get_collection", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, id)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrCatalogUnavailable, u, status)
	}

	var col Collection
	if err := json.Unmarshal(body, &col); err != nil {
		return nil, fmt.Errorf("parse collection %q: %w", id, err)
	}
	return &col, nil
}

type itemPage struct {
	Features []Item `json:"features"`
	Links    []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// Items returns every item of the collection in catalog order,
// following pagination links for API catalogs.
func (c *Client) Items(ctx context.Context, collectionID string) ([]Item, error) {
	if c.static != nil {
		for i := range c.static.Collections {
			if c.static.Collections[i].ID == collectionID {
				return c.static.Collections[i].Items, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collectionID)
	}

	next := c.base.JoinPath("collections", collectionID, "items").String()
	var out []Item
	for page := 0; next != "" && page < maxItemPages; page++ {
		start := time.Now()
		body, status, err := c.get(ctx, next)
		observability.ObserveCatalogOp("items", err, time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collectionID)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: GET %s returned %d", ErrCatalogUnavailable, next, status)
		}

		var pg itemPage
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("parse items page: %w", err)
		}
		out = append(out, pg.Features...)

		next = ""
		for _, l := range pg.Links {
			if l.Rel == "next" {
				next = l.Href
				break
			}
		}
	}
	c.log.Debug().Str("collection", collectionID).Int("items", len(out)).Msg("fetched items")
	return out, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
