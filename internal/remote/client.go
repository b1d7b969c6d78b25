// Package remote fetches pages of raw apartment records from the
// external open-data registry.
//
// The registry exposes an Opendatasoft-style records endpoint: a GET
// with limit/offset query parameters and an optional refine filter,
// answering {"total_count": N, "results": [...]}. Records are handed to
// callers as untyped maps; the normalizer package is the single point
// that turns them into typed catalog entities, so schema drift in the
// source stays contained there.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/turireg/apartment-catalog-server/internal/httpclient"
)

// Typed failure classes for a page fetch. Callers distinguish them with
// errors.Is; both abort the remaining pages of a run.
var (
	// ErrRemoteUnavailable indicates a transport failure or non-2xx response
	ErrRemoteUnavailable = errors.New("remote registry unavailable")

	// ErrMalformedResponse indicates the payload is not parseable JSON or
	// lacks the expected results/total_count shape
	ErrMalformedResponse = errors.New("malformed registry response")
)

// RawRecord is one record exactly as the registry returned it
type RawRecord map[string]any

// Page is one page of the remote dataset
type Page struct {
	// Records are the raw records of this page
	Records []RawRecord

	// TotalCount is the size of the full dataset as reported by the source
	TotalCount int
}

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client fetches catalog data from the remote registry
type Client interface {
	// FetchPage retrieves one page of records at the given offset
	FetchPage(ctx context.Context, limit, offset int) (*Page, error)

	// TestConnection performs a cheap 1-record probe and reports whether
	// the source is reachable. Used by health checks; never returns an error.
	TestConnection(ctx context.Context) bool
}

// catalogClient is the HTTP-backed Client implementation
type catalogClient struct {
	http     httpclient.Client
	endpoint string
	refine   string
	limiter  *rate.Limiter
}

// NewCatalogClient creates a Client for the given records endpoint.
// refine is the server-side category filter appended to every request
// (empty disables it). pageDelay is the minimum spacing between
// successive requests; 0 disables pacing.
func NewCatalogClient(http httpclient.Client, endpoint, refine string, pageDelay time.Duration) Client {
	var limiter *rate.Limiter
	if pageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(pageDelay), 1)
	}
	return &catalogClient{
		http:     http,
		endpoint: endpoint,
		refine:   refine,
		limiter:  limiter,
	}
}

// FetchPage retrieves one page of records at the given offset
func (c *catalogClient) FetchPage(ctx context.Context, limit, offset int) (*Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
	}

	body, err := c.http.Get(ctx, c.pageURL(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	var payload struct {
		TotalCount *int        `json:"total_count"`
		Results    []RawRecord `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.TotalCount == nil || payload.Results == nil {
		return nil, fmt.Errorf("%w: missing total_count or results", ErrMalformedResponse)
	}

	return &Page{
		Records:    payload.Results,
		TotalCount: *payload.TotalCount,
	}, nil
}

// TestConnection performs a 1-record probe against the source
func (c *catalogClient) TestConnection(ctx context.Context) bool {
	_, err := c.FetchPage(ctx, 1, 0)
	return err == nil
}

func (c *catalogClient) pageURL(limit, offset int) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if c.refine != "" {
		params.Set("refine", c.refine)
	}
	return c.endpoint + "?" + params.Encode()
}
