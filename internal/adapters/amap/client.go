// Package amap is a client for the AMap web service place search API.
package amap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ErrUpstream marks a failed or rejected provider call.
var ErrUpstream = errors.New("amap upstream error")

const (
	defaultBaseURL = "https://restapi.amap.com"
	defaultTimeout = 10 * time.Second
	aroundPath     = "/v3/place/around"
	textPath       = "/v3/place/text"
	statusOK       = "1"
	maxBodyBytes   = 8 << 20
)

// FlexibleString decodes fields the API returns either as a string or as an
// array (empty values come back as []).
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		*f = FlexibleString(arr[0])
		return nil
	}
	*f = ""
	return nil
}

// POI is one place returned by the API. Location is GCJ-02.
type POI struct {
	ID       FlexibleString `json:"id"`
	Name     FlexibleString `json:"name"`
	TypeCode FlexibleString `json:"typecode"`
	Location FlexibleString `json:"location"`
	Distance FlexibleString `json:"distance"`
}

// Point parses the "lon,lat" location.
func (p POI) Point() (orb.Point, error) {
	return ParseLocation(string(p.Location))
}

type response struct {
	Status FlexibleString `json:"status"`
	Info   FlexibleString `json:"info"`
	Count  FlexibleString `json:"count"`
	POIs   []POI          `json:"pois"`
}

// AroundRequest is one page of a nearby search.
type AroundRequest struct {
	Location orb.Point
	Radius   int
	PageSize int
	Page     int
	Types    string
}

// Client calls the place search endpoints.
type Client struct {
	key     string
	baseURL string
	http    *http.Client
}

// NewClient creates a client for key.
func NewClient(key string, opts ...Option) *Client {
	c := &Client{
		key:     key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Around fetches one page of POIs within Radius meters of Location.
func (c *Client) Around(ctx context.Context, req AroundRequest) ([]POI, error) {
	params := url.Values{}
	params.Set("key", c.key)
	params.Set("location", FormatLocation(req.Location))
	params.Set("radius", strconv.Itoa(req.Radius))
	params.Set("output", "json")
	params.Set("offset", strconv.Itoa(req.PageSize))
	params.Set("page", strconv.Itoa(req.Page))
	params.Set("extensions", "all")
	params.Set("types", req.Types)
	return c.get(ctx, aroundPath, params)
}

// TextSearch runs a keyword search restricted to city and types.
func (c *Client) TextSearch(ctx context.Context, keywords, city, types string) ([]POI, error) {
	params := url.Values{}
	params.Set("key", c.key)
	params.Set("keywords", keywords)
	params.Set("city", city)
	params.Set("types", types)
	params.Set("output", "json")
	return c.get(ctx, textPath, params)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]POI, error) {
	reqURL := strings.TrimRight(c.baseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: unexpected status %s", ErrUpstream, path, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUpstream, err)
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrUpstream, err)
	}
	if result.Status != "" && result.Status != statusOK {
		return nil, fmt.Errorf("%w: %s: status %s: %s", ErrUpstream, path, result.Status, result.Info)
	}
	return result.POIs, nil
}

// FormatLocation renders p as "lon,lat".
func FormatLocation(p orb.Point) string {
	return strconv.FormatFloat(p.Lon(), 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', -1, 64)
}

// ParseLocation parses a "lon,lat" string.
func ParseLocation(s string) (orb.Point, error) {
	lonStr, latStr, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("invalid location %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude %q: %w", lonStr, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude %q: %w", latStr, err)
	}
	return orb.Point{lon, lat}, nil
}
