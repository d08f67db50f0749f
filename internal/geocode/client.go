// Package geocode resolves free-text addresses against a Nominatim-compatible geocoder.
package geocode

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
)

var ErrNoMatch = errors.New("no geocoding match")

// Place is the best match for a query.
type Place struct {
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lng"`
	DisplayName string  `json:"display_name"`
	HouseNumber string  `json:"house_number,omitempty"`
	Road        string  `json:"road,omitempty"`
	City        string  `json:"city,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
	Country     string  `json:"country,omitempty"`
}

// IsStreetAddress reports whether the match resolved down to a numbered house on a road.
func (p *Place) IsStreetAddress() bool {
	return p != nil && strings.TrimSpace(p.HouseNumber) != "" && strings.TrimSpace(p.Road) != ""
}

type Lookuper interface {
	Lookup(ctx context.Context, query string) (*Place, error)
}

type Client struct {
	Endpoint   string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(endpoint, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		Endpoint:  strings.TrimRight(endpoint, "/"),
		UserAgent: userAgent,
		Timeout:   timeout,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
	} `json:"address"`
}

func (c *Client) Lookup(ctx context.Context, query string) (*Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoMatch
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder http %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoMatch
	}

	r := results[0]
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocoder lat %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocoder lon %q: %w", r.Lon, err)
	}

	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}

	return &Place{
		Latitude:    lat,
		Longitude:   lng,
		DisplayName: r.DisplayName,
		HouseNumber: r.Address.HouseNumber,
		Road:        r.Address.Road,
		City:        city,
		Postcode:    r.Address.Postcode,
		Country:     r.Address.Country,
	}, nil
}
