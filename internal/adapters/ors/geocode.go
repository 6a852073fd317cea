package ors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"order-consolidation/internal/adapters/cache"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"strings"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocoder resolves street addresses for orders that arrive without
// coordinates.
type Geocoder struct {
	client  *Client
	cache   *cache.SQLGeocodeCache
	country string
}

func NewGeocoder(client *Client, geocodeCache *cache.SQLGeocodeCache, country string) (*Geocoder, error) {
	if client == nil {
		return nil, errors.New("ORS geocoder: client is nil")
	}
	return &Geocoder{client: client, cache: geocodeCache, country: country}, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Geocode resolves every address, consulting the cache first. The result is
// keyed by the caller's original address strings.
func (g *Geocoder) Geocode(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	norm := make(map[string]string, len(addresses))
	needed := make([]string, 0, len(addresses))
	for _, a := range addresses {
		n := normalize(a)
		if n == "" {
			return nil, fmt.Errorf("geocode: empty address")
		}
		if _, ok := norm[a]; !ok {
			norm[a] = n
			needed = append(needed, n)
		}
	}

	hits := make(map[string]domain.Coordinates)
	if g.cache != nil {
		hits, err = g.cache.GetMany(ctx, needed)
		if err != nil {
			return nil, fmt.Errorf("ORS get geocode cache: %w", err)
		}
	}

	misses := make([]string, 0, len(needed))
	for _, n := range needed {
		if _, ok := hits[n]; !ok {
			misses = append(misses, n)
		}
	}

	fresh := make(map[string]domain.Coordinates, len(misses))
	seen := make(map[string]struct{}, len(misses))
	for _, a := range misses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}

		c, err := g.geocodeOne(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("retrieving coordinates: %w", err)
		}
		fresh[a] = c
	}

	if g.cache != nil && len(fresh) > 0 {
		if err := g.cache.PutMany(ctx, fresh); err != nil {
			log.Printf("geocode cache write failed: %v", err)
		}
	}

	out := make(map[string]domain.Coordinates, len(norm))
	for orig, n := range norm {
		if c, ok := hits[n]; ok {
			out[orig] = c
			continue
		}
		out[orig] = fresh[n]
	}
	return out, nil
}

func (g *Geocoder) geocodeOne(ctx context.Context, address string) (domain.Coordinates, error) {
	endpoint := g.client.baseURL + "/geocode/search"

	resp, err := g.client.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := g.client.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		if g.country != "" {
			q.Set("boundary.country", g.country)
		}
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("no geocode results for %q", address)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
