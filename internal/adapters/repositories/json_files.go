package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/ports"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// flexID accepts ids written either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type orderRecord struct {
	ID             flexID   `json:"id"`
	Lon            *float64 `json:"lon,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Address        string   `json:"address,omitempty"`
	ServiceTime    float64  `json:"service_time,omitempty"`
	PickupQuantity int      `json:"pickup_quantity,omitempty"`
	CurbApproach   *int     `json:"curb_approach,omitempty"`
	RouteName      string   `json:"route_name,omitempty"`
	Sequence       *int     `json:"sequence,omitempty"`
}

type depotRecord struct {
	Name string  `json:"name"`
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
}

type routeRecord struct {
	Name           string     `json:"name"`
	StartDepotName string     `json:"start_depot_name"`
	EndDepotName   string     `json:"end_depot_name"`
	EarliestStart  *time.Time `json:"earliest_start,omitempty"`
}

type solvedStopRecord struct {
	Name      flexID  `json:"name"`
	RouteName *string `json:"route_name"`
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %q: %w", path, err)
	}
	return nil
}

// FileOrderRepository reads orders from a JSON array. Orders given only an
// address are resolved through Geocoder.
type FileOrderRepository struct {
	Path     string
	Geocoder ports.Geocoder
}

func NewFileOrderRepository(path string, geocoder ports.Geocoder) *FileOrderRepository {
	return &FileOrderRepository{Path: path, Geocoder: geocoder}
}

func (f *FileOrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var recs []orderRecord
	if err := readJSON(f.Path, &recs); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var pending []string
	for _, r := range recs {
		if r.Lon == nil || r.Lat == nil {
			if strings.TrimSpace(r.Address) == "" {
				return nil, fmt.Errorf("list orders: order %q: no coordinates or address", string(r.ID))
			}
			pending = append(pending, r.Address)
		}
	}

	var resolved map[string]domain.Coordinates
	if len(pending) > 0 {
		if f.Geocoder == nil {
			return nil, fmt.Errorf("list orders: %d orders need geocoding but no geocoder is configured", len(pending))
		}
		var err error
		resolved, err = f.Geocoder.Geocode(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
	}

	orders := make([]domain.Order, 0, len(recs))
	for _, r := range recs {
		o := domain.Order{
			ID:             string(r.ID),
			ServiceTime:    r.ServiceTime,
			PickupQuantity: r.PickupQuantity,
			RouteName:      r.RouteName,
			Sequence:       r.Sequence,
		}
		if r.CurbApproach != nil {
			o.CurbApproach = domain.CurbApproach(*r.CurbApproach)
		}
		if r.Lon != nil && r.Lat != nil {
			o.Location = domain.Coordinates{Lon: *r.Lon, Lat: *r.Lat}
		} else {
			loc, ok := resolved[r.Address]
			if !ok {
				return nil, fmt.Errorf("list orders: order %q: address %q not resolved", o.ID, r.Address)
			}
			o.Location = loc
		}
		orders = append(orders, o)
	}

	if err := domain.ValidateOrders(orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// WriteOrders writes orders in the same shape FileOrderRepository reads.
func WriteOrders(path string, orders []domain.Order) error {
	recs := make([]orderRecord, 0, len(orders))
	for _, o := range orders {
		lon, lat := o.Location.Lon, o.Location.Lat
		curb := int(o.CurbApproach)
		recs = append(recs, orderRecord{
			ID:             flexID(o.ID),
			Lon:            &lon,
			Lat:            &lat,
			ServiceTime:    o.ServiceTime,
			PickupQuantity: o.PickupQuantity,
			CurbApproach:   &curb,
			RouteName:      o.RouteName,
			Sequence:       o.Sequence,
		})
	}
	return writeJSON(path, recs)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("write %q: encode: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// LoadDepots returns depots in file order. Names must be unique.
func LoadDepots(path string) ([]domain.Depot, error) {
	var recs []depotRecord
	if err := readJSON(path, &recs); err != nil {
		return nil, fmt.Errorf("load depots: %w", err)
	}

	seen := make(map[string]struct{}, len(recs))
	out := make([]domain.Depot, 0, len(recs))
	for i, r := range recs {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("load depots: index %d: name must not be empty", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("load depots: duplicate depot %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, domain.Depot{Name: name, Location: domain.Coordinates{Lon: r.Lon, Lat: r.Lat}})
	}
	return out, nil
}

// LoadRoutes returns routes in file order.
func LoadRoutes(path string) ([]domain.Route, error) {
	var recs []routeRecord
	if err := readJSON(path, &recs); err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	seen := make(map[string]struct{}, len(recs))
	out := make([]domain.Route, 0, len(recs))
	for i, r := range recs {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("load routes: index %d: name must not be empty", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("load routes: duplicate route %q", name)
		}
		seen[name] = struct{}{}

		rt := domain.Route{
			Name:       name,
			StartDepot: strings.TrimSpace(r.StartDepotName),
			EndDepot:   strings.TrimSpace(r.EndDepotName),
		}
		if r.EarliestStart != nil {
			rt.EarliestStart = *r.EarliestStart
		}
		out = append(out, rt)
	}
	return out, nil
}

// LoadAssignment reads the solver's stop table. A null or empty route_name
// is kept as "" and means the stop was left unassigned.
func LoadAssignment(path string) (domain.RouteAssignment, error) {
	var recs []solvedStopRecord
	if err := readJSON(path, &recs); err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	out := make(domain.RouteAssignment, len(recs))
	for i, r := range recs {
		id := string(r.Name)
		if err := domain.ValidateOrderID(id); err != nil {
			return nil, fmt.Errorf("load assignment: index %d: %w", i, err)
		}
		route := ""
		if r.RouteName != nil {
			route = strings.TrimSpace(*r.RouteName)
		}
		if prev, dup := out[id]; dup && prev != route {
			return nil, fmt.Errorf("load assignment: stop %q listed on routes %q and %q", id, prev, route)
		}
		out[id] = route
	}
	return out, nil
}
