package domain

import "fmt"

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Key renders the coordinates at ~1m precision for use as a cache key.
func (c Coordinates) Key() string { return fmt.Sprintf("%.5f,%.5f", c.Lon, c.Lat) }
