// Package hexgrid bins coordinates into H3 hexagonal cells and materializes
// k-ring geofences around a center point.
package hexgrid

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"
	"github.com/umahmood/haversine"
)

// DefaultResolution is the H3 resolution used for event binning and
// community fences. Resolution 9 cells average roughly 0.1 km².
const DefaultResolution = 9

// ValidCoords reports whether lat/lon form a usable WGS84 coordinate pair.
func ValidCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// CellOf returns the H3 cell index string for the coordinate at the given
// resolution. The same coordinate and resolution always yield the same cell.
func CellOf(lat, lon float64, res int) (string, error) {
	if !ValidCoords(lat, lon) {
		return "", fmt.Errorf("hexgrid: coordinates out of range: %f, %f", lat, lon)
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), res)
	if err != nil {
		return "", fmt.Errorf("hexgrid: cell at res %d: %w", res, err)
	}
	return cell.String(), nil
}

// KForRadius converts a radius in kilometers into a k-ring distance.
// Resolution 9 hexagons span roughly 2 km of ring width, so the ring count
// is the radius halved, with a floor of one ring.
func KForRadius(radiusKm float64) int {
	k := int(math.Round(radiusKm / 2))
	if k < 1 {
		k = 1
	}
	return k
}

// Geofence returns the set of cells within KForRadius(radiusKm) rings of the
// center coordinate. The fence is a hex-shaped approximation of the circular
// radius; the center cell is always included.
func Geofence(lat, lon float64, radiusKm float64, res int) ([]string, error) {
	if !ValidCoords(lat, lon) {
		return nil, fmt.Errorf("hexgrid: coordinates out of range: %f, %f", lat, lon)
	}
	center, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), res)
	if err != nil {
		return nil, fmt.Errorf("hexgrid: center cell: %w", err)
	}
	disk, err := h3.GridDisk(center, KForRadius(radiusKm))
	if err != nil {
		return nil, fmt.Errorf("hexgrid: grid disk: %w", err)
	}
	cells := make([]string, 0, len(disk))
	for _, c := range disk {
		cells = append(cells, c.String())
	}
	return cells, nil
}

// DistanceKm returns the great-circle distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: lat1, Lon: lon1},
		haversine.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}
