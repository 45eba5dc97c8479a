package service

import (
	"fmt"
	"math"
	"sync"

	"github.com/ecodeli/delivery-engine/internal/api/metrics"
	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

const (
	earthRadiusKm = 6371.0

	// Below this delta in both axes (~111 m) the planar approximation is
	// indistinguishable from the great-circle result at our precision.
	planarThresholdDeg = 0.001
	kmPerDegree        = 111.0
)

// DistanceCache is a bounded memo for distance computations, keyed by the
// coordinate quadruple rounded to 6 decimals (~11 cm). Eviction is FIFO.
// It is a pure performance optimisation: clearing it never changes results.
type DistanceCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]float64
	order   []string
}

// NewDistanceCache returns a cache holding at most max entries. A max of
// zero or less yields a cache that stores nothing.
func NewDistanceCache(max int) *DistanceCache {
	return &DistanceCache{
		max:     max,
		entries: make(map[string]float64),
	}
}

func (c *DistanceCache) get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *DistanceCache) put(key string, v float64) {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = v
	c.order = append(c.order, key)
}

// Len returns the current number of cached entries.
func (c *DistanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the cache.
func (c *DistanceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]float64)
	c.order = nil
}

// GeoService computes great-circle distances and proximity scores.
type GeoService struct {
	cache *DistanceCache // nil disables caching
}

// NewGeoService returns a GeoService using the given cache. Pass nil to
// disable caching (e.g. in tests that exercise the raw computation).
func NewGeoService(cache *DistanceCache) *GeoService {
	return &GeoService{cache: cache}
}

// Distance returns the distance in kilometres between two points. Identical
// points short-circuit to zero; near-identical points take a cheap planar
// approximation; everything else goes through the Haversine formula.
func (g *GeoService) Distance(a, b domain.Coordinates) (float64, error) {
	if !a.Valid() || !b.Valid() {
		return 0, domain.ErrInvalidCoordinate
	}
	if a == b {
		return 0, nil
	}

	key := distanceKey(a, b)
	if g.cache != nil {
		if d, ok := g.cache.get(key); ok {
			metrics.GeoCacheHitsTotal.WithLabelValues("hit").Inc()
			return d, nil
		}
		metrics.GeoCacheHitsTotal.WithLabelValues("miss").Inc()
	}

	var d float64
	if math.Abs(a.Lat-b.Lat) < planarThresholdDeg && math.Abs(a.Lng-b.Lng) < planarThresholdDeg {
		d = math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng) * kmPerDegree
	} else {
		d = haversineKm(a, b)
	}

	if g.cache != nil {
		g.cache.put(key, d)
	}
	return d, nil
}

// ProximityScore maps a distance onto [0,1]: 1 at zero distance, 0 at or
// beyond maxKm, decreasing logarithmically in between so short distances are
// penalised gently and long ones sharply.
func (g *GeoService) ProximityScore(distanceKm, maxKm float64) float64 {
	if maxKm <= 0 || distanceKm >= maxKm {
		return 0
	}
	if distanceKm <= 0 {
		return 1
	}
	s := 1 - math.Log(distanceKm+1)/math.Log(maxKm+1)
	if s < 0 {
		return 0
	}
	return s
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(a, b domain.Coordinates) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func distanceKey(a, b domain.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f", a.Lat, a.Lng, b.Lat, b.Lng)
}
