// Package coord converts GCJ-02 coordinates to WGS-84 and measures distances.
//
// The GCJ-02 correction is an empirical offset model around (105°E, 35°N) on
// the Krasovsky ellipsoid. It is not exactly invertible, so only the
// GCJ-02 -> WGS-84 direction is provided.
package coord

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

const (
	semiMajorAxis = 6378245.0
	eccentricity2 = 0.00669342162296594323
	originLon     = 105.0
	originLat     = 35.0

	// EarthRadiusMeters is the mean Earth radius used for distances.
	EarthRadiusMeters = 6371008.8
)

// GCJ02ToWGS84 removes the GCJ-02 offset from p (lon, lat).
func GCJ02ToWGS84(p orb.Point) orb.Point {
	lon, lat := p.Lon(), p.Lat()
	dLat := latOffset(lon-originLon, lat-originLat)
	dLon := lonOffset(lon-originLon, lat-originLat)

	radLat := lat / 180.0 * math.Pi
	magic := 1 - eccentricity2*math.Sin(radLat)*math.Sin(radLat)
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((semiMajorAxis * (1 - eccentricity2)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)

	return orb.Point{lon - dLon, lat - dLat}
}

// ToStandardDatum is GCJ02ToWGS84 for optional input: nil in, nil out.
func ToStandardDatum(p *orb.Point) *orb.Point {
	if p == nil {
		return nil
	}
	out := GCJ02ToWGS84(*p)
	return &out
}

func latOffset(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func lonOffset(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b orb.Point) float64 {
	la := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	lb := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return la.Distance(lb).Radians() * EarthRadiusMeters
}
