// Package geo produces jittered coordinates around attendance sites.
package geo

import (
	"math"
	"math/rand/v2"

	"github.com/skyunix/goinspur/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used by the flat-Earth offset.
const EarthRadiusMeters = 6371000.0

type Jitterer struct {
	rng *rand.Rand
}

// NewJitterer returns a Jitterer drawing from rng. A nil rng uses the
// package-level generator.
func NewJitterer(rng *rand.Rand) *Jitterer {
	return &Jitterer{rng: rng}
}

func (j *Jitterer) float64() float64 {
	if j == nil || j.rng == nil {
		return rand.Float64()
	}
	return j.rng.Float64()
}

// Jitter returns a point drawn uniformly by area from the disc of
// radiusMeters around base. A nil radius returns base unchanged.
//
// The offset uses a flat-Earth approximation and is only accurate for radii
// in the tens to hundreds of meters away from the poles. Near a pole the
// longitude offset grows without bound, so results are wrapped into
// [-180, 180] and latitude is clamped to [-90, 90].
func (j *Jitterer) Jitter(base models.Point, radiusMeters *float64) models.Point {
	if radiusMeters == nil {
		return base
	}
	radius := math.Max(*radiusMeters, 0)

	theta := j.float64() * 2 * math.Pi
	distance := math.Sqrt(j.float64()) * radius

	latRad := base.Latitude * math.Pi / 180
	cosLat := math.Max(math.Abs(math.Cos(latRad)), minCosLatitude)
	lngOffset := distance / (EarthRadiusMeters * cosLat) * math.Sin(theta)
	latOffset := distance / EarthRadiusMeters * math.Cos(theta)

	return models.Point{
		Longitude: wrapLongitude(base.Longitude + toDegrees(lngOffset)),
		Latitude:  math.Max(-90, math.Min(90, base.Latitude+toDegrees(latOffset))),
	}
}

// minCosLatitude keeps the longitude offset finite at the poles.
const minCosLatitude = 1e-12

func wrapLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

// Jitter uses the package-level generator.
func Jitter(base models.Point, radiusMeters *float64) models.Point {
	return (*Jitterer)(nil).Jitter(base, radiusMeters)
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b models.Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radius converts an optional integer meter setting into the form Jitter takes.
func Radius(meters *int) *float64 {
	if meters == nil {
		return nil
	}
	r := float64(*meters)
	return &r
}
