package models

import "strconv"

type Point struct {
	Longitude float64
	Latitude  float64
}

func (p Point) LongitudeString() string {
	return strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}

func (p Point) LatitudeString() string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64)
}

type Site struct {
	ID        string
	Address   string
	Latitude  float64
	Longitude float64
}

func (s Site) Point() Point {
	return Point{Longitude: s.Longitude, Latitude: s.Latitude}
}

// FindSite returns the site registered under address.
func FindSite(sites []Site, address string) (Site, bool) {
	if address == "" {
		return Site{}, false
	}
	for _, s := range sites {
		if s.Address == address {
			return s, true
		}
	}
	return Site{}, false
}

func SiteAddresses(sites []Site) []string {
	out := make([]string, 0, len(sites))
	for _, s := range sites {
		out = append(out, s.Address)
	}
	return out
}
