package repository

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/skyunix/goinspur/internal/models"
)

func savedSiteKey(kind models.ActionKind) (string, error) {
	switch kind {
	case models.CheckIn:
		return keyCheckinSite, nil
	case models.CheckOut:
		return keyCheckoutSite, nil
	}
	return "", fmt.Errorf("unknown action kind %q", kind)
}

func (s *ConfigStore) sites(v *viper.Viper) ([]models.Site, error) {
	var records []siteRecord
	if err := v.UnmarshalKey(keySites, &records); err != nil {
		return nil, fmt.Errorf("decode sites: %w", err)
	}
	out := make([]models.Site, 0, len(records))
	for _, r := range records {
		out = append(out, models.Site{ID: r.ID, Address: r.Address, Latitude: r.Latitude, Longitude: r.Longitude})
	}
	return out, nil
}

func setSites(v *viper.Viper, sites []models.Site) {
	out := make([]map[string]any, 0, len(sites))
	seen := make(map[string]bool, len(sites))
	for _, site := range sites {
		if seen[site.Address] {
			continue
		}
		seen[site.Address] = true
		out = append(out, map[string]any{
			"id":        site.ID,
			"address":   site.Address,
			"latitude":  site.Latitude,
			"longitude": site.Longitude,
		})
	}
	v.Set(keySites, out)
}

// LoadSites returns the known sites in the order they were saved.
func (s *ConfigStore) LoadSites() ([]models.Site, error) {
	v, err := s.read()
	if err != nil {
		return nil, persistErr("load sites", err)
	}
	sites, err := s.sites(v)
	if err != nil {
		return nil, persistErr("load sites", err)
	}
	return sites, nil
}

// SaveSites replaces the known site set. Duplicate addresses keep the first entry.
func (s *ConfigStore) SaveSites(sites []models.Site) error {
	return s.update("save sites", func(v *viper.Viper) error {
		setSites(v, sites)
		return nil
	})
}

// SavedSiteAddress returns the raw saved address for kind, which may name a
// site that is no longer in the known set.
func (s *ConfigStore) SavedSiteAddress(kind models.ActionKind) (string, error) {
	key, err := savedSiteKey(kind)
	if err != nil {
		return "", persistErr("load saved site", err)
	}
	v, err := s.read()
	if err != nil {
		return "", persistErr("load saved site", err)
	}
	return v.GetString(key), nil
}

// LoadSavedSite returns the known sites and the saved address for kind. The
// address is empty when unset or when it no longer resolves.
func (s *ConfigStore) LoadSavedSite(kind models.ActionKind) ([]models.Site, string, error) {
	key, err := savedSiteKey(kind)
	if err != nil {
		return nil, "", persistErr("load saved site", err)
	}
	v, err := s.read()
	if err != nil {
		return nil, "", persistErr("load saved site", err)
	}
	sites, err := s.sites(v)
	if err != nil {
		return nil, "", persistErr("load saved site", err)
	}
	address := v.GetString(key)
	if _, ok := models.FindSite(sites, address); !ok {
		return sites, "", nil
	}
	return sites, address, nil
}

func (s *ConfigStore) SaveSavedSite(kind models.ActionKind, address string) error {
	key, err := savedSiteKey(kind)
	if err != nil {
		return persistErr("save saved site", err)
	}
	return s.update("save saved site", func(v *viper.Viper) error {
		v.Set(key, address)
		return nil
	})
}

// SaveSitesAndSelection replaces the known set and the saved address for
// kind in a single write.
func (s *ConfigStore) SaveSitesAndSelection(sites []models.Site, kind models.ActionKind, address string) error {
	key, err := savedSiteKey(kind)
	if err != nil {
		return persistErr("save sites", err)
	}
	return s.update("save sites", func(v *viper.Viper) error {
		setSites(v, sites)
		v.Set(key, address)
		return nil
	})
}
