package attendance

import (
	"context"
	"errors"

	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
)

// EnsureSiteLoaded loads the saved check-in site into the session when the
// saved address still names a known site.
func (s *Session) EnsureSiteLoaded() bool {
	if s.site != nil {
		return true
	}
	sites, address, err := s.client.store.LoadSavedSite(models.CheckIn)
	if err != nil {
		s.log.Warn().Err(err).Msg("load saved site failed")
		return false
	}
	if address == "" {
		return false
	}
	site, _ := models.FindSite(sites, address)
	s.site = &site
	return true
}

// ReselectSite drops the current site and picks a new check-in site from a
// fresh remote search.
func (s *Session) ReselectSite(ctx context.Context) (models.Site, error) {
	if !s.Authenticated() {
		return models.Site{}, errNotLoggedIn("reselect site")
	}
	s.site = nil
	return s.chooseRemote(ctx, models.CheckIn)
}

// selectSite resolves the site for kind: a saved address that still
// resolves, else a choice from the known sites, else a choice from a remote
// search. Each kind keeps its own saved address.
func (s *Session) selectSite(ctx context.Context, kind models.ActionKind) (models.Site, error) {
	known, err := s.client.store.LoadSites()
	if err != nil {
		s.log.Warn().Err(err).Msg("load known sites failed")
	}

	saved, err := s.client.store.SavedSiteAddress(kind)
	if err != nil {
		s.log.Warn().Err(err).Msg("load saved site failed")
	}
	if saved != "" {
		if site, ok := models.FindSite(known, saved); ok {
			s.log.Debug().Str("action", kind.Label()).Str("site", site.Address).Msg("using saved site")
			s.remember(kind, site)
			return site, nil
		}
		s.log.Warn().Str("action", kind.Label()).Str("site", saved).Msg("saved site is no longer known, select again")
	}

	if len(known) > 0 {
		site, err := s.choose(ctx, kind, known)
		if err != nil {
			return models.Site{}, err
		}
		if err := s.client.store.SaveSavedSite(kind, site.Address); err != nil {
			s.log.Warn().Err(err).Msg("save selected site failed")
		}
		s.remember(kind, site)
		return site, nil
	}

	return s.chooseRemote(ctx, kind)
}

func (s *Session) chooseRemote(ctx context.Context, kind models.ActionKind) (models.Site, error) {
	fetched, err := s.DiscoverSites(ctx, nil)
	if err != nil {
		if errors.Is(err, prompt.ErrCancelled) || errors.Is(err, ErrNoLocation) {
			return models.Site{}, &SiteNotSelectedError{Kind: kind, Err: err}
		}
		return models.Site{}, err
	}
	if len(fetched) == 0 {
		return models.Site{}, &SiteNotSelectedError{Kind: kind, Err: ErrNoSites}
	}

	site, err := s.choose(ctx, kind, fetched)
	if err != nil {
		return models.Site{}, err
	}
	if err := s.client.store.SaveSitesAndSelection(fetched, kind, site.Address); err != nil {
		s.log.Warn().Err(err).Msg("save sites failed")
	}
	s.remember(kind, site)
	return site, nil
}

func (s *Session) choose(ctx context.Context, kind models.ActionKind, sites []models.Site) (models.Site, error) {
	idx, err := s.client.prompter.Choose(ctx, "Select the "+kind.Label()+" site", models.SiteAddresses(sites))
	if err != nil {
		return models.Site{}, &SiteNotSelectedError{Kind: kind, Err: err}
	}
	if idx < 0 || idx >= len(sites) {
		return models.Site{}, &SiteNotSelectedError{Kind: kind, Err: prompt.ErrCancelled}
	}
	site := sites[idx]
	s.log.Info().Str("action", kind.Label()).Str("site", site.Address).Msg("site selected")
	return site, nil
}

// remember keeps the check-in site on the session. Check-out selections
// only live in the store.
func (s *Session) remember(kind models.ActionKind, site models.Site) {
	if kind == models.CheckIn {
		s.site = &site
	}
}
