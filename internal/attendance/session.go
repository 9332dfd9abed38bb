package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/transport"
)

// Session is one authenticated identity. It is not safe for concurrent use.
type Session struct {
	client   *Client
	creds    models.Credentials
	user     *models.RemoteUser
	site     *models.Site
	deviceID string
	log      zerolog.Logger
}

func (s *Session) Authenticated() bool {
	return s != nil && s.user != nil
}

func (s *Session) User() (models.RemoteUser, bool) {
	if !s.Authenticated() {
		return models.RemoteUser{}, false
	}
	return *s.user, true
}

func (s *Session) Credentials() models.Credentials {
	return s.creds
}

// Site returns the selected check-in site.
func (s *Session) Site() (models.Site, bool) {
	if s == nil || s.site == nil {
		return models.Site{}, false
	}
	return *s.site, true
}

func (s *Session) DeviceID() string {
	return s.deviceID
}

// Login posts creds to the remote login endpoint. A rejection is returned
// as *AuthenticationError and never retried here.
func (s *Session) Login(ctx context.Context, creds models.Credentials) error {
	if creds.PhoneHash == "" || creds.PasswordHash == "" {
		return &AuthenticationError{Message: "phone and password required"}
	}

	resp, err := s.client.exec.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Form: url.Values{
			"userName": {creds.PhoneHash},
			"password": {creds.PasswordHash},
		},
		Sensitive: true,
	})
	if err != nil {
		return err
	}

	var body loginResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return err
	}
	if body.Status != statusSuccess {
		msg := body.ErroInfo
		if msg == "" {
			msg = "login rejected"
		}
		s.log.Error().Str("reason", msg).Msg("login rejected")
		return &AuthenticationError{Message: msg}
	}

	var u loginUser
	if err := json.Unmarshal(body.Result, &u); err != nil {
		return fmt.Errorf("decode login result: %w", err)
	}

	s.creds = creds
	s.user = &models.RemoteUser{Phone: string(u.Phone), UserID: string(u.UserID), UserName: u.UserName}
	s.site = nil
	s.deviceID = ""
	s.log = s.client.log.With().Str("user_id", s.user.UserID).Logger()

	if id, ok, err := s.client.store.DeviceID(creds.PhoneHash); err != nil {
		s.log.Warn().Err(err).Msg("load device binding failed")
	} else if ok {
		s.deviceID = id
	}

	s.log.Info().Str("user", s.user.UserName).Msg("logged in")
	return nil
}

// DiscoverSites queries the sites registered near at. A nil point is
// resolved through the client's Locator. An empty result is not an error.
func (s *Session) DiscoverSites(ctx context.Context, at *models.Point) ([]models.Site, error) {
	var point models.Point
	switch {
	case at != nil:
		point = *at
	case s.client.locator != nil:
		p, err := s.client.locator.Locate(ctx)
		if err != nil {
			return nil, err
		}
		point = p
	default:
		return nil, ErrNoLocation
	}

	resp, err := s.client.exec.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   pathSites,
		Query: url.Values{
			"longitude": {point.LongitudeString()},
			"latitude":  {point.LatitudeString()},
		},
	})
	if err != nil {
		return nil, err
	}

	var body sitesResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, err
	}
	sites := body.sites()
	if len(sites) == 0 {
		s.log.Warn().Msg("no attendance sites found")
	} else {
		s.log.Info().Int("count", len(sites)).Msg("attendance sites found")
	}
	return sites, nil
}

func (s *Session) CheckIn(ctx context.Context, radius *float64) (models.ActionResult, error) {
	return s.PerformAction(ctx, models.CheckIn, radius)
}

func (s *Session) CheckOut(ctx context.Context, radius *float64) (models.ActionResult, error) {
	return s.PerformAction(ctx, models.CheckOut, radius)
}

// PerformAction submits a check-in or check-out from jittered coordinates
// around the site selected for kind. A nil radius uses the client default.
// A remote refusal is reported through ActionResult.Success, not an error.
func (s *Session) PerformAction(ctx context.Context, kind models.ActionKind, radius *float64) (models.ActionResult, error) {
	if !s.Authenticated() {
		return models.ActionResult{}, errNotLoggedIn(kind.Label())
	}
	if !kind.Valid() {
		return models.ActionResult{}, fmt.Errorf("unknown action kind %q", kind)
	}

	site, err := s.selectSite(ctx, kind)
	if err != nil {
		return models.ActionResult{}, err
	}

	if radius == nil {
		radius = s.client.radius
	}
	point := s.client.jitter.Jitter(site.Point(), radius)
	deviceID := s.ensureDeviceID(ctx)

	resp, err := s.client.exec.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathAction,
		Form: url.Values{
			"userName":       {s.user.UserName},
			"userId":         {s.user.UserID},
			"attendanceType": {kind.WireType()},
			"longitude":      {point.LongitudeString()},
			"latitude":       {point.LatitudeString()},
			"address":        {site.Address},
			"resId":          {site.ID},
			"UUID":           {deviceID},
		},
	})
	if err != nil {
		return models.ActionResult{}, err
	}

	var body actionResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return models.ActionResult{}, err
	}

	result := models.ActionResult{
		Kind:    kind,
		Success: body.Success,
		Message: body.Message,
		Site:    site,
		Point:   point,
	}
	if result.Success {
		s.log.Info().Str("action", kind.Label()).Str("site", site.Address).Msg("attendance recorded")
	} else {
		msg := body.Message
		if msg == "" {
			msg = "unknown error"
		}
		s.log.Error().Str("action", kind.Label()).Str("reason", msg).Msg("attendance refused")
	}
	return result, nil
}

// ensureDeviceID reuses the bound device id or creates one. Failing to save
// a new binding is logged and the new id is still used.
func (s *Session) ensureDeviceID(ctx context.Context) string {
	if s.deviceID != "" {
		return s.deviceID
	}

	binding := s.client.store.EnsureDeviceBinding(s.creds.PhoneHash, func() string {
		return s.askDeviceID(ctx)
	})
	if binding.PersistErr != nil {
		s.log.Warn().Err(binding.PersistErr).Msg("save device id failed")
	} else if binding.Created {
		s.log.Info().Str("device_id", binding.ID).Msg("device id saved")
	}
	s.deviceID = binding.ID
	return s.deviceID
}

func (s *Session) askDeviceID(ctx context.Context) string {
	entered, err := s.client.prompter.PromptLine(ctx, "Real device UUID (leave blank to generate one)")
	if err == nil && entered != "" {
		return entered
	}
	return s.client.newDeviceID()
}

// QueryHistory returns the attendance records for month (YYYY-MM). An empty
// month means the current one. lastOnly keeps only the most recent record.
func (s *Session) QueryHistory(ctx context.Context, month string, lastOnly bool) ([]models.AttendanceRecord, error) {
	if !s.Authenticated() {
		return nil, errNotLoggedIn("query history")
	}
	if month == "" {
		month = s.client.now().Format("2006-01")
	} else if err := validateMonth(month); err != nil {
		return nil, err
	}

	resp, err := s.client.exec.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   pathHistory,
		Query: url.Values{
			"userId": {s.user.UserID},
			"month":  {month},
		},
	})
	if err != nil {
		return nil, err
	}

	var body historyResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, err
	}
	records := body.records()
	if lastOnly && len(records) > 1 {
		records = records[len(records)-1:]
	}
	return records, nil
}

func validateMonth(month string) error {
	if len(month) != len("2006-01") {
		return ErrInvalidMonth
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return errors.Join(ErrInvalidMonth, err)
	}
	return nil
}
