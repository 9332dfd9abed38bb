// Package attendance implements the authenticated session against the
// attendance API: login, site discovery, check-in/check-out and history.
package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/geo"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
	"github.com/skyunix/goinspur/internal/transport"
)

type Executor interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

type SiteStore interface {
	LoadSites() ([]models.Site, error)
	SavedSiteAddress(kind models.ActionKind) (string, error)
	LoadSavedSite(kind models.ActionKind) ([]models.Site, string, error)
	SaveSavedSite(kind models.ActionKind, address string) error
	SaveSitesAndSelection(sites []models.Site, kind models.ActionKind, address string) error
}

type DeviceStore interface {
	DeviceID(phoneHash string) (string, bool, error)
	EnsureDeviceBinding(phoneHash string, generate func() string) models.DeviceBinding
}

type Store interface {
	SiteStore
	DeviceStore
}

// Locator supplies the coordinates used to search for nearby sites.
type Locator interface {
	Locate(ctx context.Context) (models.Point, error)
}

type Options struct {
	Executor Executor
	Store    Store
	Prompter prompt.Prompter
	Locator  Locator
	Jitter   *geo.Jitterer
	// Radius is the jitter radius used when an action does not pass one.
	Radius      *float64
	Now         func() time.Time
	NewDeviceID func() string
	Logger      zerolog.Logger
}

// Client holds the collaborators shared by every session.
type Client struct {
	exec        Executor
	store       Store
	prompter    prompt.Prompter
	locator     Locator
	jitter      *geo.Jitterer
	radius      *float64
	now         func() time.Time
	newDeviceID func() string
	log         zerolog.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		exec:        opts.Executor,
		store:       opts.Store,
		prompter:    opts.Prompter,
		locator:     opts.Locator,
		jitter:      opts.Jitter,
		radius:      opts.Radius,
		now:         opts.Now,
		newDeviceID: opts.NewDeviceID,
		log:         opts.Logger.With().Str("component", "attendance").Logger(),
	}
	if c.prompter == nil {
		c.prompter = prompt.Unattended{}
	}
	if c.jitter == nil {
		c.jitter = geo.NewJitterer(nil)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newDeviceID == nil {
		c.newDeviceID = NewDeviceID
	}
	return c
}

// NewDeviceID returns an upper-case random UUID, the format the vendor's
// mobile shell reports.
func NewDeviceID() string {
	return strings.ToUpper(uuid.NewString())
}

// NewSession returns an unauthenticated session.
func (c *Client) NewSession() *Session {
	return &Session{client: c, log: c.log}
}

// Login returns an authenticated session for creds.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*Session, error) {
	s := c.NewSession()
	if err := s.Login(ctx, creds); err != nil {
		return nil, err
	}
	return s, nil
}
