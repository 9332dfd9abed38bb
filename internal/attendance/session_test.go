package attendance

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyunix/goinspur/internal/geo"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
	"github.com/skyunix/goinspur/internal/transport"
)

var siteA = models.Site{ID: "7", Address: "Building A", Latitude: 31.0, Longitude: 121.0}
var siteB = models.Site{ID: "8", Address: "Building B", Latitude: 31.001, Longitude: 121.001}

func radius(m float64) *float64 { return &m }

func TestLoginStoresRemoteUser(t *testing.T) {
	h := newHarness(t, nil)
	s := h.login(t)

	assert.True(t, s.Authenticated())
	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "42", u.UserID)
	assert.Equal(t, "Alice", u.UserName)
	assert.Equal(t, "138****0000", u.Phone)

	require.Len(t, h.remote.logins, 1)
	assert.Equal(t, "phone-hash", h.remote.logins[0].Get("userName"))
	assert.Equal(t, "password-hash", h.remote.logins[0].Get("password"))
}

type recordingExecutor struct {
	Executor
	requests []transport.Request
}

func (r *recordingExecutor) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	r.requests = append(r.requests, req)
	return r.Executor.Do(ctx, req)
}

func TestLoginResponseIsNotLogged(t *testing.T) {
	rec := &recordingExecutor{}
	h := newHarness(t, func(o *Options) {
		rec.Executor = o.Executor
		o.Executor = rec
	})
	s := h.login(t)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	_, err := s.CheckIn(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, rec.requests, 2)
	assert.True(t, rec.requests[0].Sensitive)
	assert.False(t, rec.requests[1].Sensitive)
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.addUser("phone-hash", "password-hash", "42", "Alice")

	s := h.client.NewSession()
	err := s.Login(context.Background(), models.Credentials{PhoneHash: "phone-hash", PasswordHash: "wrong"})

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "wrong phone or password", authErr.Message)
	assert.False(t, s.Authenticated())
	assert.Len(t, h.remote.logins, 1, "rejections are not retried")
}

func TestLoginLoadsDeviceBinding(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SetDeviceID("phone-hash", "BOUND-ID"))

	s := h.login(t)
	assert.Equal(t, "BOUND-ID", s.DeviceID())
}

func TestOperationsRequireLogin(t *testing.T) {
	h := newHarness(t, nil)
	s := h.client.NewSession()
	ctx := context.Background()

	var pre *PreconditionError
	_, err := s.CheckIn(ctx, nil)
	assert.ErrorAs(t, err, &pre)
	_, err = s.QueryHistory(ctx, "", false)
	assert.ErrorAs(t, err, &pre)
	_, err = s.ReselectSite(ctx)
	assert.ErrorAs(t, err, &pre)

	assert.Empty(t, h.remote.actions)
	assert.Empty(t, h.remote.histories)
}

func TestCheckInWithSavedSite(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Radius = radius(50) })
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	s := h.login(t)

	res, err := s.CheckIn(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.CheckIn, res.Kind)
	assert.Equal(t, "Building A", res.Site.Address)
	assert.Empty(t, h.script.Offered, "a saved site is used without asking")

	require.Len(t, h.remote.actions, 1)
	form := h.remote.actions[0]
	assert.Equal(t, "Alice", form.Get("userName"))
	assert.Equal(t, "42", form.Get("userId"))
	assert.Equal(t, "签到", form.Get("attendanceType"))
	assert.Equal(t, "Building A", form.Get("address"))
	assert.Equal(t, "7", form.Get("resId"))
	assert.Equal(t, "DEVICE-0001", form.Get("UUID"))

	lng, err := strconv.ParseFloat(form.Get("longitude"), 64)
	require.NoError(t, err)
	lat, err := strconv.ParseFloat(form.Get("latitude"), 64)
	require.NoError(t, err)
	submitted := models.Point{Longitude: lng, Latitude: lat}
	assert.Equal(t, res.Point, submitted)
	assert.LessOrEqual(t, geo.Distance(siteA.Point(), submitted), 50.0*1.01)

	site, ok := s.Site()
	require.True(t, ok)
	assert.Equal(t, siteA, site)
}

func TestNilRadiusSubmitsExactSite(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckOut, "Building A"))
	s := h.login(t)

	res, err := s.CheckOut(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, siteA.Point(), res.Point)
	require.Len(t, h.remote.actions, 1)
	assert.Equal(t, "121", h.remote.actions[0].Get("longitude"))
	assert.Equal(t, "31", h.remote.actions[0].Get("latitude"))
	assert.Equal(t, "签退", h.remote.actions[0].Get("attendanceType"))
}

func TestSiteSelectionFetchesRemoteWhenNoneKnown(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.sites = []map[string]any{buildingA, buildingB}
	h.script.Choices = []int{1}
	s := h.login(t)

	res, err := s.CheckIn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Building B", res.Site.Address)

	require.Len(t, h.remote.siteQueries, 1)
	assert.Equal(t, "121", h.remote.siteQueries[0].Get("longitude"))
	assert.Equal(t, "31", h.remote.siteQueries[0].Get("latitude"))
	require.Len(t, h.script.Offered, 1)
	assert.Equal(t, []string{"Building A", "Building B"}, h.script.Offered[0])

	known, err := h.store.LoadSites()
	require.NoError(t, err)
	assert.Equal(t, []models.Site{siteA, siteB}, known)
	saved, err := h.store.SavedSiteAddress(models.CheckIn)
	require.NoError(t, err)
	assert.Equal(t, "Building B", saved)
}

func TestKnownSitesAreOfferedBeforeSearching(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSites([]models.Site{siteA, siteB}))
	h.script.Choices = []int{0}
	s := h.login(t)

	_, err := s.CheckOut(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, h.remote.siteQueries)

	saved, err := h.store.SavedSiteAddress(models.CheckOut)
	require.NoError(t, err)
	assert.Equal(t, "Building A", saved)
	checkin, err := h.store.SavedSiteAddress(models.CheckIn)
	require.NoError(t, err)
	assert.Empty(t, checkin, "each action keeps its own pointer")
}

func TestCheckOutLeavesSessionSiteAlone(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA, siteB}, models.CheckIn, "Building A"))
	require.NoError(t, h.store.SaveSavedSite(models.CheckOut, "Building B"))
	s := h.login(t)
	ctx := context.Background()

	_, err := s.CheckIn(ctx, nil)
	require.NoError(t, err)
	res, err := s.CheckOut(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Building B", res.Site.Address)

	site, ok := s.Site()
	require.True(t, ok)
	assert.Equal(t, "Building A", site.Address)
}

func TestStaleSavedSiteIsSelectedAgain(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Demolished"))
	h.script.Choices = []int{0}
	s := h.login(t)

	res, err := s.CheckIn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Building A", res.Site.Address)
	require.Len(t, h.script.Offered, 1)

	saved, err := h.store.SavedSiteAddress(models.CheckIn)
	require.NoError(t, err)
	assert.Equal(t, "Building A", saved)
}

func TestSiteSelectionCancelled(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.sites = []map[string]any{buildingA}
	h.script.Choices = []int{prompt.Cancel}
	s := h.login(t)

	_, err := s.CheckIn(context.Background(), nil)
	var notSelected *SiteNotSelectedError
	require.ErrorAs(t, err, &notSelected)
	assert.Equal(t, models.CheckIn, notSelected.Kind)
	assert.ErrorIs(t, err, prompt.ErrCancelled)
	assert.Empty(t, h.remote.actions)

	known, err := h.store.LoadSites()
	require.NoError(t, err)
	assert.Empty(t, known, "a cancelled choice saves nothing")
}

func TestNoSitesNearby(t *testing.T) {
	h := newHarness(t, nil)
	s := h.login(t)

	_, err := s.CheckIn(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSites)
	var notSelected *SiteNotSelectedError
	assert.ErrorAs(t, err, &notSelected)
	assert.Empty(t, h.remote.actions)
}

func TestLocatorFailureMeansNoSite(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Locator = &fixedLocator{err: prompt.ErrCancelled}
	})
	s := h.login(t)

	_, err := s.CheckIn(context.Background(), nil)
	var notSelected *SiteNotSelectedError
	require.ErrorAs(t, err, &notSelected)
	assert.Empty(t, h.remote.siteQueries)
}

func TestDiscoverSitesAtExplicitPoint(t *testing.T) {
	locator := &fixedLocator{}
	h := newHarness(t, func(o *Options) { o.Locator = locator })
	h.remote.sites = []map[string]any{buildingB}
	s := h.login(t)

	sites, err := s.DiscoverSites(context.Background(), &models.Point{Longitude: 120.5, Latitude: 30.25})
	require.NoError(t, err)
	assert.Equal(t, []models.Site{siteB}, sites)
	assert.Zero(t, locator.calls)
	assert.Equal(t, "120.5", h.remote.siteQueries[0].Get("longitude"))
	assert.Equal(t, "30.25", h.remote.siteQueries[0].Get("latitude"))
}

func TestRefusedActionIsReportedNotFailed(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.actionSuccess = false
	h.remote.actionMessage = "outside attendance hours"
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	s := h.login(t)

	res, err := s.CheckIn(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "outside attendance hours", res.Message)
}

func TestDeviceIDIsGeneratedOnce(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	s := h.login(t)
	ctx := context.Background()

	_, err := s.CheckIn(ctx, nil)
	require.NoError(t, err)
	_, err = s.CheckIn(ctx, nil)
	require.NoError(t, err)

	require.Len(t, h.remote.actions, 2)
	assert.Equal(t, "DEVICE-0001", h.remote.actions[0].Get("UUID"))
	assert.Equal(t, "DEVICE-0001", h.remote.actions[1].Get("UUID"))
	assert.Len(t, h.script.Asked, 1, "device id is asked for once")

	id, ok, err := h.store.DeviceID("phone-hash")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "DEVICE-0001", id)

	again := h.login(t)
	assert.Equal(t, "DEVICE-0001", again.DeviceID())
}

func TestDeviceIDEnteredByUser(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	h.script.Lines = []string{"A1B2C3D4-0000-4000-8000-000000000000"}
	s := h.login(t)

	_, err := s.CheckIn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "A1B2C3D4-0000-4000-8000-000000000000", h.remote.actions[0].Get("UUID"))
}

func TestNewDeviceIDFormat(t *testing.T) {
	id := NewDeviceID()
	assert.Regexp(t, `^[0-9A-F]{8}-[0-9A-F]{4}-4[0-9A-F]{3}-[89AB][0-9A-F]{3}-[0-9A-F]{12}$`, id)
}

func TestQueryHistory(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Now = func() time.Time { return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.Local) }
	})
	h.remote.history = []map[string]string{
		{"SIGNTIME": "2026-03-12", "SIGNINTIME": "08:55", "SIGNOUTTIME": "18:02"},
		{"SIGNTIME": "2026-03-13", "SIGNINTIME": "09:01", "SIGNOUTTIME": "-"},
	}
	s := h.login(t)
	ctx := context.Background()

	records, err := s.QueryHistory(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.AttendanceRecord{Date: "2026-03-13", SignIn: "09:01", SignOut: ""}, records[1])
	assert.Equal(t, "2026-03", h.remote.histories[0].Get("month"))
	assert.Equal(t, "42", h.remote.histories[0].Get("userId"))

	last, err := s.QueryHistory(ctx, "2026-02", true)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "2026-03-13", last[0].Date)
	assert.Equal(t, "2026-02", h.remote.histories[1].Get("month"))
}

func TestQueryHistoryEmptyMonth(t *testing.T) {
	h := newHarness(t, nil)
	s := h.login(t)

	records, err := s.QueryHistory(context.Background(), "2026-01", true)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryHistoryRejectsMalformedMonth(t *testing.T) {
	h := newHarness(t, nil)
	s := h.login(t)

	for _, month := range []string{"2026-13", "2026-1", "march", "2026/03"} {
		_, err := s.QueryHistory(context.Background(), month, false)
		assert.True(t, errors.Is(err, ErrInvalidMonth), month)
	}
	assert.Empty(t, h.remote.histories)
}

func TestReselectSite(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	h.remote.sites = []map[string]any{buildingA, buildingB}
	h.script.Choices = []int{1}
	s := h.login(t)
	require.True(t, s.EnsureSiteLoaded())

	site, err := s.ReselectSite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, siteB, site)

	current, ok := s.Site()
	require.True(t, ok)
	assert.Equal(t, siteB, current)
	saved, err := h.store.SavedSiteAddress(models.CheckIn)
	require.NoError(t, err)
	assert.Equal(t, "Building B", saved)
}

func TestEnsureSiteLoaded(t *testing.T) {
	h := newHarness(t, nil)
	s := h.login(t)
	assert.False(t, s.EnsureSiteLoaded())

	require.NoError(t, h.store.SaveSitesAndSelection([]models.Site{siteA}, models.CheckIn, "Building A"))
	assert.True(t, s.EnsureSiteLoaded())
	site, _ := s.Site()
	assert.Equal(t, siteA, site)
}
