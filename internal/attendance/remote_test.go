package attendance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/skyunix/goinspur/internal/config"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
	"github.com/skyunix/goinspur/internal/repository"
	"github.com/skyunix/goinspur/internal/transport"
)

type remoteUser struct {
	passwordHash string
	phone        string
	userID       any
	userName     string
}

// fakeRemote imitates the attendance API closely enough for session tests.
type fakeRemote struct {
	mu sync.Mutex

	users   map[string]remoteUser
	sites   []map[string]any
	history []map[string]string

	actionSuccess bool
	actionMessage string

	logins      []url.Values
	siteQueries []url.Values
	actions     []url.Values
	histories   []url.Values
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		users:         map[string]remoteUser{},
		actionSuccess: true,
		actionMessage: "ok",
	}
}

func (f *fakeRemote) addUser(phoneHash, passwordHash string, userID any, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[phoneHash] = remoteUser{passwordHash: passwordHash, phone: "138****0000", userID: userID, userName: name}
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var body any
	switch r.URL.Path {
	case pathLogin:
		f.logins = append(f.logins, r.PostForm)
		u, ok := f.users[r.PostForm.Get("userName")]
		if !ok || u.passwordHash != r.PostForm.Get("password") {
			body = map[string]any{"status": "fail", "erroInfo": "wrong phone or password"}
			break
		}
		body = map[string]any{
			"status": "success",
			"result": map[string]any{"PHONE": u.phone, "USER_ID": u.userID, "USER_NAME": u.userName},
		}
	case pathSites:
		f.siteQueries = append(f.siteQueries, r.URL.Query())
		body = map[string]any{"attendanceSites": f.sites}
	case pathAction:
		f.actions = append(f.actions, r.PostForm)
		body = map[string]any{"success": f.actionSuccess, "message": f.actionMessage}
	case pathHistory:
		f.histories = append(f.histories, r.URL.Query())
		body = map[string]any{"dgpage": f.history}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type harness struct {
	remote *fakeRemote
	store  *repository.ConfigStore
	script *prompt.Script
	client *Client
}

type fixedLocator struct {
	point models.Point
	err   error
	calls int
}

func (l *fixedLocator) Locate(ctx context.Context) (models.Point, error) {
	l.calls++
	return l.point, l.err
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	remote := newFakeRemote()
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	exec, err := transport.NewExecutor(transport.DefaultConfig(srv.URL), zerolog.Nop(),
		transport.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)
	t.Cleanup(exec.Close)

	path := filepath.Join(t.TempDir(), "config.yml")
	_, err = config.EnsureFile(path)
	require.NoError(t, err)
	store := repository.NewConfigStore(path, zerolog.Nop())

	script := &prompt.Script{}
	opts := Options{
		Executor:    exec,
		Store:       store,
		Prompter:    script,
		Locator:     &fixedLocator{point: models.Point{Longitude: 121.0, Latitude: 31.0}},
		NewDeviceID: func() string { return "DEVICE-0001" },
		Logger:      zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &harness{remote: remote, store: store, script: script, client: NewClient(opts)}
}

func (h *harness) login(t *testing.T) *Session {
	t.Helper()
	h.remote.addUser("phone-hash", "password-hash", 42, "Alice")
	s, err := h.client.Login(context.Background(), models.Credentials{PhoneHash: "phone-hash", PasswordHash: "password-hash"})
	require.NoError(t, err)
	return s
}

var buildingA = map[string]any{"id": 7, "address": "Building A", "latitude": "31.0", "longitude": 121.0}
var buildingB = map[string]any{"id": "8", "address": "Building B", "latitude": 31.001, "longitude": "121.001"}
