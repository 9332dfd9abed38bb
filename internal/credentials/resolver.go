// Package credentials decides which identity to log in with: the current
// one, a stored one picked by the user, or a newly entered one.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/attendance"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
	"github.com/skyunix/goinspur/internal/security"
)

var (
	ErrNoCredentials = errors.New("no usable credentials")
	ErrNoIdentities  = errors.New("no saved identities")
)

const defaultMaxAttempts = 3

const (
	itemAddNew = "Add new user"
	itemCancel = "Cancel"
)

type IdentityStore interface {
	LoadAll() ([]models.Identity, error)
	Upsert(phoneHash, passwordHash, name string) (models.Identity, error)
	SetCurrent(phoneHash, name string) error
	CurrentIdentity() (models.Identity, bool, error)
}

// Authenticator logs in with fingerprinted credentials. An
// *attendance.AuthenticationError means the credentials were rejected.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*attendance.Session, error)
}

// Resolution is the outcome of a successful resolution. Password holds the
// typed plaintext and is only set when the user entered one; it is never
// persisted.
type Resolution struct {
	Session   *attendance.Session
	Identity  models.Identity
	Password  string
	UsedSaved bool
}

type Resolver struct {
	store               IdentityStore
	auth                Authenticator
	prompt              prompt.Prompter
	defaultPasswordHash string
	maxAttempts         int
	log                 zerolog.Logger
}

type Option func(*Resolver)

// WithDefaultPassword sets the fingerprint tried once for new identities.
func WithDefaultPassword(hash string) Option {
	return func(r *Resolver) { r.defaultPasswordHash = security.EnsureFingerprint(hash) }
}

func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func NewResolver(store IdentityStore, auth Authenticator, p prompt.Prompter, log zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		auth:        auth,
		prompt:      p,
		maxAttempts: defaultMaxAttempts,
		log:         log.With().Str("component", "credentials").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve logs in with the current identity when there is one, otherwise
// lets the user pick a stored identity or add a new one.
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	current, ok, err := r.store.CurrentIdentity()
	if err != nil {
		r.log.Warn().Err(err).Msg("load current identity failed")
	}
	if ok {
		return r.loginStored(ctx, current, true)
	}

	all, err := r.store.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return r.addNew(ctx)
	}
	return r.choose(ctx, all)
}

// Switch lets the user pick another stored identity or add a new one.
func (r *Resolver) Switch(ctx context.Context) (*Resolution, error) {
	all, err := r.store.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoIdentities
	}
	return r.choose(ctx, all)
}

func (r *Resolver) choose(ctx context.Context, all []models.Identity) (*Resolution, error) {
	items := make([]string, 0, len(all)+2)
	for _, id := range all {
		items = append(items, id.Name)
	}
	items = append(items, itemAddNew, itemCancel)

	idx, err := r.prompt.Choose(ctx, "Select a user", items)
	if err != nil {
		return nil, err
	}
	switch {
	case idx >= 0 && idx < len(all):
		return r.loginStored(ctx, all[idx], false)
	case idx == len(all):
		return r.addNew(ctx)
	}
	return nil, prompt.ErrCancelled
}

// loginStored tries the stored fingerprints silently and falls back to
// asking for the password. isCurrent skips rewriting the current pointer.
func (r *Resolver) loginStored(ctx context.Context, id models.Identity, isCurrent bool) (*Resolution, error) {
	sess, err := r.auth.Login(ctx, id.Credentials())
	if err == nil {
		if !isCurrent {
			r.setCurrent(id.PhoneHash, id.Name)
		}
		return &Resolution{Session: sess, Identity: id, UsedSaved: true}, nil
	}
	if !isRejected(err) {
		return nil, err
	}
	r.log.Warn().Str("name", id.Name).Msg("saved credentials rejected, enter the password again")
	return r.reenter(ctx, id.PhoneHash, id.Name)
}

func (r *Resolver) addNew(ctx context.Context) (*Resolution, error) {
	phone, err := r.prompt.PromptLine(ctx, "Phone number")
	if err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrNoCredentials
	}
	phoneHash := security.Fingerprint(phone)

	all, err := r.store.LoadAll()
	if err != nil {
		r.log.Warn().Err(err).Msg("load identities failed")
	}
	for _, id := range all {
		if id.PhoneHash == phoneHash {
			r.log.Info().Str("name", id.Name).Msg("phone already saved, using the stored identity")
			return r.loginStored(ctx, id, false)
		}
	}

	if r.defaultPasswordHash != "" {
		creds := models.Credentials{PhoneHash: phoneHash, PasswordHash: r.defaultPasswordHash}
		sess, err := r.auth.Login(ctx, creds)
		if err == nil {
			id := r.persist(sess, creds, "")
			return &Resolution{Session: sess, Identity: id, UsedSaved: true}, nil
		}
		if !isRejected(err) {
			return nil, err
		}
		r.log.Warn().Msg("default password rejected")
	}
	return r.reenter(ctx, phoneHash, "")
}

// reenter asks for the password up to maxAttempts times. An empty answer
// uses up an attempt.
func (r *Resolver) reenter(ctx context.Context, phoneHash, name string) (*Resolution, error) {
	label := "Password"
	if name != "" {
		label = fmt.Sprintf("Password for %s", name)
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		remaining := r.maxAttempts - attempt
		password, err := r.prompt.PromptSecret(ctx, label)
		if err != nil {
			return nil, err
		}
		if password == "" {
			r.log.Warn().Int("remaining", remaining).Msg("empty password")
			continue
		}

		creds := models.Credentials{PhoneHash: phoneHash, PasswordHash: security.Fingerprint(password)}
		sess, err := r.auth.Login(ctx, creds)
		if err == nil {
			id := r.persist(sess, creds, name)
			return &Resolution{Session: sess, Identity: id, Password: password}, nil
		}
		if !isRejected(err) {
			return nil, err
		}
		r.log.Warn().Err(err).Int("remaining", remaining).Msg("login failed")
	}
	return nil, ErrNoCredentials
}

// persist saves creds and makes them current under the name the remote
// reports, falling back to name. Failures are logged; the returned identity
// reflects what was used even if it was not saved.
func (r *Resolver) persist(sess *attendance.Session, creds models.Credentials, name string) models.Identity {
	if u, ok := sess.User(); ok && u.UserName != "" {
		name = u.UserName
	}

	id, err := r.store.Upsert(creds.PhoneHash, creds.PasswordHash, name)
	if err != nil {
		r.log.Error().Err(err).Msg("save identity failed")
		id = models.Identity{Name: name, PhoneHash: creds.PhoneHash, PasswordHash: creds.PasswordHash}
	}
	r.setCurrent(creds.PhoneHash, name)
	return id
}

func (r *Resolver) setCurrent(phoneHash, name string) {
	if err := r.store.SetCurrent(phoneHash, name); err != nil {
		r.log.Error().Err(err).Msg("save current identity failed")
	}
}

func isRejected(err error) bool {
	var authErr *attendance.AuthenticationError
	return errors.As(err, &authErr)
}
