// Package repository persists identities, device bindings and attendance
// sites in the application's YAML file.
package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/skyunix/goinspur/internal/config"
	"github.com/skyunix/goinspur/internal/models"
)

const (
	keyCurrentUser  = "app_data.current_user"
	keySavedUsers   = "app_data.saved_users"
	keyClientUUIDs  = "app_data.client_uuids"
	keySites        = "app_data.attendance_data.sites"
	keyCheckinSite  = "app_data.attendance_data.checkin_site_address"
	keyCheckoutSite = "app_data.attendance_data.checkout_site_address"
	keyLocation     = "user_config.default_location"
)

type userRecord struct {
	ID           int    `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	PhoneHash    string `mapstructure:"phone_hash"`
	PasswordHash string `mapstructure:"password_hash"`
}

type siteRecord struct {
	ID        string  `mapstructure:"id"`
	Address   string  `mapstructure:"address"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// ConfigStore reads the whole file on every call and rewrites it on every
// mutation. It has no locking: running two processes against the same file
// is unsupported and the last writer wins.
type ConfigStore struct {
	path string
	log  zerolog.Logger
}

func NewConfigStore(path string, log zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		path: path,
		log:  log.With().Str("component", "store").Logger(),
	}
}

func (s *ConfigStore) Path() string {
	return s.path
}

func (s *ConfigStore) read() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.SetConfigPermissions(0o600)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

func (s *ConfigStore) write(v *viper.Viper) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	return v.WriteConfigAs(s.path)
}

// update applies fn to a freshly read copy of the file and writes it back.
func (s *ConfigStore) update(op string, fn func(v *viper.Viper) error) error {
	v, err := s.read()
	if err != nil {
		return persistErr(op, err)
	}
	if err := fn(v); err != nil {
		return persistErr(op, err)
	}
	if err := s.write(v); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("write store failed")
		return persistErr(op, err)
	}
	return nil
}

func (s *ConfigStore) users(v *viper.Viper) ([]userRecord, error) {
	var records []userRecord
	if err := v.UnmarshalKey(keySavedUsers, &records); err != nil {
		return nil, fmt.Errorf("decode saved users: %w", err)
	}
	return records, nil
}

func setUsers(v *viper.Viper, records []userRecord) {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"id":            r.ID,
			"name":          r.Name,
			"phone_hash":    r.PhoneHash,
			"password_hash": r.PasswordHash,
		})
	}
	v.Set(keySavedUsers, out)
}

// LoadAll returns the stored identities in file order.
func (s *ConfigStore) LoadAll() ([]models.Identity, error) {
	v, err := s.read()
	if err != nil {
		return nil, persistErr("load identities", err)
	}
	records, err := s.users(v)
	if err != nil {
		return nil, persistErr("load identities", err)
	}

	out := make([]models.Identity, 0, len(records))
	for _, r := range records {
		out = append(out, models.Identity{
			ID:           r.ID,
			Name:         r.Name,
			PhoneHash:    r.PhoneHash,
			PasswordHash: r.PasswordHash,
		})
	}
	return out, nil
}

// Upsert creates the identity keyed by phoneHash or updates its name and
// password. New identities get max(id)+1.
func (s *ConfigStore) Upsert(phoneHash, passwordHash, name string) (models.Identity, error) {
	if phoneHash == "" {
		return models.Identity{}, persistErr("save identity", errors.New("phone hash required"))
	}

	var saved models.Identity
	err := s.update("save identity", func(v *viper.Viper) error {
		records, err := s.users(v)
		if err != nil {
			return err
		}

		maxID := 0
		for i := range records {
			if records[i].ID > maxID {
				maxID = records[i].ID
			}
			if records[i].PhoneHash == phoneHash {
				records[i].Name = name
				records[i].PasswordHash = passwordHash
				saved = toIdentity(records[i])
				setUsers(v, records)
				return nil
			}
		}

		r := userRecord{ID: maxID + 1, Name: name, PhoneHash: phoneHash, PasswordHash: passwordHash}
		records = append(records, r)
		saved = toIdentity(r)
		setUsers(v, records)
		return nil
	})
	if err != nil {
		return models.Identity{}, err
	}
	s.log.Info().Int("identity_id", saved.ID).Str("name", saved.Name).Msg("identity saved")
	return saved, nil
}

// SetCurrent points the current user at phoneHash. An empty name is looked
// up from the stored identity.
func (s *ConfigStore) SetCurrent(phoneHash, name string) error {
	err := s.update("set current identity", func(v *viper.Viper) error {
		if name == "" && phoneHash != "" {
			records, err := s.users(v)
			if err != nil {
				return err
			}
			for _, r := range records {
				if r.PhoneHash == phoneHash {
					name = r.Name
					break
				}
			}
			if name == "" {
				return ErrIdentityNotFound
			}
		}
		v.Set(keyCurrentUser, name)
		return nil
	})
	if err != nil {
		return err
	}
	if name != "" {
		s.log.Info().Str("name", name).Msg("current identity changed")
	}
	return nil
}

// Current returns the current user pointer, empty when unset.
func (s *ConfigStore) Current() (string, error) {
	v, err := s.read()
	if err != nil {
		return "", persistErr("load current identity", err)
	}
	return v.GetString(keyCurrentUser), nil
}

// CurrentIdentity resolves the current pointer. ok is false when the pointer
// is unset or names no stored identity.
func (s *ConfigStore) CurrentIdentity() (models.Identity, bool, error) {
	current, err := s.Current()
	if err != nil || current == "" {
		return models.Identity{}, false, err
	}
	all, err := s.LoadAll()
	if err != nil {
		return models.Identity{}, false, err
	}
	for _, id := range all {
		if id.Name == current {
			return id, true, nil
		}
	}
	return models.Identity{}, false, nil
}

func toIdentity(r userRecord) models.Identity {
	return models.Identity{ID: r.ID, Name: r.Name, PhoneHash: r.PhoneHash, PasswordHash: r.PasswordHash}
}

// SaveDefaultLocation stores the coordinates used to search for sites.
func (s *ConfigStore) SaveDefaultLocation(p models.Point) error {
	return s.update("save default location", func(v *viper.Viper) error {
		v.Set(keyLocation, config.FormatLocation(p))
		return nil
	})
}
