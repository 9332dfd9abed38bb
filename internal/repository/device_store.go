package repository

import (
	"errors"

	"github.com/spf13/viper"

	"github.com/skyunix/goinspur/internal/models"
)

// DeviceID returns the device id bound to phoneHash.
func (s *ConfigStore) DeviceID(phoneHash string) (string, bool, error) {
	v, err := s.read()
	if err != nil {
		return "", false, persistErr("load device id", err)
	}
	id := v.GetStringMapString(keyClientUUIDs)[phoneHash]
	return id, id != "", nil
}

func (s *ConfigStore) SetDeviceID(phoneHash, deviceID string) error {
	if phoneHash == "" || deviceID == "" {
		return persistErr("save device id", errors.New("phone hash and device id required"))
	}
	return s.update("save device id", func(v *viper.Viper) error {
		bindings := map[string]any{}
		for k, val := range v.GetStringMapString(keyClientUUIDs) {
			bindings[k] = val
		}
		bindings[phoneHash] = deviceID
		v.Set(keyClientUUIDs, bindings)
		return nil
	})
}

// EnsureDeviceBinding returns the bound device id, generating and saving one
// when absent. A save failure is reported in PersistErr and the generated
// id is still returned.
func (s *ConfigStore) EnsureDeviceBinding(phoneHash string, generate func() string) models.DeviceBinding {
	id, ok, err := s.DeviceID(phoneHash)
	if err == nil && ok {
		return models.DeviceBinding{ID: id}
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("read device binding failed, generating a new one")
	}

	id = generate()
	binding := models.DeviceBinding{ID: id, Created: true}
	if err := s.SetDeviceID(phoneHash, id); err != nil {
		binding.PersistErr = err
	}
	return binding
}
