package models

type Identity struct {
	ID           int
	Name         string
	PhoneHash    string
	PasswordHash string
}

// Credentials are the fingerprinted values the remote login endpoint expects.
type Credentials struct {
	PhoneHash    string
	PasswordHash string
}

func (i Identity) Credentials() Credentials {
	return Credentials{PhoneHash: i.PhoneHash, PasswordHash: i.PasswordHash}
}

// RemoteUser is the account the remote system reports after a successful login.
type RemoteUser struct {
	Phone    string
	UserID   string
	UserName string
}

// DeviceBinding is the result of resolving the device id for one identity.
// PersistErr is set when a freshly generated id could not be saved; ID is
// still usable in that case.
type DeviceBinding struct {
	ID         string
	Created    bool
	PersistErr error
}
