package auth

import (
	"os"
	"time"
)

const (
	// EnvAccount is the name the environment account is listed under
	EnvAccount = "env"

	envConsumerKey    = "ENGAGEDL_CONSUMER_KEY"
	envConsumerSecret = "ENGAGEDL_CONSUMER_SECRET"
)

// EnvironmentStore reads one read-only account from ENGAGEDL_CONSUMER_KEY
// and ENGAGEDL_CONSUMER_SECRET.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. Only the empty name and
// EnvAccount match.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	if name != "" && name != EnvAccount {
		return nil, ErrCredentialsNotFound
	}
	key := os.Getenv(envConsumerKey)
	secret := os.Getenv(envConsumerSecret)
	if key == "" || secret == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:           EnvAccount,
		ConsumerKey:    key,
		ConsumerSecret: secret,
		LastModified:   time.Now(),
	}, nil
}

// List returns the environment account if one is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	if name != "" && name != EnvAccount {
		return false
	}
	return os.Getenv(envConsumerKey) != "" && os.Getenv(envConsumerSecret) != ""
}
