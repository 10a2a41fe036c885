package auth

import (
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"reelsweep/pkg/errors"
)

// Well-known secret names components look up.
const (
	KeySheetID         = "sheet_id"
	KeyCredentialsFile = "credentials_file"
	KeyCookiesFile     = "cookies_file"
)

// Store resolves named secrets. Implementations return
// ErrorTypeNotFound when the name is unknown to them.
type Store interface {
	Get(name string) (string, error)
}

// KeyringStore reads secrets from the OS keyring.
type KeyringStore struct {
	// Service is the keyring service name. Default "reelsweep".
	Service string
}

func (s *KeyringStore) Get(name string) (string, error) {
	service := s.Service
	if service == "" {
		service = "reelsweep"
	}
	v, err := keyring.Get(service, name)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeNotFound, "secret not in keyring: "+name, err)
	}
	return v, nil
}

// EnvStore reads secrets from environment variables. The name
// "sheet_id" maps to "<PREFIX>SHEET_ID".
type EnvStore struct {
	// Prefix defaults to "REELSWEEP_".
	Prefix string
}

func (s *EnvStore) Get(name string) (string, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "REELSWEEP_"
	}
	v := os.Getenv(prefix + strings.ToUpper(name))
	if v == "" {
		return "", errors.New(errors.ErrorTypeNotFound, "secret not in environment: "+name)
	}
	return v, nil
}

// Chain tries each store in order and returns the first hit.
type Chain []Store

func (c Chain) Get(name string) (string, error) {
	for _, s := range c {
		if v, err := s.Get(name); err == nil && v != "" {
			return v, nil
		}
	}
	return "", errors.New(errors.ErrorTypeNotFound, "secret not found: "+name)
}

// DefaultChain resolves from the environment first, then the keyring.
func DefaultChain() Chain {
	return Chain{&EnvStore{}, &KeyringStore{}}
}
