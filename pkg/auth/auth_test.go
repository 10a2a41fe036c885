package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsweep/pkg/errors"
)

type fixedStore map[string]string

func (s fixedStore) Get(name string) (string, error) {
	if v, ok := s[name]; ok {
		return v, nil
	}
	return "", errors.New(errors.ErrorTypeNotFound, "missing: "+name)
}

func TestEnvStore(t *testing.T) {
	t.Setenv("REELSWEEP_SHEET_ID", "env-sheet")

	s := &EnvStore{}
	v, err := s.Get(KeySheetID)
	require.NoError(t, err)
	assert.Equal(t, "env-sheet", v)

	_, err = s.Get(KeyCookiesFile)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}

func TestEnvStoreCustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_CREDENTIALS_FILE", "/tmp/creds.json")

	s := &EnvStore{Prefix: "MYAPP_"}
	v, err := s.Get(KeyCredentialsFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/creds.json", v)
}

func TestChainFirstHitWins(t *testing.T) {
	c := Chain{
		fixedStore{"sheet_id": "first"},
		fixedStore{"sheet_id": "second", "cookies_file": "/tmp/cookies.txt"},
	}

	v, err := c.Get(KeySheetID)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = c.Get(KeyCookiesFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cookies.txt", v)
}

func TestChainMiss(t *testing.T) {
	c := Chain{fixedStore{}}
	_, err := c.Get(KeySheetID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}
