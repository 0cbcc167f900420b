package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	keys map[string]*APIKeyInfo
}

func (m *mockRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	info, ok := m.keys[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return info, nil
}

func TestAuthenticate(t *testing.T) {
	pepper := []byte("pepper")
	hash := HashKey(pepper, "secret-key")
	repo := &mockRepo{keys: map[string]*APIKeyInfo{
		hash:     {ID: "default", KeyHash: hash, Scopes: []string{ScopeReadCustomers}},
		"broken": {ID: "broken", KeyHash: "zz"},
	}}
	a := NewAuthenticator(repo, pepper)

	info, err := a.Authenticate(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "default", info.ID)
	assert.True(t, info.HasScope(ScopeReadCustomers))
	assert.False(t, info.HasScope("write"))

	_, err = a.Authenticate(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewAuthenticator(repo, []byte("other")).Authenticate(context.Background(), "secret-key")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_StoredHashMismatch(t *testing.T) {
	pepper := []byte("pepper")
	hash := HashKey(pepper, "k")
	repo := &mockRepo{keys: map[string]*APIKeyInfo{
		hash: {ID: "stale", KeyHash: HashKey(pepper, "other")},
	}}

	_, err := NewAuthenticator(repo, pepper).Authenticate(context.Background(), "k")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHashKey_Deterministic(t *testing.T) {
	a := HashKey([]byte("p"), "key")
	assert.Equal(t, a, HashKey([]byte("p"), "key"))
	assert.NotEqual(t, a, HashKey([]byte("q"), "key"))
	assert.Len(t, a, 64)
}
