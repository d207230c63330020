package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/akeil/notemd"
)

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}

	require.NoError(t, SaveToken(path, tok))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, loaded.AccessToken)
	assert.Equal(t, tok.RefreshToken, loaded.RefreshToken)
	assert.True(t, loaded.Valid())
}

func TestTokenSourceMissingCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")
	_, err := TokenSource(context.Background(), "client", path)
	assert.True(t, notemd.IsUnauthenticated(err))
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("raw").Token()
	require.NoError(t, err)
	assert.Equal(t, "raw", tok.AccessToken)
}

func TestLoginURL(t *testing.T) {
	u, state := LoginURL("client-id")
	assert.NotEmpty(t, state)
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state="+state)
}
