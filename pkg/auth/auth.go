// Package auth supplies bearer tokens for the notebook service.
//
// Interactive credential acquisition is out of scope here: this package
// only loads a previously obtained token from a cache file (or wraps a
// raw access token) and hands out a self-refreshing token source. The
// login URL helper exists so a caller can point the user at the consent
// page and store the resulting token with SaveToken.
package auth

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/akeil/notemd"
)

// RedirectURL is the local address the consent page sends the
// authorization code to.
const RedirectURL = "http://localhost:8400"

var scopes = []string{"Notes.Read", "offline_access"}

// Config returns the OAuth2 configuration for the consumer endpoint of
// the notebook service.
func Config(clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    microsoft.AzureADEndpoint("consumers"),
		RedirectURL: RedirectURL,
		Scopes:      scopes,
	}
}

// LoginURL builds the browser URL for the consent page, with a random
// state parameter. Returns the URL and the state.
func LoginURL(clientID string) (string, string) {
	state := uuid.New().String()
	return Config(clientID).AuthCodeURL(state), state
}

// StaticToken wraps a raw access token, e.g. from an environment
// variable. The token is used as-is and never refreshed.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// TokenSource loads the cached token from path and returns a token
// source that refreshes it as needed.
func TokenSource(ctx context.Context, clientID, path string) (oauth2.TokenSource, error) {
	tok, err := LoadToken(path)
	if err != nil {
		return nil, notemd.NewUnauthenticated("no cached token at %q: %v", path, err)
	}
	return Config(clientID).TokenSource(ctx, tok), nil
}

// LoadToken reads a token from the cache file.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tok oauth2.Token
	err = json.NewDecoder(f).Decode(&tok)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// SaveToken writes a token to the cache file.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(tok)
}
