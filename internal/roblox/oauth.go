package roblox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

var ErrOAuthDisabled = errors.New("roblox oauth is not configured")

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	Timeout      time.Duration
}

// Identity is the account an OAuth callback authenticated.
type Identity struct {
	ExternalUserID int64
	Username       string
	DisplayName    string
	Picture        string
}

// OAuthProvider runs the authorization code flow against Roblox OAuth 2.0.
type OAuthProvider struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	if cfg.ClientID == "" {
		return nil
	}
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled is safe to call on a nil provider.
func (p *OAuthProvider) Enabled() bool {
	return p != nil
}

func (p *OAuthProvider) AuthCodeURL(state string) (string, error) {
	if !p.Enabled() {
		return "", ErrOAuthDisabled
	}
	return p.config.AuthCodeURL(state), nil
}

// Exchange trades the authorization code for a token and fetches the
// authenticated account from the userinfo endpoint.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	if !p.Enabled() {
		return nil, ErrOAuthDisabled
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var claims struct {
		Sub               string `json:"sub"`
		Name              string `json:"name"`
		Nickname          string `json:"nickname"`
		PreferredUsername string `json:"preferred_username"`
		Picture           string `json:"picture"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}

	id, err := strconv.ParseInt(claims.Sub, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("userinfo subject %q is not a user id", claims.Sub)
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Name
	}
	displayName := claims.Nickname
	if displayName == "" {
		displayName = claims.Name
	}

	return &Identity{
		ExternalUserID: id,
		Username:       username,
		DisplayName:    displayName,
		Picture:        claims.Picture,
	}, nil
}
