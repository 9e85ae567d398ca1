package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound            = errors.New("roblox user not found")
	ErrUpstreamUnavailable = errors.New("roblox api unavailable")
)

// maxResponseBytes bounds how much of an upstream body is decoded.
const maxResponseBytes = 1 << 20

type ExternalUser struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// AvatarCache is an optional store for resolved avatar URLs.
type AvatarCache interface {
	GetAvatar(ctx context.Context, externalID int64) (string, bool, error)
	SetAvatar(ctx context.Context, externalID int64, url string) error
}

type Options struct {
	UsersURL      string
	ThumbnailsURL string
	Phrase        string
	Timeout       time.Duration
	Avatars       AvatarCache
	HTTPClient    *http.Client
}

// Client talks to the public Roblox users and thumbnails APIs. Every call is
// best effort: failures are logged and surface as "not found", false or an
// empty string.
type Client struct {
	httpClient    *http.Client
	usersURL      string
	thumbnailsURL string
	phrase        string
	avatars       AvatarCache
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		httpClient:    httpClient,
		usersURL:      strings.TrimRight(opts.UsersURL, "/"),
		thumbnailsURL: strings.TrimRight(opts.ThumbnailsURL, "/"),
		phrase:        strings.ToLower(opts.Phrase),
		avatars:       opts.Avatars,
	}
}

func (c *Client) Phrase() string {
	return c.phrase
}

// ResolveHandle maps a username to its platform account. A transport or
// upstream failure is reported as ErrNotFound wrapped together with
// ErrUpstreamUnavailable.
func (c *Client) ResolveHandle(ctx context.Context, username string) (*ExternalUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNotFound
	}

	body, err := json.Marshal(map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding lookup: %w", err)
	}

	var resp struct {
		Data []ExternalUser `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.usersURL+"/v1/usernames/users", bytes.NewReader(body), &resp); err != nil {
		slog.Warn("roblox username lookup failed", "component", "roblox", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].ID == 0 {
		return nil, ErrNotFound
	}

	user := resp.Data[0]
	return &user, nil
}

// IsVerified reports whether the account's profile description contains the
// verification phrase, ignoring case.
func (c *Client) IsVerified(ctx context.Context, externalID int64) bool {
	if c.phrase == "" {
		return false
	}

	var resp struct {
		Description string `json:"description"`
	}
	if err := c.do(ctx, http.MethodGet, c.usersURL+"/v1/users/"+strconv.FormatInt(externalID, 10), nil, &resp); err != nil {
		slog.Warn("roblox profile lookup failed", "component", "roblox", "external_id", externalID, "error", err)
		return false
	}

	return strings.Contains(strings.ToLower(resp.Description), c.phrase)
}

// AvatarURL returns the account's 150x150 headshot, or "" when unavailable.
func (c *Client) AvatarURL(ctx context.Context, externalID int64) string {
	if c.avatars != nil {
		if cached, ok, err := c.avatars.GetAvatar(ctx, externalID); err != nil {
			slog.Warn("avatar cache read failed", "component", "roblox", "error", err)
		} else if ok {
			return cached
		}
	}

	q := url.Values{}
	q.Set("userIds", strconv.FormatInt(externalID, 10))
	q.Set("size", "150x150")
	q.Set("format", "Png")
	q.Set("isCircular", "false")

	var resp struct {
		Data []struct {
			TargetID int64  `json:"targetId"`
			State    string `json:"state"`
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.thumbnailsURL+"/v1/users/avatar-headshot?"+q.Encode(), nil, &resp); err != nil {
		slog.Warn("roblox avatar lookup failed", "component", "roblox", "external_id", externalID, "error", err)
		return ""
	}
	if len(resp.Data) == 0 || resp.Data[0].ImageURL == "" {
		return ""
	}

	avatar := resp.Data[0].ImageURL
	if c.avatars != nil {
		if err := c.avatars.SetAvatar(ctx, externalID, avatar); err != nil {
			slog.Warn("avatar cache write failed", "component", "roblox", "error", err)
		}
	}
	return avatar
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrUpstreamUnavailable, err)
	}
	return nil
}
