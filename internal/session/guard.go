package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

var ErrSessionInvalid = errors.New("session invalid")

const DefaultTimeout = 10 * time.Second

// ProfileView shows who is signed in. The guard calls it once per successful
// validation.
type ProfileView interface {
	ShowIdentity(id protocol.Identity)
}

type profile struct {
	ID       protocol.ID `json:"id"`
	UserID   protocol.ID `json:"user_id"`
	Username string      `json:"username"`
}

// Guard checks that the stored session is still accepted by the server before
// any channel is opened.
type Guard struct {
	client  *http.Client
	url     string
	view    ProfileView
	timeout time.Duration
	log     *zap.Logger
}

// NewGuard validates against profileURL with client, which must carry the
// session cookie. view may be nil.
func NewGuard(client *http.Client, profileURL string, view ProfileView, log *zap.Logger) *Guard {
	return &Guard{
		client:  client,
		url:     profileURL,
		view:    view,
		timeout: DefaultTimeout,
		log:     log.Named("session"),
	}
}

// Validate performs one profile request. Any transport failure or non-2xx
// answer yields ErrSessionInvalid; the caller must not retry.
func (g *Guard) Validate(ctx context.Context) (protocol.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return protocol.Identity{}, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("profile request failed", zap.String("url", g.url), zap.Error(err))
		return protocol.Identity{}, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		g.log.Info("session rejected", zap.String("url", g.url), zap.Int("status", resp.StatusCode))
		return protocol.Identity{}, fmt.Errorf("%w: status %d", ErrSessionInvalid, resp.StatusCode)
	}

	var p profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		g.log.Warn("profile unreadable", zap.Error(err))
		return protocol.Identity{}, fmt.Errorf("%w: profile: %v", ErrSessionInvalid, err)
	}
	id := protocol.Identity{ID: p.ID, Username: p.Username}
	if id.ID == "" {
		id.ID = p.UserID
	}
	if id.ID == "" {
		return protocol.Identity{}, fmt.Errorf("%w: profile without id", ErrSessionInvalid)
	}

	g.log.Info("session valid", zap.String("user_id", string(id.ID)), zap.String("username", id.Username))
	if g.view != nil {
		g.view.ShowIdentity(id)
	}
	return id, nil
}

// NewHTTPClient returns a client whose jar holds cookie for server. The same
// client authenticates the profile request and the channel upgrade, so it
// has no overall timeout; requests bound themselves with contexts.
func NewHTTPClient(server *url.URL, cookie *http.Cookie) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if cookie != nil {
		c := *cookie
		if c.Path == "" {
			c.Path = "/"
		}
		jar.SetCookies(server, []*http.Cookie{&c})
	}
	return &http.Client{Jar: jar}, nil
}
