package platform

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// expiryLeeway is how long before the access token's exp claim the client
// refreshes it.
const expiryLeeway = 30 * time.Second

type tokenPair struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func newTokenPair() *tokenPair {
	return &tokenPair{}
}

func (t *tokenPair) set(access, refresh string) {
	t.mu.Lock()
	t.access = access
	if refresh != "" {
		t.refresh = refresh
	}
	t.mu.Unlock()
}

func (t *tokenPair) get() (string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.access, t.refresh
}

// accessToken returns a usable access token, refreshing or re-logging in
// when the current one is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	access, _ := c.tokens.get()
	if access != "" && !tokenExpiring(access) {
		return access, nil
	}

	if err := c.refreshAccess(ctx); err != nil {
		return "", err
	}

	access, _ = c.tokens.get()
	return access, nil
}

// refreshAccess exchanges the refresh token for a new access token, falling
// back to a full login when the refresh token itself is rejected.
func (c *Client) refreshAccess(ctx context.Context) error {
	_, refresh := c.tokens.get()
	if refresh == "" {
		return c.Login(ctx)
	}

	var out struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refresh}
	if err := c.do(ctx, http.MethodPost, "/auth/login/refresh/", nil, body, &out, false); err != nil {
		c.log.Warnf("token refresh failed, re-logging in: %s", err)
		if err := c.Login(ctx); err != nil {
			return errors.Wrap(err, "refresh access")
		}
		return nil
	}

	c.tokens.set(out.Access, "")
	c.persistTokens()
	return nil
}

// tokenExpiring parses the token's exp claim without verifying the
// signature; the platform is the only party that validates tokens.
func tokenExpiring(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return true
	}
	return time.Now().Add(expiryLeeway).Unix() >= int64(exp)
}
