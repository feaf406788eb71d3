package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/btouchard/scout/internal/metrics"
)

type token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// exchange trades a refresh token for an access token. The provider may or
// may not rotate the refresh token; the old one is kept when it does not.
func (c *Client) exchange(ctx context.Context, refresh string) (tok *token, err error) {
	defer func() { metrics.TokenExchange(err == nil) }()

	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	ot, err := c.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			metrics.DriveRequest("token", re.Response.StatusCode)
			return nil, &APIError{Op: "token", StatusCode: re.Response.StatusCode, Body: string(re.Body)}
		}
		metrics.DriveRequest("token", 0)
		return nil, fmt.Errorf("token request: %w", err)
	}
	metrics.DriveRequest("token", http.StatusOK)

	tok = &token{
		AccessToken:  ot.AccessToken,
		RefreshToken: ot.RefreshToken,
		ExpiresAt:    ot.Expiry,
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refresh
	}
	return tok, nil
}
