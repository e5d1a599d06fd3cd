package engagement

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	errs "engagedl/pkg/errors"
	"engagedl/pkg/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials is the consumer key and secret of an API application
type Credentials struct {
	Key    string
	Secret string
}

// TokenState is either unauthenticated (the zero value) or holds a
// bearer token.
type TokenState struct {
	token string
}

// Authenticated returns the state holding token
func Authenticated(token string) TokenState {
	return TokenState{token: token}
}

// IsAuthenticated reports whether a bearer token is held
func (s TokenState) IsAuthenticated() bool {
	return s.token != ""
}

// Token returns the bearer token, empty when unauthenticated
func (s TokenState) Token() string {
	return s.token
}

// AcquireToken exchanges the credentials for a bearer token using the
// client-credentials grant. It never caches and never retries.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     c.creds.Key,
		ClientSecret: c.creds.Secret,
		TokenURL:     c.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	c.tokenRequests++
	start := time.Now()
	tok, err := cfg.Token(ctx)
	duration := time.Since(start)

	if err != nil {
		apiErr := tokenError(err)
		metrics.ObserveRequest("token", apiErr.Code, duration)
		c.logger.ErrorWithFields("Failed to obtain bearer token", map[string]interface{}{
			"status":   apiErr.Code,
			"reason":   apiErr.Reason,
			"errors":   apiErr.Details,
			"duration": duration,
		})
		return "", apiErr
	}

	metrics.ObserveRequest("token", http.StatusOK, duration)
	c.logger.Info("Obtained bearer token")
	return tok.AccessToken, nil
}

// Acquire is the transition from an unauthenticated state to an
// authenticated one. An authenticated state is returned unchanged.
func (c *Client) Acquire(ctx context.Context, state TokenState) (TokenState, error) {
	if state.IsAuthenticated() {
		return state, nil
	}
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return state, err
	}
	return Authenticated(token), nil
}

// Authenticate moves the client into the authenticated state. Calling it
// again once authenticated does nothing.
func (c *Client) Authenticate(ctx context.Context) error {
	state, err := c.Acquire(ctx, c.state)
	if err != nil {
		return err
	}
	c.state = state
	return nil
}

// State returns the current token state
func (c *Client) State() TokenState {
	return c.state
}

// TokenRequests returns how many times the token endpoint was called
func (c *Client) TokenRequests() int {
	return c.tokenRequests
}

// tokenError converts an oauth2 failure into a typed auth error
func tokenError(err error) *errs.Error {
	var re *oauth2.RetrieveError
	if stderrors.As(err, &re) && re.Response != nil {
		apiErr := errs.FromStatus(re.Response.StatusCode, "token request failed", re.Body)
		apiErr.Type = errs.ErrorTypeAuth
		if len(apiErr.Details) == 0 && re.ErrorDescription != "" {
			apiErr.Details = []string{re.ErrorDescription}
		}
		return apiErr
	}
	return errs.Wrap(errs.ErrorTypeAuth, "token request failed", err)
}
