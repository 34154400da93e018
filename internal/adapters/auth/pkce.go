// Package auth implements the PKCE authorization-code flow against the
// catalog's accounts service and keeps the catalog token store fresh.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// DefaultAccountsURL is the accounts service root.
const DefaultAccountsURL = "https://accounts.spotify.com"

// DefaultScopes are requested on every authorization.
var DefaultScopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"streaming",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-library-read",
	"user-read-email",
	"user-read-private",
}

const verifierLength = 128

var (
	// ErrNoPendingAuthorization is returned by HandleCallback when no
	// authorization URL was issued first.
	ErrNoPendingAuthorization = errors.New("auth: no pending authorization")
	// ErrStateMismatch is returned when the callback state differs from the issued one.
	ErrStateMismatch = errors.New("auth: state mismatch")
	// ErrNoRefreshToken is returned by Refresh before any login.
	ErrNoRefreshToken = errors.New("auth: no refresh token")
)

// CallbackError carries the error the accounts service put on the redirect.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description == "" {
		return "auth: authorization denied: " + e.Code
	}
	return fmt.Sprintf("auth: authorization denied: %s: %s", e.Code, e.Description)
}

// Config describes the registered client.
type Config struct {
	ClientID    string
	RedirectURL string
	AccountsURL string
	Scopes      []string
	// HTTPClient is used for token endpoint calls; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Flow runs authorization and refresh, pushing every new access token into
// the sink.
type Flow struct {
	oauth      *oauth2.Config
	sink       ports.TokenSink
	httpClient *http.Client
	logger     logrus.FieldLogger
	group      singleflight.Group

	mu           sync.Mutex
	verifier     string
	state        string
	refreshToken string
}

// NewFlow builds a flow for cfg.
func NewFlow(cfg Config, sink ports.TokenSink, logger logrus.FieldLogger) *Flow {
	accounts := strings.TrimRight(cfg.AccountsURL, "/")
	if accounts == "" {
		accounts = DefaultAccountsURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Flow{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:  accounts + "/authorize",
				TokenURL: accounts + "/api/token",
				// public client: client_id goes in the form body, never a Basic header
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
		},
		sink:       sink,
		httpClient: cfg.HTTPClient,
		logger:     logger,
	}
}

// AuthorizationURL starts a new authorization and returns the consent URL.
// It replaces any authorization still pending.
func (f *Flow) AuthorizationURL() (string, error) {
	verifier, err := randomString(verifierLength)
	if err != nil {
		return "", fmt.Errorf("auth: generate verifier: %w", err)
	}
	state, err := randomString(32)
	if err != nil {
		return "", fmt.Errorf("auth: generate state: %w", err)
	}

	f.mu.Lock()
	f.verifier = verifier
	f.state = state
	f.mu.Unlock()

	return f.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// HandleCallback consumes the redirect URL returned by the consent screen,
// exchanges the code and stores the resulting tokens.
func (f *Flow) HandleCallback(ctx context.Context, callbackURL string) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("auth: parse callback: %w", err)
	}
	q := u.Query()
	if code := q.Get("error"); code != "" {
		f.reset()
		return &CallbackError{Code: code, Description: q.Get("error_description")}
	}

	code := q.Get("code")
	if code == "" {
		return fmt.Errorf("auth: callback has neither code nor error")
	}

	f.mu.Lock()
	verifier, state := f.verifier, f.state
	f.mu.Unlock()
	if verifier == "" {
		return ErrNoPendingAuthorization
	}
	if got := q.Get("state"); got != state {
		return ErrStateMismatch
	}

	tok, err := f.oauth.Exchange(f.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("auth: exchange code: %w", err)
	}
	f.reset()
	f.store(tok)
	f.logger.Info("auth: authorization complete")
	return nil
}

// SetRefreshToken seeds the flow with a refresh token saved elsewhere.
func (f *Flow) SetRefreshToken(token string) {
	f.mu.Lock()
	f.refreshToken = token
	f.mu.Unlock()
}

// RefreshToken returns the current refresh token, if any.
func (f *Flow) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshToken
}

// Refresh trades the refresh token for a new access token. Concurrent
// callers share one token endpoint request.
func (f *Flow) Refresh(ctx context.Context) error {
	_, err, _ := f.group.Do("refresh", func() (any, error) {
		refresh := f.RefreshToken()
		if refresh == "" {
			return nil, ErrNoRefreshToken
		}

		src := f.oauth.TokenSource(f.clientContext(ctx), &oauth2.Token{
			RefreshToken: refresh,
			Expiry:       time.Unix(1, 0),
		})
		tok, err := src.Token()
		if err != nil {
			return nil, fmt.Errorf("auth: refresh: %w", err)
		}
		f.store(tok)
		f.logger.Debug("auth: access token refreshed")
		return nil, nil
	})
	return err
}

// Logout forgets every token.
func (f *Flow) Logout() {
	f.mu.Lock()
	f.refreshToken = ""
	f.verifier = ""
	f.state = ""
	f.mu.Unlock()
	f.sink.Clear()
}

func (f *Flow) store(tok *oauth2.Token) {
	expiresIn := time.Duration(0)
	if !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry)
	}
	f.sink.SetAccessToken(tok.AccessToken, expiresIn)

	// the service only sometimes rotates the refresh token
	if tok.RefreshToken != "" {
		f.SetRefreshToken(tok.RefreshToken)
	}
}

func (f *Flow) reset() {
	f.mu.Lock()
	f.verifier = ""
	f.state = ""
	f.mu.Unlock()
}

func (f *Flow) clientContext(ctx context.Context) context.Context {
	if f.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// randomString returns n characters from the RFC 7636 unreserved set.
func randomString(n int) (string, error) {
	return randomStringFrom(rand.Reader, n)
}

// randomStringFrom draws n uniform characters from src. Bytes at or above
// the largest multiple of the alphabet size are discarded.
func randomStringFrom(src io.Reader, n int) (string, error) {
	limit := 256 - 256%len(verifierAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, verifierAlphabet[int(b)%len(verifierAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// KeepFresh refreshes the access token shortly before expiresAt reports it
// will lapse, until ctx is done. Failures are logged and retried on the next
// pass.
func (f *Flow) KeepFresh(ctx context.Context, expiresAt func() time.Time, margin time.Duration) {
	const idle = time.Minute

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := idle
		if f.RefreshToken() != "" {
			until := time.Until(expiresAt()) - margin
			if until <= 0 {
				if err := f.Refresh(ctx); err != nil {
					f.logger.Warnf("auth: background refresh failed: %v", err)
				} else {
					until = time.Until(expiresAt()) - margin
				}
			}
			if until > 0 && until < wait {
				wait = until
			}
		}
		timer.Reset(wait)
	}
}
