// Package credential resolves short-lived bearer tokens for the spreadsheet
// backend from Google service-account credentials.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"golang.org/x/oauth2"
	oauthjwt "golang.org/x/oauth2/jwt"
)

// Scopes needed to read and append rows and to add worksheets.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

const assertionLifetime = time.Hour

// ServiceAccount exchanges a signed JWT assertion for an access token.
// It keeps no token cache; every call to Token performs a round trip.
type ServiceAccount struct {
	email      string
	conf       *oauthjwt.Config
	httpClient *http.Client
}

// Option customises a ServiceAccount.
type Option func(*ServiceAccount)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(sa *ServiceAccount) { sa.httpClient = c }
}

// NewServiceAccount validates the credentials. privateKeyPEM must already have
// literal "\n" sequences normalised; a key that still contains them does not
// parse and is reported as a configuration error.
func NewServiceAccount(email, privateKeyPEM string, scopes []string, tokenURL string, opts ...Option) (*ServiceAccount, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: service account email is not set", storeerr.ErrConfiguration)
	}
	if strings.TrimSpace(privateKeyPEM) == "" {
		return nil, fmt.Errorf("%w: service account private key is not set", storeerr.ErrConfiguration)
	}
	if strings.Contains(privateKeyPEM, `\n`) {
		return nil, fmt.Errorf("%w: private key contains escaped newlines", storeerr.ErrConfiguration)
	}
	// The exchange parses the key again on every call; checking it here turns
	// a bad key into a startup failure.
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM)); err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", storeerr.ErrConfiguration, err)
	}
	if tokenURL == "" {
		return nil, fmt.Errorf("%w: token URL is not set", storeerr.ErrConfiguration)
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	conf := &oauthjwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKeyPEM),
		Scopes:     scopes,
		TokenURL:   tokenURL,
		Expires:    assertionLifetime,
	}
	sa := &ServiceAccount{email: email, conf: conf, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(sa)
	}
	return sa, nil
}

// Email returns the service account's client email.
func (sa *ServiceAccount) Email() string { return sa.email }

// Token performs the JWT-bearer exchange. A 4xx answer means the endpoint
// rejected the credentials and is a configuration error; transport failures
// and 5xx answers are read failures.
func (sa *ServiceAccount) Token(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, sa.httpClient)
	tok, err := sa.conf.TokenSource(ctx).Token()
	if err != nil {
		return nil, classify(err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", storeerr.ErrStorageRead)
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return tok, nil
}

func classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		status := re.Response.StatusCode
		if status >= 400 && status < 500 {
			return fmt.Errorf("%w: token endpoint rejected credentials: %v", storeerr.ErrConfiguration, err)
		}
		return fmt.Errorf("%w: token endpoint returned %d: %v", storeerr.ErrStorageRead, status, err)
	}
	return fmt.Errorf("%w: token exchange: %v", storeerr.ErrStorageRead, err)
}

// RequestHeaders returns the headers that authorise a backend request.
func (sa *ServiceAccount) RequestHeaders(ctx context.Context) (http.Header, error) {
	tok, err := sa.Token(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok.AccessToken)
	return h, nil
}

// HTTPClient returns a client that authorises every request with a token
// fetched on first use. The token lives as long as the returned client.
func (sa *ServiceAccount) HTTPClient(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, sa.httpClient)
	return oauth2.NewClient(ctx, sa.TokenSource(ctx))
}

// TokenSource adapts Token to oauth2.TokenSource, bound to ctx.
func (sa *ServiceAccount) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, sa: sa}
}

type tokenSource struct {
	ctx context.Context
	sa  *ServiceAccount
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.sa.Token(s.ctx)
}
