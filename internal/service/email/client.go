package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	xhttp "EduPulse/pkg/http"
)

const (
	tokenPath = "/v1/auth/token"
	sendPath  = "/v1/secure/send-email"

	// defaultTokenTTL applies when the token endpoint omits expires_in.
	defaultTokenTTL = time.Hour
	// expiryMargin renews tokens before the provider rejects them.
	expiryMargin = 5 * time.Minute
)

// Credential is an access token and the time it stops being usable.
type Credential struct {
	Token  string
	Expiry time.Time
}

// Valid reports whether the token can still be used at now.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.Expiry)
}

// Message is one outgoing email. Body is HTML.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Config holds the email provider settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	From         string
	Timeout      time.Duration
}

// Client sends email through a token-authenticated HTTP API.
// It owns its Credential and refreshes it when expired or rejected.
type Client struct {
	http *xhttp.Client
	cfg  Config
	now  func() time.Time

	mu   sync.Mutex
	cred Credential
}

// NewClient validates cfg and builds a Client. hc may be nil.
func NewClient(cfg Config, hc *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("email base url is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("email client credentials are required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if hc != nil {
		opts = append(opts, xhttp.WithHTTPClient(hc))
	}
	return &Client{http: xhttp.NewClient(opts...), cfg: cfg, now: time.Now}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// token returns a valid access token, requesting a new one when needed.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred.Valid(c.now()) {
		return c.cred.Token, nil
	}

	var resp tokenResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    c.cfg.BaseURL + tokenPath,
		Body: map[string]string{
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("request token: empty access_token")
	}

	ttl := defaultTokenTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	if ttl > 2*expiryMargin {
		ttl -= expiryMargin
	}
	c.cred = Credential{Token: resp.AccessToken, Expiry: c.now().Add(ttl)}
	return c.cred.Token, nil
}

func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred.Token == token {
		c.cred = Credential{}
	}
}

// Send delivers msg. A 401 forces one token refresh and retry.
func (c *Client) Send(ctx context.Context, msg Message) error {
	err := c.send(ctx, msg)
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		err = c.send(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg Message) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     c.cfg.BaseURL + sendPath,
		Headers: map[string]string{"Authorization": "Bearer " + token},
		Body: map[string]string{
			"sender_email":    c.cfg.From,
			"recipient_email": msg.To,
			"subject":         msg.Subject,
			"body":            msg.Body,
		},
	}, nil)
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		c.invalidate(token)
	}
	return err
}
