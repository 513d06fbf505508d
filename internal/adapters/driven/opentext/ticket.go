package opentext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

const defaultTicketLifetime = 7200 * time.Second

// ticketSource exchanges username and password for a Content Server ticket.
// It is wrapped in oauth2.ReuseTokenSource so a ticket is reused until it expires.
type ticketSource struct {
	ctx      context.Context
	baseURL  string
	username string
	password string
	client   *http.Client
	now      func() time.Time
}

type sessionResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// Token implements oauth2.TokenSource
func (s *ticketSource) Token() (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("username", s.username)
	form.Set("password", s.password)

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost,
		s.baseURL+"/api/v2/authentication/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: authentication returned status %d", domain.ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: authentication returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if session.Ticket == "" {
		return nil, fmt.Errorf("%w: no ticket in session response", domain.ErrMalformedResponse)
	}

	lifetime := defaultTicketLifetime
	if session.ExpiresIn > 0 {
		lifetime = time.Duration(session.ExpiresIn) * time.Second
	}
	return &oauth2.Token{
		AccessToken: session.Ticket,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(lifetime),
	}, nil
}
