package baidu

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
	"github.com/davidbz/uniai/internal/provider/transport"
)

// refreshMargin renews tokens this long before they expire.
const refreshMargin = 5 * time.Minute

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type cachedToken struct {
	value   string
	expires time.Time
}

// tokenSource exchanges API key/secret pairs for access tokens and caches
// them until shortly before expiry.
type tokenSource struct {
	endpoint string
	client   *transport.Client
	now      func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func newTokenSource(endpoint string, client *transport.Client) *tokenSource {
	return &tokenSource{
		endpoint: endpoint,
		client:   client,
		now:      time.Now,
		tokens:   make(map[string]cachedToken),
	}
}

func (s *tokenSource) Token(ctx context.Context, apiKey, secretKey string) (string, error) {
	s.mu.Lock()
	cached, ok := s.tokens[apiKey]
	s.mu.Unlock()
	if ok && s.now().Before(cached.expires) {
		return cached.value, nil
	}

	query := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {apiKey},
		"client_secret": {secretKey},
	}
	var resp tokenResponse
	err := s.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    s.endpoint + "?" + query.Encode(),
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		msg := resp.ErrorDescription
		if msg == "" {
			msg = "empty access token"
		}
		return "", &domain.ProviderError{Provider: name, Code: resp.Error, Message: msg, Err: domain.ErrConfiguration}
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - refreshMargin
	s.mu.Lock()
	s.tokens[apiKey] = cachedToken{value: resp.AccessToken, expires: s.now().Add(ttl)}
	s.mu.Unlock()

	observability.FromContext(ctx).Debug("refreshed Baidu access token",
		observability.Duration("ttl", ttl),
	)
	return resp.AccessToken, nil
}
