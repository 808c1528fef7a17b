package realtime

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sebas/voicebridge/internal/transport"
)

// DefaultURL is the realtime endpoint used when none is configured.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// DialConfig describes how to reach the speech service.
type DialConfig struct {
	URL              string
	Model            string
	APIKey           string
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
}

// Endpoint returns the websocket URL with the model query parameter set.
func (c DialConfig) Endpoint() (string, error) {
	raw := c.URL
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if c.Model != "" {
		q := u.Query()
		q.Set("model", c.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Header returns the authentication headers for the handshake.
func (c DialConfig) Header() http.Header {
	h := http.Header{}
	if c.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.APIKey)
	}
	h.Set("OpenAI-Beta", "realtime=v1")
	return h
}

// Dial opens a realtime session connection.
func Dial(ctx context.Context, cfg DialConfig) (*transport.Conn, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	return transport.Dial(ctx, endpoint, cfg.Header(), transport.DialOptions{
		HandshakeTimeout: cfg.HandshakeTimeout,
		IdleTimeout:      cfg.IdleTimeout,
	})
}
