// Package hipchat posts room notifications to the HipChat v1 message API
// (or any endpoint speaking the same form-encoded protocol).
package hipchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hiprelay/internal/message"
)

const (
	DefaultFrom = "Sentry"

	// Responses larger than this are not a chat API acknowledgement.
	maxResponseBytes = 64 << 10

	statusSent = "sent"
)

// Message is one outbound room notification.
type Message struct {
	Endpoint  string
	AuthToken string
	RoomID    string
	From      string
	Body      string
	Notify    bool
	Color     message.Color
}

// Values returns the form fields expected by the rooms/message API.
func (m Message) Values() url.Values {
	from := m.From
	if from == "" {
		from = DefaultFrom
	}
	notify := "0"
	if m.Notify {
		notify = "1"
	}
	v := url.Values{}
	v.Set("auth_token", m.AuthToken)
	v.Set("room_id", m.RoomID)
	v.Set("from", from)
	v.Set("message", m.Body)
	v.Set("notify", notify)
	v.Set("color", string(m.Color))
	return v
}

// Sender delivers a single message attempt.
type Sender interface {
	Send(ctx context.Context, m Message, timeout time.Duration) error
}

// Config configures Client.
type Config struct {
	// HTTPClient is optional; its own Timeout is ignored in favour of the per-call timeout.
	HTTPClient *http.Client
	// RatePerSec limits sends per auth token. 0 disables limiting.
	RatePerSec float64
	UserAgent  string
}

// Client is a Sender over HTTP. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string

	mu       sync.Mutex
	rps      float64
	limiters map[string]*rate.Limiter
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "hiprelay/1"
	}
	c := &Client{http: hc, userAgent: ua, limiters: map[string]*rate.Limiter{}}
	c.SetRate(cfg.RatePerSec)
	return c
}

// SetRate changes the per-token send rate. Existing limiters are dropped.
func (c *Client) SetRate(perSec float64) {
	if perSec < 0 {
		perSec = 0
	}
	c.mu.Lock()
	if perSec != c.rps {
		c.rps = perSec
		c.limiters = map[string]*rate.Limiter{}
	}
	c.mu.Unlock()
}

// Retain drops limiters for tokens not in keep and returns how many were
// removed. Called after a reload so rotated tokens do not accumulate.
func (c *Client) Retain(keep []string) int {
	set := make(map[string]struct{}, len(keep))
	for _, tok := range keep {
		set[tok] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for tok := range c.limiters {
		if _, ok := set[tok]; !ok {
			delete(c.limiters, tok)
			n++
		}
	}
	return n
}

// Limiters returns the number of per-token limiters currently held.
func (c *Client) Limiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

func (c *Client) limiter(token string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rps <= 0 {
		return nil
	}
	lim := c.limiters[token]
	if lim == nil {
		burst := int(c.rps)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(c.rps), burst)
		c.limiters[token] = lim
	}
	return lim
}

// Send performs exactly one delivery attempt bounded by timeout.
func (c *Client) Send(ctx context.Context, m Message, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(m.Endpoint) == "" {
		return errors.New("hipchat: endpoint is required")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if lim := c.limiter(m.AuthToken); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return &DeliveryError{Op: "rate limit", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, strings.NewReader(m.Values().Encode()))
	if err != nil {
		return fmt.Errorf("hipchat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Op: "post", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &DeliveryError{Op: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw)
	}
	return interpret(raw)
}

// interpret checks the acknowledgement body: {"status": "sent"}.
func interpret(raw []byte) error {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return &DeliveryError{Op: "decode response", Err: err}
	}
	st, ok := body["status"]
	if !ok {
		return ErrUnexpectedResponse
	}
	if s, _ := st.(string); s != statusSent {
		return fmt.Errorf("%w: status %v", ErrNotSent, st)
	}
	return nil
}
