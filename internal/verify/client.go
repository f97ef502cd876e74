package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/bulk-verify/internal/metrics"
	"github.com/yourorg/bulk-verify/internal/normalize"
	"github.com/yourorg/bulk-verify/internal/types"
)

// Config holds the verification service endpoint and retry policy.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one verification call. Default 10s.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts per address. Default 3.
	MaxAttempts int
	// Backoff computes the sleep before retry n (1-based). If nil, the
	// default exponential policy min(2^n * 1s, 5s) is used.
	Backoff func(attempt int) time.Duration
}

// FromEnv loads client configuration from VERIFY_API_URL / VERIFY_API_KEY.
func FromEnv() Config {
	return Config{
		BaseURL: getEnv("VERIFY_API_URL", "https://api.email-verifier.example/v1/verify"),
		APIKey:  os.Getenv("VERIFY_API_KEY"),
	}
}

// Client calls the external verification service for one address at a
// time. Retry and backoff live here and only here; callers never retry
// around it. Verification failures are data, not pipeline failures: after
// exhausting retries the client returns a terminal unverifiable-class
// outcome instead of an error.
type Client struct {
	cfg   Config
	httpc *http.Client
	log   *zap.Logger
}

// NewClient builds a client with unset knobs filled from defaults.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = defaultBackoff
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
		log:   log,
	}
}

func defaultBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// apiResponse mirrors the verification service's wire format.
type apiResponse struct {
	Email    string `json:"email"`
	Status   string `json:"email_status"`
	MX       string `json:"email_mx"`
	Provider string `json:"provider"`
}

// Verify classifies one address. Blank or placeholder values are
// short-circuited to invalid locally without a network call.
func (c *Client) Verify(ctx context.Context, address string) types.Outcome {
	if normalize.IsBlank(address) {
		metrics.VerifyShortCircuits.Inc()
		return types.Outcome{Address: address, Status: types.StatusInvalid}
	}

	wire := address
	if canon, err := normalize.Address(address); err == nil {
		wire = canon
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		out, err := c.call(ctx, wire)
		if err == nil {
			out.Address = address
			return out
		}
		lastErr = err
		metrics.VerifyRetries.Inc()
		c.log.Warn("verification attempt failed",
			zap.String("email", wire), zap.Int("attempt", attempt), zap.Error(err))

		if attempt == c.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		timer := time.NewTimer(c.cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	metrics.VerifyExhausted.Inc()
	c.log.Warn("verification retries exhausted; marking unverifiable",
		zap.String("email", wire), zap.Error(lastErr))
	return types.Outcome{Address: address, Status: types.StatusInvalid, MX: "error", Provider: "error"}
}

func (c *Client) call(ctx context.Context, address string) (types.Outcome, error) {
	metrics.VerifyCalls.Inc()

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("email", address)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return types.Outcome{}, err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return types.Outcome{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Outcome{}, fmt.Errorf("verification service returned %d", resp.StatusCode)
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return types.Outcome{}, fmt.Errorf("decode verification response: %w", err)
	}
	status := ar.Status
	if status != types.StatusValid {
		status = types.StatusInvalid
	}
	return types.Outcome{Status: status, MX: ar.MX, Provider: ar.Provider}, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
