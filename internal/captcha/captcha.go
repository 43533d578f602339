// Package captcha verifies human-challenge tokens against the hCaptcha
// siteverify API. Verification is fail-closed by default: if the authority
// cannot be reached, the request is rejected. No retries are attempted; a
// single transient failure fails the whole request.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"siteapi/pkg/config"
	apperrors "siteapi/pkg/errors"
	"siteapi/pkg/logger"
	"siteapi/pkg/resilience"
)

// ErrRejected wraps every verification failure attributable to the token or
// the authority's answer.
var ErrRejected = apperrors.ErrChallengeFailed

// Verifier calls the challenge authority for contact submissions.
type Verifier struct {
	secret      string
	verifyURL   string
	timeout     time.Duration
	failOpen    bool
	client      *http.Client
	logger      *slog.Logger
	latencyObsv func(seconds float64)
}

// Option customises a Verifier.
type Option func(*Verifier)

// WithLatencyObserver records the duration of each authority call, typically
// into a Prometheus histogram.
func WithLatencyObserver(fn func(seconds float64)) Option {
	return func(v *Verifier) { v.latencyObsv = fn }
}

// New creates a Verifier from config. An empty secret disables verification:
// Verify then always succeeds.
func New(cfg config.ContactConfig, opts ...Option) *Verifier {
	v := &Verifier{
		secret:    cfg.CaptchaSecret,
		verifyURL: cfg.CaptchaVerifyURL,
		timeout:   cfg.CaptchaTimeout,
		failOpen:  cfg.CaptchaFailureMode == "open",
		client:    &http.Client{},
		logger:    logger.WithComponent("captcha"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled reports whether a verification secret is configured.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// verifyResponse is the authority's siteverify answer.
type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks the token with the challenge authority. It returns nil when
// the token is verified and an error wrapping ErrRejected otherwise. In
// fail-open mode transport failures are logged and treated as verified;
// an explicit rejection by the authority is still an error.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return fmt.Errorf("%w: token missing", ErrRejected)
	}

	var rejected error
	start := time.Now()
	err := resilience.WithTimeout(ctx, v.timeout, "captcha verify", func(ctx context.Context) error {
		var callErr error
		rejected, callErr = v.call(ctx, token, remoteIP)
		return callErr
	})
	if v.latencyObsv != nil {
		v.latencyObsv(time.Since(start).Seconds())
	}

	if err != nil {
		// Transport-level failure: timeout, connection error, bad payload.
		if v.failOpen {
			v.logger.Warn("challenge authority unreachable, failing open", "error", err)
			return nil
		}
		return fmt.Errorf("%w: verification unavailable: %v", ErrRejected, err)
	}
	return rejected
}

// call performs the single outbound verification request. The first return
// value reports an authority rejection; the error return reports transport
// failures.
func (v *Verifier) call(ctx context.Context, token, remoteIP string) (error, error) {
	form := url.Values{}
	form.Set("response", token)
	form.Set("secret", v.secret)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling challenge authority: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("challenge authority returned status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding verification response: %w", err)
	}
	if !result.Success {
		reason := "verification failed"
		if len(result.ErrorCodes) > 0 {
			reason = result.ErrorCodes[0]
		}
		return fmt.Errorf("%w: %s", ErrRejected, reason), nil
	}
	return nil, nil
}
