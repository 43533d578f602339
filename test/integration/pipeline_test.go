// Package integration exercises the full HTTP surface with real handler
// wiring: middleware chain, rate limiter, content store on a temp directory.
// External collaborators (challenge provider, Postgres, Redis, Kafka) are
// either disabled or faked with httptest backends.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"siteapi/internal/captcha"
	contacthandler "siteapi/internal/contact/handler"
	publishhandler "siteapi/internal/publish/handler"
	publishstore "siteapi/internal/publish/store"
	"siteapi/internal/ratelimit"
	"siteapi/pkg/config"
	"siteapi/pkg/health"
	"siteapi/pkg/metrics"
	"siteapi/pkg/middleware"
)

var testMetrics = metrics.New()

type serverOptions struct {
	rateLimitMax int
	publishToken string
	captchaCfg   *config.ContactConfig
}

// newSiteServer wires handlers, routes, and middleware the same way the
// service entrypoint does, backed by a temp content directory.
func newSiteServer(t *testing.T, opts serverOptions) *httptest.Server {
	t.Helper()

	if opts.rateLimitMax == 0 {
		opts.rateLimitMax = 5
	}
	limiter := ratelimit.New(time.Minute, opts.rateLimitMax)
	t.Cleanup(limiter.Stop)

	captchaCfg := config.ContactConfig{CaptchaFailureMode: "closed", CaptchaTimeout: 2 * time.Second}
	if opts.captchaCfg != nil {
		captchaCfg = *opts.captchaCfg
	}
	verifier := captcha.New(captchaCfg)

	contentStore := publishstore.New(t.TempDir(), ".mdx")
	checker := health.NewChecker()

	ch := contacthandler.New(limiter, verifier, nil, nil, testMetrics)
	ph := publishhandler.New(contentStore, opts.publishToken, nil, 0, testMetrics)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/contact", ch.Submit)
	mux.HandleFunc("GET /api/posts", ph.List)
	mux.HandleFunc("POST /api/posts", ph.Create)
	mux.HandleFunc("GET /health", checker.ReadyHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.RequestID()(
		middleware.Metrics(testMetrics)(
			middleware.Timeout(10 * time.Second)(mux),
		),
	)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return srv
}

func contactForm() url.Values {
	return url.Values{
		"name":    {"Ada"},
		"email":   {"ada@example.com"},
		"message": {"Hello, this is a long enough message."},
	}
}

func postContact(t *testing.T, srv *httptest.Server, form url.Values, clientIP string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/contact", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("contact request failed: %v", err)
	}
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	srv := newSiteServer(t, serverOptions{})

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: request failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestContactSubmissionAccepted(t *testing.T) {
	srv := newSiteServer(t, serverOptions{})

	resp := postContact(t, srv, contactForm(), "203.0.113.9")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("expected a request id header on the response")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func TestContactRateLimitAcrossRequests(t *testing.T) {
	srv := newSiteServer(t, serverOptions{rateLimitMax: 3})

	for i := 0; i < 3; i++ {
		resp := postContact(t, srv, contactForm(), "198.51.100.20")
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i+1, resp.StatusCode)
		}
	}

	resp := postContact(t, srv, contactForm(), "198.51.100.20")
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Errorf("expected a Retry-After header")
	}

	// A different client identity still gets through.
	resp = postContact(t, srv, contactForm(), "198.51.100.21")
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("other client: expected 202, got %d", resp.StatusCode)
	}
}

// TestContactChallengeAgainstFakeProvider points the verifier at an httptest
// siteverify backend and checks both verdicts end to end.
func TestContactChallengeAgainstFakeProvider(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("provider received unparseable form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostFormValue("response") == "good-token" {
			fmt.Fprint(w, `{"success":true}`)
			return
		}
		fmt.Fprint(w, `{"success":false,"error-codes":["invalid-input-response"]}`)
	}))
	defer provider.Close()

	srv := newSiteServer(t, serverOptions{captchaCfg: &config.ContactConfig{
		CaptchaSecret:      "0xsecret",
		CaptchaVerifyURL:   provider.URL,
		CaptchaTimeout:     2 * time.Second,
		CaptchaFailureMode: "closed",
	}})

	form := contactForm()
	form.Set("h-captcha-response", "good-token")
	resp := postContact(t, srv, form, "203.0.113.9")
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("valid token: expected 202, got %d", resp.StatusCode)
	}

	form.Set("h-captcha-response", "bad-token")
	resp = postContact(t, srv, form, "203.0.113.10")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid token: expected 400, got %d", resp.StatusCode)
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Errors["captcha"] == "" {
		t.Errorf("expected a captcha error, got %v", body.Errors)
	}
}

// TestPublishThenList walks the happy path: authenticate, publish a draft,
// list it back, then hit the duplicate-slug conflict.
func TestPublishThenList(t *testing.T) {
	srv := newSiteServer(t, serverOptions{publishToken: "publish-secret"})

	draft := map[string]any{
		"title":   "Integration Testing in Go",
		"summary": "Notes on wiring httptest servers into service-level tests.",
		"body":    strings.Repeat("Wire the real handlers, fake the edges. ", 3),
		"tags":    []string{"go", "testing"},
	}
	raw, _ := json.Marshal(draft)

	publish := func(token string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/posts", strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("publish request failed: %v", err)
		}
		return resp
	}

	// No token: rejected.
	resp := publish("")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated publish: expected 401, got %d", resp.StatusCode)
	}

	// Valid token: created with the derived slug.
	resp = publish("publish-secret")
	var created struct {
		OK   bool   `json:"ok"`
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decoding publish response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish: expected 201, got %d", resp.StatusCode)
	}
	if created.Slug != "integration-testing-in-go" {
		t.Errorf("slug = %q, want integration-testing-in-go", created.Slug)
	}

	// Same draft again: conflict.
	resp = publish("publish-secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate publish: expected 409, got %d", resp.StatusCode)
	}

	// Listing is public and contains the new post.
	listResp, err := http.Get(srv.URL + "/api/posts")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer listResp.Body.Close()
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", listResp.StatusCode)
	}
	var listing struct {
		OK    bool `json:"ok"`
		Posts []struct {
			Slug  string `json:"slug"`
			Title string `json:"title"`
		} `json:"posts"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("decoding listing: %v", err)
	}
	if len(listing.Posts) != 1 || listing.Posts[0].Slug != "integration-testing-in-go" {
		t.Errorf("unexpected listing: %+v", listing.Posts)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv := newSiteServer(t, serverOptions{})

	resp, err := http.Get(srv.URL + "/api/unknown")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
