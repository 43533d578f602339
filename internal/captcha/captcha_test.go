package captcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"siteapi/pkg/config"
)

func testConfig(secret, verifyURL string) config.ContactConfig {
	return config.ContactConfig{
		CaptchaSecret:      secret,
		CaptchaVerifyURL:   verifyURL,
		CaptchaTimeout:     2 * time.Second,
		CaptchaFailureMode: "closed",
	}
}

func TestVerifySkippedWithoutSecret(t *testing.T) {
	v := New(testConfig("", "http://127.0.0.1:1/unreachable"))
	if v.Enabled() {
		t.Fatal("verifier without secret should report disabled")
	}
	// Must succeed without any outbound call.
	if err := v.Verify(context.Background(), "anything", ""); err != nil {
		t.Fatalf("Verify without secret should succeed, got %v", err)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	v := New(testConfig("secret", "http://127.0.0.1:1/unreachable"))
	err := v.Verify(context.Background(), "", "")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "token missing") {
		t.Errorf("reason should mention the missing token, got %q", err)
	}
}

func TestVerifySuccess(t *testing.T) {
	var gotToken, gotSecret, gotRemoteIP string
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing verification form: %v", err)
		}
		gotToken = r.PostFormValue("response")
		gotSecret = r.PostFormValue("secret")
		gotRemoteIP = r.PostFormValue("remoteip")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer authority.Close()

	v := New(testConfig("s3cret", authority.URL))
	if err := v.Verify(context.Background(), "tok123", "203.0.113.7"); err != nil {
		t.Fatalf("Verify should succeed, got %v", err)
	}
	if gotToken != "tok123" || gotSecret != "s3cret" || gotRemoteIP != "203.0.113.7" {
		t.Errorf("authority received token=%q secret=%q remoteip=%q", gotToken, gotSecret, gotRemoteIP)
	}
}

func TestVerifyRejectedWithErrorCode(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response","other"]}`))
	}))
	defer authority.Close()

	v := New(testConfig("secret", authority.URL))
	err := v.Verify(context.Background(), "bad", "")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid-input-response") {
		t.Errorf("reason should carry the authority's first error code, got %q", err)
	}
}

func TestVerifyNonSuccessStatus(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer authority.Close()

	v := New(testConfig("secret", authority.URL))
	if err := v.Verify(context.Background(), "tok", ""); !errors.Is(err, ErrRejected) {
		t.Fatalf("non-2xx authority status should fail closed, got %v", err)
	}
}

func TestVerifyUnreachableFailsClosed(t *testing.T) {
	v := New(testConfig("secret", "http://127.0.0.1:1/unreachable"))
	if err := v.Verify(context.Background(), "tok", ""); !errors.Is(err, ErrRejected) {
		t.Fatalf("unreachable authority should fail closed, got %v", err)
	}
}

func TestVerifyUnreachableFailsOpen(t *testing.T) {
	cfg := testConfig("secret", "http://127.0.0.1:1/unreachable")
	cfg.CaptchaFailureMode = "open"
	v := New(cfg)
	if err := v.Verify(context.Background(), "tok", ""); err != nil {
		t.Fatalf("fail-open mode should accept on transport failure, got %v", err)
	}
}

func TestVerifyFailOpenStillRejectsAuthorityNo(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false}`))
	}))
	defer authority.Close()

	cfg := testConfig("secret", authority.URL)
	cfg.CaptchaFailureMode = "open"
	v := New(cfg)
	if err := v.Verify(context.Background(), "tok", ""); !errors.Is(err, ErrRejected) {
		t.Fatalf("an explicit authority rejection must fail even in open mode, got %v", err)
	}
}

func TestVerifyTimeout(t *testing.T) {
	release := make(chan struct{})
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer authority.Close()
	defer close(release)

	cfg := testConfig("secret", authority.URL)
	cfg.CaptchaTimeout = 50 * time.Millisecond
	v := New(cfg)

	start := time.Now()
	err := v.Verify(context.Background(), "tok", "")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("timeout should fail closed, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Verify should return promptly on timeout, took %v", elapsed)
	}
}

func TestVerifyLatencyObserver(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer authority.Close()

	var observed int
	v := New(testConfig("secret", authority.URL), WithLatencyObserver(func(float64) { observed++ }))
	if err := v.Verify(context.Background(), "tok", ""); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if observed != 1 {
		t.Errorf("latency observer should fire once per call, fired %d times", observed)
	}
}
