// Package handler implements the contact submission endpoint. The flow is
// linear with short-circuit on first failure: resolve identifier, rate
// limit, validate, verify challenge, accept. Accepted submissions are
// archived and notified when those collaborators are configured.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"siteapi/internal/clientip"
	"siteapi/internal/contact"
	"siteapi/internal/contact/validator"
	"siteapi/internal/ratelimit"
	"siteapi/pkg/kafka"
	"siteapi/pkg/logger"
	"siteapi/pkg/metrics"
	"siteapi/pkg/tracing"
)

// challengeField is the form field carrying the challenge proof.
const challengeField = "h-captcha-response"

// Archiver persists accepted submissions durably.
type Archiver interface {
	Save(ctx context.Context, sub *contact.Submission, clientIP string, receivedAt time.Time) (string, error)
}

// Notifier publishes best-effort events for accepted submissions.
type Notifier interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// ChallengeVerifier confirms a human-presented proof token.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Handler orchestrates the contact submission pipeline.
type Handler struct {
	limiter  *ratelimit.Limiter
	verifier ChallengeVerifier
	archive  Archiver // nil when no archive is configured
	notifier Notifier // nil when notifications are disabled
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates the contact handler. archive and notifier may be nil.
func New(limiter *ratelimit.Limiter, verifier ChallengeVerifier, archive Archiver, notifier Notifier, m *metrics.Metrics) *Handler {
	return &Handler{
		limiter:  limiter,
		verifier: verifier,
		archive:  archive,
		notifier: notifier,
		metrics:  m,
		logger:   logger.WithComponent("contact-handler"),
	}
}

// Submit handles POST /api/contact.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "contact.submit")
	defer span.End(ctx)
	log := logger.FromContext(ctx)

	sub, ok := h.parseForm(r)
	if !ok {
		span.SetAttr("outcome", "unsupported_media")
		h.writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{
			"ok":      false,
			"message": "unsupported content type, expecting form data",
		})
		return
	}

	id, hasID := clientip.FromRequest(r)
	if decision := h.limiter.Allow(id, time.Now()); !decision.Allowed {
		retryAfter := int(decision.RetryAfter / time.Second)
		span.SetAttr("outcome", "rate_limited")
		h.metrics.RateLimitDenials.Inc()
		h.metrics.SubmissionsTotal.WithLabelValues("rate_limited").Inc()
		log.Warn("submission rate limited", "retry_after_s", retryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"ok":      false,
			"message": "too many submissions, try again later",
		})
		return
	}

	if err := validator.Validate(sub); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			span.SetAttr("outcome", "validation_failed")
			h.metrics.SubmissionsTotal.WithLabelValues("validation_failed").Inc()
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"ok":     false,
				"errors": validationErr.Fields,
			})
			return
		}
	}

	remoteIP := ""
	if hasID {
		remoteIP = id
	}
	if err := h.verifier.Verify(ctx, sub.Token, remoteIP); err != nil {
		span.SetAttr("outcome", "challenge_failed")
		h.metrics.CaptchaVerifications.WithLabelValues("rejected").Inc()
		h.metrics.SubmissionsTotal.WithLabelValues("challenge_failed").Inc()
		log.Warn("challenge verification failed", "error", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":     false,
			"errors": map[string]string{"captcha": reason(err)},
		})
		return
	}
	h.metrics.CaptchaVerifications.WithLabelValues("verified").Inc()

	receivedAt := time.Now().UTC()
	if h.archive != nil {
		if _, err := h.archive.Save(ctx, sub, remoteIP, receivedAt); err != nil {
			span.SetAttr("outcome", "error")
			h.metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			log.Error("failed to archive submission", "error", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]any{
				"ok":      false,
				"message": "failed to record submission",
			})
			return
		}
	}

	// Redacted observability: lengths and email domain only, never content.
	log.Info("submission accepted",
		"name_len", len(sub.Name),
		"email_domain", logger.RedactEmail(strings.TrimSpace(sub.Email)),
		"message_len", len(sub.Message),
	)
	span.SetAttr("outcome", "accepted")
	h.metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()

	if h.notifier != nil {
		event := kafka.Event{
			Key: remoteIP,
			Value: contact.AcceptedEvent{
				Name:        strings.TrimSpace(sub.Name),
				EmailDomain: logger.RedactEmail(strings.TrimSpace(sub.Email)),
				MessageLen:  len(sub.Message),
				ClientIP:    remoteIP,
				ReceivedAt:  receivedAt,
			},
		}
		if err := h.notifier.Publish(ctx, event); err != nil {
			// Best effort: the submission is already durable or logged.
			log.Warn("failed to publish acceptance event", "error", err)
		}
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"message": "thanks for reaching out, we will reply shortly",
	})
}

// parseForm extracts the submission from a form-encoded request body.
// Returns ok=false for unsupported content types.
func (h *Handler) parseForm(r *http.Request) (*contact.Submission, bool) {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, false
	}
	switch ct {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, false
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	return &contact.Submission{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
		Token:   r.PostFormValue(challengeField),
	}, true
}

// reason strips the sentinel prefix from a captcha error for client display.
func reason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
