// Package contact defines the types flowing through the contact submission
// pipeline.
package contact

import "time"

// Submission is the form payload accepted by the contact endpoint. Fields
// are kept pre-trim; validation trims where the rules call for it.
type Submission struct {
	Name    string
	Email   string
	Message string
	// Token is the optional challenge proof presented by the client
	// (the h-captcha-response form field).
	Token string
}

// AcceptedEvent is the Kafka payload produced after a submission clears the
// pipeline. The message body itself is not included; consumers that need it
// read the archive.
type AcceptedEvent struct {
	Name        string    `json:"name"`
	EmailDomain string    `json:"email_domain"`
	MessageLen  int       `json:"message_len"`
	ClientIP    string    `json:"client_ip,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}
