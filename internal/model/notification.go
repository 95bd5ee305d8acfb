package model

import "context"

// Notifier delivers links carrying single-purpose tokens to users.
// Delivery failures are never reported to callers.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to string, token string)
	SendVerification(ctx context.Context, to string, token string)
}

// Message is an outbound e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}
