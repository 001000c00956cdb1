// Package sms provides the outbound SMS gateway abstraction and its
// provider implementations.
package sms

import "context"

// Result is the uniform outcome of a send attempt. Provider-level failures
// (invalid number, exhausted quota, provider timeout) surface through
// Success=false and Error; implementations never panic or return a Go error
// for those, so one bad recipient cannot abort a dispatch run.
type Result struct {
	Success        bool   `json:"success"`
	MessageID      string `json:"message_id,omitempty"`
	Error          string `json:"error,omitempty"`
	QuotaRemaining int    `json:"quota_remaining,omitempty"`
}

// Gateway sends a text message to a phone number.
type Gateway interface {
	Send(ctx context.Context, phone, text string) Result
	Name() string
}
