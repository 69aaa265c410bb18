package model

import "time"

// Outcome values for a SubmissionAttempt.
const (
	OutcomeAccepted = "accepted"
	OutcomeBlocked  = "blocked"
)

// MaxUserAgentLength bounds the user-agent string stored with an attempt,
// in characters to match the VARCHAR(500) column.
const MaxUserAgentLength = 500

// TruncateUserAgent bounds a user-agent string to MaxUserAgentLength
// characters. Truncation is by rune, never mid-character: a byte slice
// could split a multibyte rune and produce invalid UTF-8 that Postgres
// rejects on insert.
func TruncateUserAgent(ua string) string {
	runes := []rune(ua)
	if len(runes) <= MaxUserAgentLength {
		return ua
	}
	return string(runes[:MaxUserAgentLength])
}

// SubmissionAttempt is one append-only audit record per contact-form POST,
// written regardless of whether the submission was accepted or blocked.
// Rows are immutable; only the retention purge removes them.
type SubmissionAttempt struct {
	ID          string    `json:"id"`
	ClientIP    string    `json:"client_ip"`
	Email       string    `json:"email,omitempty"`
	Outcome     string    `json:"outcome"` // "accepted" | "blocked"
	UserAgent   string    `json:"user_agent,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
