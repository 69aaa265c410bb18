package model

import "time"

// ContactMessage represents a message submitted via the contact form.
// SpamScore and IsSpam are fixed at creation time by the abuse-mitigation
// pipeline and never recomputed.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	SpamScore float64   `json:"spam_score"`
	IsSpam    bool      `json:"is_spam"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactListOptions carries filter and pagination parameters for listing
// contact messages.
type ContactListOptions struct {
	// Filter selects a subset of messages: "", "all", "unread", "read",
	// "spam", "ham". Empty string and "all" return all messages.
	Filter string
	Limit  int
	Offset int
}
