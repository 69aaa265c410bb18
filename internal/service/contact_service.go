package service

import (
	"context"
	"time"

	"github.com/termsite/backend/internal/model"
	"github.com/termsite/backend/internal/security"
)

// SubmitInput carries one candidate contact-form submission from the
// request handler into the pipeline.
type SubmitInput struct {
	Name    string
	Email   string
	Subject string
	Body    string

	ClientIP  string
	UserAgent string

	// Form is the raw field mapping as submitted, for honeypot inspection.
	Form map[string]string

	// SessionToken identifies the submitter's challenge session, empty
	// when no session cookie was presented.
	SessionToken string
}

// SubmitOutcome is the pipeline verdict plus the stored message, when one
// was created. Message is nil for blocked submissions.
type SubmitOutcome struct {
	Result  security.Result
	Message *model.ContactMessage
}

// ContactService runs the abuse-mitigation pipeline for contact-form
// submissions and manages stored messages.
type ContactService interface {
	// Submit evaluates and, when admitted, stores a submission. A non-nil
	// error means an infrastructure fault while storing an accepted
	// message; policy rejections are reported via the outcome, never as
	// errors.
	Submit(ctx context.Context, in SubmitInput) (*SubmitOutcome, error)

	// RecordChallenge notes that the session passed a human-verification
	// challenge now. An empty token starts a new session; the returned
	// token identifies it either way.
	RecordChallenge(token string) (string, time.Time)

	// List returns stored contact messages according to the given options.
	List(ctx context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error)

	// MarkRead flips the read flag on a stored message.
	MarkRead(ctx context.Context, id string) error
}
