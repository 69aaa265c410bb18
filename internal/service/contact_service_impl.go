package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/termsite/backend/internal/model"
	"github.com/termsite/backend/internal/notify"
	"github.com/termsite/backend/internal/repository"
	"github.com/termsite/backend/internal/security"
)

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	pipeline   *security.Pipeline
	challenges *security.ChallengeStore
	repo       repository.ContactRepository
	notifier   notify.Notifier
}

// NewContactService wires the pipeline, challenge store, message
// repository and notifier into a ContactService.
func NewContactService(pipeline *security.Pipeline, challenges *security.ChallengeStore, repo repository.ContactRepository, notifier notify.Notifier) ContactService {
	return &contactServiceImpl{
		pipeline:   pipeline,
		challenges: challenges,
		repo:       repo,
		notifier:   notifier,
	}
}

// Submit runs the pipeline and persists the message when the verdict is
// accepted or accepted-as-spam. Spam messages are stored but never
// forwarded to the notifier, so automated senders get no signal that they
// were flagged.
func (s *contactServiceImpl) Submit(ctx context.Context, in SubmitInput) (*SubmitOutcome, error) {
	var validatedAt *time.Time
	if in.SessionToken != "" {
		if at, ok := s.challenges.Validation(in.SessionToken); ok {
			validatedAt = &at
		}
	}

	res := s.pipeline.Evaluate(ctx, security.Submission{
		ClientIP:             in.ClientIP,
		Email:                in.Email,
		Name:                 in.Name,
		Subject:              in.Subject,
		Body:                 in.Body,
		UserAgent:            in.UserAgent,
		Form:                 in.Form,
		ChallengeValidatedAt: validatedAt,
	})

	// A violated challenge must not be reusable for a retry.
	if res.Reason == security.ReasonChallengeStale || res.Reason == security.ReasonChallengeTooFast {
		s.challenges.Clear(in.SessionToken)
	}

	if res.Verdict == security.VerdictBlocked {
		return &SubmitOutcome{Result: res}, nil
	}

	msg := &model.ContactMessage{
		Name:      in.Name,
		Email:     in.Email,
		Subject:   in.Subject,
		Body:      in.Body,
		ClientIP:  in.ClientIP,
		UserAgent: in.UserAgent,
		SpamScore: res.Score,
		IsSpam:    res.IsSpam,
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, err
	}

	if !res.IsSpam {
		if err := s.notifier.ContactReceived(ctx, notify.Message{
			Name:    in.Name,
			Email:   in.Email,
			Subject: in.Subject,
			Body:    in.Body,
			Score:   res.Score,
		}); err != nil {
			// The message is stored; a failed notification only costs
			// latency on the reply, not the message itself.
			slog.Error("contact notification failed", "email", in.Email, "error", err)
		}
	}

	return &SubmitOutcome{Result: res, Message: msg}, nil
}

// RecordChallenge stores the validation instant for the session.
func (s *contactServiceImpl) RecordChallenge(token string) (string, time.Time) {
	now := time.Now().UTC()
	return s.challenges.Record(token, now), now
}

// List returns stored contact messages.
func (s *contactServiceImpl) List(ctx context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error) {
	return s.repo.List(ctx, opts)
}

// MarkRead flips the read flag on a stored message.
func (s *contactServiceImpl) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}
