package security

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/termsite/backend/internal/config"
	"github.com/termsite/backend/internal/model"
)

// ---------------------------------------------------------------------------
// memAttempts — in-memory submission log for pipeline tests. Implements both
// AttemptCounter and AttemptLogger so rate limiting counts what the pipeline
// itself logged, as in production.
// ---------------------------------------------------------------------------

type memAttempts struct {
	mu       sync.Mutex
	rows     []*model.SubmissionAttempt
	logErr   error
	countErr error
}

func (m *memAttempts) Log(_ context.Context, a *model.SubmissionAttempt) error {
	if m.logErr != nil {
		return m.logErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	m.rows = append(m.rows, a)
	return nil
}

func (m *memAttempts) CountSince(_ context.Context, clientIP, email string, since time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.SubmittedAt.Before(since) {
			continue
		}
		if row.ClientIP == clientIP || (email != "" && row.Email == email) {
			count++
		}
	}
	return count, nil
}

func (m *memAttempts) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memAttempts) last() *model.SubmissionAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil
	}
	return m.rows[len(m.rows)-1]
}

func newTestPipeline(t *testing.T, attempts *memAttempts, requireChallenge bool) *Pipeline {
	t.Helper()
	policy := config.DefaultPolicy()
	scorer, err := NewScorer(policy.SpamKeywords, policy.SpamPatterns)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	limiter := NewRateLimiter(attempts, policy.RateWindows)
	return NewPipeline(limiter, scorer, attempts, PipelineOptions{
		Policy:           policy,
		RequireChallenge: requireChallenge,
	})
}

func cleanSubmission() Submission {
	return Submission{
		ClientIP:  "203.0.113.7",
		Email:     "alice@example.com",
		Name:      "Alice",
		Subject:   "Question about your blog",
		Body:      cleanBody,
		UserAgent: "Mozilla/5.0 (legit browser)",
		Form: map[string]string{
			"name":    "Alice",
			"email":   "alice@example.com",
			"message": cleanBody,
		},
	}
}

// ---------------------------------------------------------------------------
// End-to-end verdicts
// ---------------------------------------------------------------------------

func TestPipeline_CleanFirstSubmissionAccepted(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)

	res := p.Evaluate(context.Background(), cleanSubmission())

	if res.Verdict != VerdictAccepted {
		t.Fatalf("expected accepted, got %s (reason %s)", res.Verdict, res.Reason)
	}
	if res.Score >= 0.1 {
		t.Errorf("expected spam score < 0.1 for a clean message, got %g", res.Score)
	}
	if attempts.len() != 1 {
		t.Fatalf("expected exactly one logged attempt, got %d", attempts.len())
	}
	if got := attempts.last().Outcome; got != model.OutcomeAccepted {
		t.Errorf("expected accepted outcome logged, got %q", got)
	}
}

func TestPipeline_PythonRequestsBlockedRegardlessOfContent(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)

	sub := cleanSubmission()
	sub.UserAgent = "python-requests/2.28"
	res := p.Evaluate(context.Background(), sub)

	if res.Verdict != VerdictBlocked {
		t.Fatalf("expected blocked, got %s", res.Verdict)
	}
	if res.Reason != ReasonSuspiciousUserAgent {
		t.Errorf("expected reason suspicious_user_agent, got %s", res.Reason)
	}
	if got := attempts.last().Outcome; got != model.OutcomeBlocked {
		t.Errorf("expected blocked outcome logged, got %q", got)
	}
}

func TestPipeline_HoneypotBlockedAndMasked(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)

	sub := cleanSubmission()
	sub.Form["website"] = "http://spam.example"
	res := p.Evaluate(context.Background(), sub)

	if res.Verdict != VerdictBlocked || res.Reason != ReasonHoneypotTriggered {
		t.Fatalf("expected blocked/honeypot_triggered, got %s/%s", res.Verdict, res.Reason)
	}
	if !res.Reason.Masked() {
		t.Error("honeypot blocks must be masked as success to the submitter")
	}
	if got := attempts.last().Outcome; got != model.OutcomeBlocked {
		t.Errorf("expected blocked outcome logged internally, got %q", got)
	}
}

// TestPipeline_RateLimitOnThirdAttemptInMinute checks the (max+1)-th attempt
// within the 1-minute window is denied.
func TestPipeline_RateLimitOnThirdAttemptInMinute(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res := p.Evaluate(ctx, cleanSubmission()); res.Verdict != VerdictAccepted {
			t.Fatalf("attempt %d: expected accepted, got %s (%s)", i+1, res.Verdict, res.Reason)
		}
	}

	res := p.Evaluate(ctx, cleanSubmission())
	if res.Verdict != VerdictBlocked || res.Reason != ReasonRateLimitExceeded {
		t.Fatalf("expected blocked/rate_limit_exceeded on 3rd attempt, got %s/%s", res.Verdict, res.Reason)
	}
	if res.RateInfo.BlockedWindow != "per_minute" {
		t.Errorf("expected per_minute window blocked, got %q", res.RateInfo.BlockedWindow)
	}
	if res.RateInfo.BlockedUntil.IsZero() {
		t.Error("expected a blocked-until instant")
	}
	// Blocked attempts are logged too — they count against the window.
	if attempts.len() != 3 {
		t.Errorf("expected 3 logged attempts, got %d", attempts.len())
	}
}

// TestPipeline_RateLimitUnionOfIPAndEmail verifies that rotating IPs while
// reusing an email does not evade the limit.
func TestPipeline_RateLimitUnionOfIPAndEmail(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)
	ctx := context.Background()

	ips := []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"}
	var last Result
	for _, ip := range ips {
		sub := cleanSubmission()
		sub.ClientIP = ip
		last = p.Evaluate(ctx, sub)
	}

	if last.Verdict != VerdictBlocked || last.Reason != ReasonRateLimitExceeded {
		t.Errorf("expected email reuse across IPs to hit the limit, got %s/%s", last.Verdict, last.Reason)
	}
}

func TestPipeline_StoreErrorFailsClosed(t *testing.T) {
	attempts := &memAttempts{countErr: errors.New("connection refused")}
	p := newTestPipeline(t, attempts, false)

	res := p.Evaluate(context.Background(), cleanSubmission())
	if res.Verdict != VerdictBlocked || res.Reason != ReasonRateLimitExceeded {
		t.Errorf("expected fail-closed block, got %s/%s", res.Verdict, res.Reason)
	}
}

func TestPipeline_LogFailureDoesNotChangeVerdict(t *testing.T) {
	attempts := &memAttempts{logErr: errors.New("insert failed")}
	p := newTestPipeline(t, attempts, false)

	res := p.Evaluate(context.Background(), cleanSubmission())
	if res.Verdict != VerdictAccepted {
		t.Errorf("logging failure must not affect the verdict, got %s", res.Verdict)
	}
}

func TestPipeline_SpamScoredButAccepted(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)

	sub := cleanSubmission()
	sub.Subject = "AMAZING DEAL!!! bitcoin casino viagra pharmacy loan credit guaranteed urgent act now click here make money"
	sub.Body = "$$$!!!!!"
	sub.Form["message"] = sub.Body
	res := p.Evaluate(context.Background(), sub)

	if res.Verdict != VerdictAcceptedAsSpam {
		t.Fatalf("expected accepted_as_spam, got %s (score %g)", res.Verdict, res.Score)
	}
	if !res.IsSpam {
		t.Error("expected spam flag set")
	}
	// Spam submissions are admitted, so the audit outcome stays accepted.
	if got := attempts.last().Outcome; got != model.OutcomeAccepted {
		t.Errorf("expected accepted outcome logged for spam, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Challenge freshness
// ---------------------------------------------------------------------------

func TestPipeline_ChallengeFreshnessOutcomes(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		age     time.Duration
		verdict Verdict
		reason  Reason
	}{
		{"one second is too fast", time.Second, VerdictBlocked, ReasonChallengeTooFast},
		{"three minutes is fine", 3 * time.Minute, VerdictAccepted, ""},
		{"six minutes is stale", 6 * time.Minute, VerdictBlocked, ReasonChallengeStale},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempts := &memAttempts{}
			p := newTestPipeline(t, attempts, true)
			p.now = func() time.Time { return now }

			validated := now.Add(-tc.age)
			sub := cleanSubmission()
			sub.ChallengeValidatedAt = &validated

			res := p.Evaluate(context.Background(), sub)
			if res.Verdict != tc.verdict {
				t.Fatalf("expected %s, got %s (reason %s)", tc.verdict, res.Verdict, res.Reason)
			}
			if res.Reason != tc.reason {
				t.Errorf("expected reason %q, got %q", tc.reason, res.Reason)
			}
		})
	}
}

func TestPipeline_MissingChallengeWhenRequired(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, true)

	res := p.Evaluate(context.Background(), cleanSubmission())
	if res.Verdict != VerdictBlocked || res.Reason != ReasonChallengeStale {
		t.Errorf("expected blocked/challenge_stale without a validation, got %s/%s", res.Verdict, res.Reason)
	}
}

func TestPipeline_MissingChallengeSkippedWhenOptional(t *testing.T) {
	attempts := &memAttempts{}
	p := newTestPipeline(t, attempts, false)

	res := p.Evaluate(context.Background(), cleanSubmission())
	if res.Verdict != VerdictAccepted {
		t.Errorf("expected accepted without challenge when not required, got %s", res.Verdict)
	}
}
