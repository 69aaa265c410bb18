package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/termsite/backend/internal/config"
	"github.com/termsite/backend/internal/model"
)

// Verdict is the pipeline's final decision for a submission.
type Verdict string

const (
	VerdictAccepted       Verdict = "accepted"
	VerdictAcceptedAsSpam Verdict = "accepted_as_spam"
	VerdictBlocked        Verdict = "blocked"
)

// Reason explains why a submission was blocked.
type Reason string

const (
	ReasonRateLimitExceeded   Reason = "rate_limit_exceeded"
	ReasonHoneypotTriggered   Reason = "honeypot_triggered"
	ReasonSuspiciousUserAgent Reason = "suspicious_user_agent"
	ReasonChallengeStale      Reason = "challenge_stale"
	ReasonChallengeTooFast    Reason = "challenge_too_fast"
)

// Masked reports whether a block for this reason must be presented to the
// submitter as a success, to avoid signaling detection to automated senders.
func (r Reason) Masked() bool {
	return r == ReasonHoneypotTriggered
}

// Submission is a candidate contact-form submission handed to the pipeline
// by the request handler.
type Submission struct {
	ClientIP  string
	Email     string
	Name      string
	Subject   string
	Body      string
	UserAgent string

	// Form is the raw submitted field mapping, inspected for honeypots.
	Form map[string]string

	// ChallengeValidatedAt is the session's recorded human-verification
	// instant, nil when the session never solved a challenge.
	ChallengeValidatedAt *time.Time
}

// Result is the pipeline's verdict plus diagnostic metadata.
type Result struct {
	Verdict  Verdict       `json:"verdict"`
	Reason   Reason        `json:"reason,omitempty"`
	Score    float64       `json:"score"`
	IsSpam   bool          `json:"is_spam"`
	Signals  []Signal      `json:"signals,omitempty"`
	RateInfo RateLimitInfo `json:"rate_info"`
}

// AttemptLogger records one audit row per pipeline run.
type AttemptLogger interface {
	Log(ctx context.Context, a *model.SubmissionAttempt) error
}

// Pipeline sequences the abuse-mitigation checks for one submission. It is
// stateless between calls: all durable state lives in the submission log
// behind the rate limiter and attempt logger.
type Pipeline struct {
	limiter   *RateLimiter
	scorer    *Scorer
	attempts  AttemptLogger
	challenge ChallengePolicy

	honeypotFields []string
	botUserAgents  []string
	spamThreshold  float64

	// requireChallenge makes an absent challenge validation a staleness
	// failure instead of a skipped check.
	requireChallenge bool

	now func() time.Time
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Policy           config.Policy
	RequireChallenge bool
}

// NewPipeline builds the orchestrator from its collaborators and policy.
func NewPipeline(limiter *RateLimiter, scorer *Scorer, attempts AttemptLogger, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		limiter:          limiter,
		scorer:           scorer,
		attempts:         attempts,
		challenge:        ChallengePolicy{MaxAge: opts.Policy.ChallengeMaxAge.Std(), MinGap: opts.Policy.ChallengeMinGap.Std()},
		honeypotFields:   opts.Policy.HoneypotFields,
		botUserAgents:    opts.Policy.BotUserAgents,
		spamThreshold:    opts.Policy.SpamThreshold,
		requireChallenge: opts.RequireChallenge,
		now:              time.Now,
	}
}

// Evaluate runs the checks in fixed order: rate limit, honeypot, user
// agent, challenge freshness, then scoring. The first failing check yields
// a blocked verdict and skips the rest; scoring never blocks. Exactly one
// attempt row is logged per run before the result is returned.
func (p *Pipeline) Evaluate(ctx context.Context, sub Submission) Result {
	res := p.gate(ctx, sub)

	outcome := model.OutcomeAccepted
	if res.Verdict == VerdictBlocked {
		outcome = model.OutcomeBlocked
	}
	p.logAttempt(ctx, sub, outcome)

	return res
}

// gate applies the checks without touching the attempt log.
func (p *Pipeline) gate(ctx context.Context, sub Submission) Result {
	var res Result

	allowed, info, err := p.limiter.Check(ctx, sub.ClientIP, sub.Email)
	res.RateInfo = info
	if err != nil {
		// Fail closed: a broken store must not open the floodgates.
		slog.Error("rate limit check failed, denying submission",
			"client_ip", sub.ClientIP, "error", err)
		res.Verdict = VerdictBlocked
		res.Reason = ReasonRateLimitExceeded
		return res
	}
	if !allowed {
		res.Verdict = VerdictBlocked
		res.Reason = ReasonRateLimitExceeded
		return res
	}

	if field, triggered := HoneypotTriggered(sub.Form, p.honeypotFields); triggered {
		slog.Warn("honeypot triggered",
			"client_ip", sub.ClientIP,
			"field", field,
			"fingerprint", Fingerprint(sub.ClientIP, sub.UserAgent),
		)
		res.Verdict = VerdictBlocked
		res.Reason = ReasonHoneypotTriggered
		return res
	}

	if SuspiciousUserAgent(sub.UserAgent, p.botUserAgents) {
		res.Verdict = VerdictBlocked
		res.Reason = ReasonSuspiciousUserAgent
		return res
	}

	if reason, ok := p.checkChallenge(sub.ChallengeValidatedAt); !ok {
		res.Verdict = VerdictBlocked
		res.Reason = reason
		return res
	}

	score, signals := p.scorer.Score(sub.Name, sub.Email, sub.Subject, sub.Body)
	res.Score = score
	res.Signals = signals
	res.IsSpam = score > p.spamThreshold
	if res.IsSpam {
		res.Verdict = VerdictAcceptedAsSpam
	} else {
		res.Verdict = VerdictAccepted
	}

	if score > 0.1 {
		slog.Info("spam analysis",
			"email", sub.Email,
			"score", score,
			"is_spam", res.IsSpam,
		)
	}
	return res
}

func (p *Pipeline) checkChallenge(validatedAt *time.Time) (Reason, bool) {
	if validatedAt == nil {
		if p.requireChallenge {
			return ReasonChallengeStale, false
		}
		return "", true
	}

	now := p.now().UTC()
	if !p.challenge.IsFresh(*validatedAt, now) {
		return ReasonChallengeStale, false
	}
	if p.challenge.IsTooFast(*validatedAt, now) {
		return ReasonChallengeTooFast, false
	}
	return "", true
}

// logAttempt appends the audit record. A logging failure never reaches the
// caller; losing one audit row is less harmful than failing a submission
// that already cleared every check.
func (p *Pipeline) logAttempt(ctx context.Context, sub Submission, outcome string) {
	attempt := &model.SubmissionAttempt{
		ClientIP:  sub.ClientIP,
		Email:     sub.Email,
		Outcome:   outcome,
		UserAgent: sub.UserAgent,
	}
	if err := p.attempts.Log(ctx, attempt); err != nil {
		slog.Error("failed to log submission attempt",
			"client_ip", sub.ClientIP, "outcome", outcome, "error", err)
	}
}
