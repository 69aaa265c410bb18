package security

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChallengePolicy holds the temporal rules for human-verification tokens.
// Both thresholds are heuristic policy, not fixed law, and come from
// configuration.
type ChallengePolicy struct {
	// MaxAge is how long a solved challenge stays valid. Older
	// validations are treated as reused or expired.
	MaxAge time.Duration

	// MinGap is the minimum believable delay between solving a challenge
	// and submitting the form. Anything faster is an implausible replay.
	MinGap time.Duration
}

// IsFresh reports whether a validation recorded at validatedAt is still
// within the staleness window at now.
func (p ChallengePolicy) IsFresh(validatedAt, now time.Time) bool {
	return now.Sub(validatedAt) <= p.MaxAge
}

// IsTooFast reports whether the gap between validation and submission is
// below the human-plausibility floor.
func (p ChallengePolicy) IsTooFast(validatedAt, now time.Time) bool {
	return now.Sub(validatedAt) < p.MinGap
}

// ChallengeStore holds ephemeral per-session challenge state: the instant
// the session last passed a human-verification challenge. State lives only
// in memory and is swept after the session TTL.
type ChallengeStore struct {
	ttl      time.Duration
	mu       sync.Mutex
	sessions map[string]time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewChallengeStore creates a store for validations that stay fresh for
// maxAge. Entries are retained for twice that before the sweeper drops
// them: a stale validation must still be visible to the freshness check,
// so it is rejected and cleared rather than mistaken for a session that
// never solved a challenge.
func NewChallengeStore(maxAge time.Duration) *ChallengeStore {
	s := &ChallengeStore{
		ttl:      2 * maxAge,
		sessions: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Record stores the validation instant for a session token. An empty token
// gets a fresh one. The (possibly generated) token is returned.
func (s *ChallengeStore) Record(token string, at time.Time) string {
	if token == "" {
		token = uuid.NewString()
	}
	s.mu.Lock()
	s.sessions[token] = at
	s.mu.Unlock()
	return token
}

// Validation returns the recorded validation instant for a token, if any.
func (s *ChallengeStore) Validation(token string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.sessions[token]
	return at, ok
}

// Clear removes a session's stored validation so it cannot be reused for a
// retry after a freshness violation.
func (s *ChallengeStore) Clear(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Close stops the background sweeper.
func (s *ChallengeStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// sweepLoop periodically removes expired entries to bound memory use.
func (s *ChallengeStore) sweepLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *ChallengeStore) sweep(now time.Time) {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	for token, at := range s.sessions {
		if at.Before(cutoff) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
}
