package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type dedupeClaimer interface {
	Available() bool
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type sentMessageLookup interface {
	HasSentSince(ctx context.Context, campaignID, studentID, occurrence string, since time.Time) (bool, error)
}

// DedupeGuard stops a campaign from messaging the same student about the same
// occurrence twice on one day. It claims a Redis key when Redis is configured and otherwise looks
// for a sent message since midnight.
type DedupeGuard struct {
	claims  dedupeClaimer
	history sentMessageLookup
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
}

// NewDedupeGuard constructs a guard. A disabled guard admits everything.
func NewDedupeGuard(claims dedupeClaimer, history sentMessageLookup, ttl time.Duration, enabled bool, logger *zap.Logger) *DedupeGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DedupeGuard{claims: claims, history: history, ttl: ttl, enabled: enabled, logger: logger}
}

// DedupeKey names the per-day claim for a campaign, student and occurrence.
// An empty occurrence, or one equal to the student ID, yields the plain
// per-student key.
func DedupeKey(campaignID, studentID, occurrence string, day time.Time) string {
	if occurrence == "" || occurrence == studentID {
		return fmt.Sprintf("campaign:%s:student:%s:%s", campaignID, studentID, day.Format("20060102"))
	}
	return fmt.Sprintf("campaign:%s:student:%s:%s:%s", campaignID, studentID, occurrence, day.Format("20060102"))
}

// Acquire reports whether the message may be sent. The returned key must be
// passed to Release if the send fails.
func (g *DedupeGuard) Acquire(ctx context.Context, campaignID string, recipient Recipient, now time.Time) (string, bool, error) {
	if g == nil || !g.enabled {
		return "", true, nil
	}
	if g.claims != nil && g.claims.Available() {
		key := DedupeKey(campaignID, recipient.Student.ID, recipient.OccurrenceKey(), now)
		ok, err := g.claims.Claim(ctx, key, g.ttl)
		if err == nil {
			return key, ok, nil
		}
		g.logger.Sugar().Warnw("dedupe claim failed, falling back to message history", "key", key, "error", err)
	}
	if g.history == nil {
		return "", true, nil
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sent, err := g.history.HasSentSince(ctx, campaignID, recipient.Student.ID, recipient.OccurrenceKey(), midnight)
	if err != nil {
		return "", false, err
	}
	return "", !sent, nil
}

// Release frees a claim so a later tick may retry the student.
func (g *DedupeGuard) Release(ctx context.Context, key string) {
	if g == nil || key == "" || g.claims == nil {
		return
	}
	if err := g.claims.Release(ctx, key); err != nil {
		g.logger.Sugar().Warnw("dedupe release failed", "key", key, "error", err)
	}
}
