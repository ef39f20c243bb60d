package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"udhaar/backend/internal/store"
)

// ErrRetriesExhausted is returned when every attempt lost a commit race. It
// always wraps store.ErrConflict.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		BaseBackoff: 15 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

// backoff is the pause after the given failed attempt: exponential from
// BaseBackoff, capped at MaxBackoff, with the upper half jittered.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseBackoff <= 0 {
		return 0
	}
	d := p.BaseBackoff << min(attempt-1, 16)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

// planFunc reads through tx and returns what to write. It is re-run from
// scratch on every attempt, so it must not keep state between calls other
// than its result.
type planFunc func(ctx context.Context, tx store.Txn) (store.WriteSet, error)

func (s *Service) runInTxn(ctx context.Context, op string, plan planFunc) error {
	for attempt := 1; ; attempt++ {
		writes, err := s.attempt(ctx, plan)
		if err == nil {
			s.afterCommit(ctx, writes)
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		if attempt >= s.retry.MaxAttempts {
			s.log.WithFields(logrus.Fields{"func": "runInTxn", "op": op, "attempt": attempt}).Warn("giving up after write conflicts")
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, op, attempt, err)
		}

		wait := s.retry.backoff(attempt)
		s.log.WithFields(logrus.Fields{"func": "runInTxn", "op": op, "attempt": attempt, "backoff": wait.String()}).Debug("write conflict, retrying")
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) attempt(ctx context.Context, plan planFunc) (store.WriteSet, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return store.WriteSet{}, err
	}
	writes, err := plan(ctx, tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return store.WriteSet{}, err
	}
	if err := tx.Commit(ctx, writes); err != nil {
		return store.WriteSet{}, err
	}
	return writes, nil
}

// afterCommit publishes the committed stats buckets to the cache. Their
// stored Version is one past the version that was read, which is what lets
// the cache refuse older buckets from concurrent readers. If publishing fails
// the keys are dropped instead.
func (s *Service) afterCommit(ctx context.Context, writes store.WriteSet) {
	if writes.DailyStats == nil && writes.MonthlyStats == nil {
		return
	}
	var orgID, date, month string
	var publishErr error
	if writes.DailyStats != nil {
		bucket := *writes.DailyStats
		bucket.Version++
		orgID, date = bucket.OrgID, bucket.Date
		publishErr = errors.Join(publishErr, s.stats.SetDaily(ctx, bucket, s.statsTTL))
	}
	if writes.MonthlyStats != nil {
		bucket := *writes.MonthlyStats
		bucket.Version++
		orgID, month = bucket.OrgID, bucket.Month
		publishErr = errors.Join(publishErr, s.stats.SetMonthly(ctx, bucket, s.statsTTL))
	}
	if publishErr == nil {
		return
	}

	fields := logrus.Fields{"func": "afterCommit", "org": orgID, "date": date, "month": month}
	s.log.WithFields(fields).WithError(publishErr).Warn("failed to publish stats to cache")
	if err := s.stats.Invalidate(ctx, orgID, date, month); err != nil {
		s.log.WithFields(fields).WithError(err).Warn("failed to invalidate stats cache")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
