package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

func (s *Service) DailyStats(ctx context.Context, orgID string, date string) (domain.DailyStats, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.DailyStats{}, err
	}
	if date == "" {
		date = s.Today()
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return domain.DailyStats{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidTransaction)
	}

	fields := logrus.Fields{"func": "DailyStats", "org": orgID, "date": date}
	if cached, ok, err := s.stats.GetDaily(ctx, orgID, date); err != nil {
		s.log.WithFields(fields).WithError(err).Warn("stats cache read failed")
	} else if ok {
		return *cached, nil
	}

	bucket, err := s.repo.GetDailyStats(ctx, orgID, date)
	if err != nil {
		return domain.DailyStats{}, err
	}
	if bucket == nil {
		bucket = &domain.DailyStats{ID: store.DailyStatsID(orgID, date), OrgID: orgID, Date: date}
	}
	if err := s.stats.SetDaily(ctx, *bucket, s.statsTTL); err != nil {
		s.log.WithFields(fields).WithError(err).Warn("stats cache write failed")
	}
	return *bucket, nil
}

func (s *Service) MonthlyStats(ctx context.Context, orgID string, month string) (domain.MonthlyStats, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.MonthlyStats{}, err
	}
	if month == "" {
		month = s.planner.Month(s.now())
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return domain.MonthlyStats{}, fmt.Errorf("%w: month must be YYYY-MM", store.ErrInvalidTransaction)
	}

	fields := logrus.Fields{"func": "MonthlyStats", "org": orgID, "month": month}
	if cached, ok, err := s.stats.GetMonthly(ctx, orgID, month); err != nil {
		s.log.WithFields(fields).WithError(err).Warn("stats cache read failed")
	} else if ok {
		return *cached, nil
	}

	bucket, err := s.repo.GetMonthlyStats(ctx, orgID, month)
	if err != nil {
		return domain.MonthlyStats{}, err
	}
	if bucket == nil {
		bucket = &domain.MonthlyStats{ID: store.MonthlyStatsID(orgID, month), OrgID: orgID, Month: month}
	}
	if err := s.stats.SetMonthly(ctx, *bucket, s.statsTTL); err != nil {
		s.log.WithFields(fields).WithError(err).Warn("stats cache write failed")
	}
	return *bucket, nil
}
