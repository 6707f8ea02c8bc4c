package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

// Sweeper calls Sweep on the given cron schedule until the context
// is done.
//
// The schedule uses the syntax of github.com/gorhill/cronexpr, which
// allows an optional seconds field.
func (s *Service) Sweeper(ctx context.Context, schedule string) error {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}

	for {
		now := s.now()
		next := expr.Next(now)
		if next.IsZero() {
			s.log().Info("sweep schedule exhausted", zap.String("schedule", schedule))
			return nil
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.Sweep(s.now())
		}
	}
}
