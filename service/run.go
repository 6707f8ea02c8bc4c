package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunOptions says what Run should start.
type RunOptions struct {
	// Listen is the HTTP address.  Empty means no HTTP.
	Listen   string
	MaxConns int

	// SweepSchedule is a cron expression.  Empty means no sweeping.
	SweepSchedule string

	// MQTT, if not nil, is served too.
	MQTT *MQTTCoupling
}

// Run serves everything in opts until the context is done or one of
// them fails.  Storage is opened first and closed at the end.
func (s *Service) Run(ctx context.Context, opts RunOptions) error {
	if err := s.Storage.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.Storage.Close(context.Background()); err != nil {
			s.log().Warn("storage close", zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	if opts.Listen != "" {
		g.Go(func() error {
			return s.Serve(ctx, opts.Listen, opts.MaxConns)
		})
	}
	if opts.SweepSchedule != "" {
		g.Go(func() error {
			return s.Sweeper(ctx, opts.SweepSchedule)
		})
	}
	if opts.MQTT != nil {
		g.Go(func() error {
			return opts.MQTT.Run(ctx, s)
		})
	}

	return g.Wait()
}
