package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler triggers periodic timelapse rebuilds for the default region, so
// the published video keeps up with archive updates without anyone pressing
// the button.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func New(spec string, job func(ctx context.Context), logger *zap.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		logger.Info("scheduled timelapse rebuild triggered", zap.String("spec", spec))
		job(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
