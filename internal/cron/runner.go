package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner wraps robfig/cron with a shared base context so scheduled jobs
// stop when the process shuts down.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add schedules a named job. Errors returned by the job are logged, not fatal.
func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		ctx := r.baseCtx
		if ctx == nil {
			ctx = context.Background()
		}
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil && r.logger != nil {
			r.logger.Warn("cron job failed", zap.String("job", name), zap.Error(err))
		}
	})
}

func (r *Runner) Start() {
	if r.logger != nil {
		r.logger.Info("cron started")
	}
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}
